package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/35529110/reweAnalyzer/internal/scanning"
)

// Outcome classifies what happened to one draft during a batch.
type Outcome string

const (
	OutcomeInserted Outcome = "inserted"
	OutcomeReplaced Outcome = "replaced"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeRejected Outcome = "rejected"
)

// DraftResult is the per-draft entry of an IngestReport.
type DraftResult struct {
	SourceFile string
	Outcome    Outcome
	ReceiptID  uint
	Warnings   []Warning

	// Err explains skipped and rejected outcomes
	Err error
}

// IngestReport is the batch's sole output contract: one result per input
// draft, in input order.
type IngestReport struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Results  []DraftResult
}

func (r *IngestReport) count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Inserted returns the number of newly stored receipts.
func (r *IngestReport) Inserted() int { return r.count(OutcomeInserted) }

// Replaced returns the number of receipts re-stored under replace policy.
func (r *IngestReport) Replaced() int { return r.count(OutcomeReplaced) }

// Skipped returns the number of duplicate drafts left untouched.
func (r *IngestReport) Skipped() int { return r.count(OutcomeSkipped) }

// Rejected returns the number of drafts that failed validation or storage.
func (r *IngestReport) Rejected() int { return r.count(OutcomeRejected) }

// Summary renders the batch outcome the way the report printer shows it.
func (r *IngestReport) Summary() string {
	var sb strings.Builder
	line := strings.Repeat("=", 60)
	sb.WriteString(line + "\n")
	sb.WriteString("INGEST SUMMARY  run " + r.RunID + "\n")
	sb.WriteString(line + "\n")
	fmt.Fprintf(&sb, "Drafts processed: %d\n", len(r.Results))
	fmt.Fprintf(&sb, "Inserted:         %d\n", r.Inserted())
	fmt.Fprintf(&sb, "Replaced:         %d\n", r.Replaced())
	fmt.Fprintf(&sb, "Skipped:          %d\n", r.Skipped())
	fmt.Fprintf(&sb, "Rejected:         %d\n", r.Rejected())
	sb.WriteString(line + "\n")

	for i, res := range r.Results {
		switch res.Outcome {
		case OutcomeInserted, OutcomeReplaced:
			fmt.Fprintf(&sb, "[%d/%d] ✓ %s %s (receipt %d)\n", i+1, len(r.Results), res.Outcome, res.SourceFile, res.ReceiptID)
		case OutcomeSkipped:
			fmt.Fprintf(&sb, "[%d/%d] ⊗ skipped duplicate %s: %v\n", i+1, len(r.Results), res.SourceFile, res.Err)
		case OutcomeRejected:
			fmt.Fprintf(&sb, "[%d/%d] ✗ rejected %s: %v\n", i+1, len(r.Results), res.SourceFile, res.Err)
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(&sb, "        ⚠ %s\n", w)
		}
	}

	return sb.String()
}

// Coordinator orchestrates ingestion: per draft it resolves the market,
// normalizes, and persists receipt, items and tax rows in one transaction.
// Drafts are isolated from each other; one bad receipt never blocks the rest
// of the batch.
type Coordinator struct {
	db         DB
	normalizer *Normalizer
	policy     DuplicatePolicy
}

// NewCoordinator creates a Coordinator writing through db under the given
// duplicate policy.
func NewCoordinator(db DB, policy DuplicatePolicy) *Coordinator {
	return &Coordinator{
		db:         db,
		normalizer: NewNormalizer(),
		policy:     policy,
	}
}

// IngestBatch processes each draft independently and reports one outcome per
// draft. It returns early only when ctx is cancelled; results gathered so
// far stay in the report.
func (c *Coordinator) IngestBatch(ctx context.Context, drafts []*scanning.DraftReceipt) *IngestReport {
	report := &IngestReport{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}

	for _, draft := range drafts {
		if ctx.Err() != nil {
			break
		}
		result := c.ingestOne(draft)
		report.Results = append(report.Results, result)

		switch result.Outcome {
		case OutcomeInserted, OutcomeReplaced:
			slog.Info("Ingested receipt",
				"run_id", report.RunID,
				"source", result.SourceFile,
				"outcome", result.Outcome,
				"receipt_id", result.ReceiptID,
				"warnings", len(result.Warnings),
			)
		case OutcomeSkipped:
			slog.Info("Skipped duplicate receipt", "run_id", report.RunID, "source", result.SourceFile)
		case OutcomeRejected:
			slog.Warn("Rejected draft", "run_id", report.RunID, "source", result.SourceFile, "error", result.Err)
		}
	}

	report.Finished = time.Now()
	return report
}

func (c *Coordinator) ingestOne(draft *scanning.DraftReceipt) DraftResult {
	result := DraftResult{SourceFile: draft.SourceFile}

	norm, err := c.normalizer.Normalize(c.db, draft, c.policy)
	if err != nil {
		var dup *DuplicateError
		if errors.As(err, &dup) {
			result.Outcome = OutcomeSkipped
			result.ReceiptID = dup.ExistingID
			result.Err = dup
			return result
		}
		result.Outcome = OutcomeRejected
		result.Err = err
		return result
	}
	result.Warnings = norm.Warnings

	err = c.db.RunInTransaction(func(tx DB) error {
		marketID, marketWarnings, err := ResolveMarket(tx, norm.Receipt.StoreNumber, ObservedMarket{
			Name:       norm.Receipt.StoreName,
			Street:     norm.Receipt.StoreStreet,
			PostalCode: norm.Receipt.StorePostalCode,
			City:       norm.Receipt.StoreCity,
			Phone:      norm.Receipt.StorePhone,
			TaxID:      norm.Receipt.StoreTaxID,
		})
		if err != nil {
			return err
		}
		result.Warnings = append(result.Warnings, marketWarnings...)
		norm.Receipt.MarketID = marketID

		if norm.ReplacedID != 0 {
			if err := tx.DeleteReceipt(norm.ReplacedID); err != nil {
				return err
			}
		}

		return tx.CreateReceipt(norm.Receipt)
	})
	if err != nil {
		result.Outcome = OutcomeRejected
		result.Err = fmt.Errorf("storage fault: %w", err)
		return result
	}

	result.ReceiptID = norm.Receipt.ID
	if norm.ReplacedID != 0 {
		result.Outcome = OutcomeReplaced
	} else {
		result.Outcome = OutcomeInserted
	}

	// Catalog updates are best-effort and deliberately outside the receipt
	// transaction; a failure here never rejects the draft.
	c.recordProducts(norm.Receipt)

	return result
}

func (c *Coordinator) recordProducts(rec *Receipt) {
	for _, item := range rec.Items {
		if item.LineKind != LineKindProduct {
			continue
		}
		if err := c.db.UpsertProduct(inferProduct(item)); err != nil {
			slog.Warn("Product catalog update failed", "product", item.Name, "error", err)
		}
	}
}
