package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/35529110/reweAnalyzer/internal/mailbox"
	"github.com/35529110/reweAnalyzer/internal/receipt"
	"github.com/35529110/reweAnalyzer/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	fs := ff.NewFlagSet("rewe-analyzer")
	var (
		dbPath      = fs.StringLong("db", "rewe_receipts.db", "SQLite database file path")
		archivePath = fs.StringLong("archive", "rewe_drafts.db", "Draft archive file path")
		storagePath = fs.StringLong("storage", "./receipts", "Directory for retained receipt files")
		inboxPath   = fs.StringLong("inbox", "./inbox", "Directory containing downloaded mail attachments")
		scannerType = fs.StringLong("scanner", "gemini", "Extraction backend: 'gemini' or 'ollama'")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL   = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = fs.StringLong("ollama-model", "llava", "Ollama model name")
		onDuplicate = fs.StringLong("on-duplicate", "reject", "Duplicate policy: 'reject' or 'replace'")
		fromArchive = fs.BoolLong("from-archive", "Re-ingest archived drafts instead of scanning the inbox")
		stats       = fs.BoolLong("stats", "Print spending statistics and exit")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("REWE_ANALYZER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	var policy receipt.DuplicatePolicy
	switch *onDuplicate {
	case "reject":
		policy = receipt.RejectDuplicates
	case "replace":
		policy = receipt.ReplaceDuplicates
	default:
		slog.Error("Invalid duplicate policy", "policy", *onDuplicate, "valid", "reject or replace")
		os.Exit(1)
	}

	slog.Info("Opening database...", "path", *dbPath)
	db, err := receipt.Open(*dbPath)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if *stats {
		if err := printStats(db); err != nil {
			slog.Error("Failed to query statistics", "error", err)
			os.Exit(1)
		}
		return
	}

	archive, err := receipt.NewArchive(*archivePath)
	if err != nil {
		slog.Error("Failed to open draft archive", "error", err)
		os.Exit(1)
	}
	defer archive.Close()

	var drafts []*scanning.DraftReceipt
	if *fromArchive {
		drafts, err = archivedDrafts(archive)
	} else {
		drafts, err = scannedDrafts(archive, *inboxPath, *storagePath, scannerConfig{
			kind:        *scannerType,
			geminiKey:   *geminiKey,
			geminiModel: *geminiModel,
			ollamaURL:   *ollamaURL,
			ollamaModel: *ollamaModel,
		})
	}
	if err != nil {
		slog.Error("Failed to gather drafts", "error", err)
		os.Exit(1)
	}

	if len(drafts) == 0 {
		slog.Info("Nothing to ingest")
		return
	}

	coordinator := receipt.NewCoordinator(db, policy)
	report := coordinator.IngestBatch(context.Background(), drafts)
	fmt.Print(report.Summary())
}

type scannerConfig struct {
	kind        string
	geminiKey   string
	geminiModel string
	ollamaURL   string
	ollamaModel string
}

func newScanner(cfg scannerConfig) (scanning.Scanner, error) {
	switch cfg.kind {
	case "gemini":
		apiKey := cfg.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini scanner...", "model", cfg.geminiModel)
		return scanning.NewGemini(apiKey, cfg.geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", cfg.ollamaURL, "model", cfg.ollamaModel)
		return scanning.NewOllama(cfg.ollamaURL, cfg.ollamaModel)
	default:
		return nil, fmt.Errorf("invalid scanner type %q, valid: gemini or ollama", cfg.kind)
	}
}

// scannedDrafts walks the inbox, retains each original file, runs the
// extraction model and archives every draft before ingestion.
func scannedDrafts(archive *receipt.Archive, inboxPath, storagePath string, cfg scannerConfig) ([]*scanning.DraftReceipt, error) {
	source, err := mailbox.NewDirSource(inboxPath)
	if err != nil {
		return nil, err
	}

	attachments, err := source.Attachments()
	if err != nil {
		return nil, err
	}
	if len(attachments) == 0 {
		return nil, nil
	}

	store, err := receipt.NewLocalStorage(storagePath)
	if err != nil {
		return nil, err
	}

	scanner, err := newScanner(cfg)
	if err != nil {
		return nil, err
	}
	defer scanner.Close()

	drafts := make([]*scanning.DraftReceipt, 0, len(attachments))
	for _, att := range attachments {
		savedName, err := store.Save(att.Filename, att.Data)
		if err != nil {
			slog.Warn("Failed to retain attachment", "filename", att.Filename, "error", err)
			savedName = receipt.SanitizeFilename(att.Filename)
		}

		draft, err := scanner.ScanReceipt(att.Data, att.ContentType)
		if err != nil {
			slog.Error("Failed to scan receipt",
				"filename", att.Filename,
				"content_type", att.ContentType,
				"file_size", len(att.Data),
				"error", err,
			)
			continue
		}
		draft.SourceFile = savedName

		if err := archive.PutDraft(savedName, draft); err != nil {
			slog.Warn("Failed to archive draft", "filename", savedName, "error", err)
		}

		drafts = append(drafts, draft)
	}

	return drafts, nil
}

// archivedDrafts loads every archived draft for re-ingestion, e.g. after a
// normalizer fix, without calling the extraction model again.
func archivedDrafts(archive *receipt.Archive) ([]*scanning.DraftReceipt, error) {
	filenames, err := archive.ListFilenames()
	if err != nil {
		return nil, err
	}

	drafts := make([]*scanning.DraftReceipt, 0, len(filenames))
	for _, filename := range filenames {
		draft, err := archive.GetDraft(filename)
		if err != nil {
			slog.Warn("Failed to load archived draft", "filename", filename, "error", err)
			continue
		}
		drafts = append(drafts, draft)
	}

	return drafts, nil
}

func printStats(db *receipt.GormDB) error {
	items, err := db.TopItems(20)
	if err != nil {
		return err
	}
	fmt.Println("Most purchased items:")
	for _, item := range items {
		fmt.Printf("  %-40s %3dx  total %8s EUR  (unit %s to %s)\n",
			item.Name, item.PurchaseCount, item.TotalSpent.StringFixed(2),
			item.MinUnitPrice.StringFixed(2), item.MaxUnitPrice.StringFixed(2))
	}

	months, err := db.SpendByMonth()
	if err != nil {
		return err
	}
	fmt.Println("\nMonthly spending:")
	for _, m := range months {
		fmt.Printf("  %s  %3d receipts  %10s EUR\n", m.Month, m.ReceiptCount, m.TotalSpent.StringFixed(2))
	}

	markets, err := db.SpendByMarket()
	if err != nil {
		return err
	}
	fmt.Println("\nSpending by market:")
	for _, m := range markets {
		fmt.Printf("  %-8s %-30s %-20s %3d receipts  %10s EUR\n",
			m.StoreNumber, m.StoreName, m.City, m.ReceiptCount, m.TotalSpent.StringFixed(2))
	}

	payments, err := db.SpendByPaymentMethod()
	if err != nil {
		return err
	}
	fmt.Println("\nSpending by payment method:")
	for _, p := range payments {
		fmt.Printf("  %-12s %3d receipts  %10s EUR\n", p.PaymentMethod, p.ReceiptCount, p.TotalSpent.StringFixed(2))
	}

	receipts, err := db.TopReceipts(10, receipt.OrderByTotal)
	if err != nil {
		return err
	}
	fmt.Println("\nMost expensive receipts:")
	for _, r := range receipts {
		fmt.Printf("  %s %s  Bon %-8s %-25s %-12s %3d items  %10s EUR\n",
			r.Day, r.PurchaseTime, r.ReceiptNumber, r.StoreName, r.PaymentMethod,
			r.ItemCount, r.GrossTotal.StringFixed(2))
	}

	return nil
}
