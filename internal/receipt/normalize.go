package receipt

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/35529110/reweAnalyzer/internal/scanning"
)

// DuplicatePolicy decides what happens when a draft's natural key already
// exists in the store.
type DuplicatePolicy int

const (
	// RejectDuplicates signals the duplicate and leaves the stored receipt
	// untouched. Re-ingesting the same PDF is a no-op.
	RejectDuplicates DuplicatePolicy = iota
	// ReplaceDuplicates deletes the prior receipt (cascading to its items
	// and tax rows) and persists the new extraction in its place.
	ReplaceDuplicates
)

// NormalizedReceipt bundles the fully-typed rows derived from one draft,
// ready for atomic persistence, plus any non-fatal warnings.
type NormalizedReceipt struct {
	Receipt  *Receipt
	Warnings []Warning

	// ReplacedID is the prior receipt's ID when the replace policy matched
	// an existing natural key; zero otherwise.
	ReplacedID uint
}

// Normalizer validates draft records and derives canonical field values.
// All monetary arithmetic is fixed-point; binary floats never enter the
// pipeline past this point.
type Normalizer struct {
	tolerance decimal.Decimal
}

// NewNormalizer returns a normalizer with the default reconciliation
// tolerance of 0.01 currency units.
func NewNormalizer() *Normalizer {
	return &Normalizer{tolerance: decimal.New(1, -2)}
}

var (
	dateFormats = []string{"02.01.2006", "2006-01-02", "02.01.06", "02/01/2006"}
	timeFormats = []string{"15:04:05", "15:04"}
	tsFormats   = []string{
		"02.01.2006 15:04:05",
		"2006-01-02 15:04:05",
		time.RFC3339,
		"02.01.2006 15:04",
	}
)

// Normalize turns a draft record into typed relational rows. The order is
// fixed: required-field check, coercion, natural key, duplicate check, item
// normalization, reconciliation. Duplicate handling follows policy; every
// other failure is a ValidationError naming the offending field.
func (n *Normalizer) Normalize(db DB, draft *scanning.DraftReceipt, policy DuplicatePolicy) (*NormalizedReceipt, error) {
	// 1. Required fields
	required := []struct {
		name  string
		value scanning.FlexString
	}{
		{"store_number", draft.StoreNumber},
		{"register_number", draft.RegisterNumber},
		{"receipt_number", draft.ReceiptNumber},
		{"purchase_date", draft.PurchaseDate},
		{"purchase_time", draft.PurchaseTime},
		{"gross_total", draft.GrossTotal},
	}
	for _, f := range required {
		if f.value.Empty() {
			return nil, missingField(f.name)
		}
	}

	// 2. Coercion
	purchaseDate, err := parseDate(draft.PurchaseDate.String())
	if err != nil {
		return nil, malformedField("purchase_date", draft.PurchaseDate.String())
	}
	purchaseTime, err := parseClock(draft.PurchaseTime.String())
	if err != nil {
		return nil, malformedField("purchase_time", draft.PurchaseTime.String())
	}

	gross, vErr := parseAmount("gross_total", draft.GrossTotal)
	if vErr != nil {
		return nil, vErr
	}
	net, vErr := parseOptionalAmount("net_total", draft.NetTotal)
	if vErr != nil {
		return nil, vErr
	}
	taxTotal, vErr := parseOptionalAmount("tax_total", draft.TaxTotal)
	if vErr != nil {
		return nil, vErr
	}
	tendered, vErr := parseOptionalAmount("amount_tendered", draft.AmountTendered)
	if vErr != nil {
		return nil, vErr
	}
	change, vErr := parseOptionalAmount("change_given", draft.ChangeGiven)
	if vErr != nil {
		return nil, vErr
	}

	redeemed, vErr := parseOptionalInt("bonus_points_redeemed", draft.BonusRedeemed)
	if vErr != nil {
		return nil, vErr
	}
	collected, vErr := parseOptionalInt("bonus_points_collected", draft.BonusCollected)
	if vErr != nil {
		return nil, vErr
	}
	balance, vErr := parseOptionalInt("bonus_points_balance", draft.BonusBalance)
	if vErr != nil {
		return nil, vErr
	}

	rec := &Receipt{
		StoreNumber:    draft.StoreNumber.String(),
		RegisterNumber: draft.RegisterNumber.String(),
		ReceiptNumber:  draft.ReceiptNumber.String(),
		PurchaseDate:   purchaseDate,
		PurchaseTime:   purchaseTime,
		Operator:       draft.Operator.String(),

		DeviceStart: parseTimestamp(draft.DeviceStart.String()),
		DeviceStop:  parseTimestamp(draft.DeviceStop.String()),

		StoreName:       draft.StoreName.String(),
		StoreStreet:     draft.Street.String(),
		StorePostalCode: draft.PostalCode.String(),
		StoreCity:       draft.City.String(),
		StorePhone:      draft.Phone.String(),
		StoreTaxID:      draft.TaxID.String(),

		GrossTotal: gross,
		NetTotal:   net,
		TaxTotal:   taxTotal,

		PaymentMethod:  draft.PaymentMethod.String(),
		AmountTendered: tendered,
		ChangeGiven:    change,

		BonusPointsRedeemed:  redeemed,
		BonusPointsCollected: collected,
		BonusPointsBalance:   balance,

		FiscalSignature: draft.FiscalSignature.String(),
		FiscalCounter:   draft.FiscalCounter.String(),
		DeviceSerial:    draft.DeviceSerial.String(),

		SourceFile: draft.SourceFile,
	}

	// 3. Natural key, 4. duplicate check
	result := &NormalizedReceipt{Receipt: rec}
	existing, err := db.FindReceiptByKey(rec.Key())
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if policy == RejectDuplicates {
			return nil, &DuplicateError{Key: rec.Key(), ExistingID: existing.ID}
		}
		result.ReplacedID = existing.ID
	}

	// 5. Item normalization
	for i, di := range draft.Items {
		item, vErr := n.normalizeItem(i, di)
		if vErr != nil {
			return nil, vErr
		}
		rec.Items = append(rec.Items, *item)
	}

	for i, dt := range draft.TaxEntries {
		entry, vErr := normalizeTax(i, dt)
		if vErr != nil {
			return nil, vErr
		}
		rec.TaxEntries = append(rec.TaxEntries, *entry)
	}

	// 6. Reconciliation
	result.Warnings = append(result.Warnings, n.reconcile(rec)...)

	return result, nil
}

func (n *Normalizer) normalizeItem(i int, di scanning.DraftItem) (*ReceiptItem, *ValidationError) {
	field := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }

	if di.Name.Empty() {
		return nil, missingField(field("name"))
	}

	unitPrice, vErr := parseOptionalAmount(field("unit_price"), di.UnitPrice)
	if vErr != nil {
		return nil, vErr
	}
	quantity, vErr := parseOptionalAmount(field("quantity"), di.Quantity)
	if vErr != nil {
		return nil, vErr
	}
	weight, vErr := parseOptionalAmount(field("weight"), di.Weight)
	if vErr != nil {
		return nil, vErr
	}
	perUnit, vErr := parseOptionalAmount(field("price_per_unit"), di.PricePerUnit)
	if vErr != nil {
		return nil, vErr
	}
	total, vErr := parseOptionalAmount(field("total"), di.Total)
	if vErr != nil {
		return nil, vErr
	}
	taxPercent, vErr := parseOptionalAmount(field("tax_percent"), di.TaxPercent)
	if vErr != nil {
		return nil, vErr
	}
	bonusAmount, vErr := parseOptionalAmount(field("bonus_amount"), di.BonusAmount)
	if vErr != nil {
		return nil, vErr
	}

	if quantity.IsZero() {
		quantity = decimal.NewFromInt(1)
	}
	if di.Total.Empty() && !perUnit.IsZero() {
		total = perUnit.Mul(quantity)
	}

	position := i + 1
	if !di.Position.Empty() {
		p, err := strconv.Atoi(strings.TrimSpace(di.Position.String()))
		if err != nil {
			return nil, malformedField(field("position"), di.Position.String())
		}
		position = p
	}

	kind := classifyLineKind(di)

	return &ReceiptItem{
		Name:     di.Name.String(),
		LineKind: kind,

		UnitPrice:    unitPrice,
		Quantity:     quantity,
		Unit:         di.Unit.String(),
		Weight:       weight,
		PricePerUnit: perUnit,
		LineTotal:    total,

		TaxRateCode:    strings.ToUpper(di.TaxCode.String()),
		TaxRatePercent: taxPercent,

		IsDeposit:        kind == LineKindDeposit,
		IsReturn:         kind == LineKindReturn,
		IsDiscount:       bool(di.IsDiscount),
		IsCounterService: bool(di.IsCounterServed),
		BonusIneligible:  bool(di.BonusIneligible),

		BonusPromotion: di.BonusLabel.String(),
		BonusAmount:    bonusAmount,

		PositionNr: position,
	}, nil
}

func normalizeTax(i int, dt scanning.DraftTax) (*TaxSummary, *ValidationError) {
	field := func(name string) string { return fmt.Sprintf("tax_summary[%d].%s", i, name) }

	if dt.RateCode.Empty() {
		return nil, missingField(field("rate_code"))
	}

	percent, vErr := parseOptionalAmount(field("rate_percent"), dt.RatePercent)
	if vErr != nil {
		return nil, vErr
	}
	net, vErr := parseOptionalAmount(field("net"), dt.Net)
	if vErr != nil {
		return nil, vErr
	}
	tax, vErr := parseOptionalAmount(field("tax"), dt.Tax)
	if vErr != nil {
		return nil, vErr
	}
	gross, vErr := parseOptionalAmount(field("gross"), dt.Gross)
	if vErr != nil {
		return nil, vErr
	}

	return &TaxSummary{
		RateCode:    strings.ToUpper(dt.RateCode.String()),
		RatePercent: percent,
		NetAmount:   net,
		TaxAmount:   tax,
		GrossAmount: gross,
	}, nil
}

// classifyLineKind maps the draft's type tag (and the German receipt
// vocabulary around deposits) to a line kind; PRODUCT when absent.
func classifyLineKind(di scanning.DraftItem) string {
	switch strings.ToLower(strings.TrimSpace(di.Kind.String())) {
	case "deposit", "pfand":
		return LineKindDeposit
	case "return", "leergut", "retoure":
		return LineKindReturn
	case "correction", "storno":
		return LineKindCorrection
	}
	if bool(di.IsDeposit) {
		return LineKindDeposit
	}
	if bool(di.IsReturn) {
		return LineKindReturn
	}
	return LineKindProduct
}

// reconcile compares item totals (excluding corrections) and tax-bucket
// gross amounts against the receipt's gross total. Discrepancies beyond the
// tolerance become warnings; imperfect extraction is expected and the
// receipt still persists.
func (n *Normalizer) reconcile(rec *Receipt) []Warning {
	var warnings []Warning

	if len(rec.Items) > 0 {
		sum := decimal.Zero
		for _, item := range rec.Items {
			if item.LineKind == LineKindCorrection {
				continue
			}
			sum = sum.Add(item.LineTotal)
		}
		if diff := rec.GrossTotal.Sub(sum); diff.Abs().GreaterThan(n.tolerance) {
			warnings = append(warnings, Warning{
				Code: WarnReconciliation,
				Message: fmt.Sprintf("item totals %s differ from gross total %s by %s",
					sum.StringFixed(2), rec.GrossTotal.StringFixed(2), diff.StringFixed(2)),
			})
		}
	}

	if len(rec.TaxEntries) > 0 {
		sum := decimal.Zero
		for _, entry := range rec.TaxEntries {
			sum = sum.Add(entry.GrossAmount)
		}
		if diff := rec.GrossTotal.Sub(sum); diff.Abs().GreaterThan(n.tolerance) {
			warnings = append(warnings, Warning{
				Code: WarnReconciliation,
				Message: fmt.Sprintf("tax bucket gross %s differs from gross total %s by %s",
					sum.StringFixed(2), rec.GrossTotal.StringFixed(2), diff.StringFixed(2)),
			})
		}
	}

	return warnings
}

// parseMoney parses a monetary value as a fixed-point decimal, accepting
// both German ("1.234,56") and point ("1234.56") formats plus a currency
// suffix or prefix.
func parseMoney(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "€")
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "EUR"))
	s = strings.TrimSpace(strings.TrimPrefix(s, "EUR"))
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("empty amount")
	}
	// Whichever of comma and dot comes last is the decimal separator; the
	// other one is a thousands separator ("1.234,56" and "1,234.56" both
	// mean 1234.56).
	if comma := strings.LastIndex(s, ","); comma >= 0 {
		if comma > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	return decimal.NewFromString(s)
}

func parseAmount(field string, v scanning.FlexString) (decimal.Decimal, *ValidationError) {
	d, err := parseMoney(v.String())
	if err != nil {
		return decimal.Decimal{}, malformedField(field, v.String())
	}
	return d, nil
}

func parseOptionalAmount(field string, v scanning.FlexString) (decimal.Decimal, *ValidationError) {
	if v.Empty() {
		return decimal.Zero, nil
	}
	return parseAmount(field, v)
}

func parseOptionalInt(field string, v scanning.FlexString) (int64, *ValidationError) {
	if v.Empty() {
		return 0, nil
	}
	i, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64)
	if err != nil {
		return 0, malformedField(field, v.String())
	}
	return i, nil
}

func parseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, format := range dateFormats {
		if d, err := time.Parse(format, s); err == nil {
			return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// parseClock canonicalizes a time-of-day string to HH:MM.
func parseClock(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	for _, format := range timeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("unrecognized time %q", raw)
}

// parseTimestamp parses a fiscal-device timestamp. These are informational
// and never validated, so an unparsable value is dropped rather than
// rejecting the draft.
func parseTimestamp(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	for _, format := range tsFormats {
		if t, err := time.Parse(format, s); err == nil {
			return &t
		}
	}
	return nil
}
