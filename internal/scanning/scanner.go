package scanning

import (
	"encoding/json"
	"strings"
)

// FlexString is a string field that tolerates the extraction model emitting
// numbers, booleans or null where a string was asked for. Numeric tokens are
// kept verbatim ("12,50" and 12.5 both survive untouched) so that decimal
// parsing downstream sees exactly what the model produced.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	t := strings.TrimSpace(string(b))
	if t == "" || t == "null" {
		*s = ""
		return nil
	}
	if t[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = FlexString(strings.TrimSpace(str))
		return nil
	}
	// Numbers and booleans: keep the raw token.
	*s = FlexString(t)
	return nil
}

func (s FlexString) String() string {
	return string(s)
}

// Empty reports whether the field is absent or blank.
func (s FlexString) Empty() bool {
	return strings.TrimSpace(string(s)) == ""
}

// FlexBool accepts true/false, "true"/"false", "yes"/"no", 1/0 and null.
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(b []byte) error {
	t := strings.ToLower(strings.Trim(strings.TrimSpace(string(b)), `"`))
	switch t {
	case "true", "yes", "1":
		*f = true
	default:
		*f = false
	}
	return nil
}

// DraftReceipt is the loosely-typed record produced by the extraction model.
// No field is guaranteed to be present or well formed; dates, times and
// amounts stay raw strings until the normalizer has coerced them. It is the
// only shape the pipeline accepts from a scanner.
type DraftReceipt struct {
	StoreNumber     FlexString `json:"store_number"`
	StoreName       FlexString `json:"store_name"`
	Street          FlexString `json:"street"`
	PostalCode      FlexString `json:"postal_code"`
	City            FlexString `json:"city"`
	Phone           FlexString `json:"phone"`
	TaxID           FlexString `json:"tax_id"`
	RegisterNumber  FlexString `json:"register_number"`
	ReceiptNumber   FlexString `json:"receipt_number"`
	Operator        FlexString `json:"operator"`
	PurchaseDate    FlexString `json:"purchase_date"`
	PurchaseTime    FlexString `json:"purchase_time"`
	DeviceStart     FlexString `json:"device_start"`
	DeviceStop      FlexString `json:"device_stop"`
	GrossTotal      FlexString `json:"gross_total"`
	NetTotal        FlexString `json:"net_total"`
	TaxTotal        FlexString `json:"tax_total"`
	PaymentMethod   FlexString `json:"payment_method"`
	AmountTendered  FlexString `json:"amount_tendered"`
	ChangeGiven     FlexString `json:"change_given"`
	BonusRedeemed   FlexString `json:"bonus_points_redeemed"`
	BonusCollected  FlexString `json:"bonus_points_collected"`
	BonusBalance    FlexString `json:"bonus_points_balance"`
	FiscalSignature FlexString `json:"fiscal_signature"`
	FiscalCounter   FlexString `json:"fiscal_counter"`
	DeviceSerial    FlexString `json:"device_serial"`

	Items      []DraftItem `json:"items"`
	TaxEntries []DraftTax  `json:"tax_summary"`

	// SourceFile is set by the caller, never by the model.
	SourceFile string `json:"-"`
}

// DraftItem is one line of the printed receipt as the model saw it.
type DraftItem struct {
	Name            FlexString `json:"name"`
	Kind            FlexString `json:"type"`
	UnitPrice       FlexString `json:"unit_price"`
	Quantity        FlexString `json:"quantity"`
	Unit            FlexString `json:"unit"`
	Weight          FlexString `json:"weight"`
	PricePerUnit    FlexString `json:"price_per_unit"`
	Total           FlexString `json:"total"`
	TaxCode         FlexString `json:"tax_code"`
	TaxPercent      FlexString `json:"tax_percent"`
	IsDeposit       FlexBool   `json:"is_deposit"`
	IsReturn        FlexBool   `json:"is_return"`
	IsDiscount      FlexBool   `json:"is_discount"`
	IsCounterServed FlexBool   `json:"is_counter_service"`
	BonusIneligible FlexBool   `json:"bonus_ineligible"`
	BonusLabel      FlexString `json:"bonus_label"`
	BonusAmount     FlexString `json:"bonus_amount"`
	Position        FlexString `json:"position"`
}

// DraftTax is one tax-rate bucket from the receipt footer.
type DraftTax struct {
	RateCode    FlexString `json:"rate_code"`
	RatePercent FlexString `json:"rate_percent"`
	Net         FlexString `json:"net"`
	Tax         FlexString `json:"tax"`
	Gross       FlexString `json:"gross"`
}

// Scanner defines the interface for receipt extraction backends
type Scanner interface {
	// ScanReceipt analyzes a receipt PDF/image and extracts a draft record
	ScanReceipt(data []byte, contentType string) (*DraftReceipt, error)
	// Close closes the scanner and releases resources
	Close() error
}
