package receipt

import (
	"time"

	"github.com/shopspring/decimal"
)

// Line kinds for receipt items.
const (
	LineKindProduct    = "PRODUCT"
	LineKindDeposit    = "DEPOSIT"
	LineKindReturn     = "RETURN"
	LineKindCorrection = "CORRECTION"
)

// Market is a physical store location. One row per store number; receipts
// reference it softly and keep their own printed snapshot, so the market row
// may be enriched later without rewriting history.
type Market struct {
	ID          uint   `gorm:"primaryKey"`
	StoreNumber string `gorm:"uniqueIndex;size:32;not null"`
	Name        string `gorm:"size:128"`
	Street      string `gorm:"size:128"`
	PostalCode  string `gorm:"size:16"`
	City        string `gorm:"size:64"`
	Phone       string `gorm:"size:32"`
	TaxID       string `gorm:"size:32"`
	Latitude    *float64
	Longitude   *float64
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// Receipt is one physical transaction. The tuple (store number, register
// number, receipt number, purchase date) is the natural key of the paper
// receipt and carries the dedup constraint; the store fields are a snapshot
// of what was printed, intentionally duplicated from Market.
type Receipt struct {
	ID             uint      `gorm:"primaryKey"`
	StoreNumber    string    `gorm:"size:32;not null;uniqueIndex:idx_receipt_natural_key,priority:1"`
	RegisterNumber string    `gorm:"size:16;not null;uniqueIndex:idx_receipt_natural_key,priority:2"`
	ReceiptNumber  string    `gorm:"size:32;not null;uniqueIndex:idx_receipt_natural_key,priority:3"`
	PurchaseDate   time.Time `gorm:"not null;index;uniqueIndex:idx_receipt_natural_key,priority:4"`
	PurchaseTime   string    `gorm:"size:8"`

	MarketID uint   `gorm:"index"`
	Operator string `gorm:"size:64"`

	DeviceStart *time.Time
	DeviceStop  *time.Time

	// Printed store snapshot
	StoreName       string `gorm:"size:128"`
	StoreStreet     string `gorm:"size:128"`
	StorePostalCode string `gorm:"size:16"`
	StoreCity       string `gorm:"size:64"`
	StorePhone      string `gorm:"size:32"`
	StoreTaxID      string `gorm:"size:32"`

	GrossTotal decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	NetTotal   decimal.Decimal `gorm:"type:decimal(12,2)"`
	TaxTotal   decimal.Decimal `gorm:"type:decimal(12,2)"`

	PaymentMethod  string          `gorm:"size:32"`
	AmountTendered decimal.Decimal `gorm:"type:decimal(12,2)"`
	ChangeGiven    decimal.Decimal `gorm:"type:decimal(12,2)"`

	BonusPointsRedeemed  int64
	BonusPointsCollected int64
	BonusPointsBalance   int64

	// Fiscal device output, stored verbatim, never validated here
	FiscalSignature string `gorm:"size:256"`
	FiscalCounter   string `gorm:"size:64"`
	DeviceSerial    string `gorm:"size:64"`

	SourceFile string    `gorm:"size:256"`
	IngestedAt time.Time `gorm:"autoCreateTime"`

	Items      []ReceiptItem `gorm:"foreignKey:ReceiptID;constraint:OnDelete:CASCADE"`
	TaxEntries []TaxSummary  `gorm:"foreignKey:ReceiptID;constraint:OnDelete:CASCADE"`
}

// ReceiptItem is one line on a receipt. Owned by the receipt, removed with it.
type ReceiptItem struct {
	ID        uint   `gorm:"primaryKey"`
	ReceiptID uint   `gorm:"index;not null"`
	Name      string `gorm:"size:128;not null"`
	LineKind  string `gorm:"size:16;not null;default:'PRODUCT'"`

	UnitPrice    decimal.Decimal `gorm:"type:decimal(12,2)"`
	Quantity     decimal.Decimal `gorm:"type:decimal(12,3)"`
	Unit         string          `gorm:"size:16"`
	Weight       decimal.Decimal `gorm:"type:decimal(12,3)"`
	PricePerUnit decimal.Decimal `gorm:"type:decimal(12,2)"`
	LineTotal    decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	TaxRateCode    string          `gorm:"size:4"`
	TaxRatePercent decimal.Decimal `gorm:"type:decimal(5,2)"`

	IsDeposit        bool
	IsReturn         bool
	IsDiscount       bool
	IsCounterService bool
	BonusIneligible  bool

	BonusPromotion string          `gorm:"size:64"`
	BonusAmount    decimal.Decimal `gorm:"type:decimal(12,2)"`

	PositionNr int `gorm:"not null"`
}

// TaxSummary is one tax-rate bucket on a receipt. Unique per (receipt, rate).
type TaxSummary struct {
	ID        uint   `gorm:"primaryKey"`
	ReceiptID uint   `gorm:"not null;uniqueIndex:idx_tax_receipt_rate,priority:1"`
	RateCode  string `gorm:"size:4;not null;uniqueIndex:idx_tax_receipt_rate,priority:2"`

	RatePercent decimal.Decimal `gorm:"type:decimal(5,2)"`
	NetAmount   decimal.Decimal `gorm:"type:decimal(12,2)"`
	TaxAmount   decimal.Decimal `gorm:"type:decimal(12,2)"`
	GrossAmount decimal.Decimal `gorm:"type:decimal(12,2)"`
}

// Product is a deduplicated product name with inferred attributes. Populated
// opportunistically from item names; nothing else depends on it.
type Product struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"uniqueIndex;size:128;not null"`
	Category       string `gorm:"size:64"`
	Brand          string `gorm:"size:64"`
	IsOrganic      bool
	TypicalTaxCode string    `gorm:"size:4"`
	TimesSeen      int64     `gorm:"default:0"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// NaturalKey is the real-world identifying tuple of a receipt, used for
// deduplication instead of the surrogate ID.
type NaturalKey struct {
	StoreNumber    string
	RegisterNumber string
	ReceiptNumber  string
	PurchaseDate   time.Time
}

// Key returns the receipt's natural key.
func (r *Receipt) Key() NaturalKey {
	return NaturalKey{
		StoreNumber:    r.StoreNumber,
		RegisterNumber: r.RegisterNumber,
		ReceiptNumber:  r.ReceiptNumber,
		PurchaseDate:   r.PurchaseDate,
	}
}
