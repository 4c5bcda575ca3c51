package receipt

import (
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB defines the transactional store operations the pipeline needs. The
// handle is owned by whoever constructed it for the duration of one batch;
// components receive it as a parameter, never from a global.
type DB interface {
	// RunInTransaction executes fn inside one transaction. Commit on nil,
	// rollback and re-raise on error. Writes from one receipt never leak
	// into the store partially.
	RunInTransaction(fn func(tx DB) error) error

	// FindMarket looks a market up by store number; nil when absent
	FindMarket(storeNumber string) (*Market, error)

	// CreateMarket inserts a new market row
	CreateMarket(m *Market) error

	// SaveMarket persists changes to an existing market row
	SaveMarket(m *Market) error

	// FindReceiptByKey looks a receipt up by natural key; nil when absent
	FindReceiptByKey(key NaturalKey) (*Receipt, error)

	// CreateReceipt inserts a receipt with its items and tax entries
	CreateReceipt(r *Receipt) error

	// GetReceipt retrieves a receipt with items and tax entries preloaded
	GetReceipt(id uint) (*Receipt, error)

	// DeleteReceipt removes a receipt; the store cascades to its rows
	DeleteReceipt(id uint) error

	// UpsertProduct records a product sighting in the catalog side table
	UpsertProduct(p *Product) error

	// CountReceipts returns the number of receipt rows
	CountReceipts() (int64, error)

	// CountItems returns the number of item rows across all receipts
	CountItems() (int64, error)

	// Close closes the underlying connection
	Close() error
}

// GormDB implements DB on an embedded SQLite file via GORM.
type GormDB struct {
	db *gorm.DB
}

// Open opens (or creates) the SQLite database at path, turns on foreign-key
// enforcement for the lifetime of the handle and migrates the schema.
// Referential integrity is enforced by the store itself, not only here.
func Open(path string) (*GormDB, error) {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	g := &GormDB{db: db}
	if err := g.migrate(); err != nil {
		g.Close()
		return nil, err
	}

	return g, nil
}

// migrate creates tables in dependency order so the cascade constraints from
// Receipt to its owned rows exist before any data arrives.
func (g *GormDB) migrate() error {
	for _, model := range []interface{}{
		&Market{},
		&Product{},
		&Receipt{},
		&ReceiptItem{},
		&TaxSummary{},
	} {
		if err := g.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}
	return nil
}

// RunInTransaction executes fn inside one transaction
func (g *GormDB) RunInTransaction(fn func(tx DB) error) error {
	return g.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormDB{db: tx})
	})
}

// FindMarket looks a market up by store number
func (g *GormDB) FindMarket(storeNumber string) (*Market, error) {
	var m Market
	err := g.db.Where("store_number = ?", storeNumber).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding market %s: %w", storeNumber, err)
	}
	return &m, nil
}

// CreateMarket inserts a new market row
func (g *GormDB) CreateMarket(m *Market) error {
	if err := g.db.Create(m).Error; err != nil {
		return fmt.Errorf("creating market %s: %w", m.StoreNumber, err)
	}
	return nil
}

// SaveMarket persists changes to an existing market row
func (g *GormDB) SaveMarket(m *Market) error {
	if err := g.db.Save(m).Error; err != nil {
		return fmt.Errorf("saving market %s: %w", m.StoreNumber, err)
	}
	return nil
}

// FindReceiptByKey looks a receipt up by its natural key
func (g *GormDB) FindReceiptByKey(key NaturalKey) (*Receipt, error) {
	var r Receipt
	err := g.db.Where(
		"store_number = ? AND register_number = ? AND receipt_number = ? AND purchase_date = ?",
		key.StoreNumber, key.RegisterNumber, key.ReceiptNumber, key.PurchaseDate,
	).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding receipt by key: %w", err)
	}
	return &r, nil
}

// CreateReceipt inserts a receipt together with its items and tax entries
func (g *GormDB) CreateReceipt(r *Receipt) error {
	if err := g.db.Create(r).Error; err != nil {
		return fmt.Errorf("creating receipt %s: %w", r.ReceiptNumber, err)
	}
	return nil
}

// GetReceipt retrieves a receipt with its owned rows preloaded
func (g *GormDB) GetReceipt(id uint) (*Receipt, error) {
	var r Receipt
	err := g.db.Preload("Items").Preload("TaxEntries").First(&r, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("receipt not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting receipt %d: %w", id, err)
	}
	return &r, nil
}

// DeleteReceipt removes a receipt row. Item and tax rows go with it through
// the store's ON DELETE CASCADE, not application loops.
func (g *GormDB) DeleteReceipt(id uint) error {
	if err := g.db.Delete(&Receipt{}, id).Error; err != nil {
		return fmt.Errorf("deleting receipt %d: %w", id, err)
	}
	return nil
}

// UpsertProduct inserts the product on first sighting and bumps its counter
// afterwards. Enrichment only fills blank fields.
func (g *GormDB) UpsertProduct(p *Product) error {
	var existing Product
	err := g.db.Where("name = ?", p.Name).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p.TimesSeen = 1
		if err := g.db.Create(p).Error; err != nil {
			return fmt.Errorf("creating product %s: %w", p.Name, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("finding product %s: %w", p.Name, err)
	}

	existing.TimesSeen++
	if existing.TypicalTaxCode == "" {
		existing.TypicalTaxCode = p.TypicalTaxCode
	}
	if !existing.IsOrganic && p.IsOrganic {
		existing.IsOrganic = true
	}
	if err := g.db.Save(&existing).Error; err != nil {
		return fmt.Errorf("updating product %s: %w", p.Name, err)
	}
	return nil
}

// CountReceipts returns the number of receipt rows
func (g *GormDB) CountReceipts() (int64, error) {
	var n int64
	if err := g.db.Model(&Receipt{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting receipts: %w", err)
	}
	return n, nil
}

// CountItems returns the number of item rows
func (g *GormDB) CountItems() (int64, error) {
	var n int64
	if err := g.db.Model(&ReceiptItem{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return n, nil
}

// Close closes the database connection
func (g *GormDB) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return fmt.Errorf("getting sql db: %w", err)
	}
	return sqlDB.Close()
}
