package receipt

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ItemStat aggregates purchase history for one product name.
type ItemStat struct {
	Name          string
	PurchaseCount int64
	TotalQuantity decimal.Decimal
	TotalSpent    decimal.Decimal
	AvgUnitPrice  decimal.Decimal
	MinUnitPrice  decimal.Decimal
	MaxUnitPrice  decimal.Decimal
}

// DailySpend is one day of receipts.
type DailySpend struct {
	Day          string
	ReceiptCount int64
	TotalSpent   decimal.Decimal
	AvgReceipt   decimal.Decimal
}

// MarketSpend groups spending by store.
type MarketSpend struct {
	StoreNumber  string
	StoreName    string
	City         string
	ReceiptCount int64
	TotalSpent   decimal.Decimal
}

// PaymentStat groups spending by payment method.
type PaymentStat struct {
	PaymentMethod string
	ReceiptCount  int64
	TotalSpent    decimal.Decimal
}

// MonthlySpend is one calendar month of receipts.
type MonthlySpend struct {
	Month        string
	ReceiptCount int64
	TotalSpent   decimal.Decimal
}

// ReceiptStat is one receipt header with its item count, for ranking.
type ReceiptStat struct {
	Day           string
	PurchaseTime  string
	ReceiptNumber string
	StoreName     string
	City          string
	PaymentMethod string
	GrossTotal    decimal.Decimal
	ItemCount     int64
}

// Orderings accepted by TopReceipts.
const (
	OrderByTotal = "total"
	OrderByItems = "items"
)

// TopItems returns the most frequently purchased items with price history.
func (g *GormDB) TopItems(limit int) ([]ItemStat, error) {
	var stats []ItemStat
	err := g.db.Raw(`
		SELECT
			name,
			COUNT(*) AS purchase_count,
			SUM(quantity) AS total_quantity,
			SUM(line_total) AS total_spent,
			ROUND(AVG(price_per_unit), 2) AS avg_unit_price,
			MIN(price_per_unit) AS min_unit_price,
			MAX(price_per_unit) AS max_unit_price
		FROM receipt_items
		WHERE line_kind = ?
		GROUP BY name
		ORDER BY purchase_count DESC, total_spent DESC
		LIMIT ?
	`, LineKindProduct, limit).Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("querying top items: %w", err)
	}
	return stats, nil
}

// TopReceipts returns the largest receipts, ordered by gross total or by
// item count.
func (g *GormDB) TopReceipts(limit int, orderBy string) ([]ReceiptStat, error) {
	order := "gross_total DESC"
	if orderBy == OrderByItems {
		order = "item_count DESC"
	}

	var stats []ReceiptStat
	err := g.db.Raw(fmt.Sprintf(`
		SELECT
			date(r.purchase_date) AS day,
			r.purchase_time,
			r.receipt_number,
			r.store_name,
			r.store_city AS city,
			r.payment_method,
			r.gross_total,
			COUNT(i.id) AS item_count
		FROM receipts r
		LEFT JOIN receipt_items i ON i.receipt_id = r.id
		GROUP BY r.id
		ORDER BY %s
		LIMIT ?
	`, order), limit).Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("querying top receipts: %w", err)
	}
	return stats, nil
}

// SpendByDate returns total spending per purchase day, newest first.
func (g *GormDB) SpendByDate() ([]DailySpend, error) {
	var days []DailySpend
	err := g.db.Raw(`
		SELECT
			date(purchase_date) AS day,
			COUNT(*) AS receipt_count,
			SUM(gross_total) AS total_spent,
			ROUND(AVG(gross_total), 2) AS avg_receipt
		FROM receipts
		GROUP BY date(purchase_date)
		ORDER BY day DESC
	`).Scan(&days).Error
	if err != nil {
		return nil, fmt.Errorf("querying spend by date: %w", err)
	}
	return days, nil
}

// SpendByMarket returns spending per store, using the printed snapshot for
// name and city so history reads the way the receipts did.
func (g *GormDB) SpendByMarket() ([]MarketSpend, error) {
	var markets []MarketSpend
	err := g.db.Raw(`
		SELECT
			store_number,
			MAX(store_name) AS store_name,
			MAX(store_city) AS city,
			COUNT(*) AS receipt_count,
			SUM(gross_total) AS total_spent
		FROM receipts
		GROUP BY store_number
		ORDER BY total_spent DESC
	`).Scan(&markets).Error
	if err != nil {
		return nil, fmt.Errorf("querying spend by market: %w", err)
	}
	return markets, nil
}

// SpendByPaymentMethod returns spending grouped by payment method.
func (g *GormDB) SpendByPaymentMethod() ([]PaymentStat, error) {
	var stats []PaymentStat
	err := g.db.Raw(`
		SELECT
			payment_method,
			COUNT(*) AS receipt_count,
			SUM(gross_total) AS total_spent
		FROM receipts
		GROUP BY payment_method
		ORDER BY total_spent DESC
	`).Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("querying spend by payment method: %w", err)
	}
	return stats, nil
}

// SpendByMonth returns spending per calendar month, newest first.
func (g *GormDB) SpendByMonth() ([]MonthlySpend, error) {
	var months []MonthlySpend
	err := g.db.Raw(`
		SELECT
			strftime('%Y-%m', purchase_date) AS month,
			COUNT(*) AS receipt_count,
			SUM(gross_total) AS total_spent
		FROM receipts
		GROUP BY strftime('%Y-%m', purchase_date)
		ORDER BY month DESC
	`).Scan(&months).Error
	if err != nil {
		return nil, fmt.Errorf("querying spend by month: %w", err)
	}
	return months, nil
}
