package receipt

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("Analytics queries", func() {
	var db *GormDB

	BeforeEach(func() {
		var err error
		db, err = Open(filepath.Join(GinkgoT().TempDir(), "test.db"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { db.Close() })

		march := testReceipt("8812")
		Expect(db.CreateReceipt(march)).To(Succeed())

		april := testReceipt("9001")
		april.PurchaseDate = time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
		april.StoreNumber = "1101"
		april.StoreName = "REWE City"
		april.StoreCity = "Bonn"
		april.GrossTotal = decimal.RequireFromString("4.76")
		april.PaymentMethod = "BAR"
		april.Items = []ReceiptItem{
			{Name: "Bio Vollmilch 1L", LineKind: LineKindProduct, Quantity: decimal.NewFromInt(4),
				PricePerUnit: decimal.RequireFromString("1.19"), LineTotal: decimal.RequireFromString("4.76"),
				TaxRateCode: "B", PositionNr: 1},
		}
		april.TaxEntries = nil
		Expect(db.CreateReceipt(april)).To(Succeed())
	})

	Describe("TopItems", func() {
		It("should rank items by purchase count", func() {
			stats, err := db.TopItems(10)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats).NotTo(BeEmpty())
			Expect(stats[0].Name).To(Equal("Bio Vollmilch 1L"))
			Expect(stats[0].PurchaseCount).To(Equal(int64(2)))
			Expect(stats[0].TotalQuantity.Equal(decimal.NewFromInt(6))).To(BeTrue())
			Expect(stats[0].TotalSpent.Equal(decimal.RequireFromString("7.14"))).To(BeTrue())
		})

		It("should leave deposit lines out", func() {
			stats, err := db.TopItems(10)
			Expect(err).NotTo(HaveOccurred())
			for _, s := range stats {
				Expect(s.Name).NotTo(ContainSubstring("Pfand"))
			}
		})

		It("should honor the limit", func() {
			stats, err := db.TopItems(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats).To(HaveLen(1))
		})
	})

	Describe("TopReceipts", func() {
		It("should rank receipts by gross total", func() {
			stats, err := db.TopReceipts(10, OrderByTotal)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats).To(HaveLen(2))
			Expect(stats[0].ReceiptNumber).To(Equal("8812"))
			Expect(stats[0].GrossTotal.Equal(decimal.RequireFromString("23.45"))).To(BeTrue())
			Expect(stats[0].StoreName).To(Equal("REWE Markt GmbH"))
			Expect(stats[0].City).To(Equal("Köln"))
			Expect(stats[0].PaymentMethod).To(Equal("EC-KARTE"))
		})

		It("should count every line on the receipt", func() {
			stats, err := db.TopReceipts(10, OrderByTotal)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats[0].ItemCount).To(Equal(int64(2)))
			Expect(stats[1].ItemCount).To(Equal(int64(1)))
		})

		It("should rank by item count when asked", func() {
			stats, err := db.TopReceipts(10, OrderByItems)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats[0].ReceiptNumber).To(Equal("8812"))
			Expect(stats[0].ItemCount).To(Equal(int64(2)))
		})

		It("should honor the limit", func() {
			stats, err := db.TopReceipts(1, OrderByTotal)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats).To(HaveLen(1))
		})
	})

	Describe("SpendByDate", func() {
		It("should group receipts per day, newest first", func() {
			days, err := db.SpendByDate()
			Expect(err).NotTo(HaveOccurred())
			Expect(days).To(HaveLen(2))
			Expect(days[0].Day).To(Equal("2024-04-02"))
			Expect(days[0].ReceiptCount).To(Equal(int64(1)))
			Expect(days[1].Day).To(Equal("2024-03-14"))
			Expect(days[1].TotalSpent.Equal(decimal.RequireFromString("23.45"))).To(BeTrue())
		})
	})

	Describe("SpendByMarket", func() {
		It("should group by store using the printed snapshot", func() {
			markets, err := db.SpendByMarket()
			Expect(err).NotTo(HaveOccurred())
			Expect(markets).To(HaveLen(2))
			Expect(markets[0].StoreNumber).To(Equal("0440"))
			Expect(markets[0].StoreName).To(Equal("REWE Markt GmbH"))
			Expect(markets[0].City).To(Equal("Köln"))
			Expect(markets[1].TotalSpent.Equal(decimal.RequireFromString("4.76"))).To(BeTrue())
		})
	})

	Describe("SpendByPaymentMethod", func() {
		It("should split cash and card", func() {
			stats, err := db.SpendByPaymentMethod()
			Expect(err).NotTo(HaveOccurred())
			Expect(stats).To(HaveLen(2))
			Expect(stats[0].PaymentMethod).To(Equal("EC-KARTE"))
			Expect(stats[1].PaymentMethod).To(Equal("BAR"))
		})
	})

	Describe("SpendByMonth", func() {
		It("should group by calendar month, newest first", func() {
			months, err := db.SpendByMonth()
			Expect(err).NotTo(HaveOccurred())
			Expect(months).To(HaveLen(2))
			Expect(months[0].Month).To(Equal("2024-04"))
			Expect(months[1].Month).To(Equal("2024-03"))
			Expect(months[1].TotalSpent.Equal(decimal.RequireFromString("23.45"))).To(BeTrue())
		})
	})
})
