package receipt

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func testReceipt(bonNr string) *Receipt {
	return &Receipt{
		StoreNumber:    "0440",
		RegisterNumber: "2",
		ReceiptNumber:  bonNr,
		PurchaseDate:   time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
		PurchaseTime:   "18:32",
		StoreName:      "REWE Markt GmbH",
		StoreCity:      "Köln",
		GrossTotal:     decimal.RequireFromString("23.45"),
		PaymentMethod:  "EC-KARTE",
		SourceFile:     "ebon-" + bonNr + ".pdf",
		Items: []ReceiptItem{
			{Name: "Bio Vollmilch 1L", LineKind: LineKindProduct, Quantity: decimal.NewFromInt(2),
				PricePerUnit: decimal.RequireFromString("1.19"), LineTotal: decimal.RequireFromString("2.38"),
				TaxRateCode: "B", PositionNr: 1},
			{Name: "Pfand 0,25", LineKind: LineKindDeposit, Quantity: decimal.NewFromInt(1),
				LineTotal: decimal.RequireFromString("0.25"), TaxRateCode: "A", IsDeposit: true, PositionNr: 2},
		},
		TaxEntries: []TaxSummary{
			{RateCode: "A", RatePercent: decimal.NewFromInt(19), GrossAmount: decimal.RequireFromString("5.00")},
			{RateCode: "B", RatePercent: decimal.NewFromInt(7), GrossAmount: decimal.RequireFromString("18.45")},
		},
	}
}

var _ = Describe("GormDB", func() {
	var (
		tmpDir string
		db     *GormDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		db, err = Open(filepath.Join(tmpDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("FindMarket", func() {
		When("the market does not exist", func() {
			It("should return nil without an error", func() {
				m, err := db.FindMarket("9999")
				Expect(err).NotTo(HaveOccurred())
				Expect(m).To(BeNil())
			})
		})

		When("the market exists", func() {
			BeforeEach(func() {
				Expect(db.CreateMarket(&Market{StoreNumber: "0440", Name: "REWE Markt GmbH"})).To(Succeed())
			})

			It("should return it by store number", func() {
				m, err := db.FindMarket("0440")
				Expect(err).NotTo(HaveOccurred())
				Expect(m).NotTo(BeNil())
				Expect(m.Name).To(Equal("REWE Markt GmbH"))
				Expect(m.ID).NotTo(BeZero())
			})
		})
	})

	Describe("CreateMarket", func() {
		It("should reject a second market with the same store number", func() {
			Expect(db.CreateMarket(&Market{StoreNumber: "0440"})).To(Succeed())
			Expect(db.CreateMarket(&Market{StoreNumber: "0440"})).NotTo(Succeed())
		})
	})

	Describe("CreateReceipt", func() {
		var (
			rec *Receipt
			err error
		)

		BeforeEach(func() {
			rec = testReceipt("4482")
		})

		JustBeforeEach(func() {
			err = db.CreateReceipt(rec)
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should persist items and tax entries with the receipt", func() {
			stored, getErr := db.GetReceipt(rec.ID)
			Expect(getErr).NotTo(HaveOccurred())
			Expect(stored.Items).To(HaveLen(2))
			Expect(stored.TaxEntries).To(HaveLen(2))
			Expect(stored.GrossTotal.Equal(decimal.RequireFromString("23.45"))).To(BeTrue())
		})

		It("should be findable by its natural key", func() {
			found, findErr := db.FindReceiptByKey(rec.Key())
			Expect(findErr).NotTo(HaveOccurred())
			Expect(found).NotTo(BeNil())
			Expect(found.ID).To(Equal(rec.ID))
		})

		When("a receipt with the same natural key already exists", func() {
			BeforeEach(func() {
				Expect(db.CreateReceipt(testReceipt("4482"))).To(Succeed())
			})

			It("should be rejected by the store's unique constraint", func() {
				Expect(err).To(HaveOccurred())
			})
		})

		When("only the receipt number differs", func() {
			BeforeEach(func() {
				Expect(db.CreateReceipt(testReceipt("4481"))).To(Succeed())
			})

			It("should not conflict", func() {
				Expect(err).NotTo(HaveOccurred())
			})
		})
	})

	Describe("DeleteReceipt", func() {
		var first, second *Receipt

		BeforeEach(func() {
			first = testReceipt("1001")
			second = testReceipt("1002")
			Expect(db.CreateReceipt(first)).To(Succeed())
			Expect(db.CreateReceipt(second)).To(Succeed())
		})

		It("should cascade to the receipt's items and tax entries only", func() {
			Expect(db.DeleteReceipt(first.ID)).To(Succeed())

			count, err := db.CountReceipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))

			items, err := db.CountItems()
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(Equal(int64(2)))

			remaining, err := db.GetReceipt(second.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(remaining.Items).To(HaveLen(2))
		})
	})

	Describe("RunInTransaction", func() {
		When("the unit of work fails", func() {
			It("should roll back every write", func() {
				err := db.RunInTransaction(func(tx DB) error {
					if err := tx.CreateReceipt(testReceipt("2001")); err != nil {
						return err
					}
					return errors.New("boom")
				})
				Expect(err).To(MatchError(ContainSubstring("boom")))

				count, countErr := db.CountReceipts()
				Expect(countErr).NotTo(HaveOccurred())
				Expect(count).To(BeZero())

				items, itemsErr := db.CountItems()
				Expect(itemsErr).NotTo(HaveOccurred())
				Expect(items).To(BeZero())
			})
		})

		When("the unit of work succeeds", func() {
			It("should commit", func() {
				err := db.RunInTransaction(func(tx DB) error {
					return tx.CreateReceipt(testReceipt("2002"))
				})
				Expect(err).NotTo(HaveOccurred())

				count, countErr := db.CountReceipts()
				Expect(countErr).NotTo(HaveOccurred())
				Expect(count).To(Equal(int64(1)))
			})
		})
	})

	Describe("UpsertProduct", func() {
		It("should create on first sighting and count later ones", func() {
			Expect(db.UpsertProduct(&Product{Name: "Bio Vollmilch 1L", TypicalTaxCode: "B", IsOrganic: true})).To(Succeed())
			Expect(db.UpsertProduct(&Product{Name: "Bio Vollmilch 1L", TypicalTaxCode: "B"})).To(Succeed())

			var p Product
			err := db.RunInTransaction(func(tx DB) error {
				g := tx.(*GormDB)
				return g.db.Where("name = ?", "Bio Vollmilch 1L").First(&p).Error
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.TimesSeen).To(Equal(int64(2)))
			Expect(p.IsOrganic).To(BeTrue())
		})
	})
})
