package receipt

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("inferProduct", func() {
	DescribeTable("category inference from German item names",
		func(name, category string) {
			p := inferProduct(ReceiptItem{Name: name})
			Expect(p.Category).To(Equal(category))
		},
		Entry("milk", "BIO VOLLMILCH 1L", "Dairy"),
		Entry("bread", "ROGGENBROT 500G", "Bakery"),
		Entry("bananas", "BANANEN CHIQUITA", "Produce"),
		Entry("sparkling water", "WASSER CLASSIC 12X0,7", "Beverages"),
		Entry("ham", "KOCHSCHINKEN 200G", "Meat"),
		Entry("salmon", "LACHSFILET", "Fish"),
		Entry("unknown item", "GESCHENKKARTE 25EUR", ""),
	)

	It("should detect organic items", func() {
		Expect(inferProduct(ReceiptItem{Name: "Bio Joghurt Natur"}).IsOrganic).To(BeTrue())
		Expect(inferProduct(ReceiptItem{Name: "Joghurt Natur"}).IsOrganic).To(BeFalse())
	})

	It("should carry the tax rate code into the catalog", func() {
		p := inferProduct(ReceiptItem{Name: "Vollmilch", TaxRateCode: "B"})
		Expect(p.TypicalTaxCode).To(Equal("B"))
	})

	It("should keep the printed name verbatim", func() {
		p := inferProduct(ReceiptItem{Name: "REWE Beste Wahl H-Milch 3,5%"})
		Expect(p.Name).To(Equal("REWE Beste Wahl H-Milch 3,5%"))
	})
})
