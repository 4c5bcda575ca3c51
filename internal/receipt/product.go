package receipt

import "strings"

// categoryKeywords maps item-name fragments to coarse catalog categories.
// REWE prints abbreviated German names, so matching stays substring-based;
// first match wins.
var categoryKeywords = []struct {
	keyword  string
	category string
}{
	{"milch", "Dairy"},
	{"joghurt", "Dairy"},
	{"kaese", "Dairy"},
	{"käse", "Dairy"},
	{"butter", "Dairy"},
	{"brot", "Bakery"},
	{"broetchen", "Bakery"},
	{"brötchen", "Bakery"},
	{"apfel", "Produce"},
	{"banane", "Produce"},
	{"tomate", "Produce"},
	{"gurke", "Produce"},
	{"salat", "Produce"},
	{"wasser", "Beverages"},
	{"saft", "Beverages"},
	{"cola", "Beverages"},
	{"bier", "Beverages"},
	{"wein", "Beverages"},
	{"kaffee", "Beverages"},
	{"haehnchen", "Meat"},
	{"hähnchen", "Meat"},
	{"schinken", "Meat"},
	{"wurst", "Meat"},
	{"hack", "Meat"},
	{"lachs", "Fish"},
}

// inferProduct derives a catalog entry from a receipt line. The catalog is a
// best-effort side table; missing inference just leaves fields blank.
func inferProduct(item ReceiptItem) *Product {
	lower := strings.ToLower(item.Name)

	category := ""
	for _, kw := range categoryKeywords {
		if strings.Contains(lower, kw.keyword) {
			category = kw.category
			break
		}
	}

	return &Product{
		Name:           item.Name,
		Category:       category,
		IsOrganic:      strings.Contains(lower, "bio"),
		TypicalTaxCode: item.TaxRateCode,
	}
}
