package receipt

import (
	"fmt"
	"log/slog"
)

// ObservedMarket carries the store fields as they appeared on one receipt,
// used to create or enrich the market row for that store number.
type ObservedMarket struct {
	Name       string
	Street     string
	PostalCode string
	City       string
	Phone      string
	TaxID      string
}

// ResolveMarket looks a market up by store number, creating it on first
// sighting. Later sightings only fill fields that were empty; a populated
// field is never overwritten, and a differing observation surfaces as a
// conflict warning instead of silently winning.
func ResolveMarket(db DB, storeNumber string, observed ObservedMarket) (uint, []Warning, error) {
	if storeNumber == "" {
		return 0, nil, missingField("store_number")
	}

	existing, err := db.FindMarket(storeNumber)
	if err != nil {
		return 0, nil, err
	}

	if existing == nil {
		m := &Market{
			StoreNumber: storeNumber,
			Name:        observed.Name,
			Street:      observed.Street,
			PostalCode:  observed.PostalCode,
			City:        observed.City,
			Phone:       observed.Phone,
			TaxID:       observed.TaxID,
		}
		if err := db.CreateMarket(m); err != nil {
			return 0, nil, err
		}
		slog.Info("Created market", "store_number", storeNumber, "city", observed.City)
		return m.ID, nil, nil
	}

	var warnings []Warning
	changed := false

	fields := []struct {
		name     string
		stored   *string
		observed string
	}{
		{"name", &existing.Name, observed.Name},
		{"street", &existing.Street, observed.Street},
		{"postal_code", &existing.PostalCode, observed.PostalCode},
		{"city", &existing.City, observed.City},
		{"phone", &existing.Phone, observed.Phone},
		{"tax_id", &existing.TaxID, observed.TaxID},
	}

	for _, f := range fields {
		if f.observed == "" {
			continue
		}
		if *f.stored == "" {
			*f.stored = f.observed
			changed = true
			continue
		}
		if *f.stored != f.observed {
			warnings = append(warnings, Warning{
				Code: WarnMarketConflict,
				Message: fmt.Sprintf("market %s field %s: stored %q, receipt says %q",
					storeNumber, f.name, *f.stored, f.observed),
			})
		}
	}

	if changed {
		if err := db.SaveMarket(existing); err != nil {
			return 0, nil, err
		}
	}
	for _, w := range warnings {
		slog.Warn("Market field conflict", "store_number", storeNumber, "detail", w.Message)
	}

	return existing.ID, warnings, nil
}
