package catalog

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// PRESETS - Seed data for dev mode and scenarios
// =============================================================================

// StandardPriceListJSON builds a config for a list with all four buckets
// populated. Rates are decimal strings.
func StandardPriceListJSON(id, name, hourly, daily, weekly, monthly string) string {
	pj := PriceListJSON{
		ID:   id,
		Name: name,
		Rates: RatesJSON{
			Hourly:  hourly,
			Daily:   daily,
			Weekly:  weekly,
			Monthly: monthly,
		},
	}
	b, _ := json.Marshal(pj)
	return string(b)
}

// DailyOnlyPriceListJSON builds a config with just a daily rate, the common
// shape for short-term fleets.
func DailyOnlyPriceListJSON(id, name, daily string) string {
	pj := PriceListJSON{ID: id, Name: name, Rates: RatesJSON{Daily: daily}}
	b, _ := json.Marshal(pj)
	return string(b)
}

// DefaultCharges returns the seed misc-charge catalog.
func DefaultCharges() []ChargeJSON {
	return []ChargeJSON{
		{ID: "chg-gps", Name: "GPS unit", Amount: "25", Taxable: true},
		{ID: "chg-child-seat", Name: "Child seat", Amount: "15", Taxable: true},
		{ID: "chg-young-driver", Name: "Young driver fee", Amount: "30", Taxable: false},
		{ID: "chg-airport", Name: "Airport surcharge", Amount: "40", Taxable: false},
	}
}

// ChargeConfigJSON serializes a single charge definition.
func ChargeConfigJSON(cj ChargeJSON) string {
	b, err := json.Marshal(cj)
	if err != nil {
		return fmt.Sprintf(`{"id":%q}`, cj.ID)
	}
	return string(b)
}
