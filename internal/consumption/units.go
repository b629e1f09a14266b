package consumption

import (
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"github.com/shopspring/decimal"
)

// DefaultLineUnit applies to lines that do not name a unit.
const DefaultLineUnit = "kg"

var gramsPerUnit = map[string]decimal.Decimal{
	"mg":    decimal.RequireFromString("0.001"),
	"g":     decimal.NewFromInt(1),
	"kg":    decimal.NewFromInt(1000),
	"lb":    decimal.RequireFromString("453.59237"),
	"lbs":   decimal.RequireFromString("453.59237"),
	"pound": decimal.RequireFromString("453.59237"),
	"t":     decimal.NewFromInt(1000000),
	"ton":   decimal.NewFromInt(1000000),
	"tonne": decimal.NewFromInt(1000000),
}

// GramsPerUnit returns the conversion factor of a mass unit. Units are
// matched case-insensitively.
func GramsPerUnit(unit string) (decimal.Decimal, error) {
	factor, ok := gramsPerUnit[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrUnknownUnit, unit)
	}
	return factor, nil
}

// ToGrams converts quantity expressed in unit into grams.
func ToGrams(quantity decimal.Decimal, unit string) (decimal.Decimal, error) {
	factor, err := GramsPerUnit(unit)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return quantity.Mul(factor), nil
}

// Convert re-expresses quantity from one mass unit in another, rounded to
// inventory.QuantityScale decimal places.
func Convert(quantity decimal.Decimal, from string, to string) (decimal.Decimal, error) {
	grams, err := ToGrams(quantity, from)
	if err != nil {
		return decimal.Decimal{}, err
	}
	factor, err := GramsPerUnit(to)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return grams.DivRound(factor, inventory.QuantityScale), nil
}
