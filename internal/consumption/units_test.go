package consumption

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToGrams(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name     string
		quantity string
		unit     string
		expected string
	}{
		{name: "milligrams", quantity: "1500", unit: "mg", expected: "1.5"},
		{name: "grams", quantity: "12", unit: "g", expected: "12"},
		{name: "kilograms", quantity: "2.5", unit: "kg", expected: "2500"},
		{name: "pounds", quantity: "2", unit: "lbs", expected: "907.18474"},
		{name: "pound alias", quantity: "1", unit: "Pound", expected: "453.59237"},
		{name: "tonnes", quantity: "0.25", unit: "TONNE", expected: "250000"},
		{name: "short ton alias", quantity: "1", unit: "t", expected: "1000000"},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			grams, err := ToGrams(decimal.RequireFromString(testCase.quantity), testCase.unit)
			require.NoError(test, err)
			assert.True(test, grams.Equal(decimal.RequireFromString(testCase.expected)), "got %s", grams)
		})
	}
}

func TestConvertBetweenUnits(test *testing.T) {
	test.Parallel()
	converted, err := Convert(decimal.NewFromInt(2500), "g", "kg")
	require.NoError(test, err)
	assert.True(test, converted.Equal(decimal.RequireFromString("2.5")), "got %s", converted)

	converted, err = Convert(decimal.NewFromInt(1), "t", "kg")
	require.NoError(test, err)
	assert.True(test, converted.Equal(decimal.NewFromInt(1000)), "got %s", converted)

	converted, err = Convert(decimal.NewFromInt(1), "g", "lb")
	require.NoError(test, err)
	assert.True(test, converted.Equal(decimal.RequireFromString("0.002205")), "got %s", converted)

	converted, err = Convert(decimal.NewFromInt(1), "mg", "t")
	require.NoError(test, err)
	assert.True(test, converted.IsZero(), "got %s", converted)
}

func TestUnknownUnit(test *testing.T) {
	test.Parallel()
	_, err := ToGrams(decimal.NewFromInt(1), "litre")
	assert.ErrorIs(test, err, ErrUnknownUnit)
	_, err = Convert(decimal.NewFromInt(1), "kg", "each")
	assert.ErrorIs(test, err, ErrUnknownUnit)
}
