package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// BalanceEpsilon is the largest debit/credit difference still considered
// balanced after rounding to the currency's minor unit.
var BalanceEpsilon = decimal.RequireFromString("0.0001")

var zeroDecimalCurrencies = map[string]struct{}{
	"JPY": {},
	"ISK": {},
	"KRW": {},
}

// MinorUnits returns the number of decimals used by currency.
func MinorUnits(currency string) int32 {
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return 0
	}
	return 2
}

// RoundMoney rounds half away from zero to the currency's minor unit.
func RoundMoney(currency string, amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MinorUnits(currency))
}

// ComputeLine fills the derived amounts of line from its unit amount,
// quantity, discount and VAT rate.
//
//	unit_incl  = unit_excl * (1 + vat_rate)
//	total_excl = round(unit_excl * quantity * (1 - discount))
//	total_incl = round(unit_incl * quantity * (1 - discount))
func ComputeLine(currency string, line *VoucherLine) {
	one := decimal.NewFromInt(1)
	factor := line.Quantity.Mul(one.Sub(line.Discount))

	line.UnitAmountInclVat = line.UnitAmountExclVat.Mul(one.Add(line.VatRate)).Round(4)
	line.TotalAmountExclVat = RoundMoney(currency, line.UnitAmountExclVat.Mul(factor))
	line.TotalAmountInclVat = RoundMoney(currency, line.UnitAmountExclVat.Mul(one.Add(line.VatRate)).Mul(factor))
}
