package domain

import "github.com/shopspring/decimal"

type Totals struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// ValidateBalance sums the VAT-inclusive line totals per direction and fails
// with *UnbalancedVoucherError when they differ. It has no side effects.
func ValidateBalance(currency string, lines []VoucherLine) (Totals, error) {
	totals := Totals{Debit: decimal.Zero, Credit: decimal.Zero}
	for _, line := range lines {
		switch line.Direction {
		case Debit:
			totals.Debit = totals.Debit.Add(line.TotalAmountInclVat)
		case Credit:
			totals.Credit = totals.Credit.Add(line.TotalAmountInclVat)
		}
	}
	totals.Debit = RoundMoney(currency, totals.Debit)
	totals.Credit = RoundMoney(currency, totals.Credit)

	diff := RoundMoney(currency, totals.Debit.Sub(totals.Credit))
	if diff.Abs().GreaterThan(BalanceEpsilon) {
		return totals, &UnbalancedVoucherError{
			Difference:  diff,
			TotalDebit:  totals.Debit,
			TotalCredit: totals.Credit,
		}
	}
	return totals, nil
}
