package domain

import (
	"github.com/shopspring/decimal"

	vatdomain "github.com/smallbiznis/bookkeeping/internal/vat/domain"
	voucherdomain "github.com/smallbiznis/bookkeeping/internal/voucher/domain"
)

// Project derives ledger entries from a booked voucher. Each line posts its
// VAT-exclusive total to the line account and the VAT portion to the VAT
// type's account. Lines whose VAT type has no account post the inclusive
// total to the line account. vat is keyed by VAT code.
func Project(v *voucherdomain.Voucher, vat map[string]*vatdomain.VatType) ([]LedgerEntry, error) {
	if v == nil || v.Number == nil || !v.Status.IsBooked() {
		return nil, ErrVoucherNotBooked
	}

	entries := make([]LedgerEntry, 0, len(v.Lines)*2)
	base := LedgerEntry{
		OrgID:         v.OrgID,
		VoucherID:     v.ID,
		VoucherGUID:   v.GUID,
		DocumentClass: v.DocumentClass,
		VoucherNumber: *v.Number,
		Currency:      v.Currency,
		EntryDate:     v.DocumentDate,
	}

	for _, line := range v.Lines {
		vatAmount := line.TotalAmountInclVat.Sub(line.TotalAmountExclVat)
		vatAccount := vatAccountFor(line.VatCode, vat)

		net := base
		net.AccountNumber = line.AccountNumber
		net.Direction = line.Direction
		net.VatCode = line.VatCode
		if vatAccount == nil || vatAmount.IsZero() {
			net.Amount = line.TotalAmountInclVat
			entries = append(entries, net)
			continue
		}
		net.Amount = line.TotalAmountExclVat
		entries = append(entries, net)

		tax := base
		tax.AccountNumber = *vatAccount
		tax.Direction = line.Direction
		tax.VatCode = line.VatCode
		tax.Amount = vatAmount
		entries = append(entries, tax)
	}

	if err := ValidateBalanced(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func vatAccountFor(code *string, vat map[string]*vatdomain.VatType) *int64 {
	if code == nil || vat == nil {
		return nil
	}
	vt, ok := vat[*code]
	if !ok || vt == nil {
		return nil
	}
	return vt.AccountNumber
}

// ValidateBalanced checks that debit and credit amounts match.
func ValidateBalanced(entries []LedgerEntry) error {
	debit := decimal.Zero
	credit := decimal.Zero
	for _, e := range entries {
		switch e.Direction {
		case voucherdomain.Debit:
			debit = debit.Add(e.Amount)
		case voucherdomain.Credit:
			credit = credit.Add(e.Amount)
		}
	}
	if debit.Sub(credit).Abs().GreaterThan(voucherdomain.BalanceEpsilon) {
		return ErrUnbalancedEntries
	}
	return nil
}
