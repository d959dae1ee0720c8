package authorization

import (
	"context"
	"errors"
)

const (
	ObjectVoucher        = "voucher"
	ObjectAccountingYear = "accounting_year"
	ObjectAccount        = "account"
	ObjectVatType        = "vat_type"
	ObjectAuditRecord    = "audit_record"
	ObjectLedger         = "ledger"
)

const (
	ActionVoucherView          = "voucher.view"
	ActionVoucherPost          = "voucher.post"
	ActionVoucherDraft         = "voucher.draft"
	ActionVoucherReverse       = "voucher.reverse"
	ActionVoucherPaymentStatus = "voucher.payment_status"

	ActionPeriodView   = "period.view"
	ActionPeriodLock   = "period.lock"
	ActionPeriodUnlock = "period.unlock"

	ActionAccountView   = "account.view"
	ActionAccountManage = "account.manage"

	ActionVatView   = "vat.view"
	ActionVatManage = "vat.manage"

	ActionAuditView  = "audit.view"
	ActionLedgerView = "ledger.view"
)

const (
	RoleOwner      = "owner"
	RoleAdmin      = "admin"
	RoleAccountant = "accountant"
	RoleViewer     = "viewer"
	RoleSystem     = "system"
)

var (
	ErrInvalidActor        = errors.New("invalid_actor")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidObject       = errors.New("invalid_object")
	ErrInvalidAction       = errors.New("invalid_action")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrForbidden           = errors.New("forbidden")
)

// Service decides whether an actor holding role inside an organization may
// perform action on object.
type Service interface {
	Authorize(ctx context.Context, actor, role, orgID, object, action string) error
}
