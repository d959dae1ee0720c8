package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	vatdomain "github.com/smallbiznis/bookkeeping/internal/vat/domain"
	"github.com/smallbiznis/bookkeeping/pkg/db/option"
	"github.com/smallbiznis/bookkeeping/pkg/repository"
	"gorm.io/gorm"
)

type vatRepository struct {
	db    *gorm.DB
	store repository.Repository[vatdomain.VatType]
}

func NewRepository(db *gorm.DB) vatdomain.Repository {
	return &vatRepository{db: db, store: repository.ProvideStore[vatdomain.VatType](db)}
}

func (r *vatRepository) WithTx(tx *gorm.DB) vatdomain.Repository {
	if tx == nil {
		return r
	}
	return &vatRepository{db: tx, store: r.store.WithTrx(tx)}
}

func (r *vatRepository) FindByCode(ctx context.Context, orgID snowflake.ID, code string) (*vatdomain.VatType, error) {
	return r.store.FindOne(ctx, orgID, nil, option.WithWhere("code = ?", code))
}

func (r *vatRepository) List(ctx context.Context, orgID snowflake.ID, filter vatdomain.ListRequest) ([]*vatdomain.VatType, error) {
	opts := []option.QueryOption{option.WithSortBy("code", false, "code")}
	if filter.IsEnabled != nil {
		opts = append(opts, option.WithWhere("is_enabled = ?", *filter.IsEnabled))
	}
	return r.store.Find(ctx, orgID, nil, opts...)
}

func (r *vatRepository) Create(ctx context.Context, vat *vatdomain.VatType) error {
	return r.store.Create(ctx, vat)
}

func (r *vatRepository) Update(ctx context.Context, vat *vatdomain.VatType) error {
	_, err := r.store.Update(ctx, vat.OrgID, vat.ID, map[string]any{
		"name":           vat.Name,
		"rate":           vat.Rate,
		"account_number": vat.AccountNumber,
		"is_enabled":     vat.IsEnabled,
		"updated_at":     vat.UpdatedAt,
	})
	return err
}
