package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bookkeeping/internal/cache"
	"github.com/smallbiznis/bookkeeping/internal/clock"
	"github.com/smallbiznis/bookkeeping/internal/config"
	"github.com/smallbiznis/bookkeeping/internal/testutil"
	vatdomain "github.com/smallbiznis/bookkeeping/internal/vat/domain"
	"github.com/smallbiznis/bookkeeping/internal/vat/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *miniredis.Miniredis) {
	t.Helper()

	db := testutil.OpenSQLite(t, &vatdomain.VatType{})
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := NewService(Params{
		Log:    zap.NewNop(),
		GenID:  testutil.Node(t),
		Repo:   repository.NewRepository(db),
		Cache:  cache.New(client),
		Clock:  clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		Config: config.Config{VatCacheTTL: time.Minute},
	})
	return svc.(*Service), db, mr
}

func TestResolveEmptyCodeIsZeroRate(t *testing.T) {
	svc, _, _ := newTestService(t)

	vat, err := svc.Resolve(context.Background(), 1, "")
	require.NoError(t, err)
	assert.True(t, vat.Rate.IsZero())
}

func TestResolveReadsThroughCache(t *testing.T) {
	svc, db, mr := newTestService(t)
	ctx := context.Background()

	account := int64(7700)
	_, err := svc.Create(ctx, 1, vatdomain.CreateRequest{
		Code:          "U25",
		Name:          "Sales VAT 25%",
		Rate:          decimal.RequireFromString("0.25"),
		AccountNumber: &account,
	})
	require.NoError(t, err)

	vat, err := svc.Resolve(ctx, 1, "U25")
	require.NoError(t, err)
	assert.True(t, vat.Rate.Equal(decimal.RequireFromString("0.25")))
	assert.True(t, mr.Exists(cacheKey(1, "U25")))

	// served from cache once the row is gone
	require.NoError(t, db.Exec("DELETE FROM vat_types").Error)
	vat, err = svc.Resolve(ctx, 1, "U25")
	require.NoError(t, err)
	assert.Equal(t, int64(7700), *vat.AccountNumber)
}

func TestUpdateInvalidatesCache(t *testing.T) {
	svc, _, mr := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, vatdomain.CreateRequest{Code: "I25", Name: "Purchase VAT", Rate: decimal.RequireFromString("0.25")})
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, 1, "I25")
	require.NoError(t, err)

	disabled := false
	_, err = svc.Update(ctx, 1, "I25", vatdomain.UpdateRequest{IsEnabled: &disabled})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cacheKey(1, "I25")))

	_, err = svc.Resolve(ctx, 1, "I25")
	assert.ErrorIs(t, err, vatdomain.ErrDisabled)
	assert.True(t, IsNotResolvable(err))

	vat, err := svc.Lookup(ctx, 1, "I25")
	require.NoError(t, err)
	assert.False(t, vat.IsEnabled)
	assert.True(t, vat.Rate.Equal(decimal.RequireFromString("0.25")))

	_, err = svc.Lookup(ctx, 1, "NOPE")
	assert.ErrorIs(t, err, vatdomain.ErrNotFound)
}

func TestCreateRejectsInvalidRateAndDuplicates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, vatdomain.CreateRequest{Code: "X", Name: "Bad", Rate: decimal.RequireFromString("1.5")})
	assert.ErrorIs(t, err, vatdomain.ErrInvalidVatRate)

	_, err = svc.Create(ctx, 1, vatdomain.CreateRequest{Code: "U25", Name: "Sales", Rate: decimal.RequireFromString("0.25")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, vatdomain.CreateRequest{Code: "U25", Name: "Sales", Rate: decimal.RequireFromString("0.25")})
	assert.ErrorIs(t, err, vatdomain.ErrDuplicateVatCode)

	// codes are tenant scoped
	_, err = svc.Create(ctx, 2, vatdomain.CreateRequest{Code: "U25", Name: "Sales", Rate: decimal.RequireFromString("0.25")})
	assert.NoError(t, err)
}

func TestResolveUnknownCode(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Resolve(context.Background(), 1, "ZZ")
	assert.ErrorIs(t, err, vatdomain.ErrNotFound)
}
