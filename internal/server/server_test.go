package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bookkeeping/internal/authorization"
	"github.com/smallbiznis/bookkeeping/internal/clock"
	"github.com/smallbiznis/bookkeeping/internal/config"
	"github.com/smallbiznis/bookkeeping/internal/observability"
	perioddomain "github.com/smallbiznis/bookkeeping/internal/period/domain"
	"github.com/smallbiznis/bookkeeping/internal/ratelimit"
	voucherdomain "github.com/smallbiznis/bookkeeping/internal/voucher/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type fakeVoucherService struct {
	voucherdomain.Service

	postErr   error
	lastOrg   snowflake.ID
	lastClass voucherdomain.DocumentClass
	lastReq   voucherdomain.DraftRequest
}

func (f *fakeVoucherService) Post(ctx context.Context, orgID snowflake.ID, class voucherdomain.DocumentClass, req voucherdomain.DraftRequest) (*voucherdomain.PostResult, error) {
	f.lastOrg = orgID
	f.lastClass = class
	f.lastReq = req
	if f.postErr != nil {
		return nil, f.postErr
	}
	return &voucherdomain.PostResult{GUID: "4b1e7a52-7a4f-4b55-9f0e-7d0c3c5b6a11", Number: 1}, nil
}

func (f *fakeVoucherService) Get(ctx context.Context, orgID snowflake.ID, guid string) (*voucherdomain.Voucher, error) {
	return nil, voucherdomain.ErrNotFound
}

type fakePeriodService struct {
	perioddomain.Service

	lockedYear  int
	lockedUntil time.Time
}

func (f *fakePeriodService) LockPeriod(ctx context.Context, orgID snowflake.ID, year int, lockedUntil time.Time) (*perioddomain.AccountingYear, error) {
	f.lockedYear = year
	f.lockedUntil = lockedUntil
	return &perioddomain.AccountingYear{OrgID: orgID, Year: year, LockedUntil: &lockedUntil}, nil
}

type harness struct {
	engine   *gin.Engine
	vouchers *fakeVoucherService
	periods  *fakePeriodService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newLimitedHarness(t, nil)
}

func newLimitedHarness(t *testing.T, limiter *ratelimit.PostingLimiter) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)

	h := &harness{
		vouchers: &fakeVoucherService{},
		periods:  &fakePeriodService{},
	}
	engine := NewEngine(observability.Config{Environment: "test"}, nil)
	NewServer(ServerParams{
		Gin:            engine,
		Cfg:            config.Config{AuthJWTSecret: testSecret},
		Clock:          clock.NewFakeClock(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)),
		AuthzSvc:       authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		VoucherSvc:     h.vouchers,
		PeriodSvc:      h.periods,
		PostingLimiter: limiter,
	})
	h.engine = engine
	return h
}

func token(t *testing.T, subject, orgID, role string) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		OrgID: orgID,
		Role:  role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (h *harness) do(t *testing.T, method, path, bearer string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func voucherBody() map[string]any {
	return map[string]any{
		"document_date": "2024-03-15",
		"currency":      "DKK",
		"lines": []map[string]any{
			{"account_number": 1920, "direction": "debit", "unit_amount_excl_vat": "100"},
			{"account_number": 1000, "direction": "credit", "unit_amount_excl_vat": "100"},
		},
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/health", "", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/v1/vouchers/manual_voucher", "", voucherBody(), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWrongSigningKeyIsUnauthorized(t *testing.T) {
	h := newHarness(t)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		OrgID:            "1",
		Role:             authorization.RoleOwner,
	}).SignedString([]byte("other"))
	require.NoError(t, err)

	rec := h.do(t, http.MethodPost, "/v1/vouchers/manual_voucher", signed, voucherBody(), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPostVoucher(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/v1/vouchers/manual_voucher", token(t, "u1", "42", authorization.RoleAccountant), voucherBody(), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data voucherdomain.PostResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Data.Number)

	assert.Equal(t, snowflake.ID(42), h.vouchers.lastOrg)
	assert.Equal(t, voucherdomain.ClassManualVoucher, h.vouchers.lastClass)
	assert.True(t, h.vouchers.lastReq.DocumentDate.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)))
	require.Len(t, h.vouchers.lastReq.Lines, 2)
	assert.True(t, h.vouchers.lastReq.Lines[0].UnitAmountExclVat.Equal(decimal.NewFromInt(100)))
}

func TestOrgHeaderFallbackAndMismatch(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/v1/vouchers/invoice", token(t, "u1", "", authorization.RoleAccountant), voucherBody(),
		map[string]string{HeaderOrg: "7"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, snowflake.ID(7), h.vouchers.lastOrg)

	rec = h.do(t, http.MethodPost, "/v1/vouchers/invoice", token(t, "u1", "8", authorization.RoleAccountant), voucherBody(),
		map[string]string{HeaderOrg: "7"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/vouchers/invoice", token(t, "u1", "", authorization.RoleAccountant), voucherBody(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestViewerCannotPost(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/v1/vouchers/invoice", token(t, "u1", "1", authorization.RoleViewer), voucherBody(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, h.vouchers.lastOrg)
}

func TestUnknownDocumentClass(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/v1/vouchers/receipt", token(t, "u1", "1", authorization.RoleOwner), voucherBody(), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "document_class", payload.Errors[0].Field)
}

func TestPostingErrorMapping(t *testing.T) {
	lockedUntil := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		err        error
		status     int
		errType    string
		retryAfter bool
	}{
		{
			name:    "validation",
			err:     voucherdomain.Invalid("lines[0].account_number", "unknown_account", "account 9999 does not exist"),
			status:  http.StatusBadRequest,
			errType: "validation_error",
		},
		{
			name: "unbalanced",
			err: &voucherdomain.UnbalancedVoucherError{
				TotalDebit:  decimal.NewFromInt(100),
				TotalCredit: decimal.NewFromInt(90),
				Difference:  decimal.NewFromInt(10),
			},
			status:  http.StatusUnprocessableEntity,
			errType: "unbalanced_voucher",
		},
		{
			name:    "period locked",
			err:     &perioddomain.PeriodLockedError{Year: 2024, LockedUntil: &lockedUntil},
			status:  http.StatusUnprocessableEntity,
			errType: "period_locked",
		},
		{
			name:    "numbering conflict",
			err:     &voucherdomain.NumberingConflictError{Attempts: 5, Err: errors.New("duplicate key")},
			status:  http.StatusConflict,
			errType: "numbering_conflict",
		},
		{
			name:       "timeout",
			err:        &voucherdomain.TimeoutError{Op: "post", Err: context.DeadlineExceeded},
			status:     http.StatusServiceUnavailable,
			errType:    "timeout",
			retryAfter: true,
		},
		{
			name:    "storage",
			err:     &voucherdomain.StorageError{Op: "post", Err: errors.New("disk full")},
			status:  http.StatusInternalServerError,
			errType: "internal_error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.vouchers.postErr = tc.err

			rec := h.do(t, http.MethodPost, "/v1/vouchers/invoice", token(t, "u1", "1", authorization.RoleAccountant), voucherBody(), nil)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.errType, decodeError(t, rec).Type)
			if tc.retryAfter {
				assert.Equal(t, retryAfterSeconds, rec.Header().Get("Retry-After"))
			}
		})
	}
}

func TestStorageErrorDoesNotLeakDetails(t *testing.T) {
	h := newHarness(t)
	h.vouchers.postErr = &voucherdomain.StorageError{Op: "post", Err: errors.New("password=hunter2")}

	rec := h.do(t, http.MethodPost, "/v1/vouchers/invoice", token(t, "u1", "1", authorization.RoleAccountant), voucherBody(), nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, strings.Contains(rec.Body.String(), "hunter2"))
}

func TestGetVoucherNotFound(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/v1/vouchers/4b1e7a52-7a4f-4b55-9f0e-7d0c3c5b6a11", token(t, "u1", "1", authorization.RoleViewer), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLockPeriodRequiresPermission(t *testing.T) {
	h := newHarness(t)
	body := map[string]any{"locked_until": "2024-03-31"}

	rec := h.do(t, http.MethodPut, "/v1/accounting-years/2024/lock", token(t, "u1", "1", authorization.RoleAccountant), body, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, h.periods.lockedYear)

	rec = h.do(t, http.MethodPut, "/v1/accounting-years/2024/lock", token(t, "u2", "1", authorization.RoleAdmin), body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2024, h.periods.lockedYear)
	assert.True(t, h.periods.lockedUntil.Equal(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)))
}

func TestSystemActorMayLock(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPut, "/v1/accounting-years/2024/lock", token(t, "system", "1", ""), map[string]any{"locked_until": "2024-01-31"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestPostingIsRateLimitedPerOrganization(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := ratelimit.NewPostingLimiter(config.Config{RateLimit: config.RateLimitConfig{
		Enabled:         true,
		PostingOrgRate:  0.1,
		PostingOrgBurst: 1,
	}}, client, zap.NewNop())
	require.NoError(t, err)

	h := newLimitedHarness(t, limiter)
	rec := h.do(t, http.MethodPost, "/v1/vouchers/invoice", token(t, "u1", "1", authorization.RoleAccountant), voucherBody(), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/vouchers/invoice", token(t, "u1", "1", authorization.RoleAccountant), voucherBody(), nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limited")

	rec = h.do(t, http.MethodPost, "/v1/vouchers/invoice", token(t, "u1", "2", authorization.RoleAccountant), voucherBody(), nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestPostingRateLimiterOutageIsUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := ratelimit.NewPostingLimiter(config.Config{RateLimit: config.RateLimitConfig{
		Enabled:         true,
		PostingOrgRate:  10,
		PostingOrgBurst: 10,
	}}, client, zap.NewNop())
	require.NoError(t, err)
	mr.Close()

	h := newLimitedHarness(t, limiter)
	rec := h.do(t, http.MethodPost, "/v1/vouchers/invoice", token(t, "u1", "1", authorization.RoleAccountant), voucherBody(), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Nil(t, h.vouchers.lastReq.Lines)
}
