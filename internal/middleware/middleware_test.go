package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/showtime-booking/internal/config"
)

func sign(t *testing.T, method jwt.SigningMethod, claims jwt.MapClaims, key string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

// run sends one request through mw and records what reached the handler.
func run(mw echo.MiddlewareFunc, header string, pre func(echo.Context)) (*httptest.ResponseRecorder, echo.Context, bool) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings/hold/1", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/bookings/hold/:showtimeId")
	if pre != nil {
		pre(c)
	}
	reached := false
	_ = mw(func(c echo.Context) error {
		reached = true
		return c.NoContent(http.StatusNoContent)
	})(c)
	return rec, c, reached
}

func TestJWTAuth(t *testing.T) {
	mw := JWTAuth("s3cret")
	good := sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": 42, "role": RoleCustomer, "exp": time.Now().Add(time.Minute).Unix()}, "s3cret")

	rec, c, reached := run(mw, "Bearer "+good, nil)
	require.True(t, reached, rec.Body.String())
	assert.Equal(t, float64(42), c.Get(CtxUserID))
	assert.Equal(t, RoleCustomer, c.Get(CtxRole))

	expired := sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": 42, "exp": time.Now().Add(-time.Minute).Unix()}, "s3cret")
	noSub := sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"role": RoleAdmin}, "s3cret")
	for name, header := range map[string]string{
		"missing":   "",
		"no bearer": good,
		"wrong key": "Bearer " + sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": 1}, "other"),
		"expired":   "Bearer " + expired,
		"no sub":    "Bearer " + noSub,
		"garbage":   "Bearer abc.def.ghi",
	} {
		rec, _, reached := run(mw, header, nil)
		assert.False(t, reached, name)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
	}
}

func TestRequireRole(t *testing.T) {
	mw := RequireRole(RoleAdmin)
	_, _, reached := run(mw, "", func(c echo.Context) { c.Set(CtxRole, RoleAdmin) })
	assert.True(t, reached)

	rec, _, reached := run(mw, "", func(c echo.Context) { c.Set(CtxRole, RoleCustomer) })
	assert.False(t, reached)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _, reached = run(mw, "", nil)
	assert.False(t, reached)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTokenBucketPassesThroughWithoutRedis(t *testing.T) {
	_, _, reached := run(NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil), "", nil)
	assert.True(t, reached)
}

func TestRateKey(t *testing.T) {
	_, c, _ := run(func(next echo.HandlerFunc) echo.HandlerFunc { return next }, "", func(c echo.Context) { c.Set(CtxUserID, float64(7)) })
	assert.Equal(t, "rl:user:7:route:POST /v1/bookings/hold/:showtimeId", rateKey("rl", c))
}

func TestTokenBucket(t *testing.T) {
	fixed := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = time.Now })

	cfg := config.RateLimitConfig{Enabled: true, Capacity: 10, RefillTokens: 1, RefillInterval: 6 * time.Second, TTL: 10 * time.Minute, Prefix: "rl"}
	rdb, mock := redismock.NewClientMock()
	key := "rl:user:7:route:POST /v1/bookings/hold/:showtimeId"
	args := []interface{}{fixed.UnixMilli(), 10, 1, int64(6000), int64(600)}
	mock.ExpectEvalSha(limiterScript.Hash(), []string{key}, args...).SetVal([]interface{}{int64(1), int64(9), int64(0)})
	mock.ExpectEvalSha(limiterScript.Hash(), []string{key}, args...).SetVal([]interface{}{int64(0), int64(0), int64(2500)})

	mw := NewTokenBucket(cfg, rdb)
	withUser := func(c echo.Context) { c.Set(CtxUserID, float64(7)) }

	rec, _, reached := run(mw, "", withUser)
	assert.True(t, reached)
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))

	rec, _, reached = run(mw, "", withUser)
	assert.False(t, reached)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("Retry-After"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewAccessTokenRoundTrip(t *testing.T) {
	tok, exp, err := NewAccessToken("s3cret", 42, RoleAdmin, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	_, c, reached := run(JWTAuth("s3cret"), "Bearer "+tok, nil)
	require.True(t, reached)
	assert.Equal(t, float64(42), c.Get(CtxUserID))
	assert.Equal(t, RoleAdmin, c.Get(CtxRole))

	_, _, reached = run(JWTAuth("other"), "Bearer "+tok, nil)
	assert.False(t, reached)
}
