package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"shop/internal/logger"
	"shop/internal/middleware"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// =====================
// レスポンス確認用
// =====================

type mwErrorResponse struct {
	Error string `json:"error"`
}

type mwOKResponse struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

const secret = "test-secret"

// =====================
// helper
// =====================

func mustMakeJWT(t *testing.T, key string, claims jwt.MapClaims, method jwt.SigningMethod) string {
	t.Helper()

	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func userClaims(sub any, role string) jwt.MapClaims {
	c := jwt.MapClaims{"sub": sub, "iat": 1, "exp": 9999999999}
	if role != "" {
		c["role"] = role
	}
	return c
}

func runRequest(t *testing.T, e *echo.Echo, method, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decodeMWError(t *testing.T, rec *httptest.ResponseRecorder) mwErrorResponse {
	t.Helper()
	var r mwErrorResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

func protectedEcho(mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.GET("/protected", func(c echo.Context) error {
		userID, _ := c.Get(middleware.CtxUserIDKey).(int64)
		role, _ := c.Get(middleware.CtxUserRoleKey).(string)
		return c.JSON(http.StatusOK, mwOKResponse{UserID: userID, Role: role})
	}, mw...)
	return e
}

// =====================
// AuthJWT
// =====================

func TestAuthJWT_Unauthorized(t *testing.T) {
	e := protectedEcho(middleware.AuthJWT(secret))

	cases := map[string]map[string]string{
		"no header":     nil,
		"bad scheme":    {"Authorization": "Token abc.def.ghi"},
		"empty token":   {"Authorization": "Bearer "},
		"bad signature": bearer(mustMakeJWT(t, "wrong-secret", userClaims(1, "USER"), jwt.SigningMethodHS256)),
		"wrong alg":     bearer(mustMakeJWT(t, secret, userClaims(1, "USER"), jwt.SigningMethodHS512)),
		"expired":       bearer(mustMakeJWT(t, secret, jwt.MapClaims{"sub": 1, "exp": 1}, jwt.SigningMethodHS256)),
		"no sub":        bearer(mustMakeJWT(t, secret, jwt.MapClaims{"exp": 9999999999}, jwt.SigningMethodHS256)),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec := runRequest(t, e, http.MethodGet, "/protected", header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "unauthorized", decodeMWError(t, rec).Error)
		})
	}
}

// 正常：ctxに値が入る（roleが無ければUSER、subは文字列でもよい）
func TestAuthJWT_Success_SetsContext(t *testing.T) {
	e := protectedEcho(middleware.AuthJWT(secret))

	rec := runRequest(t, e, http.MethodGet, "/protected", bearer(mustMakeJWT(t, secret, userClaims(123, ""), jwt.SigningMethodHS256)))
	require.Equal(t, http.StatusOK, rec.Code)

	var body mwOKResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, int64(123), body.UserID)
	assert.Equal(t, middleware.RoleUser, body.Role)

	rec = runRequest(t, e, http.MethodGet, "/protected", bearer(mustMakeJWT(t, secret, userClaims("77", "ADMIN"), jwt.SigningMethodHS256)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, int64(77), body.UserID)
	assert.Equal(t, middleware.RoleAdmin, body.Role)
}

// =====================
// AdminRoleGuard
// =====================

func TestAdminRoleGuard(t *testing.T) {
	e := protectedEcho(middleware.AuthJWT(secret), middleware.AdminRoleGuard())

	rec := runRequest(t, e, http.MethodGet, "/protected", bearer(mustMakeJWT(t, secret, userClaims(1, "USER"), jwt.SigningMethodHS256)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "admin only", decodeMWError(t, rec).Error)

	rec = runRequest(t, e, http.MethodGet, "/protected", bearer(mustMakeJWT(t, secret, userClaims(1, "ADMIN"), jwt.SigningMethodHS256)))
	assert.Equal(t, http.StatusOK, rec.Code)

	//AuthJWT無しでGuardだけ => 401
	e = protectedEcho(middleware.AdminRoleGuard())
	rec = runRequest(t, e, http.MethodGet, "/protected", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =====================
// CallbackSecret
// =====================

func TestCallbackSecret(t *testing.T) {
	e := protectedEcho(middleware.CallbackSecret("cb-secret"))

	rec := runRequest(t, e, http.MethodGet, "/protected", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = runRequest(t, e, http.MethodGet, "/protected", map[string]string{middleware.CallbackSecretHeader: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = runRequest(t, e, http.MethodGet, "/protected", map[string]string{middleware.CallbackSecretHeader: "cb-secret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	//シークレット未設定なら全部断る
	e = protectedEcho(middleware.CallbackSecret(""))
	rec = runRequest(t, e, http.MethodGet, "/protected", map[string]string{middleware.CallbackSecretHeader: ""})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =====================
// RequestLogger
// =====================

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	e := echo.New()
	e.Use(middleware.RequestLogger(zap.New(core)))
	e.GET("/ok", func(c echo.Context) error {
		//handlerからもrequest_id付きのloggerが取れる
		logger.FromContext(c.Request().Context()).Info("inside")
		return c.String(http.StatusOK, logger.RequestID(c.Request().Context()))
	})
	e.GET("/missing", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "nope")
	})

	rec := runRequest(t, e, http.MethodGet, "/ok", map[string]string{middleware.RequestIDHeader: "req-1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", rec.Body.String())
	assert.Equal(t, "req-1", rec.Header().Get(middleware.RequestIDHeader))

	rec = runRequest(t, e, http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	inside := logs.FilterMessage("inside").All()
	require.Len(t, inside, 1)
	assert.Equal(t, "req-1", inside[0].ContextMap()["request_id"])

	access := logs.FilterMessage("request").All()
	require.Len(t, access, 2)
	assert.Equal(t, zapcore.InfoLevel, access[0].Level)
	assert.Equal(t, zapcore.WarnLevel, access[1].Level)
}
