package jwtware_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ia-nocode/user-roles-v4/middleware/jwtware"
)

var signingKey = []byte("test-secret")

type hmacValidator struct {
	revoked map[string]bool
}

func (v hmacValidator) Validate(tokenString string) (jwt.Claims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if v.revoked[claims.ID] {
		return nil, errors.New("session revoked")
	}
	return claims, nil
}

// By default we set an expiration time 1 hour from now
func generateToken(t *testing.T, id string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        id,
		Subject:   "12345",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString(signingKey)
	require.NoError(t, err)
	return signed
}

func nextRecorder(called *bool) router.HandlerFunc {
	return func(ctx router.Context) error {
		*called = true
		return nil
	}
}

func TestJWTWareHeaderExtraction(t *testing.T) {
	mw := jwtware.New(jwtware.Config{TokenValidator: hmacValidator{}})

	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer " + generateToken(t, "sid-1")
	ctx.On("Locals", "user", mock.Anything).Return(nil)

	called := false
	require.NoError(t, mw(nextRecorder(&called))(ctx))
	assert.True(t, called)

	claims, ok := ctx.LocalsMock["user"].(*jwt.RegisteredClaims)
	require.True(t, ok)
	assert.Equal(t, "sid-1", claims.ID)
}

func TestJWTWareMissingToken(t *testing.T) {
	mw := jwtware.New(jwtware.Config{TokenValidator: hmacValidator{}})

	ctx := router.NewMockContext()
	called := false
	require.NoError(t, mw(nextRecorder(&called))(ctx))
	assert.False(t, called)
	assert.Equal(t, router.StatusBadRequest, ctx.StatusCodeM)

	ctx = router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Basic dXNlcjpwYXNz"
	require.NoError(t, mw(nextRecorder(&called))(ctx))
	assert.False(t, called)
	assert.Equal(t, router.StatusBadRequest, ctx.StatusCodeM)
}

func TestJWTWareRejectedToken(t *testing.T) {
	mw := jwtware.New(jwtware.Config{TokenValidator: hmacValidator{revoked: map[string]bool{"sid-2": true}}})

	for name, token := range map[string]string{
		"garbage": "not-a-token",
		"revoked": generateToken(t, "sid-2"),
	} {
		t.Run(name, func(t *testing.T) {
			ctx := router.NewMockContext()
			ctx.HeadersM["Authorization"] = "Bearer " + token

			called := false
			require.NoError(t, mw(nextRecorder(&called))(ctx))
			assert.False(t, called)
			assert.Equal(t, router.StatusUnauthorized, ctx.StatusCodeM)
		})
	}
}

func TestJWTWareCookieLookup(t *testing.T) {
	mw := jwtware.New(jwtware.Config{
		TokenValidator: hmacValidator{},
		TokenLookup:    "header:Authorization,cookie:admin_session",
		ContextKey:     "session",
	})

	ctx := router.NewMockContext()
	ctx.CookiesM["admin_session"] = generateToken(t, "sid-3")
	ctx.On("Locals", "session", mock.Anything).Return(nil)

	called := false
	require.NoError(t, mw(nextRecorder(&called))(ctx))
	assert.True(t, called)
	assert.NotNil(t, ctx.LocalsMock["session"])
}

func TestJWTWareCustomErrorHandlerAndFilter(t *testing.T) {
	var seen error
	mw := jwtware.New(jwtware.Config{
		TokenValidator: hmacValidator{},
		Filter: func(ctx router.Context) bool {
			return ctx.Header("X-Internal") == "1"
		},
		ErrorHandler: func(ctx router.Context, err error) error {
			seen = err
			return ctx.JSON(router.StatusUnauthorized, map[string]string{"error": err.Error()})
		},
	})

	ctx := router.NewMockContext()
	called := false
	require.NoError(t, mw(nextRecorder(&called))(ctx))
	assert.False(t, called)
	assert.ErrorIs(t, seen, jwtware.ErrJWTMissingOrMalformed)

	ctx = router.NewMockContext()
	ctx.HeadersM["X-Internal"] = "1"
	require.NoError(t, mw(nextRecorder(&called))(ctx))
	assert.True(t, called)
}

func TestGetExtractors(t *testing.T) {
	assert.Len(t, jwtware.GetExtractors("header:Authorization,cookie:jwt,query:token"), 3)
	assert.Len(t, jwtware.GetExtractors("header:Authorization,bogus,param:id"), 1)
}

func TestGetDefaultConfigRequiresValidator(t *testing.T) {
	assert.Panics(t, func() { jwtware.GetDefaultConfig() })

	cfg := jwtware.GetDefaultConfig(jwtware.Config{TokenValidator: hmacValidator{}})
	assert.Equal(t, "user", cfg.ContextKey)
	assert.Equal(t, "Bearer", cfg.AuthScheme)
	assert.Equal(t, "header:Authorization", cfg.TokenLookup)
}
