package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"ecovolt/internal/auth/repository"
	"ecovolt/pkg/config"
	apperrors "ecovolt/pkg/errors"
	"ecovolt/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-with-enough-entropy-0123456789"

func newTestService(t *testing.T) *authService {
	t.Helper()
	cfg := &config.Config{
		JWTSecret: testSecret,
		JWTTTL:    time.Hour,
		Log:       logger.Discard(),
	}
	return newAuthService(repository.NewMemoryUserRepository(), cfg, bcrypt.MinCost)
}

// ────────────────────────────────────────────────
// Register / Login
// ────────────────────────────────────────────────

func TestRegister_IssuesTokenForNewUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, "rider@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.NotEmpty(t, resp.User.ID)
	assert.Equal(t, "rider@example.com", resp.User.Email)

	principal, err := svc.ValidateToken(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, principal.UserID)
	assert.Equal(t, "rider@example.com", principal.Email)
}

func TestRegister_DuplicateEmailIsBadRequest(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "rider@example.com", "secret1")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "rider@example.com", "another")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperrors.AsAppError(err).StatusCode())
}

func TestRegister_StoresHashNotPassword(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, "rider@example.com", "secret1")
	require.NoError(t, err)

	user, err := svc.Profile(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")))
}

func TestLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "rider@example.com", "secret1")
	require.NoError(t, err)

	t.Run("correct credentials", func(t *testing.T) {
		resp, err := svc.Login(ctx, "rider@example.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, registered.User.ID, resp.User.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "rider@example.com", "nope-nope")
		assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login(ctx, "ghost@example.com", "secret1")
		assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	})
}

// ────────────────────────────────────────────────
// ValidateToken
// ────────────────────────────────────────────────

func TestValidateToken_RejectsExpired(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, "rider@example.com", "secret1")
	require.NoError(t, err)

	svc.tokens.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.ValidateToken(ctx, resp.Token)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestValidateToken_RejectsForeignTokens(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	claims := Claims{
		Email: "x@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}

	wrongKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	otherIssuer := claims
	otherIssuer.Issuer = "someone-else"
	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, otherIssuer).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExpiry := claims
	noExpiry.ExpiresAt = nil
	missingExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, noExpiry).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := map[string]string{
		"wrong key":      wrongKey,
		"wrong alg":      wrongAlg,
		"alg none":       unsigned,
		"wrong issuer":   wrongIssuer,
		"missing expiry": missingExp,
		"garbage":        "not.a.token",
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(ctx, token)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
		})
	}
}

func TestProfile_UnknownUser(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Profile(context.Background(), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
