package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/config"
	"github.com/spec-kit/user-service/internal/crypto"
	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/events"
	"github.com/spec-kit/user-service/pkg/util"
)

type authFixture struct {
	svc    *AuthService
	guard  *BruteForceService
	repo   *memUserRepo
	tokens *auth.TokenManager
	cipher *crypto.Cipher
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	repo := newMemUserRepo()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	repo.add(&domain.User{Username: "alice", Email: "alice@example.com", PasswordHash: string(hash), Enabled: true})

	cipher, err := crypto.NewCipher("pw", "salt")
	require.NoError(t, err)
	tokens := auth.NewTokenManager("service-test-secret")
	logger := zap.NewNop()

	dispatcher := events.NewInMemoryDispatcher(logger)
	guard := NewBruteForceService(repo, nil, logger, 5)
	guard.RegisterHandlers(dispatcher)

	cfg := config.SecurityConfig{AccessTokenTTLMinutes: 30, RefreshTokenTTLDays: 7}
	svc := NewAuthService(cfg, AuthDependencies{
		UserRepo:   repo,
		Tokens:     tokens,
		Cipher:     cipher,
		Cookies:    auth.NewCookieBuilder("development"),
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	return &authFixture{svc: svc, guard: guard, repo: repo, tokens: tokens, cipher: cipher}
}

func TestLoginIssuesEncryptedTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAuthFixture(t)

	result, err := f.svc.Login(ctx, "alice", "correct horse", "")
	require.NoError(t, err)

	// The body token is encrypted: it only verifies after decryption.
	assert.False(t, f.tokens.Verify(result.AccessToken))
	accessToken, err := f.cipher.Decrypt(result.AccessToken)
	require.NoError(t, err)
	assert.True(t, f.tokens.Verify(accessToken))

	subject, err := f.tokens.Subject(accessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)

	require.NotNil(t, result.RefreshCookie)
	assert.Equal(t, "refreshToken", result.RefreshCookie.Name)
	assert.Equal(t, 604800, result.RefreshCookie.MaxAge)
	assert.True(t, result.RefreshCookie.HTTPOnly)

	refreshToken, err := f.cipher.Decrypt(result.RefreshCookie.Value)
	require.NoError(t, err)
	assert.True(t, f.tokens.Verify(refreshToken))
}

func TestLoginReusesValidRefreshToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAuthFixture(t)

	first, err := f.svc.Login(ctx, "alice", "correct horse", "")
	require.NoError(t, err)
	require.NotNil(t, first.RefreshCookie)

	second, err := f.svc.Login(ctx, "alice", "correct horse", first.RefreshCookie.Value)
	require.NoError(t, err)
	assert.Nil(t, second.RefreshCookie, "a still-valid refresh token is not rotated at login")
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAuthFixture(t)
	f.repo.add(&domain.User{Username: "carol", PasswordHash: "x", Enabled: false})
	f.repo.add(&domain.User{Username: "dave", PasswordHash: "x", Enabled: true, Locked: true})

	var messages []string
	for _, attempt := range [][2]string{
		{"alice", "wrong password"},
		{"nobody", "whatever"},
		{"carol", "whatever"},
		{"dave", "whatever"},
	} {
		result, err := f.svc.Login(ctx, attempt[0], attempt[1], "")
		require.Error(t, err)
		assert.Nil(t, result, "no token material on failure")

		domainErr := util.ToDomainError(err)
		assert.Equal(t, "UNAUTHORIZED", domainErr.Code)
		messages = append(messages, domainErr.Message)
	}
	for _, message := range messages[1:] {
		assert.Equal(t, messages[0], message, "failure responses must be identical")
	}
}

func TestLoginFailureFeedsGuard(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAuthFixture(t)

	for i := 0; i < 3; i++ {
		_, err := f.svc.Login(ctx, "alice", "wrong", "")
		require.Error(t, err)
	}
	user, err := f.repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, user.FailedLoginAttempts)

	_, err = f.svc.Login(ctx, "alice", "correct horse", "")
	require.NoError(t, err)
	user, err = f.repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, user.FailedLoginAttempts, "successful login resets the counter")
}

func TestRepeatedFailuresLockAndBlockLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAuthFixture(t)

	for i := 0; i < 6; i++ {
		_, err := f.svc.Login(ctx, "alice", "wrong", "")
		require.Error(t, err)
	}
	user, err := f.repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, user.Locked)

	// Correct credentials no longer authenticate a locked account.
	_, err = f.svc.Login(ctx, "alice", "correct horse", "")
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", util.ToDomainError(err).Code)
}

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAuthFixture(t)

	login, err := f.svc.Login(ctx, "alice", "correct horse", "")
	require.NoError(t, err)

	// Advance the clock so the re-issued token carries different claims.
	f.svc.now = func() time.Time { return time.Now().Add(time.Minute) }

	refreshed, err := f.svc.Refresh(ctx, login.RefreshCookie.Value)
	require.NoError(t, err)

	previousToken, err := f.cipher.Decrypt(login.AccessToken)
	require.NoError(t, err)
	accessToken, err := f.cipher.Decrypt(refreshed.AccessToken)
	require.NoError(t, err)

	assert.NotEqual(t, previousToken, accessToken, "refresh must mint a new access token")
	assert.True(t, f.tokens.Verify(accessToken))

	subject, err := f.tokens.Subject(accessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
}

func TestRefreshRejectsInvalidCookie(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAuthFixture(t)

	for _, cookie := range []string{"", "garbage", "bm90IGEgdG9rZW4="} {
		_, err := f.svc.Refresh(ctx, cookie)
		require.Error(t, err)
		assert.Equal(t, "INVALID_TOKEN", util.ToDomainError(err).Code)
	}
}

func TestRefreshRevalidatesAccountStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAuthFixture(t)

	login, err := f.svc.Login(ctx, "alice", "correct horse", "")
	require.NoError(t, err)

	require.NoError(t, f.repo.SetEnabled(ctx, "alice", false))

	_, err = f.svc.Refresh(ctx, login.RefreshCookie.Value)
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", util.ToDomainError(err).Code)
}

func TestLogoutProducesDeletionCookie(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)

	cookie, err := f.svc.Logout()
	require.NoError(t, err)
	assert.Equal(t, "refreshToken", cookie.Name)
	assert.Equal(t, "", cookie.Value)
	assert.Equal(t, 0, cookie.MaxAge)

	// Idempotent.
	again, err := f.svc.Logout()
	require.NoError(t, err)
	assert.Equal(t, cookie.Name, again.Name)
	assert.Equal(t, cookie.Value, again.Value)
}
