package service_test

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	testify_mock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/audit"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/config"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/db"
	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/guard"
	pdp_model "github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/model"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/verifier"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/service"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/test/mock"
)

func newTokenService(t *testing.T) (*service.TokenService, *verifier.BearerVerifier, *mock.RecordingSink) {
	t.Helper()
	store := db.NewMemoryStore()
	identities := &mock.MockIdentityStore{}
	identities.On("GetSecretForKey", testify_mock.Anything, "K1").
		Return(&model.APIKey{KeyID: "K1", Secret: "s3cret", SubjectID: "svc-1", Scopes: []string{"invoices:write"}, Status: model.APIKeyActive}, nil)

	bearer, err := verifier.NewBearerVerifier(config.TokenConfiguration{
		Algorithm:  "HS256",
		Secret:     "0123456789abcdef0123456789abcdef",
		Issuer:     "gatekeeper-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
	}, store)
	require.NoError(t, err)
	keys := verifier.NewAPIKeyVerifier(identities, verifier.NewReplayGuard(store, 5*time.Minute), 5*time.Minute).
		WithLockout(guard.NewLockout(store, 2, time.Minute))

	sink := &mock.RecordingSink{}
	return service.NewTokenService(bearer, keys, sink), bearer, sink
}

func signedTokenRequest(nonce string) *pdp_model.AccessRequest {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	h := http.Header{}
	h.Set(verifier.HeaderAppID, "K1")
	h.Set(verifier.HeaderTimestamp, ts)
	h.Set(verifier.HeaderNonce, nonce)
	h.Set(verifier.HeaderSignature, verifier.SignRequest("s3cret", "POST", "/api/v1/auth/token", ts, nonce, verifier.EmptyBodyHash))
	return &pdp_model.AccessRequest{Method: "POST", Path: "/api/v1/auth/token", Headers: h, BodyHash: verifier.EmptyBodyHash, ClientIP: "10.1.1.1"}
}

func TestTokenService_ExchangeIssuesServiceToken(t *testing.T) {
	svc, bearer, sink := newTokenService(t)
	ctx := context.Background()

	pair, err := svc.Exchange(ctx, signedTokenRequest("n-1"))
	require.NoError(t, err)

	identity, err := bearer.Verify(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "svc-1", identity.SubjectID)
	assert.Equal(t, model.IdentityService, identity.Type)
	assert.Equal(t, "K1", identity.KeyID)
	assert.Equal(t, []string{"invoices:write"}, identity.Scopes)
	assert.Equal(t, "allowed", sink.Last().Outcome)
}

func TestTokenService_ExchangeRejectsReplayAndBearer(t *testing.T) {
	svc, _, sink := newTokenService(t)
	ctx := context.Background()

	_, err := svc.Exchange(ctx, signedTokenRequest("n-2"))
	require.NoError(t, err)
	_, err = svc.Exchange(ctx, signedTokenRequest("n-2"))
	assert.ErrorIs(t, err, echo_errors.ErrReplayDetected)
	assert.Equal(t, "ReplayDetected", sink.Last().ReasonCode)

	h := http.Header{}
	h.Set("Authorization", "Bearer abc")
	_, err = svc.Exchange(ctx, &pdp_model.AccessRequest{Method: "POST", Path: "/api/v1/auth/token", Headers: h})
	assert.ErrorIs(t, err, echo_errors.ErrUnsupportedScheme)
}

func TestTokenService_RefreshIsSingleUse(t *testing.T) {
	svc, _, _ := newTokenService(t)
	ctx := context.Background()

	pair, err := svc.Exchange(ctx, signedTokenRequest("n-3"))
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, pair.RefreshToken, "10.1.1.1")
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, next.AccessToken)

	_, err = svc.Refresh(ctx, pair.RefreshToken, "10.1.1.1")
	assert.ErrorIs(t, err, echo_errors.ErrRefreshTokenReused)
}

func TestTokenService_Revoke(t *testing.T) {
	svc, bearer, sink := newTokenService(t)
	ctx := context.Background()

	pair, err := svc.Exchange(ctx, signedTokenRequest("n-4"))
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, pair.AccessToken, &model.Identity{SubjectID: "admin"}))
	_, err = bearer.Verify(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, echo_errors.ErrTokenRevoked)
	assert.Equal(t, "admin", sink.Last().SubjectID)
}

func TestTokenService_RevokeAll(t *testing.T) {
	svc, bearer, sink := newTokenService(t)
	ctx := context.Background()

	first, err := svc.Exchange(ctx, signedTokenRequest("n-5"))
	require.NoError(t, err)
	second, err := svc.Exchange(ctx, signedTokenRequest("n-6"))
	require.NoError(t, err)
	other, err := bearer.Issue(ctx, &model.Identity{SubjectID: "svc-2", Type: model.IdentityService})
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAll(ctx, &model.Identity{SubjectID: "svc-1"}))
	assert.Equal(t, audit.ActionRevokeAll, sink.Last().Action)
	assert.Equal(t, "svc-1", sink.Last().SubjectID)

	for _, token := range []string{first.AccessToken, second.AccessToken} {
		_, err = bearer.Verify(ctx, token)
		assert.ErrorIs(t, err, echo_errors.ErrTokenRevoked)
	}
	_, err = svc.Refresh(ctx, first.RefreshToken, "10.1.1.1")
	assert.ErrorIs(t, err, echo_errors.ErrTokenRevoked)

	_, err = bearer.Verify(ctx, other.AccessToken)
	assert.NoError(t, err, "other subjects keep their tokens")

	assert.ErrorIs(t, svc.RevokeAll(ctx, nil), echo_errors.ErrUnauthorized)
	assert.ErrorIs(t, svc.RevokeAll(ctx, model.Anonymous(time.Now())), echo_errors.ErrUnauthorized)
}

func TestTokenService_ExchangeLocksKeyAfterBadSignatures(t *testing.T) {
	svc, _, sink := newTokenService(t)
	ctx := context.Background()

	for _, nonce := range []string{"bad-1", "bad-2"} {
		req := signedTokenRequest(nonce)
		req.Headers.Set(verifier.HeaderSignature, verifier.SignRequest("guess", "POST", "/api/v1/auth/token", req.Headers.Get(verifier.HeaderTimestamp), nonce, verifier.EmptyBodyHash))
		_, err := svc.Exchange(ctx, req)
		require.ErrorIs(t, err, echo_errors.ErrInvalidSignature)
	}

	_, err := svc.Exchange(ctx, signedTokenRequest("good-1"))
	assert.ErrorIs(t, err, echo_errors.ErrAccountLocked)
	assert.Equal(t, "AccountLocked", sink.Last().ReasonCode)
}
