package verifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/config"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/db"
	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
	logger "github.com/dev-mohitbeniwal/echo/gatekeeper/logging"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/metrics"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// TokenClaims is the payload of both access and refresh tokens.
type TokenClaims struct {
	jwt.RegisteredClaims
	Type        string   `json:"typ"`
	SubjectType string   `json:"sub_type,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
	KeyID       string   `json:"key_id,omitempty"`
}

// BearerVerifier validates, issues, refreshes and revokes bearer tokens.
// Revocations and consumed refresh tokens are tracked in the shared store
// by jti until the token would have expired anyway.
type BearerVerifier struct {
	method     jwt.SigningMethod
	signKey    any
	verifyKey  any
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	store      db.Store
	now        func() time.Time
}

func NewBearerVerifier(cfg config.TokenConfiguration, store db.Store) (*BearerVerifier, error) {
	v := &BearerVerifier{
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		store:      store,
		now:        time.Now,
	}

	switch cfg.Algorithm {
	case "HS256", "":
		if cfg.Secret == "" {
			return nil, fmt.Errorf("HS256 requires a token secret")
		}
		v.method = jwt.SigningMethodHS256
		v.signKey = []byte(cfg.Secret)
		v.verifyKey = []byte(cfg.Secret)
	case "RS256":
		privPEM, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		priv, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		pubPEM, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read public key: %w", err)
		}
		pub, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		v.method = jwt.SigningMethodRS256
		v.signKey = priv
		v.verifyKey = pub
	default:
		return nil, fmt.Errorf("unsupported token algorithm %q", cfg.Algorithm)
	}

	return v, nil
}

// WithClock replaces the time source, for tests.
func (v *BearerVerifier) WithClock(now func() time.Time) *BearerVerifier {
	v.now = now
	return v
}

func (v *BearerVerifier) AccessTTL() time.Duration {
	return v.accessTTL
}

func revokedKey(jti string) string {
	return db.Key("revoked", jti)
}

// revokedBeforeKey holds the Unix second up to which every token of a
// subject is revoked.
func revokedBeforeKey(subjectID string) string {
	return db.Key("revoked:subject", subjectID)
}

func refreshUsedKey(jti string) string {
	return db.Key("refresh:used", jti)
}

func (v *BearerVerifier) parse(token, wantType string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return v.verifyKey, nil },
		jwt.WithValidMethods([]string{v.method.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	if claims.Type != wantType {
		return nil, fmt.Errorf("%w: expected %s token, got %q", echo_errors.ErrMalformedToken, wantType, claims.Type)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing sub or jti", echo_errors.ErrMalformedToken)
	}
	return claims, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", echo_errors.ErrExpiredToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", echo_errors.ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", echo_errors.ErrMalformedToken, err)
	}
}

func (v *BearerVerifier) checkRevoked(ctx context.Context, claims *TokenClaims) error {
	_, revoked, err := v.store.Get(ctx, revokedKey(claims.ID))
	if err != nil {
		return fmt.Errorf("revocation check: %w", err)
	}
	if revoked {
		return echo_errors.ErrTokenRevoked
	}

	raw, found, err := v.store.Get(ctx, revokedBeforeKey(claims.Subject))
	if err != nil {
		return fmt.Errorf("revocation check: %w", err)
	}
	if !found {
		return nil
	}
	cutoff, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("revocation check: bad cutoff for %s: %w", claims.Subject, err)
	}
	// Tokens without iat predate any cutoff.
	if claims.IssuedAt == nil || claims.IssuedAt.Unix() <= cutoff {
		return fmt.Errorf("%w: issued before subject-wide revocation", echo_errors.ErrTokenRevoked)
	}
	return nil
}

func identityFromClaims(claims *TokenClaims) *model.Identity {
	identityType := model.IdentityType(claims.SubjectType)
	if identityType == "" {
		identityType = model.IdentityUser
	}
	identity := &model.Identity{
		SubjectID: claims.Subject,
		Type:      identityType,
		Scopes:    claims.Scopes,
		KeyID:     claims.KeyID,
		TokenID:   claims.ID,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity
}

// Verify validates an access token and returns the identity it carries.
func (v *BearerVerifier) Verify(ctx context.Context, token string) (*model.Identity, error) {
	claims, err := v.parse(token, tokenTypeAccess)
	if err != nil {
		return nil, err
	}
	if err := v.checkRevoked(ctx, claims); err != nil {
		return nil, err
	}
	return identityFromClaims(claims), nil
}

func (v *BearerVerifier) sign(identity *model.Identity, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.SubjectID,
			ID:        uuid.New().String(),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type:        tokenType,
		SubjectType: string(identity.Type),
		Scopes:      identity.Scopes,
		KeyID:       identity.KeyID,
	}
	return jwt.NewWithClaims(v.method, claims).SignedString(v.signKey)
}

// Issue mints an access and refresh token pair for identity.
func (v *BearerVerifier) Issue(ctx context.Context, identity *model.Identity) (*model.TokenPair, error) {
	now := v.now()
	access, err := v.sign(identity, tokenTypeAccess, now, v.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	refresh, err := v.sign(identity, tokenTypeRefresh, now, v.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	logger.Info("Issued token pair",
		zap.String("subjectID", identity.SubjectID),
		zap.String("subjectType", string(identity.Type)))

	return &model.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		ExpiresIn:        int64(v.accessTTL.Seconds()),
		RefreshExpiresAt: now.Add(v.refreshTTL).UTC(),
	}, nil
}

// Refresh exchanges a refresh token for a new pair. Each refresh token can
// be consumed once.
func (v *BearerVerifier) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	claims, err := v.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	if err := v.checkRevoked(ctx, claims); err != nil {
		return nil, err
	}

	now := v.now()
	ttl := claims.ExpiresAt.Time.Sub(now)
	if ttl <= 0 {
		return nil, echo_errors.ErrExpiredToken
	}
	marker, err := json.Marshal(model.NonceRecord{KeyID: claims.Subject, Nonce: claims.ID, SeenAt: now})
	if err != nil {
		return nil, fmt.Errorf("failed to encode refresh marker: %w", err)
	}
	first, err := v.store.SetNX(ctx, refreshUsedKey(claims.ID), marker, ttl)
	if err != nil {
		return nil, fmt.Errorf("refresh consumption: %w", err)
	}
	if !first {
		metrics.ReplaysDetectedTotal.Inc()
		logger.Warn("Refresh token reuse detected",
			zap.String("subjectID", claims.Subject),
			zap.String("jti", claims.ID))
		return nil, echo_errors.ErrRefreshTokenReused
	}

	return v.Issue(ctx, identityFromClaims(claims))
}

// Revoke blacklists a valid access or refresh token until it expires.
// Revoking an already expired token is a no-op.
func (v *BearerVerifier) Revoke(ctx context.Context, token string) error {
	claims, err := v.parse(token, tokenTypeAccess)
	if errors.Is(err, echo_errors.ErrMalformedToken) {
		claims, err = v.parse(token, tokenTypeRefresh)
	}
	if errors.Is(err, echo_errors.ErrExpiredToken) {
		return nil
	}
	if err != nil {
		return err
	}

	ttl := claims.ExpiresAt.Time.Sub(v.now())
	if ttl <= 0 {
		return nil
	}
	if err := v.store.Set(ctx, revokedKey(claims.ID), []byte(claims.Subject), ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	logger.Info("Token revoked",
		zap.String("subjectID", claims.Subject),
		zap.String("jti", claims.ID),
		zap.Duration("ttl", ttl))
	return nil
}

// RevokeSubject revokes every access and refresh token issued to subjectID
// up to and including the current second. Tokens minted later are
// unaffected. The cutoff lives as long as the longest token could.
func (v *BearerVerifier) RevokeSubject(ctx context.Context, subjectID string) error {
	cutoff := v.now().Unix()
	ttl := max(v.accessTTL, v.refreshTTL)
	if err := v.store.Set(ctx, revokedBeforeKey(subjectID), []byte(strconv.FormatInt(cutoff, 10)), ttl); err != nil {
		return fmt.Errorf("failed to revoke subject tokens: %w", err)
	}

	logger.Info("All tokens revoked for subject",
		zap.String("subjectID", subjectID),
		zap.Int64("cutoff", cutoff),
		zap.Duration("ttl", ttl))
	return nil
}
