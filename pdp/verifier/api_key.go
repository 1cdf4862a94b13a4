package verifier

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
	logger "github.com/dev-mohitbeniwal/echo/gatekeeper/logging"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/metrics"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
	pdp_model "github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/model"
)

const (
	HeaderAppID     = "X-App-Id"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"
	HeaderSignature = "X-Signature"
)

// EmptyBodyHash is the hex sha256 of a zero-length body.
var EmptyBodyHash = HashBody(nil)

func HashBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// CanonicalString is what a signed request commits to.
func CanonicalString(method, path, timestamp, nonce, bodyHash string) string {
	if bodyHash == "" {
		bodyHash = EmptyBodyHash
	}
	return strings.Join([]string{strings.ToUpper(method), path, timestamp, nonce, bodyHash}, "\n")
}

// SignRequest returns base64(HMAC-SHA256(secret, canonical string)).
func SignRequest(secret, method, path, timestamp, nonce, bodyHash string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(CanonicalString(method, path, timestamp, nonce, bodyHash)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// checkTimestamp accepts Unix-second timestamps within skew of now. The
// comparison stays in int64 seconds so extreme values cannot overflow.
func checkTimestamp(raw string, now time.Time, skew time.Duration) error {
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: unparsable timestamp %q", echo_errors.ErrStaleTimestamp, raw)
	}
	nowSec := now.Unix()
	skewSec := int64(skew / time.Second)
	if ts < nowSec-skewSec || ts > nowSec+skewSec {
		return fmt.Errorf("%w: %d is outside %d±%ds", echo_errors.ErrStaleTimestamp, ts, nowSec, skewSec)
	}
	return nil
}

type SecretSource interface {
	GetSecretForKey(ctx context.Context, keyID string) (*model.APIKey, error)
}

// FailureLockout locks keys that keep failing verification.
type FailureLockout interface {
	Check(ctx context.Context, subject string) error
	RecordFailure(ctx context.Context, subject, clientIP string) (bool, error)
}

// APIKeyVerifier checks HMAC-signed requests. Steps run in a fixed order:
// key lookup, lockout, timestamp skew, signature, then nonce replay.
type APIKeyVerifier struct {
	secrets SecretSource
	guard   *ReplayGuard
	lockout FailureLockout
	skew    time.Duration
	now     func() time.Time
}

func NewAPIKeyVerifier(secrets SecretSource, guard *ReplayGuard, skew time.Duration) *APIKeyVerifier {
	return &APIKeyVerifier{secrets: secrets, guard: guard, skew: skew, now: time.Now}
}

// WithClock replaces the time source of the verifier and its replay guard.
func (v *APIKeyVerifier) WithClock(now func() time.Time) *APIKeyVerifier {
	v.now = now
	v.guard.now = now
	return v
}

// WithLockout counts failed signatures per key. The lockout is advisory: if
// its store fails, verification carries on without it.
func (v *APIKeyVerifier) WithLockout(lockout FailureLockout) *APIKeyVerifier {
	v.lockout = lockout
	return v
}

func (v *APIKeyVerifier) Verify(ctx context.Context, req *pdp_model.AccessRequest, cred model.SignedAPIKey) (*model.Identity, error) {
	key, err := v.secrets.GetSecretForKey(ctx, cred.KeyID)
	if err != nil {
		return nil, fmt.Errorf("api key lookup: %w", err)
	}
	now := v.now()
	if key == nil || !key.Usable(now) {
		logger.Warn("Unknown or unusable api key", zap.String("keyID", cred.KeyID))
		return nil, echo_errors.ErrUnknownKey
	}

	if v.lockout != nil {
		if err := v.lockout.Check(ctx, key.KeyID); err != nil {
			if errors.Is(err, echo_errors.ErrAccountLocked) {
				return nil, err
			}
			v.lockoutUnavailable(err, key.KeyID)
		}
	}

	identity, err := v.verifySignature(ctx, req, cred, key, now)
	if err != nil {
		if v.lockout != nil && echo_errors.IsCredentialError(err) {
			if _, lockErr := v.lockout.RecordFailure(ctx, key.KeyID, req.ClientIP); lockErr != nil {
				v.lockoutUnavailable(lockErr, key.KeyID)
			}
		}
		return nil, err
	}
	return identity, nil
}

func (v *APIKeyVerifier) verifySignature(ctx context.Context, req *pdp_model.AccessRequest, cred model.SignedAPIKey, key *model.APIKey, now time.Time) (*model.Identity, error) {
	if err := checkTimestamp(cred.Timestamp, now, v.skew); err != nil {
		return nil, err
	}

	provided, err := base64.StdEncoding.DecodeString(cred.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not base64", echo_errors.ErrInvalidSignature)
	}
	mac := hmac.New(sha256.New, []byte(key.Secret))
	mac.Write([]byte(CanonicalString(req.Method, req.Path, cred.Timestamp, cred.Nonce, req.BodyHash)))
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return nil, echo_errors.ErrInvalidSignature
	}

	if err := v.guard.CheckAndRecord(ctx, cred.KeyID, cred.Nonce); err != nil {
		return nil, err
	}

	subject := key.SubjectID
	if subject == "" {
		subject = key.KeyID
	}
	identity := &model.Identity{
		SubjectID: subject,
		Type:      model.IdentityAPIKey,
		Scopes:    key.Scopes,
		IssuedAt:  now,
		KeyID:     key.KeyID,
	}
	if key.ExpiresAt != nil {
		identity.ExpiresAt = *key.ExpiresAt
	}
	return identity, nil
}

func (v *APIKeyVerifier) lockoutUnavailable(err error, keyID string) {
	metrics.DependencyErrorsTotal.WithLabelValues("lockout").Inc()
	logger.Error("Lockout store unavailable, continuing without it", zap.Error(err), zap.String("keyID", keyID))
}
