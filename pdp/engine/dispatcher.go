// gatekeeper/pdp/engine/dispatcher.go
package engine

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/audit"
	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
	logger "github.com/dev-mohitbeniwal/echo/gatekeeper/logging"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/metrics"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/guard"
	pdp_model "github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/model"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/ratelimit"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/verifier"
	helper_util "github.com/dev-mohitbeniwal/echo/gatekeeper/util/helper"
)

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*model.Identity, error)
}

type SignedKeyVerifier interface {
	Verify(ctx context.Context, req *pdp_model.AccessRequest, cred model.SignedAPIKey) (*model.Identity, error)
}

type PermissionLookup interface {
	Lookup(ctx context.Context, subjectID, resourceKey string) (*model.PermissionDecision, pdp_model.Source, error)
}

type RateLimiter interface {
	Admit(ctx context.Context, subject string) (*model.RateWindow, error)
}

// AddressBlocklist denies blocked client addresses with ErrIPBlocked.
type AddressBlocklist interface {
	Check(ctx context.Context, ip string) error
}

// DependencyAlerter is told about every failure of an external dependency.
type DependencyAlerter interface {
	Report(component string, err error)
}

type Options struct {
	ExcludedPaths          []string
	CredentialIssuingPaths []string
}

// Dispatcher turns an inbound request into exactly one Decision.
type Dispatcher struct {
	bearer      TokenVerifier
	apiKey      SignedKeyVerifier
	permissions PermissionLookup
	identityRL  RateLimiter
	ipRL        RateLimiter
	audit       audit.Sink
	alerter     DependencyAlerter
	blocklist   AddressBlocklist
	opts        Options
	now         func() time.Time
}

func NewDispatcher(
	bearer TokenVerifier,
	apiKey SignedKeyVerifier,
	permissions PermissionLookup,
	identityRL RateLimiter,
	ipRL RateLimiter,
	sink audit.Sink,
	alerter DependencyAlerter,
	opts Options,
) *Dispatcher {
	return &Dispatcher{
		bearer:      bearer,
		apiKey:      apiKey,
		permissions: permissions,
		identityRL:  identityRL,
		ipRL:        ipRL,
		audit:       sink,
		alerter:     alerter,
		opts:        opts,
		now:         time.Now,
	}
}

func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// WithBlocklist checks every request's client address before anything else.
// A failing blocklist store is reported and then ignored.
func (d *Dispatcher) WithBlocklist(blocklist AddressBlocklist) *Dispatcher {
	d.blocklist = blocklist
	return d
}

// SelectCredential picks the credential scheme from the request headers.
func SelectCredential(headers http.Header) (model.Credential, error) {
	authz := headers.Get("Authorization")

	apiKeyHeaders := []string{verifier.HeaderAppID, verifier.HeaderTimestamp, verifier.HeaderNonce, verifier.HeaderSignature}
	present := 0
	for _, name := range apiKeyHeaders {
		if headers.Get(name) != "" {
			present++
		}
	}

	if authz != "" {
		scheme, token, found := strings.Cut(authz, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			return nil, echo_errors.ErrUnsupportedScheme
		}
		if present > 0 {
			return nil, echo_errors.ErrUnsupportedScheme
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, echo_errors.ErrMalformedToken
		}
		return model.BearerToken(token), nil
	}

	switch present {
	case 0:
		return nil, echo_errors.ErrMissingCredential
	case len(apiKeyHeaders):
		return model.SignedAPIKey{
			KeyID:     headers.Get(verifier.HeaderAppID),
			Timestamp: headers.Get(verifier.HeaderTimestamp),
			Nonce:     headers.Get(verifier.HeaderNonce),
			Signature: headers.Get(verifier.HeaderSignature),
		}, nil
	default:
		return nil, echo_errors.ErrMissingCredential
	}
}

// Authenticate runs the decision pipeline for one request. Every return
// path records metrics and emits one audit event.
func (d *Dispatcher) Authenticate(ctx context.Context, req *pdp_model.AccessRequest) pdp_model.Decision {
	start := time.Now()
	decision := d.decide(ctx, req)
	decision.Latency = time.Since(start)
	d.finish(ctx, req, decision)
	return decision
}

func (d *Dispatcher) decide(ctx context.Context, req *pdp_model.AccessRequest) pdp_model.Decision {
	now := d.now()

	// Patterns below only hold for paths the upstream will not rewrite.
	if err := pdp_model.CheckCanonicalPath(req.Path); err != nil {
		decision := pdp_model.Deny(err)
		decision.Scheme = model.SchemeNone
		return decision
	}

	if d.blocklist != nil {
		if err := d.blocklist.Check(ctx, req.ClientIP); err != nil {
			if errors.Is(err, echo_errors.ErrIPBlocked) {
				decision := pdp_model.Deny(err)
				decision.Scheme = model.SchemeNone
				return decision
			}
			d.reportDependency("ip-blocklist", err)
		}
	}

	if helper_util.MatchAnyPath(d.opts.ExcludedPaths, req.Path) {
		decision := pdp_model.Allow(model.Anonymous(now), pdp_model.SourceExcluded)
		decision.Scheme = model.SchemeNone
		return decision
	}

	if helper_util.MatchAnyPath(d.opts.CredentialIssuingPaths, req.Path) {
		window, err := d.ipRL.Admit(ctx, req.ClientIP)
		if err != nil {
			decision := d.deny(err, "rate-limiter")
			decision.Scheme = model.SchemeNone
			decision.RateWindow = window
			return decision
		}
		decision := pdp_model.Allow(model.Anonymous(now), pdp_model.SourceCredentialIssuing)
		decision.Scheme = model.SchemeNone
		decision.RateWindow = window
		return decision
	}

	cred, err := SelectCredential(req.Headers)
	if err != nil {
		decision := d.denyCredential(ctx, req, err)
		decision.Scheme = model.SchemeNone
		return decision
	}

	var identity *model.Identity
	switch c := cred.(type) {
	case model.BearerToken:
		identity, err = d.bearer.Verify(ctx, string(c))
	case model.SignedAPIKey:
		identity, err = d.apiKey.Verify(ctx, req, c)
	}
	if err != nil {
		var decision pdp_model.Decision
		if echo_errors.IsCredentialError(err) {
			decision = d.denyCredential(ctx, req, err)
		} else {
			decision = d.deny(err, "credential-store")
		}
		decision.Scheme = cred.Scheme()
		return decision
	}

	permission, source, err := d.permissions.Lookup(ctx, identity.SubjectID, req.ResourceKey())
	if err != nil {
		decision := d.deny(err, "permission-lookup")
		decision.Scheme = cred.Scheme()
		decision.Identity = identity
		return decision
	}
	if !permission.Allowed {
		decision := pdp_model.Deny(echo_errors.ErrPermissionDenied)
		decision.Scheme = cred.Scheme()
		decision.Identity = identity
		decision.Source = source
		return decision
	}

	window, err := d.identityRL.Admit(ctx, identity.SubjectID)
	if err != nil {
		decision := d.deny(err, "rate-limiter")
		decision.Scheme = cred.Scheme()
		decision.Identity = identity
		decision.RateWindow = window
		return decision
	}

	decision := pdp_model.Allow(identity, source)
	decision.Scheme = cred.Scheme()
	decision.RateWindow = window
	return decision
}

// denyCredential charges a failed credential attempt to the caller's IP.
// Once that budget is gone the denial becomes RateExceeded.
func (d *Dispatcher) denyCredential(ctx context.Context, req *pdp_model.AccessRequest, cause error) pdp_model.Decision {
	window, err := d.ipRL.Admit(ctx, req.ClientIP)
	if err != nil {
		var exceeded *ratelimit.ExceededError
		if errors.As(err, &exceeded) {
			decision := pdp_model.Deny(err)
			decision.RetryAfter = exceeded.RetryAfter
			decision.RateWindow = window
			return decision
		}
		// Store failures here must not hide the credential error.
		d.reportDependency("rate-limiter", err)
	}
	decision := pdp_model.Deny(cause)
	var locked *guard.LockedError
	if errors.As(cause, &locked) {
		decision.RetryAfter = locked.RetryAfter
	}
	return decision
}

func (d *Dispatcher) deny(err error, component string) pdp_model.Decision {
	decision := pdp_model.Deny(err)

	var exceeded *ratelimit.ExceededError
	if errors.As(err, &exceeded) {
		decision.RetryAfter = exceeded.RetryAfter
		return decision
	}
	if echo_errors.IsDependencyError(err) || decision.Reason == pdp_model.ReasonInternal {
		d.reportDependency(component, err)
	}
	return decision
}

func (d *Dispatcher) reportDependency(component string, err error) {
	metrics.DependencyErrorsTotal.WithLabelValues(component).Inc()
	if d.alerter != nil {
		d.alerter.Report(component, err)
	}
}

func (d *Dispatcher) finish(ctx context.Context, req *pdp_model.AccessRequest, decision pdp_model.Decision) {
	subject := model.AnonymousSubject
	if decision.Identity != nil {
		subject = decision.Identity.SubjectID
	}
	reason := string(decision.Reason)

	metrics.RecordDecision(decision.Outcome(), reason, decision.Scheme, decision.Latency)

	fields := []zap.Field{
		zap.String("subject", subject),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.String("outcome", decision.Outcome()),
		zap.String("scheme", decision.Scheme),
		zap.String("client_ip", req.ClientIP),
		zap.Duration("duration", decision.Latency),
	}
	if decision.Allowed {
		logger.Debug("Request allowed", append(fields, zap.String("source", string(decision.Source)))...)
	} else {
		logger.Info("Request denied", append(fields, zap.String("reason", reason))...)
	}

	if d.audit == nil {
		return
	}
	d.audit.Record(ctx, audit.AuditLog{
		ID:         uuid.New().String(),
		Timestamp:  d.now().UTC(),
		SubjectID:  subject,
		Action:     audit.ActionAuthenticate,
		Method:     req.Method,
		Path:       req.Path,
		Outcome:    decision.Outcome(),
		ReasonCode: reason,
		Scheme:     decision.Scheme,
		Source:     string(decision.Source),
		ClientIP:   req.ClientIP,
		LatencyMs:  float64(decision.Latency.Microseconds()) / 1000,
	})
}
