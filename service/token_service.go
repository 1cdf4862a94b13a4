// gatekeeper/service/token_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/audit"
	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
	logger "github.com/dev-mohitbeniwal/echo/gatekeeper/logging"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/engine"
	pdp_model "github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/model"
)

type ITokenService interface {
	Exchange(ctx context.Context, req *pdp_model.AccessRequest) (*model.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string, clientIP string) (*model.TokenPair, error)
	Revoke(ctx context.Context, token string, caller *model.Identity) error
	RevokeAll(ctx context.Context, caller *model.Identity) error
}

type TokenIssuer interface {
	Issue(ctx context.Context, identity *model.Identity) (*model.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error)
	Revoke(ctx context.Context, token string) error
	RevokeSubject(ctx context.Context, subjectID string) error
}

// TokenService trades signed API-key requests for bearer tokens.
type TokenService struct {
	issuer   TokenIssuer
	verifier engine.SignedKeyVerifier
	audit    audit.Sink
}

var _ ITokenService = &TokenService{}

func NewTokenService(issuer TokenIssuer, verifier engine.SignedKeyVerifier, sink audit.Sink) *TokenService {
	return &TokenService{issuer: issuer, verifier: verifier, audit: sink}
}

// Exchange verifies a signed API-key request and mints a token pair for the
// key's owner, carrying the key's scopes.
func (s *TokenService) Exchange(ctx context.Context, req *pdp_model.AccessRequest) (*model.TokenPair, error) {
	cred, err := engine.SelectCredential(req.Headers)
	if err != nil {
		s.record(ctx, audit.ActionIssueToken, model.AnonymousSubject, req.ClientIP, err)
		return nil, err
	}
	signed, ok := cred.(model.SignedAPIKey)
	if !ok {
		err := fmt.Errorf("%w: token exchange requires a signed api key", echo_errors.ErrUnsupportedScheme)
		s.record(ctx, audit.ActionIssueToken, model.AnonymousSubject, req.ClientIP, err)
		return nil, err
	}

	identity, err := s.verifier.Verify(ctx, req, signed)
	if err != nil {
		logger.Warn("Token exchange rejected", zap.Error(err), zap.String("keyID", signed.KeyID))
		s.record(ctx, audit.ActionIssueToken, model.AnonymousSubject, req.ClientIP, err)
		return nil, err
	}

	tokenIdentity := *identity
	tokenIdentity.Type = model.IdentityService
	pair, err := s.issuer.Issue(ctx, &tokenIdentity)
	s.record(ctx, audit.ActionIssueToken, identity.SubjectID, req.ClientIP, err)
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *TokenService) Refresh(ctx context.Context, refreshToken string, clientIP string) (*model.TokenPair, error) {
	pair, err := s.issuer.Refresh(ctx, refreshToken)
	s.record(ctx, audit.ActionRefreshToken, model.AnonymousSubject, clientIP, err)
	if err != nil {
		if errors.Is(err, echo_errors.ErrReplayDetected) {
			logger.Warn("Refresh token replay", zap.String("clientIP", clientIP))
		}
		return nil, err
	}
	return pair, nil
}

func (s *TokenService) Revoke(ctx context.Context, token string, caller *model.Identity) error {
	subject := model.AnonymousSubject
	if caller != nil {
		subject = caller.SubjectID
	}
	err := s.issuer.Revoke(ctx, token)
	s.record(ctx, audit.ActionRevokeToken, subject, "", err)
	return err
}

// RevokeAll signs the caller out everywhere: every token issued to the
// caller's subject up to now stops verifying.
func (s *TokenService) RevokeAll(ctx context.Context, caller *model.Identity) error {
	if caller == nil || caller.SubjectID == "" || caller.SubjectID == model.AnonymousSubject {
		return echo_errors.ErrUnauthorized
	}
	err := s.issuer.RevokeSubject(ctx, caller.SubjectID)
	s.record(ctx, audit.ActionRevokeAll, caller.SubjectID, "", err)
	if err != nil {
		logger.Error("Failed to revoke all tokens", zap.Error(err), zap.String("subjectID", caller.SubjectID))
		return err
	}
	return nil
}

func (s *TokenService) record(ctx context.Context, action, subjectID, clientIP string, err error) {
	if s.audit == nil {
		return
	}
	event := audit.AuditLog{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		SubjectID: subjectID,
		Action:    action,
		Outcome:   "allowed",
		ClientIP:  clientIP,
	}
	if err != nil {
		reason, _ := pdp_model.ReasonFor(err)
		event.Outcome = "denied"
		event.ReasonCode = string(reason)
	}
	s.audit.Record(ctx, event)
}
