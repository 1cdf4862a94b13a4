// gatekeeper/service/security_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/audit"
	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
	logger "github.com/dev-mohitbeniwal/echo/gatekeeper/logging"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/util"
)

// ISecurityService is the operator surface over lockouts, the address
// blocklist and bulk token revocation.
type ISecurityService interface {
	LockAccount(ctx context.Context, subject string, req model.LockAccountRequest) (*model.LockRecord, error)
	UnlockAccount(ctx context.Context, subject string) error
	AccountStatus(ctx context.Context, subject string) (*model.LockStatus, error)
	BlockIP(ctx context.Context, req model.BlockIPRequest) (*model.BlockRecord, error)
	UnblockIP(ctx context.Context, ip string) error
	IPStatus(ctx context.Context, ip string) (*model.IPStatus, error)
	RevokeSubjectTokens(ctx context.Context, subject string) error
}

type AccountLockout interface {
	Lock(ctx context.Context, subject, reason, clientIP string, duration time.Duration) (*model.LockRecord, error)
	Unlock(ctx context.Context, subject string) error
	Status(ctx context.Context, subject string) (*model.LockRecord, error)
}

type AddressBlocklist interface {
	Block(ctx context.Context, ip, reason, actor string, ttl time.Duration) (*model.BlockRecord, error)
	Unblock(ctx context.Context, ip string) error
	Status(ctx context.Context, ip string) (*model.BlockRecord, error)
}

type SubjectRevoker interface {
	RevokeSubject(ctx context.Context, subjectID string) error
}

type SecurityService struct {
	lockout         AccountLockout
	blocklist       AddressBlocklist
	revoker         SubjectRevoker
	audit           audit.Sink
	notificationSvc *util.NotificationService
	maxBlockTTL     time.Duration
}

var _ ISecurityService = &SecurityService{}

func NewSecurityService(
	lockout AccountLockout,
	blocklist AddressBlocklist,
	revoker SubjectRevoker,
	sink audit.Sink,
	notificationSvc *util.NotificationService,
	maxBlockTTL time.Duration,
) *SecurityService {
	return &SecurityService{
		lockout:         lockout,
		blocklist:       blocklist,
		revoker:         revoker,
		audit:           sink,
		notificationSvc: notificationSvc,
		maxBlockTTL:     maxBlockTTL,
	}
}

// LockAccount locks an API key or subject by hand. A zero duration uses the
// configured lockout duration.
func (s *SecurityService) LockAccount(ctx context.Context, subject string, req model.LockAccountRequest) (*model.LockRecord, error) {
	if subject == "" {
		return nil, fmt.Errorf("%w: subject is required", echo_errors.ErrInvalidSecurityData)
	}
	duration := time.Duration(req.DurationSeconds) * time.Second
	if req.DurationSeconds < 0 || duration > s.maxBlockTTL {
		return nil, fmt.Errorf("%w: duration must be between 0 and %s", echo_errors.ErrInvalidSecurityData, s.maxBlockTTL)
	}

	record, err := s.lockout.Lock(ctx, subject, req.Reason, "", duration)
	if err != nil {
		logger.Error("Failed to lock account", zap.Error(err), zap.String("subject", subject))
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	s.record(ctx, audit.ActionLockAccount, subject, record)
	s.notify(ctx, fmt.Sprintf("account %s locked by %s until %s: %s",
		subject, util.ActorFromContext(ctx), record.LockedUntil.Format(time.RFC3339), req.Reason))
	return record, nil
}

func (s *SecurityService) UnlockAccount(ctx context.Context, subject string) error {
	if err := s.lockout.Unlock(ctx, subject); err != nil {
		logger.Error("Failed to unlock account", zap.Error(err), zap.String("subject", subject))
		return fmt.Errorf("failed to unlock account: %w", err)
	}
	s.record(ctx, audit.ActionUnlockAccount, subject, nil)
	return nil
}

func (s *SecurityService) AccountStatus(ctx context.Context, subject string) (*model.LockStatus, error) {
	record, err := s.lockout.Status(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to read lock status: %w", err)
	}
	return &model.LockStatus{Subject: subject, Locked: record != nil, Record: record}, nil
}

func (s *SecurityService) BlockIP(ctx context.Context, req model.BlockIPRequest) (*model.BlockRecord, error) {
	ttl := time.Duration(req.TTLSeconds) * time.Second
	if req.TTLSeconds <= 0 || ttl > s.maxBlockTTL {
		return nil, fmt.Errorf("%w: ttl must be between 1s and %s", echo_errors.ErrInvalidSecurityData, s.maxBlockTTL)
	}

	record, err := s.blocklist.Block(ctx, req.IP, req.Reason, util.ActorFromContext(ctx), ttl)
	if err != nil {
		logger.Error("Failed to block address", zap.Error(err), zap.String("ip", req.IP))
		return nil, fmt.Errorf("failed to block address: %w", err)
	}
	s.record(ctx, audit.ActionBlockIP, record.IP, record)
	s.notify(ctx, fmt.Sprintf("address %s blocked by %s until %s: %s",
		record.IP, record.BlockedBy, record.BlockedUntil.Format(time.RFC3339), record.Reason))
	return record, nil
}

func (s *SecurityService) UnblockIP(ctx context.Context, ip string) error {
	if err := s.blocklist.Unblock(ctx, ip); err != nil {
		logger.Error("Failed to unblock address", zap.Error(err), zap.String("ip", ip))
		return fmt.Errorf("failed to unblock address: %w", err)
	}
	s.record(ctx, audit.ActionUnblockIP, ip, nil)
	return nil
}

func (s *SecurityService) IPStatus(ctx context.Context, ip string) (*model.IPStatus, error) {
	record, err := s.blocklist.Status(ctx, ip)
	if err != nil {
		return nil, fmt.Errorf("failed to read block status: %w", err)
	}
	return &model.IPStatus{IP: ip, Blocked: record != nil, Record: record}, nil
}

// RevokeSubjectTokens invalidates every bearer token issued to subject so
// far. Tokens issued afterwards are unaffected.
func (s *SecurityService) RevokeSubjectTokens(ctx context.Context, subject string) error {
	if subject == "" {
		return fmt.Errorf("%w: subject is required", echo_errors.ErrInvalidSecurityData)
	}
	if err := s.revoker.RevokeSubject(ctx, subject); err != nil {
		logger.Error("Failed to revoke subject tokens", zap.Error(err), zap.String("subject", subject))
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}
	s.record(ctx, audit.ActionRevokeSubject, subject, nil)
	return nil
}

func (s *SecurityService) record(ctx context.Context, action, target string, details any) {
	if s.audit == nil {
		return
	}
	event := audit.AuditLog{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		SubjectID: util.ActorFromContext(ctx),
		Action:    action,
		Target:    target,
		Outcome:   "allowed",
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			logger.Warn("Failed to encode audit details", zap.Error(err), zap.String("action", action))
		} else {
			event.ChangeDetails = raw
		}
	}
	s.audit.Record(ctx, event)
}

func (s *SecurityService) notify(ctx context.Context, message string) {
	if err := s.notificationSvc.NotifyAdmins(ctx, message); err != nil {
		logger.Warn("Failed to send security notification", zap.Error(err))
	}
}
