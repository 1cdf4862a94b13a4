// gatekeeper/audit/model.go
package audit

import (
	"time"

	json "github.com/goccy/go-json"
)

const (
	ActionAuthenticate = "AUTHENTICATE"
	ActionIssueToken   = "ISSUE_TOKEN"
	ActionRefreshToken = "REFRESH_TOKEN"
	ActionRevokeToken  = "REVOKE_TOKEN"
	ActionRevokeAll    = "REVOKE_ALL_TOKENS"

	ActionLockAccount   = "LOCK_ACCOUNT"
	ActionUnlockAccount = "UNLOCK_ACCOUNT"
	ActionBlockIP       = "BLOCK_IP"
	ActionUnblockIP     = "UNBLOCK_IP"
	ActionRevokeSubject = "REVOKE_SUBJECT_TOKENS"
)

// AuditLog is one audit event. Decision events fill the request fields;
// administrative events carry ChangeDetails instead.
type AuditLog struct {
	ID            string          `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	SubjectID     string          `json:"subject_id"`
	Action        string          `json:"action"`
	Target        string          `json:"target,omitempty"`
	Method        string          `json:"method,omitempty"`
	Path          string          `json:"path,omitempty"`
	Outcome       string          `json:"outcome"`
	ReasonCode    string          `json:"reason_code,omitempty"`
	Scheme        string          `json:"scheme,omitempty"`
	Source        string          `json:"source,omitempty"`
	ClientIP      string          `json:"client_ip,omitempty"`
	LatencyMs     float64         `json:"latency_ms"`
	ChangeDetails json.RawMessage `json:"change_details,omitempty"`
}
