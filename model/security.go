// gatekeeper/model/security.go
package model

import "time"

// LockRecord is the stored state of a locked subject.
type LockRecord struct {
	Subject     string    `json:"subject"`
	Reason      string    `json:"reason"`
	ClientIP    string    `json:"client_ip,omitempty"`
	LockedAt    time.Time `json:"locked_at"`
	LockedUntil time.Time `json:"locked_until"`
}

// BlockRecord is the stored state of a blocked client address.
type BlockRecord struct {
	IP           string    `json:"ip"`
	Reason       string    `json:"reason"`
	BlockedBy    string    `json:"blocked_by,omitempty"`
	BlockedAt    time.Time `json:"blocked_at"`
	BlockedUntil time.Time `json:"blocked_until"`
}

type LockStatus struct {
	Subject string      `json:"subject"`
	Locked  bool        `json:"locked"`
	Record  *LockRecord `json:"record,omitempty"`
}

type IPStatus struct {
	IP      string       `json:"ip"`
	Blocked bool         `json:"blocked"`
	Record  *BlockRecord `json:"record,omitempty"`
}

type LockAccountRequest struct {
	Reason          string `json:"reason" binding:"required"`
	DurationSeconds int64  `json:"duration_seconds" binding:"gte=0"`
}

type BlockIPRequest struct {
	IP         string `json:"ip" binding:"required"`
	Reason     string `json:"reason" binding:"required"`
	TTLSeconds int64  `json:"ttl_seconds" binding:"required,gt=0"`
}
