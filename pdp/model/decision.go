package model

import (
	"net/http"
	"time"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
)

// Source records which path produced an allow decision.
type Source string

const (
	SourceExcluded          Source = "excluded"
	SourceCredentialIssuing Source = "credential_issuing"
	SourceCache             Source = "cache"
	SourceUpstream          Source = "upstream"
	SourceStale             Source = "stale"
)

// Decision is the outcome of authenticating one request: either allowed with
// an identity, or denied with a reason code and HTTP status.
type Decision struct {
	Allowed    bool              `json:"allowed"`
	Identity   *model.Identity   `json:"identity,omitempty"`
	Source     Source            `json:"source,omitempty"`
	Reason     ReasonCode        `json:"reason,omitempty"`
	Status     int               `json:"status"`
	Message    string            `json:"message,omitempty"`
	Scheme     string            `json:"scheme"`
	RetryAfter time.Duration     `json:"-"`
	RateWindow *model.RateWindow `json:"-"`
	Latency    time.Duration     `json:"-"`
}

func Allow(identity *model.Identity, source Source) Decision {
	return Decision{Allowed: true, Identity: identity, Source: source, Status: http.StatusOK}
}

// Deny builds a denial from an error in the taxonomy.
func Deny(err error) Decision {
	reason, status := ReasonFor(err)
	d := Decision{Reason: reason, Status: status}
	if err != nil {
		d.Message = err.Error()
	}
	return d
}

func (d Decision) Outcome() string {
	if d.Allowed {
		return "allowed"
	}
	return "denied"
}
