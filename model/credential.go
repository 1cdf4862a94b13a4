// gatekeeper/model/credential.go
package model

// Credential is what the caller presented. The set of implementations is
// closed: BearerToken and SignedAPIKey.
type Credential interface {
	Scheme() string
	credential()
}

const (
	SchemeBearer = "bearer"
	SchemeAPIKey = "api_key"
	SchemeNone   = "none"
)

type BearerToken string

func (BearerToken) Scheme() string { return SchemeBearer }
func (BearerToken) credential()    {}

type SignedAPIKey struct {
	KeyID     string
	Timestamp string
	Nonce     string
	Signature string
}

func (SignedAPIKey) Scheme() string { return SchemeAPIKey }
func (SignedAPIKey) credential()    {}
