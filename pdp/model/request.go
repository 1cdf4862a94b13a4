package model

import (
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
)

// AccessRequest is the gateway's view of one inbound request.
type AccessRequest struct {
	Method    string      `json:"method"`
	Path      string      `json:"path"`
	Headers   http.Header `json:"-"`
	BodyHash  string      `json:"body_hash,omitempty"` // hex sha256 of the body
	ClientIP  string      `json:"client_ip"`
	UserAgent string      `json:"user_agent,omitempty"`
}

// ResourceKey is the permission key for the request, "METHOD:path".
func (r *AccessRequest) ResourceKey() string {
	return strings.ToUpper(r.Method) + ":" + r.Path
}

// CheckCanonicalPath accepts only absolute, already-clean, single-decoded
// paths. Anything an upstream could normalize into a different route is
// rejected, so a pattern match here means the same thing upstream.
func CheckCanonicalPath(p string) error {
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("%w: path %q is not absolute", echo_errors.ErrMalformedRequest, p)
	}
	if strings.ContainsAny(p, "\x00\\") {
		return fmt.Errorf("%w: path contains a NUL or backslash", echo_errors.ErrMalformedRequest)
	}
	lower := strings.ToLower(p)
	for _, encoded := range []string{"%2e", "%2f", "%5c", "%00"} {
		if strings.Contains(lower, encoded) {
			return fmt.Errorf("%w: path %q is encoded more than once", echo_errors.ErrMalformedRequest, p)
		}
	}
	clean := path.Clean(p)
	if p != "/" && strings.HasSuffix(p, "/") {
		clean += "/"
	}
	if clean != p {
		return fmt.Errorf("%w: path %q is not canonical (%q)", echo_errors.ErrMalformedRequest, p, clean)
	}
	return nil
}

// DecodePath takes a raw request URI (path plus optional query) and returns
// its percent-decoded path.
func DecodePath(uri string) (string, error) {
	raw, _, _ := strings.Cut(uri, "?")
	raw, _, _ = strings.Cut(raw, "#")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", echo_errors.ErrMalformedRequest, err)
	}
	return decoded, nil
}
