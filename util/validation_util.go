// gatekeeper/util/validation_util.go

package util

import (
	"fmt"
	"strings"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
)

var validMethods = map[string]bool{
	"*": true, "GET": true, "HEAD": true, "POST": true, "PUT": true,
	"PATCH": true, "DELETE": true, "OPTIONS": true,
}

type ValidationUtil struct{}

func NewValidationUtil() *ValidationUtil {
	return &ValidationUtil{}
}

// ValidateResourceKey checks the METHOD:path form used by grants.
func (v *ValidationUtil) ValidateResourceKey(key string) error {
	method, path, found := strings.Cut(key, ":")
	if !found {
		return fmt.Errorf("resource key %q must be METHOD:path", key)
	}
	if !validMethods[strings.ToUpper(method)] {
		return fmt.Errorf("resource key %q has unknown method %q", key, method)
	}
	if path != "*" && !strings.HasPrefix(path, "/") {
		return fmt.Errorf("resource key %q path must start with '/' or be '*'", key)
	}
	if i := strings.Index(path, "*"); i >= 0 && i != len(path)-1 {
		return fmt.Errorf("resource key %q may only end with '*'", key)
	}
	return nil
}

func (v *ValidationUtil) ValidateGrants(grants []model.PermissionGrant) error {
	if len(grants) == 0 {
		return fmt.Errorf("at least one grant is required")
	}
	for _, g := range grants {
		if err := v.ValidateResourceKey(g.ResourceKey); err != nil {
			return err
		}
	}
	return nil
}

func (v *ValidationUtil) ValidateScopes(scopes []string) error {
	for _, s := range scopes {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("scopes cannot be blank")
		}
		if strings.ContainsAny(s, " \t\n") {
			return fmt.Errorf("scope %q cannot contain whitespace", s)
		}
	}
	return nil
}
