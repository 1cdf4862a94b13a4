package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	testify_mock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/controller"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/db"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/engine"
	pdp_model "github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/model"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/ratelimit"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/service"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/test/mock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newGateway wires the real dispatcher with a per-IP budget of one request
// per minute. Only the anonymous paths are reachable without credentials.
func newGateway(t *testing.T, trustedProxies []string) (*gin.Engine, *mock.MockTokenService) {
	t.Helper()
	store := db.NewMemoryStore()
	dispatcher := engine.NewDispatcher(
		nil,
		nil,
		nil,
		ratelimit.NewLimiter(ratelimit.ScopeIdentity, 100, time.Minute, store, nil),
		ratelimit.NewLimiter(ratelimit.ScopeIP, 1, time.Minute, store, nil),
		nil,
		nil,
		engine.Options{
			ExcludedPaths:          []string{"/public/*"},
			CredentialIssuingPaths: []string{"/api/v1/auth/token"},
		},
	)

	tokens := &mock.MockTokenService{}
	services := &service.Services{
		Token:      tokens,
		APIKey:     &mock.MockAPIKeyService{},
		Permission: &mock.MockPermissionService{},
		Security:   &mock.MockSecurityService{},
	}
	health := controller.NewHealthController(time.Second, nil)
	controllers := controller.InitializeControllers(services, dispatcher, time.Minute, &mock.MockAuditService{}, health)

	r, err := SetupRouter(controllers, dispatcher, time.Minute, trustedProxies)
	require.NoError(t, err)
	return r, tokens
}

func send(r *gin.Engine, method, path, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func clientIPIs(ip string) any {
	return testify_mock.MatchedBy(func(req *pdp_model.AccessRequest) bool {
		return req.ClientIP == ip
	})
}

func TestSetupRouter_SpoofedForwardedForIsChargedToPeer(t *testing.T) {
	r, tokens := newGateway(t, nil)
	pair := &model.TokenPair{AccessToken: "at", TokenType: "Bearer"}
	tokens.On("Exchange", testify_mock.Anything, clientIPIs("198.51.100.9")).Return(pair, nil).Once()

	codes := make([]int, 0, 3)
	for _, spoofed := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		w := send(r, http.MethodPost, "/api/v1/auth/token", "198.51.100.9:4711", map[string]string{
			"X-Forwarded-For": spoofed,
			"X-Real-IP":       spoofed,
		})
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
	tokens.AssertExpectations(t)
}

func TestSetupRouter_TrustedProxyForwardsClientIP(t *testing.T) {
	r, tokens := newGateway(t, []string{"10.0.0.0/8"})
	pair := &model.TokenPair{AccessToken: "at", TokenType: "Bearer"}
	tokens.On("Exchange", testify_mock.Anything, clientIPIs("203.0.113.1")).Return(pair, nil).Once()
	tokens.On("Exchange", testify_mock.Anything, clientIPIs("203.0.113.2")).Return(pair, nil).Once()

	proxied := func(client string) int {
		return send(r, http.MethodPost, "/api/v1/auth/token", "10.0.0.5:4711", map[string]string{"X-Forwarded-For": client}).Code
	}
	assert.Equal(t, http.StatusOK, proxied("203.0.113.1"))
	assert.Equal(t, http.StatusOK, proxied("203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, proxied("203.0.113.1"))
	tokens.AssertExpectations(t)
}

func TestSetupRouter_InvalidTrustedProxy(t *testing.T) {
	err := TrustProxies(gin.New(), []string{"proxy.internal"})
	assert.Error(t, err)
}

func TestSetupRouter_ForwardAuthRejectsTraversal(t *testing.T) {
	r, _ := newGateway(t, nil)

	for _, uri := range []string{"/public/../admin/users", "/public/%2e%2e/admin", "/public//../admin"} {
		w := send(r, http.MethodGet, "/api/v1/auth/check", "192.0.2.10:80", map[string]string{
			controller.HeaderForwardedMethod: http.MethodDelete,
			controller.HeaderForwardedURI:    uri,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code, uri)
		assert.Contains(t, w.Body.String(), "MalformedRequest", uri)
	}

	w := send(r, http.MethodGet, "/api/v1/auth/check", "192.0.2.11:80", map[string]string{
		controller.HeaderForwardedMethod: http.MethodGet,
		controller.HeaderForwardedURI:    "/public/docs",
	})
	assert.Equal(t, http.StatusOK, w.Code, "canonical excluded path still passes")
}

func TestSetupRouter_RoutedTraversalIsMalformed(t *testing.T) {
	r, _ := newGateway(t, nil)

	w := send(r, http.MethodDelete, "/api/v1/security/lockouts/..", "192.0.2.12:80", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "MalformedRequest")
}
