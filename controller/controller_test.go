package controller_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	testify_mock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/audit"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/controller"
	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
	pdp_model "github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/model"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/test/mock"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/util"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(register func(*gin.RouterGroup), identity *model.Identity) *gin.Engine {
	r := gin.New()
	api := r.Group("/api/v1")
	if identity != nil {
		api.Use(func(c *gin.Context) {
			c.Set(util.IdentityContextKey, identity)
			c.Next()
		})
	}
	register(api)
	return r
}

func do(r *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	var req *http.Request
	if reader != nil {
		req = httptest.NewRequest(method, path, reader)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type stubAuthenticator struct {
	decision pdp_model.Decision
	seen     *pdp_model.AccessRequest
}

func (s *stubAuthenticator) Authenticate(_ context.Context, req *pdp_model.AccessRequest) pdp_model.Decision {
	s.seen = req
	return s.decision
}

func TestForwardAuthController(t *testing.T) {
	t.Run("Allowed_SetsIdentityHeaders", func(t *testing.T) {
		identity := &model.Identity{SubjectID: "U1", Type: model.IdentityUser, Scopes: []string{"a", "b"}}
		auth := &stubAuthenticator{decision: pdp_model.Allow(identity, pdp_model.SourceCache)}
		r := setupRouter(controller.NewForwardAuthController(auth, time.Minute).RegisterRoutes, nil)

		w := do(r, http.MethodGet, "/api/v1/auth/check", "", map[string]string{
			controller.HeaderForwardedMethod: "post",
			controller.HeaderForwardedURI:    "/widgets/7?verbose=1",
			controller.HeaderContentSHA256:   "ABCDEF",
		})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "U1", w.Header().Get(controller.HeaderAuthSubject))
		assert.Equal(t, "user", w.Header().Get(controller.HeaderAuthType))
		assert.Equal(t, "a b", w.Header().Get(controller.HeaderAuthScopes))
		require.NotNil(t, auth.seen)
		assert.Equal(t, "POST:/widgets/7", auth.seen.ResourceKey())
		assert.Equal(t, "abcdef", auth.seen.BodyHash)
	})

	t.Run("ForwardedURI_IsDecodedOnce", func(t *testing.T) {
		auth := &stubAuthenticator{decision: pdp_model.Deny(echo_errors.ErrMalformedRequest)}
		r := setupRouter(controller.NewForwardAuthController(auth, time.Minute).RegisterRoutes, nil)

		w := do(r, http.MethodGet, "/api/v1/auth/check", "", map[string]string{
			controller.HeaderForwardedMethod: "DELETE",
			controller.HeaderForwardedURI:    "/public/%2e%2e/admin?x=1",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, auth.seen)
		assert.Equal(t, "/public/../admin", auth.seen.Path)
	})

	t.Run("ForwardedURI_Undecodable", func(t *testing.T) {
		auth := &stubAuthenticator{decision: pdp_model.Allow(model.Anonymous(time.Now()), pdp_model.SourceExcluded)}
		r := setupRouter(controller.NewForwardAuthController(auth, time.Minute).RegisterRoutes, nil)

		w := do(r, http.MethodGet, "/api/v1/auth/check", "", map[string]string{
			controller.HeaderForwardedURI: "/public/%zz",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "MalformedRequest")
		assert.Nil(t, auth.seen, "never reaches the authenticator")
	})

	t.Run("Denied_WritesReason", func(t *testing.T) {
		auth := &stubAuthenticator{decision: pdp_model.Deny(echo_errors.ErrExpiredToken)}
		r := setupRouter(controller.NewForwardAuthController(auth, time.Minute).RegisterRoutes, nil)

		w := do(r, http.MethodGet, "/api/v1/auth/check", "", nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ExpiredToken", body["reason"])
		assert.Empty(t, w.Header().Get(controller.HeaderAuthSubject))
	})
}

func TestAuthController(t *testing.T) {
	tokens := &mock.MockTokenService{}
	r := setupRouter(controller.NewAuthController(tokens).RegisterRoutes, &model.Identity{SubjectID: "admin"})
	pair := &model.TokenPair{AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer", ExpiresIn: 900}

	t.Run("IssueToken_Success", func(t *testing.T) {
		tokens.On("Exchange", testify_mock.Anything, testify_mock.MatchedBy(func(req *pdp_model.AccessRequest) bool {
			return req.Path == "/api/v1/auth/token" && req.BodyHash != ""
		})).Return(pair, nil).Once()

		w := do(r, http.MethodPost, "/api/v1/auth/token", `{}`, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
		assert.Contains(t, w.Body.String(), `"access_token":"at"`)
	})

	t.Run("IssueToken_InvalidSignature", func(t *testing.T) {
		tokens.On("Exchange", testify_mock.Anything, testify_mock.Anything).
			Return(nil, echo_errors.ErrInvalidSignature).Once()

		w := do(r, http.MethodPost, "/api/v1/auth/token", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "InvalidSignature")
	})

	t.Run("Refresh_Reused", func(t *testing.T) {
		tokens.On("Refresh", testify_mock.Anything, "rt", testify_mock.Anything).
			Return(nil, echo_errors.ErrRefreshTokenReused).Once()

		w := do(r, http.MethodPost, "/api/v1/auth/token/refresh", `{"refresh_token":"rt"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "ReplayDetected")
	})

	t.Run("Refresh_MissingBody", func(t *testing.T) {
		w := do(r, http.MethodPost, "/api/v1/auth/token/refresh", `{}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Revoke_FromAuthorizationHeader", func(t *testing.T) {
		tokens.On("Revoke", testify_mock.Anything, "at", testify_mock.MatchedBy(func(id *model.Identity) bool {
			return id != nil && id.SubjectID == "admin"
		})).Return(nil).Once()

		w := do(r, http.MethodPost, "/api/v1/auth/token/revoke", "", map[string]string{"Authorization": "Bearer at"})
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("RevokeAll_ForCaller", func(t *testing.T) {
		tokens.On("RevokeAll", testify_mock.Anything, testify_mock.MatchedBy(func(id *model.Identity) bool {
			return id != nil && id.SubjectID == "admin"
		})).Return(nil).Once()

		w := do(r, http.MethodPost, "/api/v1/auth/token/revoke-all", "", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("RevokeAll_Anonymous", func(t *testing.T) {
		anonymous := setupRouter(controller.NewAuthController(tokens).RegisterRoutes, nil)
		w := do(anonymous, http.MethodPost, "/api/v1/auth/token/revoke-all", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	tokens.AssertExpectations(t)
}

func TestAPIKeyController(t *testing.T) {
	keys := &mock.MockAPIKeyService{}
	r := setupRouter(controller.NewAPIKeyController(keys).RegisterRoutes, &model.Identity{SubjectID: "admin"})

	t.Run("CreateAPIKey_Success", func(t *testing.T) {
		keys.On("CreateAPIKey", testify_mock.Anything, model.CreateAPIKeyRequest{SubjectID: "svc-1", Name: "billing"}).
			Return(&model.APIKey{KeyID: "ak_1", Secret: "s3cret", SubjectID: "svc-1", Status: model.APIKeyActive}, nil).Once()

		w := do(r, http.MethodPost, "/api/v1/apikeys", `{"subject_id":"svc-1","name":"billing"}`, nil)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"secret":"s3cret"`)
	})

	t.Run("CreateAPIKey_MissingName", func(t *testing.T) {
		w := do(r, http.MethodPost, "/api/v1/apikeys", `{"subject_id":"svc-1"}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("UpdateStatus_InvalidValue", func(t *testing.T) {
		w := do(r, http.MethodPut, "/api/v1/apikeys/ak_1/status", `{"status":"paused"}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("UpdateStatus_NotFound", func(t *testing.T) {
		keys.On("UpdateAPIKeyStatus", testify_mock.Anything, "ak_404", model.APIKeyDisabled).
			Return(nil, echo_errors.ErrAPIKeyNotFound).Once()

		w := do(r, http.MethodPut, "/api/v1/apikeys/ak_404/status", `{"status":"disabled"}`, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("GetAPIKey_Success", func(t *testing.T) {
		keys.On("GetAPIKey", testify_mock.Anything, "ak_1").
			Return(&model.APIKey{KeyID: "ak_1", Status: model.APIKeyActive}, nil).Once()

		w := do(r, http.MethodGet, "/api/v1/apikeys/ak_1", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "secret")
	})

	keys.AssertExpectations(t)
}

func TestPermissionController(t *testing.T) {
	perms := &mock.MockPermissionService{}
	r := setupRouter(controller.NewPermissionController(perms).RegisterRoutes, &model.Identity{SubjectID: "admin"})

	t.Run("Grant_Success", func(t *testing.T) {
		grants := []model.PermissionGrant{{ResourceKey: "GET:/widgets/*", Allowed: true}}
		perms.On("GrantPermissions", testify_mock.MatchedBy(func(ctx context.Context) bool {
			return util.ActorFromContext(ctx) == "admin"
		}), "U1", grants).Return(nil).Once()

		w := do(r, http.MethodPut, "/api/v1/permissions/U1", `[{"resource_key":"GET:/widgets/*","allowed":true}]`, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("Grant_Invalid", func(t *testing.T) {
		perms.On("GrantPermissions", testify_mock.Anything, "U2", testify_mock.Anything).
			Return(echo_errors.ErrInvalidPermissionData).Once()

		w := do(r, http.MethodPut, "/api/v1/permissions/U2", `[{"resource_key":"nope"}]`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Revoke_RequiresResource", func(t *testing.T) {
		w := do(r, http.MethodDelete, "/api/v1/permissions/U1", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Revoke_NotFound", func(t *testing.T) {
		perms.On("RevokePermission", testify_mock.Anything, "U1", "GET:/a").
			Return(echo_errors.ErrPermissionNotFound).Once()

		w := do(r, http.MethodDelete, "/api/v1/permissions/U1?resource=GET:/a", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("List_Success", func(t *testing.T) {
		perms.On("ListPermissions", testify_mock.Anything, "U1").
			Return([]model.ResourcePermission{{ResourceKey: "GET:/a", Allowed: true}}, nil).Once()

		w := do(r, http.MethodGet, "/api/v1/permissions/U1", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "GET:/a")
	})

	t.Run("InvalidateCache_WholeSubject", func(t *testing.T) {
		perms.On("InvalidateCache", testify_mock.Anything, "U1", "").Return(nil).Once()

		w := do(r, http.MethodDelete, "/api/v1/permission-cache/U1", "", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("InvalidateCache_StoreDown", func(t *testing.T) {
		perms.On("InvalidateCache", testify_mock.Anything, "U1", "GET:/a").
			Return(echo_errors.ErrStoreUnavailable).Once()

		w := do(r, http.MethodDelete, "/api/v1/permission-cache/U1?resource=GET:/a", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	perms.AssertExpectations(t)
}

func TestAuditController(t *testing.T) {
	svc := &mock.MockAuditService{}
	r := setupRouter(controller.NewAuditController(svc).RegisterRoutes, nil)

	logs := []audit.AuditLog{{ID: "1", SubjectID: "U1"}, {ID: "2", SubjectID: "U1"}, {ID: "3", SubjectID: "U1"}}
	svc.On("QueryLogs", testify_mock.Anything, testify_mock.Anything, testify_mock.Anything, "U1", "").Return(logs, nil).Once()

	w := do(r, http.MethodGet, "/api/v1/audit/logs?subject=U1&limit=2&offset=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Logs  []audit.AuditLog `json:"logs"`
		Total int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Total)
	require.Len(t, body.Logs, 2)
	assert.Equal(t, "2", body.Logs[0].ID)

	w = do(r, http.MethodGet, "/api/v1/audit/logs?from=2024-01-02T00:00:00Z&to=2024-01-01T00:00:00Z", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/v1/audit/logs?from=yesterday", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestSecurityController(t *testing.T) {
	svc := &mock.MockSecurityService{}
	r := setupRouter(controller.NewSecurityController(svc).RegisterRoutes, &model.Identity{SubjectID: "admin"})
	actorIsAdmin := testify_mock.MatchedBy(func(ctx context.Context) bool {
		return util.ActorFromContext(ctx) == "admin"
	})

	t.Run("LockAccount", func(t *testing.T) {
		req := model.LockAccountRequest{Reason: "leaked", DurationSeconds: 600}
		svc.On("LockAccount", actorIsAdmin, "K1", req).
			Return(&model.LockRecord{Subject: "K1", Reason: "leaked"}, nil).Once()

		w := do(r, http.MethodPost, "/api/v1/security/lockouts/K1", `{"reason":"leaked","duration_seconds":600}`, nil)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"subject":"K1"`)
	})

	t.Run("LockAccount_MissingReason", func(t *testing.T) {
		w := do(r, http.MethodPost, "/api/v1/security/lockouts/K1", `{}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("UnlockAndStatus", func(t *testing.T) {
		svc.On("UnlockAccount", actorIsAdmin, "K1").Return(nil).Once()
		svc.On("AccountStatus", testify_mock.Anything, "K1").Return(&model.LockStatus{Subject: "K1"}, nil).Once()

		assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/api/v1/security/lockouts/K1", "", nil).Code)
		w := do(r, http.MethodGet, "/api/v1/security/lockouts/K1", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"locked":false`)
	})

	t.Run("BlockIP", func(t *testing.T) {
		req := model.BlockIPRequest{IP: "198.51.100.7", Reason: "stuffing", TTLSeconds: 3600}
		svc.On("BlockIP", actorIsAdmin, req).Return(&model.BlockRecord{IP: "198.51.100.7"}, nil).Once()

		w := do(r, http.MethodPost, "/api/v1/security/ip-blocklist", `{"ip":"198.51.100.7","reason":"stuffing","ttl_seconds":3600}`, nil)
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("BlockIP_Invalid", func(t *testing.T) {
		svc.On("BlockIP", testify_mock.Anything, testify_mock.Anything).
			Return(nil, echo_errors.ErrInvalidSecurityData).Once()

		w := do(r, http.MethodPost, "/api/v1/security/ip-blocklist", `{"ip":"nope","reason":"x","ttl_seconds":5}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = do(r, http.MethodPost, "/api/v1/security/ip-blocklist", `{"ip":"10.0.0.1","reason":"x"}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "ttl is required")
	})

	t.Run("UnblockAndStatus", func(t *testing.T) {
		svc.On("UnblockIP", actorIsAdmin, "2001:db8::1").Return(nil).Once()
		svc.On("IPStatus", testify_mock.Anything, "10.0.0.1").
			Return(&model.IPStatus{IP: "10.0.0.1", Blocked: true}, nil).Once()

		assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/api/v1/security/ip-blocklist/2001:db8::1", "", nil).Code)
		w := do(r, http.MethodGet, "/api/v1/security/ip-blocklist/10.0.0.1", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"blocked":true`)
	})

	t.Run("RevokeSubjectTokens", func(t *testing.T) {
		svc.On("RevokeSubjectTokens", actorIsAdmin, "U1").Return(nil).Once()
		svc.On("RevokeSubjectTokens", testify_mock.Anything, "U2").Return(echo_errors.ErrStoreUnavailable).Once()

		assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/api/v1/security/subjects/U1/revoke-tokens", "", nil).Code)
		w := do(r, http.MethodPost, "/api/v1/security/subjects/U2/revoke-tokens", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	svc.AssertExpectations(t)
}

func TestHealthController(t *testing.T) {
	healthy := controller.NewHealthController(time.Second, map[string]controller.HealthCheck{
		"redis": func(context.Context) error { return nil },
	})
	r := gin.New()
	healthy.RegisterRoutes(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	degraded := controller.NewHealthController(time.Second, map[string]controller.HealthCheck{
		"neo4j": func(context.Context) error { return errors.New("connection refused") },
	})
	r = gin.New()
	degraded.RegisterRoutes(r)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}
