package dao

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	json "github.com/goccy/go-json"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/audit"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/db"
	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
	logger "github.com/dev-mohitbeniwal/echo/gatekeeper/logging"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
	echo_neo4j "github.com/dev-mohitbeniwal/echo/gatekeeper/model/neo4j"
	pdp_dao "github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/dao"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/util"
)

type APIKeyDAO struct {
	Driver neo4j.DriverWithContext
	Audit  audit.Sink
	reader *pdp_dao.IdentityStoreDAO
}

func NewAPIKeyDAO(driver neo4j.DriverWithContext, sink audit.Sink) *APIKeyDAO {
	return &APIKeyDAO{Driver: driver, Audit: sink, reader: pdp_dao.NewIdentityStoreDAO(driver)}
}

func (dao *APIKeyDAO) EnsureUniqueConstraint(ctx context.Context) error {
	logger.Info("Ensuring unique constraint on ApiKey ID")
	_, err := db.ExecuteWrite(ctx, dao.Driver, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
        CREATE CONSTRAINT unique_api_key_id IF NOT EXISTS
        FOR (k:` + echo_neo4j.LabelAPIKey + `) REQUIRE k.id IS UNIQUE
        `
		_, err := tx.Run(ctx, query, nil)
		return nil, err
	})
	if err != nil {
		logger.Error("Failed to ensure unique constraint on ApiKey ID", zap.Error(err))
		return err
	}
	return nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CreateAPIKey stores a new key owned by req.SubjectID. The returned key is
// the only copy of the secret handed back to a caller.
func (dao *APIKeyDAO) CreateAPIKey(ctx context.Context, req model.CreateAPIKeyRequest) (*model.APIKey, error) {
	start := time.Now()
	logger.Info("Creating new api key", zap.String("subjectID", req.SubjectID), zap.String("name", req.Name))

	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate api key secret: %w", err)
	}
	now := time.Now().UTC()
	key := &model.APIKey{
		KeyID:     "ak_" + strings.ReplaceAll(uuid.New().String(), "-", ""),
		Secret:    secret,
		SubjectID: req.SubjectID,
		Name:      req.Name,
		Scopes:    req.Scopes,
		Status:    model.APIKeyActive,
		ExpiresAt: req.ExpiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var expiresAt any
	if key.ExpiresAt != nil {
		expiresAt = key.ExpiresAt.UTC().Format(time.RFC3339)
	}
	scopes := key.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	_, err = db.ExecuteWrite(ctx, dao.Driver, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
        MERGE (s:` + echo_neo4j.LabelSubject + ` {id: $subjectID})
        CREATE (k:` + echo_neo4j.LabelAPIKey + ` $props)-[:` + echo_neo4j.RelIssuedTo + `]->(s)
        RETURN k.id AS id
        `
		params := map[string]any{
			"subjectID": key.SubjectID,
			"props": map[string]any{
				echo_neo4j.AttrID:        key.KeyID,
				echo_neo4j.AttrSecret:    key.Secret,
				echo_neo4j.AttrName:      key.Name,
				echo_neo4j.AttrScopes:    scopes,
				echo_neo4j.AttrStatus:    string(key.Status),
				echo_neo4j.AttrExpiresAt: expiresAt,
				echo_neo4j.AttrCreatedAt: now.Format(time.RFC3339),
				echo_neo4j.AttrUpdatedAt: now.Format(time.RFC3339),
			},
		}
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			if strings.Contains(err.Error(), "already exists") {
				return nil, echo_errors.ErrAPIKeyConflict
			}
			return nil, fmt.Errorf("%w: %w", echo_errors.ErrDatabaseOperation, err)
		}
		if !result.Next(ctx) {
			return nil, echo_errors.ErrInternalServer
		}
		return nil, nil
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to create api key",
			zap.Error(err),
			zap.String("subjectID", req.SubjectID),
			zap.Duration("duration", duration))
		return nil, err
	}

	logger.Info("Api key created successfully",
		zap.String("keyID", key.KeyID),
		zap.Duration("duration", duration))

	dao.recordChange(ctx, "CREATE_"+echo_neo4j.LabelAPIKey, key.SubjectID, nil, key)
	return key, nil
}

func (dao *APIKeyDAO) UpdateAPIKeyStatus(ctx context.Context, keyID string, status model.APIKeyStatus) (*model.APIKey, error) {
	start := time.Now()
	logger.Info("Updating api key status", zap.String("keyID", keyID), zap.String("status", string(status)))

	old, err := dao.GetAPIKey(ctx, keyID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = db.ExecuteWrite(ctx, dao.Driver, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
        MATCH (k:` + echo_neo4j.LabelAPIKey + ` {id: $id})
        SET k.` + echo_neo4j.AttrStatus + ` = $status, k.` + echo_neo4j.AttrUpdatedAt + ` = $updatedAt
        RETURN k.id AS id
        `
		result, err := tx.Run(ctx, query, map[string]any{
			"id":        keyID,
			"status":    string(status),
			"updatedAt": now.Format(time.RFC3339),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", echo_errors.ErrDatabaseOperation, err)
		}
		if !result.Next(ctx) {
			return nil, echo_errors.ErrAPIKeyNotFound
		}
		return nil, nil
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to update api key status",
			zap.Error(err),
			zap.String("keyID", keyID),
			zap.Duration("duration", duration))
		return nil, err
	}

	updated := *old
	updated.Status = status
	updated.UpdatedAt = now
	logger.Info("Api key status updated", zap.String("keyID", keyID), zap.Duration("duration", duration))

	dao.recordChange(ctx, "UPDATE_"+echo_neo4j.LabelAPIKey, updated.SubjectID, old, &updated)
	return &updated, nil
}

func (dao *APIKeyDAO) GetAPIKey(ctx context.Context, keyID string) (*model.APIKey, error) {
	key, err := dao.reader.GetSecretForKey(ctx, keyID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", echo_errors.ErrDatabaseOperation, err)
	}
	if key == nil {
		return nil, echo_errors.ErrAPIKeyNotFound
	}
	return key, nil
}

func (dao *APIKeyDAO) recordChange(ctx context.Context, action, subjectID string, oldKey, newKey *model.APIKey) {
	if dao.Audit == nil {
		return
	}
	details, err := createAPIKeyChangeDetails(oldKey, newKey)
	if err != nil {
		logger.Error("Failed to build audit change details", zap.Error(err))
	}
	dao.Audit.Record(ctx, audit.AuditLog{
		ID:            uuid.New().String(),
		Timestamp:     time.Now().UTC(),
		SubjectID:     util.ActorFromContext(ctx),
		Action:        action,
		Target:        subjectID,
		Outcome:       "allowed",
		ChangeDetails: details,
	})
}

func createAPIKeyChangeDetails(oldKey, newKey *model.APIKey) (json.RawMessage, error) {
	changes := make(map[string]any)
	if oldKey == nil {
		redacted := newKey.Redacted()
		changes["created"] = redacted
		return json.Marshal(changes)
	}
	if oldKey.Status != newKey.Status {
		changes["status"] = map[string]string{"old": string(oldKey.Status), "new": string(newKey.Status)}
	}
	changes["key_id"] = newKey.KeyID
	return json.Marshal(changes)
}
