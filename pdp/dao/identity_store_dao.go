package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/echo/gatekeeper/logging"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
	echo_neo4j "github.com/dev-mohitbeniwal/echo/gatekeeper/model/neo4j"
	pdp_model "github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/model"
	helper_util "github.com/dev-mohitbeniwal/echo/gatekeeper/util/helper"
)

// IdentityStoreDAO reads grants and api keys from the Neo4j graph:
//
//	(:Subject)-[:GRANTS {effect}]->(:Resource {key})
//	(:Subject)-[:HAS_ROLE]->(:Role)-[:GRANTS {effect}]->(:Resource {key})
//	(:ApiKey)-[:ISSUED_TO]->(:Subject)
type IdentityStoreDAO struct {
	Driver neo4j.DriverWithContext
}

var _ pdp_model.IdentityStore = &IdentityStoreDAO{}

func NewIdentityStoreDAO(driver neo4j.DriverWithContext) *IdentityStoreDAO {
	return &IdentityStoreDAO{Driver: driver}
}

func (dao *IdentityStoreDAO) GetPermissions(ctx context.Context, subjectID string) ([]model.ResourcePermission, error) {
	start := time.Now()
	logger.Debug("Retrieving permissions for subject", zap.String("subject_id", subjectID))

	session := dao.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
        MATCH (s:` + echo_neo4j.LabelSubject + ` {id: $subjectID})-[g:` + echo_neo4j.RelGrants + `]->(r:` + echo_neo4j.LabelResource + `)
        RETURN r.` + echo_neo4j.AttrKey + ` AS key, g.` + echo_neo4j.AttrEffect + ` AS effect
        UNION ALL
        MATCH (s:` + echo_neo4j.LabelSubject + ` {id: $subjectID})-[:` + echo_neo4j.RelHasRole + `]->(:` + echo_neo4j.LabelRole + `)-[g:` + echo_neo4j.RelGrants + `]->(r:` + echo_neo4j.LabelResource + `)
        RETURN r.` + echo_neo4j.AttrKey + ` AS key, g.` + echo_neo4j.AttrEffect + ` AS effect
        `

		records, err := tx.Run(ctx, query, map[string]any{"subjectID": subjectID})
		if err != nil {
			return nil, err
		}

		var perms []model.ResourcePermission
		for records.Next(ctx) {
			record := records.Record()
			key, _ := record.Get("key")
			effect, _ := record.Get("effect")
			resourceKey, ok := key.(string)
			if !ok || resourceKey == "" {
				continue
			}
			perms = append(perms, model.ResourcePermission{
				ResourceKey: resourceKey,
				Allowed:     effect != echo_neo4j.EffectDeny,
			})
		}
		return perms, records.Err()
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to retrieve permissions",
			zap.Error(err),
			zap.String("subject_id", subjectID),
			zap.Duration("duration", duration))
		return nil, err
	}

	perms, _ := result.([]model.ResourcePermission)
	logger.Debug("Retrieved permissions successfully",
		zap.String("subject_id", subjectID),
		zap.Int("permission_count", len(perms)),
		zap.Duration("duration", duration))
	return perms, nil
}

func (dao *IdentityStoreDAO) GetSecretForKey(ctx context.Context, keyID string) (*model.APIKey, error) {
	start := time.Now()
	session := dao.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
        MATCH (k:` + echo_neo4j.LabelAPIKey + ` {id: $keyID})
        OPTIONAL MATCH (k)-[:` + echo_neo4j.RelIssuedTo + `]->(s:` + echo_neo4j.LabelSubject + `)
        RETURN k, s.id AS subjectID
        `

		records, err := tx.Run(ctx, query, map[string]any{"keyID": keyID})
		if err != nil {
			return nil, err
		}
		if !records.Next(ctx) {
			return nil, records.Err()
		}

		record := records.Record()
		nodeValue, _ := record.Get("k")
		node, ok := nodeValue.(neo4j.Node)
		if !ok {
			return nil, fmt.Errorf("unexpected api key record type %T", nodeValue)
		}
		key, err := MapNodeToAPIKey(node)
		if err != nil {
			return nil, err
		}
		if subjectID, ok := record.Get("subjectID"); ok && subjectID != nil {
			key.SubjectID, _ = subjectID.(string)
		}
		return key, nil
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to retrieve api key",
			zap.Error(err),
			zap.String("key_id", keyID),
			zap.Duration("duration", duration))
		return nil, err
	}

	key, _ := result.(*model.APIKey)
	logger.Debug("Api key lookup finished",
		zap.String("key_id", keyID),
		zap.Bool("found", key != nil),
		zap.Duration("duration", duration))
	return key, nil
}

// MapNodeToAPIKey converts an ApiKey node, secret included.
func MapNodeToAPIKey(node neo4j.Node) (*model.APIKey, error) {
	props := node.Props
	key := &model.APIKey{}

	id, ok := props[echo_neo4j.AttrID].(string)
	if !ok {
		return nil, fmt.Errorf("failed to assert type for api key id: %v", props[echo_neo4j.AttrID])
	}
	key.KeyID = id

	secret, ok := props[echo_neo4j.AttrSecret].(string)
	if !ok {
		return nil, fmt.Errorf("failed to assert type for api key secret")
	}
	key.Secret = secret

	key.Name, _ = props[echo_neo4j.AttrName].(string)

	status, _ := props[echo_neo4j.AttrStatus].(string)
	key.Status = model.APIKeyStatus(status)

	if scopes, ok := props[echo_neo4j.AttrScopes].([]any); ok {
		for _, s := range scopes {
			if scope, ok := s.(string); ok {
				key.Scopes = append(key.Scopes, scope)
			}
		}
	}

	expiresAt, err := helper_util.ParseNullableTime(props[echo_neo4j.AttrExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("failed to parse api key expiresAt: %w", err)
	}
	key.ExpiresAt = expiresAt

	if createdAt, ok := props[echo_neo4j.AttrCreatedAt].(string); ok {
		key.CreatedAt, _ = helper_util.ParseTime(createdAt)
	}
	if updatedAt, ok := props[echo_neo4j.AttrUpdatedAt].(string); ok {
		key.UpdatedAt, _ = helper_util.ParseTime(updatedAt)
	}

	return key, nil
}
