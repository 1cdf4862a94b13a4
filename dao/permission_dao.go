package dao

import (
	"context"
	"fmt"
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
	"github.com/dev-mohitbeniwal/echo/gatekeeper/util"
)

// PermissionDAO manages direct GRANTS edges between subjects and resources.
type PermissionDAO struct {
	Driver neo4j.DriverWithContext
	Audit  audit.Sink
}

func NewPermissionDAO(driver neo4j.DriverWithContext, sink audit.Sink) *PermissionDAO {
	return &PermissionDAO{Driver: driver, Audit: sink}
}

func (dao *PermissionDAO) EnsureUniqueConstraint(ctx context.Context) error {
	logger.Info("Ensuring unique constraints on Subject ID and Resource key")
	_, err := db.ExecuteWrite(ctx, dao.Driver, func(tx neo4j.ManagedTransaction) (any, error) {
		queries := []string{
			`CREATE CONSTRAINT unique_subject_id IF NOT EXISTS
            FOR (s:` + echo_neo4j.LabelSubject + `) REQUIRE s.id IS UNIQUE`,
			`CREATE CONSTRAINT unique_resource_key IF NOT EXISTS
            FOR (r:` + echo_neo4j.LabelResource + `) REQUIRE r.key IS UNIQUE`,
		}
		for _, q := range queries {
			if _, err := tx.Run(ctx, q, nil); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("Failed to ensure unique constraints for permissions", zap.Error(err))
		return err
	}
	logger.Info("Successfully ensured unique constraints for permissions")
	return nil
}

func effectOf(allowed bool) string {
	if allowed {
		return echo_neo4j.EffectAllow
	}
	return echo_neo4j.EffectDeny
}

// GrantPermissions upserts one GRANTS edge per grant, creating the subject
// and resources as needed.
func (dao *PermissionDAO) GrantPermissions(ctx context.Context, subjectID string, grants []model.PermissionGrant) error {
	start := time.Now()
	logger.Info("Granting permissions", zap.String("subjectID", subjectID), zap.Int("count", len(grants)))

	rows := make([]map[string]any, 0, len(grants))
	for _, g := range grants {
		rows = append(rows, map[string]any{"key": g.ResourceKey, "effect": effectOf(g.Allowed)})
	}

	_, err := db.ExecuteWrite(ctx, dao.Driver, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
        MERGE (s:` + echo_neo4j.LabelSubject + ` {id: $subjectID})
        WITH s
        UNWIND $grants AS row
        MERGE (r:` + echo_neo4j.LabelResource + ` {key: row.key})
        MERGE (s)-[g:` + echo_neo4j.RelGrants + `]->(r)
        SET g.` + echo_neo4j.AttrEffect + ` = row.effect, g.` + echo_neo4j.AttrUpdatedAt + ` = $updatedAt
        `
		_, err := tx.Run(ctx, query, map[string]any{
			"subjectID": subjectID,
			"grants":    rows,
			"updatedAt": time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", echo_errors.ErrDatabaseOperation, err)
		}
		return nil, nil
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to grant permissions",
			zap.Error(err),
			zap.String("subjectID", subjectID),
			zap.Duration("duration", duration))
		return err
	}

	logger.Info("Permissions granted successfully",
		zap.String("subjectID", subjectID),
		zap.Duration("duration", duration))
	dao.recordChange(ctx, "GRANT_"+echo_neo4j.RelGrants, subjectID, map[string]any{"granted": grants})
	return nil
}

// RevokePermission removes the direct grant of resourceKey from subjectID.
func (dao *PermissionDAO) RevokePermission(ctx context.Context, subjectID, resourceKey string) error {
	start := time.Now()
	logger.Info("Revoking permission", zap.String("subjectID", subjectID), zap.String("resourceKey", resourceKey))

	result, err := db.ExecuteWrite(ctx, dao.Driver, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
        MATCH (:` + echo_neo4j.LabelSubject + ` {id: $subjectID})-[g:` + echo_neo4j.RelGrants + `]->(:` + echo_neo4j.LabelResource + ` {key: $resourceKey})
        DELETE g
        RETURN count(g) AS deleted
        `
		res, err := tx.Run(ctx, query, map[string]any{"subjectID": subjectID, "resourceKey": resourceKey})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", echo_errors.ErrDatabaseOperation, err)
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		deleted, _ := record.Get("deleted")
		return deleted, nil
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to revoke permission",
			zap.Error(err),
			zap.String("subjectID", subjectID),
			zap.Duration("duration", duration))
		return err
	}
	if deleted, _ := result.(int64); deleted == 0 {
		return echo_errors.ErrPermissionNotFound
	}

	logger.Info("Permission revoked successfully",
		zap.String("subjectID", subjectID),
		zap.String("resourceKey", resourceKey),
		zap.Duration("duration", duration))
	dao.recordChange(ctx, "REVOKE_"+echo_neo4j.RelGrants, subjectID, map[string]any{"revoked": resourceKey})
	return nil
}

// ListPermissions returns the direct grants of subjectID; role grants are
// not included.
func (dao *PermissionDAO) ListPermissions(ctx context.Context, subjectID string) ([]model.ResourcePermission, error) {
	result, err := db.ExecuteRead(ctx, dao.Driver, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
        MATCH (:` + echo_neo4j.LabelSubject + ` {id: $subjectID})-[g:` + echo_neo4j.RelGrants + `]->(r:` + echo_neo4j.LabelResource + `)
        RETURN r.` + echo_neo4j.AttrKey + ` AS key, g.` + echo_neo4j.AttrEffect + ` AS effect
        ORDER BY key
        `
		res, err := tx.Run(ctx, query, map[string]any{"subjectID": subjectID})
		if err != nil {
			return nil, err
		}
		perms := []model.ResourcePermission{}
		for res.Next(ctx) {
			record := res.Record()
			key, _ := record.Get("key")
			effect, _ := record.Get("effect")
			resourceKey, _ := key.(string)
			perms = append(perms, model.ResourcePermission{
				ResourceKey: resourceKey,
				Allowed:     effect != echo_neo4j.EffectDeny,
			})
		}
		return perms, res.Err()
	})
	if err != nil {
		logger.Error("Failed to list permissions", zap.Error(err), zap.String("subjectID", subjectID))
		return nil, fmt.Errorf("%w: %w", echo_errors.ErrDatabaseOperation, err)
	}
	perms, _ := result.([]model.ResourcePermission)
	return perms, nil
}

func (dao *PermissionDAO) recordChange(ctx context.Context, action, subjectID string, changes map[string]any) {
	if dao.Audit == nil {
		return
	}
	details, err := json.Marshal(changes)
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
