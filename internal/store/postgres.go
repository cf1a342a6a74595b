// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"intake-engine/internal/common/logger"
	"intake-engine/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

const opportunityCacheTTL = 5 * time.Minute

const assignmentColumns = `id, kind, opportunity_id, status, am_name, am_email, region,
		practice_assignees, completion, version, status_changed_at, assigned_at,
		pending_approval_since, pending_approval_hours, created_at, updated_at`

// PostgresStore persists assignments in Postgres with an optional Redis
// fast path for the opportunity dedup lookup.
type PostgresStore struct {
	db     *sql.DB
	redis  *redis.Client
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, redisClient *redis.Client, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		redis:  redisClient,
		logger: log,
	}
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Assignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM assignments WHERE id = $1`, assignmentColumns)
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// GetByOpportunity is the dedup lookup. The Redis entry only caches the
// id; the record itself is always read from Postgres.
func (s *PostgresStore) GetByOpportunity(ctx context.Context, kind models.ActionKind, opportunityID string) (*models.Assignment, error) {
	if s.redis != nil {
		if id, err := s.redis.Get(ctx, opportunityCacheKey(kind, opportunityID)).Result(); err == nil && id != "" {
			if a, err := s.Get(ctx, id); err == nil {
				return a, nil
			}
		}
	}

	query := fmt.Sprintf(`SELECT %s FROM assignments WHERE kind = $1 AND opportunity_id = $2`, assignmentColumns)
	a, err := s.scanOne(s.db.QueryRowContext(ctx, query, string(kind), opportunityID))
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, opportunityCacheKey(kind, opportunityID), a.ID, opportunityCacheTTL).Err(); err != nil {
			s.logger.Warn("opportunity cache write failed", map[string]interface{}{
				"opportunityId": opportunityID,
				"error":         err.Error(),
			})
		}
	}
	return a, nil
}

func (s *PostgresStore) Create(ctx context.Context, a *models.Assignment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	a.Version = 1

	practices, completion, err := marshalMaps(a)
	if err != nil {
		return err
	}

	query := `INSERT INTO assignments (id, kind, opportunity_id, status, am_name, am_email, region,
		practice_assignees, completion, version, status_changed_at, assigned_at,
		pending_approval_since, pending_approval_hours, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err = s.db.ExecContext(ctx, query,
		a.ID, string(a.Kind), a.OpportunityID, string(a.Status),
		a.AccountManager.Name, a.AccountManager.Email, a.Region,
		practices, completion, a.Version,
		a.StatusChangedAt, nullTime(a.AssignedAt),
		nullTime(a.PendingApprovalSince), a.PendingApprovalHours,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateOpportunity
		}
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

// Patch rewrites the mutable columns conditioned on the version the
// caller read. Zero rows affected on an existing id means a concurrent
// writer got there first.
func (s *PostgresStore) Patch(ctx context.Context, a *models.Assignment) error {
	practices, completion, err := marshalMaps(a)
	if err != nil {
		return err
	}
	a.UpdatedAt = time.Now().UTC()

	query := `UPDATE assignments SET status = $1, am_name = $2, am_email = $3, region = $4,
		practice_assignees = $5, completion = $6, status_changed_at = $7, assigned_at = $8,
		pending_approval_since = $9, pending_approval_hours = $10, updated_at = $11,
		version = version + 1
		WHERE id = $12 AND version = $13`

	res, err := s.db.ExecContext(ctx, query,
		string(a.Status), a.AccountManager.Name, a.AccountManager.Email, a.Region,
		practices, completion, a.StatusChangedAt, nullTime(a.AssignedAt),
		nullTime(a.PendingApprovalSince), a.PendingApprovalHours, a.UpdatedAt,
		a.ID, a.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to patch assignment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read patch result: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM assignments WHERE id = $1)`, a.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check assignment existence: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	a.Version++
	return nil
}

func (s *PostgresStore) ScanMappingsByOwner(ctx context.Context, ownerEmail string) ([]models.SAToAMMapping, error) {
	query := `SELECT specialist_name, specialist_email, owner_email, region, practices
		FROM sa_am_mappings WHERE LOWER(owner_email) = LOWER($1)`

	rows, err := s.db.QueryContext(ctx, query, ownerEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to scan mappings: %w", err)
	}
	defer rows.Close()

	var out []models.SAToAMMapping
	for rows.Next() {
		var m models.SAToAMMapping
		if err := rows.Scan(&m.SpecialistName, &m.SpecialistEmail, &m.OwnerEmail,
			&m.Region, pq.Array(&m.Practices)); err != nil {
			return nil, fmt.Errorf("failed to scan mapping row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mapping scan failed: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) scanOne(row *sql.Row) (*models.Assignment, error) {
	var (
		a                  models.Assignment
		kind, status       string
		practices          []byte
		completion         []byte
		assignedAt         sql.NullTime
		pendingApprovalSin sql.NullTime
	)

	err := row.Scan(&a.ID, &kind, &a.OpportunityID, &status,
		&a.AccountManager.Name, &a.AccountManager.Email, &a.Region,
		&practices, &completion, &a.Version, &a.StatusChangedAt, &assignedAt,
		&pendingApprovalSin, &a.PendingApprovalHours, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan assignment: %w", err)
	}

	a.Kind = models.ActionKind(kind)
	a.Status = models.Status(status)
	if assignedAt.Valid {
		a.AssignedAt = assignedAt.Time
	}
	if pendingApprovalSin.Valid {
		a.PendingApprovalSince = pendingApprovalSin.Time
	}

	if len(practices) > 0 {
		if err := json.Unmarshal(practices, &a.PracticeAssignees); err != nil {
			return nil, fmt.Errorf("failed to decode practice map: %w", err)
		}
	}
	if a.PracticeAssignees == nil {
		a.PracticeAssignees = map[string][]string{}
	}
	if len(completion) > 0 {
		if err := json.Unmarshal(completion, &a.Completion); err != nil {
			return nil, fmt.Errorf("failed to decode completion map: %w", err)
		}
	}
	if a.Completion == nil {
		a.Completion = map[string]models.CompletionEntry{}
	}
	return &a, nil
}

func marshalMaps(a *models.Assignment) ([]byte, []byte, error) {
	practices, err := json.Marshal(a.PracticeAssignees)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode practice map: %w", err)
	}
	completion, err := json.Marshal(a.Completion)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode completion map: %w", err)
	}
	return practices, completion, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func opportunityCacheKey(kind models.ActionKind, opportunityID string) string {
	return strings.Join([]string{"opportunity", string(kind), opportunityID}, ":")
}
