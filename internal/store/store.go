// internal/store/store.go
package store

import (
	"context"
	"errors"

	"intake-engine/internal/models"
)

var (
	// ErrNotFound means no row matched the lookup.
	ErrNotFound = errors.New("ASSIGNMENT_NOT_FOUND")

	// ErrVersionConflict means a conditional patch lost a concurrent
	// update race; the caller should re-read and retry.
	ErrVersionConflict = errors.New("STORE_VERSION_CONFLICT")

	// ErrDuplicateOpportunity means an assignment with the same kind and
	// opportunity identifier already exists.
	ErrDuplicateOpportunity = errors.New("DUPLICATE_OPPORTUNITY")
)

// Store is the persistence collaborator for assignments and historical
// mapping rows.
type Store interface {
	Get(ctx context.Context, id string) (*models.Assignment, error)
	GetByOpportunity(ctx context.Context, kind models.ActionKind, opportunityID string) (*models.Assignment, error)
	Create(ctx context.Context, a *models.Assignment) error

	// Patch writes the full record conditioned on a.Version matching the
	// stored row, bumping the version on success. ErrVersionConflict on a
	// lost race.
	Patch(ctx context.Context, a *models.Assignment) error

	ScanMappingsByOwner(ctx context.Context, ownerEmail string) ([]models.SAToAMMapping, error)
}
