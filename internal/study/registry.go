// Package study implements the study/trial lifecycle: creating and
// deleting studies, the ask/tell allocation protocol for distributed
// workers, and best-trial selection. All state lives in a store.Backend;
// no component holds a lock across calls, so any number of processes can
// share one backend.
package study

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tansaku-dev/tansaku/internal/models"
	"github.com/tansaku-dev/tansaku/internal/store"
)

// DefaultNamePrefix prefixes generated study names when the caller does
// not supply one.
const DefaultNamePrefix = "no-name-"

// generated names collide only if uuids collide; the bound keeps a broken
// backend from looping forever.
const maxNameAttempts = 10

// Registry creates, deletes, and annotates studies.
type Registry struct {
	backend store.Backend
}

// NewRegistry returns a Registry over the given backend.
func NewRegistry(b store.Backend) *Registry {
	return &Registry{backend: b}
}

// Create creates a study with the given directions, fixed for its
// lifetime. An empty name gets a generated "no-name-<uuid>" name. When
// skipIfExists is set a name collision returns the existing study
// unchanged instead of failing.
func (r *Registry) Create(ctx context.Context, name string, directions []models.Direction, skipIfExists bool) (*models.Study, error) {
	if len(directions) == 0 {
		return nil, fmt.Errorf("at least one direction required: %w", ErrInvalidDirection)
	}
	for _, d := range directions {
		if !d.Valid() {
			return nil, fmt.Errorf("direction %q: %w", d, ErrInvalidDirection)
		}
	}

	if name == "" {
		for attempt := 0; attempt < maxNameAttempts; attempt++ {
			candidate := DefaultNamePrefix + uuid.New().String()
			study, err := r.backend.CreateStudy(ctx, candidate, directions)
			if errors.Is(err, store.ErrDuplicateStudyName) {
				continue
			}
			return study, err
		}
		return nil, fmt.Errorf("could not generate a unique study name after %d attempts", maxNameAttempts)
	}

	study, err := r.backend.CreateStudy(ctx, name, directions)
	if errors.Is(err, store.ErrDuplicateStudyName) && skipIfExists {
		return r.backend.GetStudy(ctx, name)
	}
	return study, err
}

// Get retrieves a study by name.
func (r *Registry) Get(ctx context.Context, name string) (*models.Study, error) {
	return r.backend.GetStudy(ctx, name)
}

// Delete removes a study and all its trials atomically.
func (r *Registry) Delete(ctx context.Context, name string) error {
	return r.backend.DeleteStudy(ctx, name)
}

// SetUserAttr upserts one study-level user attribute. Last write wins
// under concurrent calls.
func (r *Registry) SetUserAttr(ctx context.Context, name, key string, value any) error {
	study, err := r.backend.GetStudy(ctx, name)
	if err != nil {
		return err
	}
	return r.backend.SetStudyUserAttr(ctx, study.ID, key, value)
}

// Summaries returns one summary per study, computed over the live trial
// set so it reflects concurrent writers.
func (r *Registry) Summaries(ctx context.Context) ([]models.StudySummary, error) {
	return r.backend.ListSummaries(ctx)
}
