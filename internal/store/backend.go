// Package store provides the persistence backends for tansaku studies and
// trials: a SQLite store for durable multi-process coordination and an
// in-memory store with identical semantics.
package store

import (
	"context"
	"time"

	"github.com/tansaku-dev/tansaku/internal/models"
)

// Backend is the transactional storage surface the lifecycle components
// are built on. Every method is an individually atomic operation; no
// caller-held lock spans two calls.
//
// Concurrency contract:
//   - CreateStudy enforces name uniqueness atomically with the insert.
//   - DeleteStudy removes the study and all its trials all-or-nothing.
//   - CreateTrial assigns the next dense trial number race-free; when two
//     writers collide it returns ErrConflict and the caller retries.
//   - FinishTrial is a compare-and-set on the running state: exactly one
//     of any number of racing finalizers succeeds, the rest get
//     ErrTrialAlreadyFinished.
type Backend interface {
	CreateStudy(ctx context.Context, name string, directions []models.Direction) (*models.Study, error)
	GetStudy(ctx context.Context, name string) (*models.Study, error)
	DeleteStudy(ctx context.Context, name string) error
	SetStudyUserAttr(ctx context.Context, studyID, key string, value any) error
	ListStudies(ctx context.Context) ([]models.Study, error)
	ListSummaries(ctx context.Context) ([]models.StudySummary, error)

	CreateTrial(ctx context.Context, studyID string, params map[string]models.ParamValue) (*models.Trial, error)
	GetTrial(ctx context.Context, studyID string, number int64) (*models.Trial, error)
	ListTrials(ctx context.Context, studyID string) ([]models.Trial, error)
	FinishTrial(ctx context.Context, studyID string, number int64, state models.TrialState, values []float64, completedAt time.Time) error
	SetTrialUserAttr(ctx context.Context, studyID string, number int64, key string, value any) error

	Close() error
}
