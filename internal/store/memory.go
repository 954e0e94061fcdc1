package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tansaku-dev/tansaku/internal/models"
)

// Memory is an in-memory Backend with the same semantics as the SQLite
// store. A single mutex makes each operation atomic; every record that
// crosses the API boundary is deep-copied so callers never share state
// with the store.
type Memory struct {
	mu      sync.Mutex
	studies map[string]*models.Study  // by id
	names   map[string]string         // name -> id
	trials  map[string][]models.Trial // study id -> trials in number order
}

var _ Backend = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		studies: map[string]*models.Study{},
		names:   map[string]string{},
		trials:  map[string][]models.Trial{},
	}
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error { return nil }

func cloneAttrs(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func cloneStudy(s *models.Study) *models.Study {
	out := *s
	out.Directions = append([]models.Direction(nil), s.Directions...)
	out.UserAttrs = cloneAttrs(s.UserAttrs)
	out.SystemAttrs = cloneAttrs(s.SystemAttrs)
	return &out
}

func cloneTrial(t *models.Trial) *models.Trial {
	out := *t
	out.Params = make(map[string]models.ParamValue, len(t.Params))
	for k, v := range t.Params {
		out.Params[k] = v
	}
	out.Values = append([]float64(nil), t.Values...)
	out.UserAttrs = cloneAttrs(t.UserAttrs)
	out.SystemAttrs = cloneAttrs(t.SystemAttrs)
	if t.DatetimeComplete != nil {
		c := *t.DatetimeComplete
		out.DatetimeComplete = &c
	}
	return &out
}

// --- Study Operations ---

// CreateStudy inserts a new study, enforcing name uniqueness.
func (m *Memory) CreateStudy(ctx context.Context, name string, directions []models.Direction) (*models.Study, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.names[name]; ok {
		return nil, fmt.Errorf("study %q: %w", name, ErrDuplicateStudyName)
	}

	study := &models.Study{
		ID:          uuid.New().String(),
		Name:        name,
		Directions:  append([]models.Direction(nil), directions...),
		UserAttrs:   map[string]any{},
		SystemAttrs: map[string]any{},
		CreatedAt:   time.Now().UTC(),
	}
	m.studies[study.ID] = study
	m.names[name] = study.ID
	return cloneStudy(study), nil
}

// GetStudy retrieves a study by name.
func (m *Memory) GetStudy(ctx context.Context, name string) (*models.Study, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.names[name]
	if !ok {
		return nil, fmt.Errorf("study %q: %w", name, ErrStudyNotFound)
	}
	return cloneStudy(m.studies[id]), nil
}

// DeleteStudy removes a study and all its trials atomically.
func (m *Memory) DeleteStudy(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.names[name]
	if !ok {
		return fmt.Errorf("study %q: %w", name, ErrStudyNotFound)
	}
	delete(m.names, name)
	delete(m.studies, id)
	delete(m.trials, id)
	return nil
}

// SetStudyUserAttr upserts one user attribute. Last write wins.
func (m *Memory) SetStudyUserAttr(ctx context.Context, studyID, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	study, ok := m.studies[studyID]
	if !ok {
		return fmt.Errorf("study id %q: %w", studyID, ErrStudyNotFound)
	}
	study.UserAttrs[key] = value
	return nil
}

// ListStudies returns all studies ordered by creation time.
func (m *Memory) ListStudies(ctx context.Context) ([]models.Study, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	studies := make([]models.Study, 0, len(m.studies))
	for _, s := range m.studies {
		studies = append(studies, *cloneStudy(s))
	}
	sortStudies(studies)
	return studies, nil
}

// ListSummaries returns one summary per study, computed over the live
// trial set.
func (m *Memory) ListSummaries(ctx context.Context) ([]models.StudySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	studies := make([]models.Study, 0, len(m.studies))
	for _, s := range m.studies {
		studies = append(studies, *s)
	}
	sortStudies(studies)

	summaries := make([]models.StudySummary, 0, len(studies))
	for _, s := range studies {
		sum := models.StudySummary{
			Name:       s.Name,
			Directions: append([]models.Direction(nil), s.Directions...),
			TrialCount: int64(len(m.trials[s.ID])),
		}
		for i := range m.trials[s.ID] {
			start := m.trials[s.ID][i].DatetimeStart
			if sum.EarliestStart == nil || start.Before(*sum.EarliestStart) {
				t := start
				sum.EarliestStart = &t
			}
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

func sortStudies(studies []models.Study) {
	sort.Slice(studies, func(i, j int) bool {
		if studies[i].CreatedAt.Equal(studies[j].CreatedAt) {
			return studies[i].Name < studies[j].Name
		}
		return studies[i].CreatedAt.Before(studies[j].CreatedAt)
	})
}

// --- Trial Operations ---

// CreateTrial inserts a running trial with the next dense number. The
// mutex makes count-and-append atomic, so ErrConflict never arises here.
func (m *Memory) CreateTrial(ctx context.Context, studyID string, params map[string]models.ParamValue) (*models.Trial, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.studies[studyID]; !ok {
		return nil, fmt.Errorf("study id %q: %w", studyID, ErrStudyNotFound)
	}

	if params == nil {
		params = map[string]models.ParamValue{}
	}
	trial := models.Trial{
		ID:            uuid.New().String(),
		StudyID:       studyID,
		Number:        int64(len(m.trials[studyID])),
		State:         models.TrialStateRunning,
		Params:        params,
		UserAttrs:     map[string]any{},
		SystemAttrs:   map[string]any{},
		DatetimeStart: time.Now().UTC(),
	}
	m.trials[studyID] = append(m.trials[studyID], *cloneTrial(&trial))
	return cloneTrial(&trial), nil
}

// GetTrial retrieves a trial by study and number.
func (m *Memory) GetTrial(ctx context.Context, studyID string, number int64) (*models.Trial, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	trial, err := m.find(studyID, number)
	if err != nil {
		return nil, err
	}
	return cloneTrial(trial), nil
}

func (m *Memory) find(studyID string, number int64) (*models.Trial, error) {
	trials := m.trials[studyID]
	if number < 0 || number >= int64(len(trials)) {
		return nil, fmt.Errorf("trial %d in study %q: %w", number, studyID, ErrTrialNotFound)
	}
	return &trials[number], nil
}

// ListTrials returns all trials of a study in number order.
func (m *Memory) ListTrials(ctx context.Context, studyID string) ([]models.Trial, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	trials := make([]models.Trial, 0, len(m.trials[studyID]))
	for i := range m.trials[studyID] {
		trials = append(trials, *cloneTrial(&m.trials[studyID][i]))
	}
	return trials, nil
}

// FinishTrial transitions a trial to a terminal state exactly once.
func (m *Memory) FinishTrial(ctx context.Context, studyID string, number int64, state models.TrialState, values []float64, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	trial, err := m.find(studyID, number)
	if err != nil {
		return err
	}
	if trial.State.Finished() {
		return fmt.Errorf("trial %d in study %q is %s: %w", number, studyID, trial.State, ErrTrialAlreadyFinished)
	}

	trial.State = state
	trial.Values = append([]float64(nil), values...)
	c := completedAt
	trial.DatetimeComplete = &c
	return nil
}

// SetTrialUserAttr upserts one user attribute on a trial.
func (m *Memory) SetTrialUserAttr(ctx context.Context, studyID string, number int64, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	trial, err := m.find(studyID, number)
	if err != nil {
		return err
	}
	trial.UserAttrs[key] = value
	return nil
}
