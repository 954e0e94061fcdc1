package study

import (
	"context"
	"time"

	"github.com/tansaku-dev/tansaku/internal/models"
	"github.com/tansaku-dev/tansaku/internal/store"
)

// Facade exposes the read-only projections used by reporting tools.
type Facade struct {
	backend store.Backend
}

// NewFacade returns a Facade over the given backend.
func NewFacade(b store.Backend) *Facade {
	return &Facade{backend: b}
}

// Summaries returns one summary per study.
func (f *Facade) Summaries(ctx context.Context) ([]models.StudySummary, error) {
	return f.backend.ListSummaries(ctx)
}

// Trials returns all trials of a study in number order.
func (f *Facade) Trials(ctx context.Context, studyName string) ([]models.Trial, error) {
	studyRec, err := f.backend.GetStudy(ctx, studyName)
	if err != nil {
		return nil, err
	}
	return f.backend.ListTrials(ctx, studyRec.ID)
}

// FlatTrial is a trial expanded into a flat record for rendering. Params
// is sparse: branched search spaces give different trials different keys.
type FlatTrial struct {
	Number           int64          `json:"number"`
	State            string         `json:"state"`
	Values           []float64      `json:"values,omitempty"`
	Params           map[string]any `json:"params"`
	UserAttrs        map[string]any `json:"user_attrs,omitempty"`
	DatetimeStart    time.Time      `json:"datetime_start"`
	DatetimeComplete *time.Time     `json:"datetime_complete,omitempty"`
	Duration         string         `json:"duration,omitempty"`
}

// FlatTrials returns the study's trials as flat records.
func (f *Facade) FlatTrials(ctx context.Context, studyName string) ([]FlatTrial, error) {
	trials, err := f.Trials(ctx, studyName)
	if err != nil {
		return nil, err
	}

	flat := make([]FlatTrial, 0, len(trials))
	for i := range trials {
		flat = append(flat, Flatten(&trials[i]))
	}
	return flat, nil
}

// Flatten expands one trial into its flat record.
func Flatten(t *models.Trial) FlatTrial {
	params := make(map[string]any, len(t.Params))
	for name, p := range t.Params {
		params[name] = p.Value
	}
	ft := FlatTrial{
		Number:           t.Number,
		State:            string(t.State),
		Values:           append([]float64(nil), t.Values...),
		Params:           params,
		UserAttrs:        t.UserAttrs,
		DatetimeStart:    t.DatetimeStart,
		DatetimeComplete: t.DatetimeComplete,
	}
	if d, ok := t.Duration(); ok {
		ft.Duration = d.String()
	}
	return ft
}
