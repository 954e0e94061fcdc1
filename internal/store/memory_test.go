package store

import (
	"context"
	"testing"

	"github.com/tansaku-dev/tansaku/internal/models"
)

// Records returned by the memory store must be copies: mutating them must
// not leak into the store.
func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	study, err := m.CreateStudy(ctx, "isolated", []models.Direction{models.DirectionMinimize})
	if err != nil {
		t.Fatalf("CreateStudy failed: %v", err)
	}
	study.Name = "mutated"
	study.UserAttrs["sneaky"] = true

	got, err := m.GetStudy(ctx, "isolated")
	if err != nil {
		t.Fatalf("GetStudy failed: %v", err)
	}
	if got.Name != "isolated" || len(got.UserAttrs) != 0 {
		t.Errorf("Caller mutation leaked into the store: %+v", got)
	}

	trial, err := m.CreateTrial(ctx, got.ID, map[string]models.ParamValue{
		"x": {Value: 1.0, Distribution: models.FloatDistribution(0, 2)},
	})
	if err != nil {
		t.Fatalf("CreateTrial failed: %v", err)
	}
	trial.State = models.TrialStateFail
	trial.Params["y"] = models.ParamValue{Value: 9}

	gotTrial, err := m.GetTrial(ctx, got.ID, trial.Number)
	if err != nil {
		t.Fatalf("GetTrial failed: %v", err)
	}
	if gotTrial.State != models.TrialStateRunning || len(gotTrial.Params) != 1 {
		t.Errorf("Caller mutation leaked into the stored trial: %+v", gotTrial)
	}
}

func TestMemoryClose(t *testing.T) {
	m := NewMemory()
	if err := m.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
