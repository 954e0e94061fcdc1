package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tansaku-dev/tansaku/internal/models"
	"github.com/tansaku-dev/tansaku/internal/sampler"
	"github.com/tansaku-dev/tansaku/internal/study"
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Allocate a new trial with sampled parameters",
	RunE:  runAsk,
}

var tellCmd = &cobra.Command{
	Use:   "tell",
	Short: "Report the outcome of a trial",
	RunE:  runTell,
}

var trialsCmd = &cobra.Command{
	Use:   "trials",
	Short: "List the trials of a study",
	RunE:  runTrials,
}

var bestTrialCmd = &cobra.Command{
	Use:   "best-trial",
	Short: "Show the best trial of a single-objective study",
	RunE:  runBestTrial,
}

var bestTrialsCmd = &cobra.Command{
	Use:   "best-trials",
	Short: "Show the Pareto-optimal trials of a multi-objective study",
	RunE:  runBestTrials,
}

var (
	searchSpaceJSON string
	samplerSeed     int64
	trialNumber     int64
	tellValues      string
	tellState       string
)

func init() {
	askCmd.Flags().StringVar(&studyName, "study-name", "", "Study name (required)")
	askCmd.Flags().StringVar(&searchSpaceJSON, "search-space", "", `Search space as JSON, e.g. {"x":{"kind":"float","low":-10,"high":10}}`)
	askCmd.Flags().Int64Var(&samplerSeed, "seed", 0, "Sampler seed (defaults to current time)")
	askCmd.MarkFlagRequired("study-name")

	tellCmd.Flags().StringVar(&studyName, "study-name", "", "Study name (required)")
	tellCmd.Flags().Int64Var(&trialNumber, "trial-number", -1, "Trial number (required)")
	tellCmd.Flags().StringVar(&tellValues, "values", "", "Comma-separated objective values")
	tellCmd.Flags().StringVar(&tellState, "state", "", "Terminal state when no values are reported: fail or pruned")
	tellCmd.MarkFlagRequired("study-name")
	tellCmd.MarkFlagRequired("trial-number")

	trialsCmd.Flags().StringVar(&studyName, "study-name", "", "Study name (required)")
	trialsCmd.MarkFlagRequired("study-name")

	bestTrialCmd.Flags().StringVar(&studyName, "study-name", "", "Study name (required)")
	bestTrialCmd.MarkFlagRequired("study-name")

	bestTrialsCmd.Flags().StringVar(&studyName, "study-name", "", "Study name (required)")
	bestTrialsCmd.MarkFlagRequired("study-name")
}

func runAsk(cmd *cobra.Command, args []string) error {
	backend, err := openBackend()
	if err != nil {
		return err
	}
	defer backend.Close()

	space := map[string]models.Distribution{}
	if searchSpaceJSON != "" {
		space, err = models.ParseSearchSpace([]byte(searchSpaceJSON))
		if err != nil {
			return err
		}
	}

	seed := samplerSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	trial, err := study.NewAllocator(backend).Ask(cmd.Context(), studyName, space, sampler.NewRandom(seed))
	if err != nil {
		return err
	}
	return renderTrials([]models.Trial{*trial})
}

func runTell(cmd *cobra.Command, args []string) error {
	backend, err := openBackend()
	if err != nil {
		return err
	}
	defer backend.Close()

	var outcome study.Outcome
	switch {
	case tellValues != "" && tellState != "":
		return fmt.Errorf("--values and --state are mutually exclusive")
	case tellValues != "":
		values, err := parseValues(tellValues)
		if err != nil {
			return err
		}
		outcome = study.Values(values...)
	case tellState == string(models.TrialStateFail):
		outcome = study.Failed()
	case tellState == string(models.TrialStatePruned):
		outcome = study.Pruned()
	case tellState != "":
		return fmt.Errorf("unknown state %q: want fail or pruned", tellState)
	default:
		return fmt.Errorf("either --values or --state is required")
	}

	return study.NewFinalizer(backend).Tell(cmd.Context(), studyName, trialNumber, outcome)
}

func parseValues(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	values := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parse value %q: %w", p, err)
		}
		values[i] = v
	}
	return values, nil
}

func runTrials(cmd *cobra.Command, args []string) error {
	backend, err := openBackend()
	if err != nil {
		return err
	}
	defer backend.Close()

	trials, err := study.NewFacade(backend).Trials(cmd.Context(), studyName)
	if err != nil {
		return err
	}
	return renderTrials(trials)
}

func runBestTrial(cmd *cobra.Command, args []string) error {
	backend, err := openBackend()
	if err != nil {
		return err
	}
	defer backend.Close()

	best, err := study.NewSelector(backend).Best(cmd.Context(), studyName)
	if err != nil {
		return err
	}
	return renderTrials([]models.Trial{*best})
}

func runBestTrials(cmd *cobra.Command, args []string) error {
	backend, err := openBackend()
	if err != nil {
		return err
	}
	defer backend.Close()

	front, err := study.NewSelector(backend).BestTrials(cmd.Context(), studyName)
	if err != nil {
		return err
	}
	return renderTrials(front)
}

func renderTrials(trials []models.Trial) error {
	flat := make([]study.FlatTrial, 0, len(trials))
	rows := make([][]string, 0, len(trials))
	for i := range trials {
		ft := study.Flatten(&trials[i])
		flat = append(flat, ft)
		rows = append(rows, []string{
			fmt.Sprintf("%d", ft.Number),
			ft.State,
			formatValues(ft.Values),
			formatParams(ft.Params),
			ft.Duration,
		})
	}
	return render(flat, []string{"NUMBER", "STATE", "VALUES", "PARAMS", "DURATION"}, rows)
}
