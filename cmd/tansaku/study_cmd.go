package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tansaku-dev/tansaku/internal/models"
	"github.com/tansaku-dev/tansaku/internal/study"
)

var createStudyCmd = &cobra.Command{
	Use:   "create-study",
	Short: "Create a new study",
	RunE:  runCreateStudy,
}

var deleteStudyCmd = &cobra.Command{
	Use:   "delete-study",
	Short: "Delete a study and all its trials",
	RunE:  runDeleteStudy,
}

var studiesCmd = &cobra.Command{
	Use:   "studies",
	Short: "List study summaries",
	RunE:  runStudies,
}

var setUserAttrCmd = &cobra.Command{
	Use:   "set-user-attr",
	Short: "Set a user attribute on a study",
	RunE:  runSetUserAttr,
}

var (
	studyName    string
	directions   []string
	skipIfExists bool
	attrKey      string
	attrValue    string
)

func init() {
	createStudyCmd.Flags().StringVar(&studyName, "study-name", "", "Study name (generated when omitted)")
	createStudyCmd.Flags().StringSliceVar(&directions, "direction", []string{"minimize"}, "Objective direction: minimize or maximize (repeat for multi-objective)")
	createStudyCmd.Flags().BoolVar(&skipIfExists, "skip-if-exists", false, "Return the existing study instead of failing on a name collision")

	deleteStudyCmd.Flags().StringVar(&studyName, "study-name", "", "Study name (required)")
	deleteStudyCmd.MarkFlagRequired("study-name")

	setUserAttrCmd.Flags().StringVar(&studyName, "study-name", "", "Study name (required)")
	setUserAttrCmd.Flags().StringVar(&attrKey, "key", "", "Attribute key (required)")
	setUserAttrCmd.Flags().StringVar(&attrValue, "value", "", "Attribute value (required)")
	setUserAttrCmd.MarkFlagRequired("study-name")
	setUserAttrCmd.MarkFlagRequired("key")
	setUserAttrCmd.MarkFlagRequired("value")
}

func runCreateStudy(cmd *cobra.Command, args []string) error {
	backend, err := openBackend()
	if err != nil {
		return err
	}
	defer backend.Close()

	dirs := make([]models.Direction, len(directions))
	for i, d := range directions {
		dirs[i] = models.Direction(d)
	}

	registry := study.NewRegistry(backend)
	created, err := registry.Create(cmd.Context(), studyName, dirs, skipIfExists)
	if err != nil {
		return err
	}

	// Print only the name so scripts can capture it.
	fmt.Println(created.Name)
	return nil
}

func runDeleteStudy(cmd *cobra.Command, args []string) error {
	backend, err := openBackend()
	if err != nil {
		return err
	}
	defer backend.Close()

	return study.NewRegistry(backend).Delete(cmd.Context(), studyName)
}

func runStudies(cmd *cobra.Command, args []string) error {
	backend, err := openBackend()
	if err != nil {
		return err
	}
	defer backend.Close()

	summaries, err := study.NewRegistry(backend).Summaries(cmd.Context())
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.Name,
			formatDirections(s.Directions),
			fmt.Sprintf("%d", s.TrialCount),
			formatTime(s.EarliestStart),
		})
	}
	return render(summaries, []string{"NAME", "DIRECTIONS", "N_TRIALS", "EARLIEST_START"}, rows)
}

func runSetUserAttr(cmd *cobra.Command, args []string) error {
	backend, err := openBackend()
	if err != nil {
		return err
	}
	defer backend.Close()

	return study.NewRegistry(backend).SetUserAttr(cmd.Context(), studyName, attrKey, attrValue)
}
