// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/dossier-engine/internal/questionnaire"
	"github.com/pdiddy/dossier-engine/pkg/types"
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Inspect and validate the question set",
}

var questionsValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Check a question set file for structural errors",
	Long: `Validate parses the question set and checks that ids are unique,
dependencies point to existing questions, and single-choice questions and
their dependents use declared options.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuestionsValidate,
}

func runQuestionsValidate(cmd *cobra.Command, args []string) error {
	path, err := questionsPath(args)
	if err != nil {
		return err
	}
	set, err := questionnaire.LoadQuestionSet(path)
	if err != nil {
		return err
	}
	if _, err := questionnaire.NewGraph(set); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%s: %d sections, %d questions\n", path, len(set.Sections), set.QuestionCount())
	return nil
}

var questionsShowCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "Print the sections and questions of a question set",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runQuestionsShow,
}

func runQuestionsShow(cmd *cobra.Command, args []string) error {
	path, err := questionsPath(args)
	if err != nil {
		return err
	}
	set, err := questionnaire.LoadQuestionSet(path)
	if err != nil {
		return err
	}

	for i, s := range set.Sections {
		strategy := s.Strategy
		if strategy == "" {
			strategy = types.StrategyDefault
		}
		fmt.Fprintf(os.Stdout, "%d. %s (%s, %s)\n", i+1, s.Title, s.ID, strategy)
		for _, q := range s.Questions {
			var flags []string
			if q.Required {
				flags = append(flags, "required")
			}
			if q.AIAssist {
				flags = append(flags, "ai-assist")
			}
			if q.DependsOn != nil {
				flags = append(flags, fmt.Sprintf("when %s=%s", q.DependsOn.QuestionID, q.DependsOn.Expected))
			}
			kind := q.Kind
			if kind == "" {
				kind = types.KindText
			}
			fmt.Fprintf(os.Stdout, "   - %-20s %-13s %s", q.ID, kind, q.Text)
			if len(flags) > 0 {
				fmt.Fprintf(os.Stdout, " [%s]", strings.Join(flags, ", "))
			}
			fmt.Fprintln(os.Stdout)
			if len(q.Options) > 0 {
				fmt.Fprintf(os.Stdout, "     options: %s\n", strings.Join(q.Options, " | "))
			}
		}
	}
	return nil
}

func questionsPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	cfg, _, err := appConfig()
	if err != nil {
		return "", err
	}
	return cfg.Questions.Path, nil
}

func init() {
	questionsCmd.AddCommand(questionsValidateCmd)
	questionsCmd.AddCommand(questionsShowCmd)
	rootCmd.AddCommand(questionsCmd)
}
