// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/dossier-engine/internal/questionnaire"
	"github.com/pdiddy/dossier-engine/internal/store"
	"github.com/pdiddy/dossier-engine/pkg/types"
)

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Inspect saved questionnaire drafts",
}

var draftShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved draft of the session with its progress",
	RunE:  runDraftShow,
}

func runDraftShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := appConfig()
	if err != nil {
		return err
	}
	graph, err := loadGraph(cfg)
	if err != nil {
		return err
	}
	st, closeStore, err := openSessionStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	answers, found, err := st.LoadDraft(context.Background())
	if err != nil {
		return err
	}
	if !found {
		fmt.Printf("No draft saved for session %s.\n", cfg.Draft.SessionID)
		return nil
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(answers)
	}

	fmt.Fprintf(os.Stdout, "Session %s: %d%% complete\n\n", cfg.Draft.SessionID, questionnaire.GlobalProgress(graph, answers))
	for _, s := range questionnaire.Summarize(graph, answers) {
		mark := " "
		if s.Complete {
			mark = "x"
		}
		fmt.Fprintf(os.Stdout, "[%s] %-30s %3d%%\n", mark, s.Title, s.Progress)
		visible, _ := graph.VisibleQuestions(s.ID, answers)
		for _, q := range visible {
			fmt.Fprintf(os.Stdout, "      %-20s %s\n", q.ID, oneLine(answers[q.ID]))
		}
	}
	return nil
}

var draftListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions with a saved draft in the local store",
	RunE:  runDraftList,
}

func runDraftList(cmd *cobra.Command, args []string) error {
	cfg, _, err := appConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Backend == types.StoreRemote {
		return fmt.Errorf("draft list needs the sqlite store backend")
	}
	db, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, err := db.ListSessions(context.Background())
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No drafts found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-24s  %-7s  %-8s  %s\n", "Session", "Answers", "Dossiers", "Last saved")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 70))
	for _, s := range sessions {
		fmt.Fprintf(os.Stdout, "%-24s  %-7d  %-8d  %s\n",
			s.SessionID, s.Answers, s.Dossiers, s.DraftUpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}

func init() {
	draftShowCmd.Flags().Bool("json", false, "print the raw answers as JSON")

	draftCmd.AddCommand(draftShowCmd)
	draftCmd.AddCommand(draftListCmd)
	rootCmd.AddCommand(draftCmd)
}
