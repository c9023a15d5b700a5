// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/dossier-engine/internal/store"
	"github.com/pdiddy/dossier-engine/pkg/types"
)

var dossierCmd = &cobra.Command{
	Use:   "dossier",
	Short: "Show or export the latest assembled dossier",
}

var dossierShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the latest dossier of the session",
	RunE:  runDossierShow,
}

func runDossierShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := appConfig()
	if err != nil {
		return err
	}
	st, closeStore, err := openSessionStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	d, found, err := st.LoadLatestDossier(context.Background())
	if err != nil {
		return err
	}
	if !found {
		fmt.Printf("No dossier assembled for session %s.\n", cfg.Draft.SessionID)
		return nil
	}
	for _, s := range d.Sections {
		fmt.Fprintf(os.Stdout, "## %s\n\n%s\n\n", s.Title, s.Content)
	}
	return nil
}

var dossierExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the latest dossier to YAML or JSON",
	Long: `Export writes the session's latest dossier to
<data_dir>/exports/<session>.yaml or .json.`,
	RunE: runDossierExport,
}

func runDossierExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	cfg, _, err := appConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Backend == types.StoreRemote {
		return fmt.Errorf("dossier export needs the sqlite store backend")
	}
	db, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer db.Close()
	ss := db.Session(cfg.Draft.SessionID)

	var path string
	switch format {
	case "yaml", "":
		path, err = ss.ExportYAML(context.Background())
	case "json":
		path, err = ss.ExportJSON(context.Background())
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Println("Exported to", path)
	return nil
}

func init() {
	dossierExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	dossierCmd.AddCommand(dossierShowCmd)
	dossierCmd.AddCommand(dossierExportCmd)
	rootCmd.AddCommand(dossierCmd)
}
