// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the dossier-engine CLI. It serves the
// questionnaire and dossier editor over HTTP and offers maintenance commands
// for question sets, drafts and dossiers.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/dossier-engine/internal/secrets"
	"github.com/pdiddy/dossier-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the dossier-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "dossier-engine",
	Short: "Questionnaire and dossier engine for certification applications",
	Long: `dossier-engine walks a candidate through a sectioned questionnaire,
keeps their draft answers saved, and assembles an application dossier with a
text-generation model. The dossier can then be edited section by section.

Use serve to run the HTTP API for the UI. The questions, draft and dossier
subcommands inspect the files and stores the server uses.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./dossier-engine.yaml or ~/.config/dossier-engine/config.yaml)")
	rootCmd.PersistentFlags().String("session", "", "candidate session id (overrides draft.session_id)")
	viper.BindPFlag("draft.session_id", rootCmd.PersistentFlags().Lookup("session"))
}

func initConfig() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("dossier-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "dossier-engine"))
		}
	}

	setDefaults(viper.GetViper())
	viper.SetEnvPrefix("DOSSIER_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every key so environment variables can override
// values that are absent from the config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("questions.path", "questions/questions.yaml")

	v.SetDefault("draft.session_id", "default")
	v.SetDefault("draft.interval", 30*time.Second)
	v.SetDefault("draft.cache_path", "data/draft-cache.yaml")
	v.SetDefault("draft.teardown_timeout", 5*time.Second)

	v.SetDefault("store.backend", string(types.StoreSQLite))
	v.SetDefault("store.data_dir", "data")
	v.SetDefault("store.remote_url", "")
	v.SetDefault("store.token", "")
	v.SetDefault("store.timeout", 15*time.Second)
	v.SetDefault("store.max_retries", 5)

	v.SetDefault("generation.provider", "anthropic")
	v.SetDefault("generation.model", "")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.base_url", "")
	v.SetDefault("generation.max_retries", 3)
	v.SetDefault("generation.timeout", 2*time.Minute)
	v.SetDefault("generation.max_tokens", 8192)
	v.SetDefault("generation.exclude_hidden_answers", false)

	v.SetDefault("editor.delete_confirm_window", 3*time.Second)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.notification_ttl", 8*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// loadConfig unmarshals the viper state and fills credentials from secrets.
func loadConfig(v *viper.Viper, secretValues map[string]string) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading configuration: %w", err)
	}
	cfg.Generation.APIKey = secrets.Fill(cfg.Generation.APIKey, secretValues, secrets.ProviderKey(cfg.Generation.Provider))
	cfg.Store.Token = secrets.Fill(cfg.Store.Token, secretValues, secrets.StoreToken)
	return cfg, nil
}

// newLogger builds the slog logger selected by cfg.
func newLogger(cfg types.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// appConfig loads the configuration and installs the logger.
func appConfig() (types.Config, *slog.Logger, error) {
	cfg, err := loadConfig(viper.GetViper(), loadedSecrets)
	if err != nil {
		return cfg, nil, err
	}
	logger := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
