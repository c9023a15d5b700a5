// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/pdiddy/dossier-engine/internal/api"
	"github.com/pdiddy/dossier-engine/internal/notify"
	"github.com/pdiddy/dossier-engine/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the questionnaire and dossier editor API",
	Long: `Serve loads the question set, restores the session draft and latest
dossier, and serves the HTTP API under /api. Drafts are saved every
draft.interval and once more on shutdown.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := appConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	graph, err := loadGraph(cfg)
	if err != nil {
		return err
	}
	st, closeStore, err := openSessionStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	gen, err := newGenerator(ctx, cfg, graph, logger)
	if err != nil {
		return err
	}

	center := notify.NewCenter(cfg.Server.NotificationTTL)
	opts := session.Options{
		Store:                st,
		Generator:            gen,
		Cache:                draftCache(cfg.Draft),
		Notifier:             center,
		Logger:               logger.With("session", cfg.Draft.SessionID),
		DraftInterval:        cfg.Draft.Interval,
		TeardownTimeout:      cfg.Draft.TeardownTimeout,
		DeleteWindow:         cfg.Editor.DeleteConfirmWindow,
		ExcludeHiddenAnswers: cfg.Generation.ExcludeHiddenAnswers,
	}
	sess := session.New(graph, opts)

	found, err := sess.Resume(ctx)
	if err != nil {
		return err
	}
	logger.Info("session ready", "draft_restored", found, "section", sess.Status().SectionID)

	sess.Start(ctx)
	defer func() {
		select {
		case <-sess.Close():
		case <-time.After(cfg.Draft.TeardownTimeout + time.Second):
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(sess, center, logger.With("component", "api")).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
