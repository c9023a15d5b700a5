// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package api exposes a session over HTTP for the questionnaire and dossier
// UI. Notifications are pushed over a websocket.
package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/dossier-engine/internal/notify"
	"github.com/pdiddy/dossier-engine/internal/session"
)

// Server holds the handlers for one session.
type Server struct {
	sess   *session.Session
	center *notify.Center
	logger *slog.Logger
}

// NewServer creates a Server. logger may be nil.
func NewServer(sess *session.Session, center *notify.Center, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{sess: sess, center: center, logger: logger}
}

// Router builds the gin engine with every route under /api.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	api := r.Group("/api")
	{
		api.GET("/questionnaire", s.getQuestionnaire)
		api.GET("/sections/:id/questions", s.getSectionQuestions)
		api.GET("/answers/:questionId", s.getAnswer)
		api.PUT("/answers/:questionId", s.putAnswer)
		api.PUT("/context", s.putContext)
		api.POST("/navigation/next", s.next)
		api.POST("/navigation/previous", s.previous)
		api.POST("/questions/:id/suggest", s.suggest)
		api.POST("/draft/save", s.saveDraft)
	}

	d := api.Group("/dossier")
	{
		d.POST("", s.assemble)
		d.GET("", s.getDossier)
		d.POST("/save", s.saveDossier)
		d.POST("/sections", s.addSection)
		d.DELETE("/sections/:id", s.deleteSection)
		d.PUT("/sections/:id/edit", s.beginEdit)
		d.DELETE("/sections/:id/edit", s.cancelEdit)
		d.PUT("/sections/:id/buffer", s.updateBuffer)
		d.POST("/sections/:id/move", s.moveSection)
		d.POST("/sections/:id/regenerate", s.regenerate)
	}

	api.GET("/notifications", s.listNotifications)
	api.DELETE("/notifications/:id", s.dismissNotification)
	api.GET("/events", s.events)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
