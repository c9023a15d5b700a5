// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/dossier-engine/internal/dossier"
	"github.com/pdiddy/dossier-engine/internal/questionnaire"
	"github.com/pdiddy/dossier-engine/internal/session"
	"github.com/pdiddy/dossier-engine/pkg/types"
)

// --- questionnaire ---

type questionnaireResponse struct {
	Sections []types.Section `json:"sections"`
	Status   session.Status  `json:"status"`
}

func (s *Server) getQuestionnaire(c *gin.Context) {
	c.JSON(http.StatusOK, questionnaireResponse{
		Sections: s.sess.Graph().Sections(),
		Status:   s.sess.Status(),
	})
}

type sectionQuestionsResponse struct {
	SectionID string           `json:"section_id"`
	Questions []types.Question `json:"questions"`
	Progress  int              `json:"progress"`
	Complete  bool             `json:"complete"`
}

func (s *Server) getSectionQuestions(c *gin.Context) {
	id := c.Param("id")
	qs, err := s.sess.VisibleQuestions(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	progress, complete, err := s.sess.Progress(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sectionQuestionsResponse{SectionID: id, Questions: qs, Progress: progress, Complete: complete})
}

func unknownQuestion(id string) error {
	return fmt.Errorf("%w %q", questionnaire.ErrUnknownQuestion, id)
}

// answered matches types.AnswerMap.Answered: blank values do not count.
func answered(value string) bool { return strings.TrimSpace(value) != "" }

type answerBody struct {
	Value string `json:"value"`
}

type answerResponse struct {
	QuestionID     string `json:"question_id"`
	Value          string `json:"value"`
	Answered       bool   `json:"answered"`
	GlobalProgress int    `json:"global_progress"`
}

func (s *Server) getAnswer(c *gin.Context) {
	id := c.Param("questionId")
	if _, ok := s.sess.Graph().Question(id); !ok {
		s.fail(c, unknownQuestion(id))
		return
	}
	value, _ := s.sess.AnswerFor(id)
	c.JSON(http.StatusOK, answerResponse{
		QuestionID:     id,
		Value:          value,
		Answered:       answered(value),
		GlobalProgress: s.sess.GlobalProgress(),
	})
}

func (s *Server) putAnswer(c *gin.Context) {
	id := c.Param("questionId")
	var body answerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "The answer could not be read.")
		return
	}
	if err := s.sess.Answer(id, body.Value); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, answerResponse{
		QuestionID:     id,
		Value:          body.Value,
		Answered:       answered(body.Value),
		GlobalProgress: s.sess.GlobalProgress(),
	})
}

func (s *Server) putContext(c *gin.Context) {
	var aux types.AuxiliaryContext
	if err := c.ShouldBindJSON(&aux); err != nil {
		badRequest(c, "The supporting documents could not be read.")
		return
	}
	s.sess.SetContext(aux)
	c.Status(http.StatusNoContent)
}

type stepResponse struct {
	session.Step
	Status session.Status `json:"status"`
}

func (s *Server) next(c *gin.Context) {
	step, err := s.sess.Next(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stepResponse{Step: step, Status: s.sess.Status()})
}

func (s *Server) previous(c *gin.Context) {
	idx := s.sess.Previous()
	c.JSON(http.StatusOK, stepResponse{Step: session.Step{Index: idx}, Status: s.sess.Status()})
}

func (s *Server) suggest(c *gin.Context) {
	id := c.Param("id")
	text, err := s.sess.SuggestAnswer(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"question_id": id, "suggestion": text})
}

func (s *Server) saveDraft(c *gin.Context) {
	if err := s.sess.SaveDraft(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"last_saved": s.sess.Status().LastSaved})
}

// --- dossier ---

type dossierResponse struct {
	Sections []dossier.SectionView `json:"sections"`
	Dirty    bool                  `json:"dirty"`
	Editing  string                `json:"editing,omitempty"`
}

func (s *Server) dossierView() dossierResponse {
	ed := s.sess.Editor()
	return dossierResponse{Sections: ed.Sections(), Dirty: ed.Dirty(), Editing: ed.Editing()}
}

func (s *Server) assemble(c *gin.Context) {
	if _, err := s.sess.Assemble(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.dossierView())
}

func (s *Server) getDossier(c *gin.Context) {
	if !s.sess.Editor().HasDossier() {
		s.fail(c, dossier.ErrNoDossier)
		return
	}
	c.JSON(http.StatusOK, s.dossierView())
}

func (s *Server) saveDossier(c *gin.Context) {
	if err := s.sess.Editor().Save(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.dossierView())
}

type sectionBody struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) addSection(c *gin.Context) {
	var body sectionBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "The new section could not be read.")
		return
	}
	sec, err := s.sess.Editor().Add(c.Request.Context(), body.Title, body.Content)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sec)
}

type deleteResponse struct {
	Deleted bool `json:"deleted"`
	Armed   bool `json:"armed"`
}

// deleteSection implements the two-click delete: the first call arms the
// section and answers 202, a second call inside the window deletes it.
func (s *Server) deleteSection(c *gin.Context) {
	ed := s.sess.Editor()
	deleted, err := ed.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusAccepted, deleteResponse{Armed: true})
		return
	}
	c.JSON(http.StatusOK, deleteResponse{Deleted: true})
}

func (s *Server) beginEdit(c *gin.Context) {
	discard, _ := strconv.ParseBool(c.Query("discard"))
	if err := s.sess.Editor().BeginEdit(c.Param("id"), discard); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.dossierView())
}

func (s *Server) cancelEdit(c *gin.Context) {
	if err := s.sess.Editor().CancelEdit(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.dossierView())
}

func (s *Server) updateBuffer(c *gin.Context) {
	var body sectionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "The section text could not be read.")
		return
	}
	if err := s.sess.Editor().UpdateBuffer(c.Param("id"), body.Title, body.Content); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type moveBody struct {
	Index *int `json:"index"`
}

func (s *Server) moveSection(c *gin.Context) {
	var body moveBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Index == nil {
		badRequest(c, "A target position is required.")
		return
	}
	if err := s.sess.Editor().Move(c.Request.Context(), c.Param("id"), *body.Index); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.dossierView())
}

func (s *Server) regenerate(c *gin.Context) {
	id := c.Param("id")
	content, err := s.sess.Regenerate(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"section_id": id, "content": content})
}

// --- notifications ---

func (s *Server) listNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, s.center.Active())
}

func (s *Server) dismissNotification(c *gin.Context) {
	if !s.center.Dismiss(c.Param("id")) {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorBody{Code: "not_found", Message: "notification not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
