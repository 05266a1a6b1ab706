package handlers

import (
	"net/http"

	"quizapi/middleware"
	"quizapi/services"

	"github.com/gin-gonic/gin"
)

type AttemptHandler struct {
	attemptService *services.AttemptService
}

func NewAttemptHandler(attemptService *services.AttemptService) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
	}
}

// StartAttempt snapshots the quiz for the caller. Repeat calls return the
// existing attempt id instead of opening a second one.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	quizID, ok := parseQuizID(c)
	if !ok {
		return
	}

	attempt, created, err := h.attemptService.StartAttempt(quizID, user.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if !created {
		c.JSON(http.StatusOK, gin.H{
			"attempt_id": attempt.ID,
			"message":    "Attempt already exists",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"attempt_id": attempt.ID,
		"message":    "Attempt started",
	})
}

func (h *AttemptHandler) SaveAnswers(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	quizID, ok := parseQuizID(c)
	if !ok {
		return
	}

	var req services.SaveAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	attempt, err := h.attemptService.SaveAnswers(quizID, user.ID, req.Answer)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attempt_id": attempt.ID,
		"message":    "Answers saved",
	})
}

func (h *AttemptHandler) Submit(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	quizID, ok := parseQuizID(c)
	if !ok {
		return
	}

	result, err := h.attemptService.Submit(quizID, user.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// UserDetail pages over the caller's frozen snapshot with selection markers.
func (h *AttemptHandler) UserDetail(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	quizID, ok := parseQuizID(c)
	if !ok {
		return
	}

	page, perPage := parsePagination(c)

	detail, err := h.attemptService.UserDetail(quizID, user.ID, page, perPage)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}
