package handlers

import (
	"net/http"

	"quizapi/middleware"
	"quizapi/services"

	"github.com/gin-gonic/gin"
)

type QuizHandler struct {
	quizService *services.QuizService
}

func NewQuizHandler(quizService *services.QuizService) *QuizHandler {
	return &QuizHandler{
		quizService: quizService,
	}
}

func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req services.CreateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	quiz, err := h.quizService.CreateQuiz(user.ID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"quiz_id": quiz.ID,
		"message": "Quiz created successfully",
	})
}

func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	page, perPage := parsePagination(c)

	result, err := h.quizService.ListQuizzes(user, page, perPage)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *QuizHandler) UpdateQuiz(c *gin.Context) {
	quizID, ok := parseQuizID(c)
	if !ok {
		return
	}

	var req services.UpdateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	quiz, err := h.quizService.UpdateQuiz(quizID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quiz_id": quiz.ID,
		"message": "Quiz updated successfully",
	})
}

func (h *QuizHandler) DeleteQuiz(c *gin.Context) {
	quizID, ok := parseQuizID(c)
	if !ok {
		return
	}

	if err := h.quizService.DeleteQuiz(quizID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// StaffDetail exposes the full question set, correct answers included.
func (h *QuizHandler) StaffDetail(c *gin.Context) {
	quizID, ok := parseQuizID(c)
	if !ok {
		return
	}

	page, perPage := parsePagination(c)

	detail, err := h.quizService.StaffDetail(quizID, page, perPage)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}
