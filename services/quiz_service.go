package services

import (
	"errors"
	"time"

	"quizapi/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QuizService struct {
	db *gorm.DB
}

func NewQuizService(db *gorm.DB) *QuizService {
	return &QuizService{db: db}
}

type CreateQuizRequest struct {
	Title            string                  `json:"title" binding:"required"`
	Description      string                  `json:"description"`
	NumQuestions     int                     `json:"num_questions" binding:"required,min=1"`
	ShuffleQuestions bool                    `json:"shuffle_questions"`
	ShuffleChoices   bool                    `json:"shuffle_choices"`
	Questions        []CreateQuestionRequest `json:"questions" binding:"required,min=2,dive"`
}

type CreateQuestionRequest struct {
	Content string                `json:"content" binding:"required"`
	Choices []CreateChoiceRequest `json:"choices" binding:"required,min=1,dive"`
}

type CreateChoiceRequest struct {
	Content   string `json:"content" binding:"required"`
	IsCorrect bool   `json:"is_correct"`
}

type UpdateQuizRequest struct {
	Title            *string                 `json:"title"`
	Description      *string                 `json:"description"`
	NumQuestions     *int                    `json:"num_questions"`
	ShuffleQuestions *bool                   `json:"shuffle_questions"`
	ShuffleChoices   *bool                   `json:"shuffle_choices"`
	Questions        []CreateQuestionRequest `json:"questions" binding:"omitempty,min=2,dive"`
}

type QuizSummary struct {
	ID          uuid.UUID          `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Attempted   bool               `json:"attempted"`
	Config      *models.QuizConfig `json:"config"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

type QuizListResult struct {
	Quizzes    []QuizSummary `json:"quizzes"`
	TotalPages int           `json:"total_pages"`
	Page       int           `json:"page"`
	PerPage    int           `json:"per_page"`
}

type StaffQuestion struct {
	ID              uuid.UUID       `json:"id"`
	Content         string          `json:"content"`
	CorrectChoiceID *uuid.UUID      `json:"correct_choice_id"`
	Choices         []models.Choice `json:"choices"`
}

type StaffQuizDetail struct {
	ID          uuid.UUID          `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Config      *models.QuizConfig `json:"config"`
	Questions   []StaffQuestion    `json:"questions"`
	TotalPages  int                `json:"total_pages"`
	Page        int                `json:"page"`
	PerPage     int                `json:"per_page"`
}

// CreateQuiz persists the quiz, its config, and every question with its
// choices in one transaction. Each question's correct_choice_id points at the
// choice flagged is_correct; when several are flagged the last one wins.
func (s *QuizService) CreateQuiz(userID uuid.UUID, req *CreateQuizRequest) (*models.Quiz, error) {
	for _, qReq := range req.Questions {
		hasCorrect := false
		for _, cReq := range qReq.Choices {
			if cReq.IsCorrect {
				hasCorrect = true
			}
		}
		if !hasCorrect {
			return nil, ErrNoCorrectChoice
		}
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	quiz := models.Quiz{
		Title:       req.Title,
		Description: req.Description,
		CreatedBy:   userID,
	}

	if err := tx.Create(&quiz).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	config := models.QuizConfig{
		QuizID:           quiz.ID,
		NumQuestions:     req.NumQuestions,
		ShuffleQuestions: req.ShuffleQuestions,
		ShuffleChoices:   req.ShuffleChoices,
	}

	if err := tx.Create(&config).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createQuestions(tx, quiz.ID, req.Questions); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return &quiz, nil
}

// createQuestions inserts questions and their choices for a quiz and wires
// each question's correct_choice_id to the flagged choice.
func createQuestions(tx *gorm.DB, quizID uuid.UUID, questions []CreateQuestionRequest) error {
	for _, qReq := range questions {
		question := models.Question{
			QuizID:  quizID,
			Content: qReq.Content,
		}

		if err := tx.Create(&question).Error; err != nil {
			return err
		}

		var correctChoiceID *uuid.UUID
		for _, cReq := range qReq.Choices {
			choice := models.Choice{
				QuestionID: question.ID,
				Content:    cReq.Content,
			}

			if err := tx.Create(&choice).Error; err != nil {
				return err
			}

			if cReq.IsCorrect {
				id := choice.ID
				correctChoiceID = &id
			}
		}

		if correctChoiceID == nil {
			return ErrNoCorrectChoice
		}

		question.CorrectChoiceID = correctChoiceID
		if err := tx.Save(&question).Error; err != nil {
			return err
		}
	}

	return nil
}

// ListQuizzes returns an offset-paginated page of quizzes. Attempted is true
// iff the calling user has an attempt for that quiz; the config is only
// included for admins.
func (s *QuizService) ListQuizzes(user *models.User, page, perPage int) (*QuizListResult, error) {
	var total int64
	if err := s.db.Model(&models.Quiz{}).Count(&total).Error; err != nil {
		return nil, err
	}

	var quizzes []models.Quiz
	err := s.db.Preload("Config").
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&quizzes).Error
	if err != nil {
		return nil, err
	}

	var attemptedIDs []uuid.UUID
	err = s.db.Model(&models.QuizAttempt{}).
		Where("user_id = ?", user.ID).
		Pluck("quiz_id", &attemptedIDs).Error
	if err != nil {
		return nil, err
	}

	attempted := make(map[uuid.UUID]bool, len(attemptedIDs))
	for _, id := range attemptedIDs {
		attempted[id] = true
	}

	summaries := make([]QuizSummary, 0, len(quizzes))
	for _, quiz := range quizzes {
		summary := QuizSummary{
			ID:          quiz.ID,
			Title:       quiz.Title,
			Description: quiz.Description,
			Attempted:   attempted[quiz.ID],
			CreatedAt:   quiz.CreatedAt,
			UpdatedAt:   quiz.UpdatedAt,
		}
		if user.IsAdmin {
			summary.Config = quiz.Config
		}
		summaries = append(summaries, summary)
	}

	return &QuizListResult{
		Quizzes:    summaries,
		TotalPages: totalPages(total, perPage),
		Page:       page,
		PerPage:    perPage,
	}, nil
}

// UpdateQuiz applies a partial update; fields left unset are unchanged. When
// questions are present the quiz's existing questions and choices are dropped
// and recreated wholesale.
func (s *QuizService) UpdateQuiz(quizID uuid.UUID, req *UpdateQuizRequest) (*models.Quiz, error) {
	var quiz models.Quiz
	if err := s.db.First(&quiz, "id = ?", quizID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}

	var config models.QuizConfig
	if err := s.db.First(&config, "quiz_id = ?", quizID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	if req.Questions != nil {
		for _, qReq := range req.Questions {
			hasCorrect := false
			for _, cReq := range qReq.Choices {
				if cReq.IsCorrect {
					hasCorrect = true
				}
			}
			if !hasCorrect {
				return nil, ErrNoCorrectChoice
			}
		}
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if req.Title != nil {
		quiz.Title = *req.Title
	}
	if req.Description != nil {
		quiz.Description = *req.Description
	}

	if err := tx.Save(&quiz).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if req.NumQuestions != nil {
		config.NumQuestions = *req.NumQuestions
	}
	if req.ShuffleQuestions != nil {
		config.ShuffleQuestions = *req.ShuffleQuestions
	}
	if req.ShuffleChoices != nil {
		config.ShuffleChoices = *req.ShuffleChoices
	}

	if err := tx.Save(&config).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if req.Questions != nil {
		// Destructive full replace, not a diff/merge.
		questionIDs := tx.Model(&models.Question{}).
			Select("id").
			Where("quiz_id = ?", quizID)

		if err := tx.Where("question_id IN (?)", questionIDs).Delete(&models.Choice{}).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.Where("quiz_id = ?", quizID).Delete(&models.Question{}).Error; err != nil {
			tx.Rollback()
			return nil, err
		}

		if err := createQuestions(tx, quiz.ID, req.Questions); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return &quiz, nil
}

// DeleteQuiz removes the quiz and everything hanging off it in dependency
// order: answers, choices, questions, config, attempts, then the quiz row.
func (s *QuizService) DeleteQuiz(quizID uuid.UUID) error {
	var quiz models.Quiz
	if err := s.db.First(&quiz, "id = ?", quizID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuizNotFound
		}
		return err
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	questionIDs := tx.Model(&models.Question{}).
		Select("id").
		Where("quiz_id = ?", quizID)
	attemptIDs := tx.Model(&models.QuizAttempt{}).
		Select("id").
		Where("quiz_id = ?", quizID)

	if err := tx.Where("question_id IN (?)", questionIDs).Delete(&models.Answer{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	// Answers for questions dropped by an earlier full replace still hang off
	// the quiz's attempts.
	if err := tx.Where("attempt_id IN (?)", attemptIDs).Delete(&models.Answer{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Where("question_id IN (?)", questionIDs).Delete(&models.Choice{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Where("quiz_id = ?", quizID).Delete(&models.Question{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Where("quiz_id = ?", quizID).Delete(&models.QuizConfig{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Where("quiz_id = ?", quizID).Delete(&models.QuizAttempt{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Delete(&models.Quiz{}, "id = ?", quizID).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// StaffDetail returns the quiz with its config and a page of live questions,
// correct answers included. Questions come back in storage order.
func (s *QuizService) StaffDetail(quizID uuid.UUID, page, perPage int) (*StaffQuizDetail, error) {
	var quiz models.Quiz
	if err := s.db.First(&quiz, "id = ?", quizID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}

	var config models.QuizConfig
	if err := s.db.First(&config, "quiz_id = ?", quizID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var total int64
	err := s.db.Model(&models.Question{}).
		Where("quiz_id = ?", quizID).
		Count(&total).Error
	if err != nil {
		return nil, err
	}

	var questions []models.Question
	err = s.db.Preload("Choices").
		Where("quiz_id = ?", quizID).
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&questions).Error
	if err != nil {
		return nil, err
	}

	detail := &StaffQuizDetail{
		ID:          quiz.ID,
		Title:       quiz.Title,
		Description: quiz.Description,
		Config:      &config,
		Questions:   make([]StaffQuestion, 0, len(questions)),
		TotalPages:  totalPages(total, perPage),
		Page:        page,
		PerPage:     perPage,
	}

	for _, question := range questions {
		detail.Questions = append(detail.Questions, StaffQuestion{
			ID:              question.ID,
			Content:         question.Content,
			CorrectChoiceID: question.CorrectChoiceID,
			Choices:         question.Choices,
		})
	}

	return detail, nil
}
