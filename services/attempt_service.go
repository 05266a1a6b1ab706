package services

import (
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"quizapi/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AttemptService owns the draft -> submitted lifecycle of a quiz attempt. The
// question snapshot is shuffled exactly once, here, at attempt creation;
// reads never reorder it.
type AttemptService struct {
	db      *gorm.DB
	newRand func() *rand.Rand
}

func NewAttemptService(db *gorm.DB) *AttemptService {
	return &AttemptService{
		db: db,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// NewAttemptServiceWithRand injects the random source factory used for
// shuffling, so tests can pin a seed.
func NewAttemptServiceWithRand(db *gorm.DB, newRand func() *rand.Rand) *AttemptService {
	return &AttemptService{db: db, newRand: newRand}
}

// SnapshotQuestion is one entry of an attempt's frozen questions field. The
// correct choice id is stored for auditing but must never reach a user-facing
// payload before submission.
type SnapshotQuestion struct {
	ID              uuid.UUID        `json:"id"`
	Content         string           `json:"content"`
	CorrectChoiceID *uuid.UUID       `json:"correct_choice_id"`
	Choices         []SnapshotChoice `json:"choices"`
}

type SnapshotChoice struct {
	ID      uuid.UUID `json:"id"`
	Content string    `json:"content"`
}

type AnswerInput struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	ChoiceID   uuid.UUID `json:"choice_id" binding:"required"`
}

type SaveAnswersRequest struct {
	Answer []AnswerInput `json:"answer" binding:"required,dive"`
}

type SubmitResult struct {
	AttemptID   uuid.UUID `json:"attempt_id"`
	Score       int       `json:"score"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type UserChoice struct {
	ID       uuid.UUID `json:"id"`
	Content  string    `json:"content"`
	Selected bool      `json:"selected"`
}

type UserQuestion struct {
	ID              uuid.UUID    `json:"id"`
	Content         string       `json:"content"`
	CorrectChoiceID *uuid.UUID   `json:"correct_choice_id"` // always null pre-submission
	Choices         []UserChoice `json:"choices"`
}

type UserQuizDetail struct {
	ID          uuid.UUID      `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Questions   []UserQuestion `json:"questions"`
	TotalPages  int            `json:"total_pages"`
	Page        int            `json:"page"`
	PerPage     int            `json:"per_page"`
}

// StartAttempt creates the user's attempt for a quiz and freezes the question
// snapshot. Calling it again for the same quiz returns the existing attempt
// instead of creating a second one; created reports which case happened.
func (s *AttemptService) StartAttempt(quizID, userID uuid.UUID) (attempt *models.QuizAttempt, created bool, err error) {
	var quiz models.Quiz
	if err := s.db.First(&quiz, "id = ?", quizID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrQuizNotFound
		}
		return nil, false, err
	}

	var config models.QuizConfig
	if err := s.db.First(&config, "quiz_id = ?", quizID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrConfigNotFound
		}
		return nil, false, err
	}

	var existing models.QuizAttempt
	err = s.db.Where("quiz_id = ? AND user_id = ?", quizID, userID).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	var questions []models.Question
	err = s.db.Preload("Choices").
		Where("quiz_id = ?", quizID).
		Find(&questions).Error
	if err != nil {
		return nil, false, err
	}

	snapshot := snapshotQuestions(questions, &config, s.newRand())
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, false, err
	}

	newAttempt := models.QuizAttempt{
		UserID:    userID,
		QuizID:    quizID,
		Questions: raw,
		StartedAt: time.Now(),
	}

	if err := s.db.Create(&newAttempt).Error; err != nil {
		// A racing request may have won the unique (user_id, quiz_id) index;
		// fall back to the row it created.
		var raced models.QuizAttempt
		if ferr := s.db.Where("quiz_id = ? AND user_id = ?", quizID, userID).First(&raced).Error; ferr == nil {
			return &raced, false, nil
		}
		return nil, false, err
	}

	return &newAttempt, true, nil
}

// snapshotQuestions applies the quiz config to the live questions: optional
// question shuffle, optional per-question choice shuffle, then truncation to
// num_questions. A num_questions above the question count just yields fewer
// questions.
func snapshotQuestions(questions []models.Question, config *models.QuizConfig, rng *rand.Rand) []SnapshotQuestion {
	ordered := make([]models.Question, len(questions))
	copy(ordered, questions)

	if config.ShuffleQuestions {
		rng.Shuffle(len(ordered), func(i, j int) {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		})
	}

	if config.NumQuestions > 0 && config.NumQuestions < len(ordered) {
		ordered = ordered[:config.NumQuestions]
	}

	snapshot := make([]SnapshotQuestion, 0, len(ordered))
	for _, question := range ordered {
		choices := make([]SnapshotChoice, 0, len(question.Choices))
		for _, choice := range question.Choices {
			choices = append(choices, SnapshotChoice{
				ID:      choice.ID,
				Content: choice.Content,
			})
		}

		if config.ShuffleChoices {
			rng.Shuffle(len(choices), func(i, j int) {
				choices[i], choices[j] = choices[j], choices[i]
			})
		}

		snapshot = append(snapshot, SnapshotQuestion{
			ID:              question.ID,
			Content:         question.Content,
			CorrectChoiceID: question.CorrectChoiceID,
			Choices:         choices,
		})
	}

	return snapshot
}

// SaveAnswers replaces the attempt's saved answers wholesale. Correctness is
// not evaluated here; is_correct stays false until submission.
func (s *AttemptService) SaveAnswers(quizID, userID uuid.UUID, answers []AnswerInput) (*models.QuizAttempt, error) {
	attempt, err := s.getAttempt(quizID, userID)
	if err != nil {
		return nil, err
	}

	if attempt.SubmittedAt != nil {
		return nil, ErrAlreadySubmitted
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Where("attempt_id = ?", attempt.ID).Delete(&models.Answer{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	now := time.Now()
	for _, input := range answers {
		answer := models.Answer{
			AttemptID:  attempt.ID,
			QuestionID: input.QuestionID,
			ChoiceID:   input.ChoiceID,
			IsCorrect:  false,
			AnsweredAt: now,
		}
		if err := tx.Create(&answer).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return attempt, nil
}

// Submit finalizes the attempt: each saved answer is graded against the live
// question's correct_choice_id, the score is frozen, and submitted_at is set.
// A second call is rejected; the score never changes after the first.
func (s *AttemptService) Submit(quizID, userID uuid.UUID) (*SubmitResult, error) {
	attempt, err := s.getAttempt(quizID, userID)
	if err != nil {
		return nil, err
	}

	if attempt.SubmittedAt != nil {
		return nil, ErrAlreadySubmitted
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var answers []models.Answer
	if err := tx.Where("attempt_id = ?", attempt.ID).Find(&answers).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	score := 0
	for i := range answers {
		var question models.Question
		err := tx.First(&question, "id = ?", answers[i].QuestionID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Question dropped by a later quiz edit; counts as incorrect.
				continue
			}
			tx.Rollback()
			return nil, err
		}

		if question.CorrectChoiceID != nil && *question.CorrectChoiceID == answers[i].ChoiceID {
			score++
			answers[i].IsCorrect = true
			if err := tx.Save(&answers[i]).Error; err != nil {
				tx.Rollback()
				return nil, err
			}
		}
	}

	submittedAt := time.Now()
	attempt.Score = score
	attempt.SubmittedAt = &submittedAt

	if err := tx.Save(attempt).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return &SubmitResult{
		AttemptID:   attempt.ID,
		Score:       score,
		SubmittedAt: submittedAt,
	}, nil
}

// UserDetail pages over the attempt's frozen snapshot, marking each choice
// the user currently has saved. The correct choice is never revealed here.
func (s *AttemptService) UserDetail(quizID, userID uuid.UUID, page, perPage int) (*UserQuizDetail, error) {
	var quiz models.Quiz
	if err := s.db.First(&quiz, "id = ?", quizID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}

	attempt, err := s.getAttempt(quizID, userID)
	if err != nil {
		return nil, err
	}

	var snapshot []SnapshotQuestion
	if len(attempt.Questions) > 0 {
		if err := json.Unmarshal(attempt.Questions, &snapshot); err != nil {
			return nil, err
		}
	}

	var answers []models.Answer
	if err := s.db.Where("attempt_id = ?", attempt.ID).Find(&answers).Error; err != nil {
		return nil, err
	}

	selected := make(map[uuid.UUID]uuid.UUID, len(answers))
	for _, answer := range answers {
		selected[answer.QuestionID] = answer.ChoiceID
	}

	pages := totalPages(int64(len(snapshot)), perPage)
	start := (page - 1) * perPage
	end := start + perPage
	if start > len(snapshot) {
		start = len(snapshot)
	}
	if end > len(snapshot) {
		end = len(snapshot)
	}

	detail := &UserQuizDetail{
		ID:          quiz.ID,
		Title:       quiz.Title,
		Description: quiz.Description,
		Questions:   make([]UserQuestion, 0, end-start),
		TotalPages:  pages,
		Page:        page,
		PerPage:     perPage,
	}

	for _, question := range snapshot[start:end] {
		choices := make([]UserChoice, 0, len(question.Choices))
		for _, choice := range question.Choices {
			choices = append(choices, UserChoice{
				ID:       choice.ID,
				Content:  choice.Content,
				Selected: selected[question.ID] == choice.ID,
			})
		}

		detail.Questions = append(detail.Questions, UserQuestion{
			ID:              question.ID,
			Content:         question.Content,
			CorrectChoiceID: nil,
			Choices:         choices,
		})
	}

	return detail, nil
}

func (s *AttemptService) getAttempt(quizID, userID uuid.UUID) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	err := s.db.Where("quiz_id = ? AND user_id = ?", quizID, userID).First(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	return &attempt, nil
}
