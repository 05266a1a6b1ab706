package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QuizAttempt freezes the questions handed to a user at attempt time in the
// Questions snapshot. Paging, answer saving and display all read the snapshot,
// so later edits to the quiz never leak into attempts already taken.
type QuizAttempt struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_attempts_user_quiz"`
	QuizID      uuid.UUID      `json:"quiz_id" gorm:"type:uuid;not null;uniqueIndex:idx_attempts_user_quiz"`
	Questions   datatypes.JSON `json:"questions"`
	StartedAt   time.Time      `json:"started_at"`
	SubmittedAt *time.Time     `json:"submitted_at"`
	Score       int            `json:"score" gorm:"not null;default:0"`
	CreatedAt   time.Time      `json:"created_at"`

	// Relationships
	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`
}

func (a *QuizAttempt) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
