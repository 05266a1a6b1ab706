package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QuizConfig struct {
	ID               uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	QuizID           uuid.UUID `json:"quiz_id" gorm:"type:uuid;uniqueIndex;not null"`
	NumQuestions     int       `json:"num_questions" gorm:"not null"`
	ShuffleQuestions bool      `json:"shuffle_questions" gorm:"not null;default:false"`
	ShuffleChoices   bool      `json:"shuffle_choices" gorm:"not null;default:false"`
	CreatedAt        time.Time `json:"created_at"`
}

func (c *QuizConfig) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
