package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Question struct {
	ID              uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	QuizID          uuid.UUID  `json:"quiz_id" gorm:"type:uuid;not null;index"`
	Content         string     `json:"content" gorm:"type:text;not null"`
	CorrectChoiceID *uuid.UUID `json:"correct_choice_id" gorm:"type:uuid"`
	CreatedAt       time.Time  `json:"created_at"`

	// Relationships
	Choices []Choice `json:"choices,omitempty" gorm:"foreignKey:QuestionID"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}
