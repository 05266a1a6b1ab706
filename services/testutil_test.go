package services

import (
	"testing"

	"quizapi/models"

	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Quiz{},
		&models.QuizConfig{},
		&models.Question{},
		&models.Choice{},
		&models.QuizAttempt{},
		&models.Answer{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	return db
}

func createTestUser(t *testing.T, db *gorm.DB, name, password string, isAdmin bool) *models.User {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	user := models.User{
		Name:     name,
		Email:    name + "@example.com",
		Password: string(hashed),
		IsAdmin:  isAdmin,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}

	return &user
}

// twoQuestionQuiz builds the canonical fixture: question A with choices a1
// (correct) and a2, question B with choices b1, b2, b3 (correct) and b4.
func twoQuestionQuiz(numQuestions int, shuffleQuestions, shuffleChoices bool) *CreateQuizRequest {
	return &CreateQuizRequest{
		Title:            "Capitals",
		Description:      "Geography basics",
		NumQuestions:     numQuestions,
		ShuffleQuestions: shuffleQuestions,
		ShuffleChoices:   shuffleChoices,
		Questions: []CreateQuestionRequest{
			{
				Content: "Capital of France?",
				Choices: []CreateChoiceRequest{
					{Content: "Paris", IsCorrect: true},
					{Content: "Lyon"},
				},
			},
			{
				Content: "Capital of Japan?",
				Choices: []CreateChoiceRequest{
					{Content: "Osaka"},
					{Content: "Kyoto"},
					{Content: "Tokyo", IsCorrect: true},
					{Content: "Nagoya"},
				},
			},
		},
	}
}
