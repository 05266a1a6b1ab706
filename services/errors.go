package services

import "errors"

var (
	// ErrInvalidCredentials is returned when login name or password is wrong.
	ErrInvalidCredentials = errors.New("incorrect username or password")
	// ErrUserExists is returned when a user name or email is already taken.
	ErrUserExists = errors.New("user with this name or email already exists")
	// ErrQuizNotFound indicates the referenced quiz does not exist.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrConfigNotFound indicates a quiz is missing its config row.
	ErrConfigNotFound = errors.New("quiz config not found")
	// ErrNoCorrectChoice is returned when a question has no choice flagged correct.
	ErrNoCorrectChoice = errors.New("each question must have at least one correct choice")
	// ErrAttemptNotFound indicates the caller has no attempt for the quiz.
	ErrAttemptNotFound = errors.New("no attempt found for this quiz")
	// ErrAlreadySubmitted indicates the attempt has been finalized.
	ErrAlreadySubmitted = errors.New("attempt already submitted")
)
