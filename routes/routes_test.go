package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quizapi/handlers"
	"quizapi/models"
	"quizapi/services"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	redis  *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	gin.SetMode(gin.TestMode)

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

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	authService := services.NewAuthService(db, "test-secret", time.Hour)
	userService := services.NewUserService(db)
	quizService := services.NewQuizService(db)
	attemptService := services.NewAttemptService(db)

	router := gin.New()
	SetupRoutes(router,
		handlers.NewAuthHandler(authService),
		handlers.NewUserHandler(userService),
		handlers.NewQuizHandler(quizService),
		handlers.NewAttemptHandler(attemptService),
		authService,
		redisClient,
		time.Minute,
	)

	return &testServer{router: router, db: db, redis: mr}
}

func (s *testServer) seedUser(t *testing.T, name string, isAdmin bool) {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := models.User{
		Name:     name,
		Email:    name + "@example.com",
		Password: string(hashed),
		IsAdmin:  isAdmin,
	}
	if err := s.db.Create(&user).Error; err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
}

func (s *testServer) login(t *testing.T, name string) string {
	t.Helper()

	w := httptest.NewRecorder()
	form := "username=" + name + "&password=secret123"
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("login %s failed: %d %s", name, w.Code, w.Body.String())
	}

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode token response: %v", err)
	}
	if body.TokenType != "bearer" {
		t.Fatalf("expected bearer token, got %q", body.TokenType)
	}

	return body.AccessToken
}

func (s *testServer) do(t *testing.T, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	s.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
		t.Fatalf("decode response %s: %v", w.Body.String(), err)
	}
}

func sampleQuizPayload() map[string]interface{} {
	return map[string]interface{}{
		"title":             "Capitals",
		"description":       "Geography basics",
		"num_questions":     2,
		"shuffle_questions": false,
		"shuffle_choices":   false,
		"questions": []map[string]interface{}{
			{
				"content": "Capital of France?",
				"choices": []map[string]interface{}{
					{"content": "Paris", "is_correct": true},
					{"content": "Lyon"},
				},
			},
			{
				"content": "Capital of Japan?",
				"choices": []map[string]interface{}{
					{"content": "Osaka"},
					{"content": "Kyoto"},
					{"content": "Tokyo", "is_correct": true},
					{"content": "Nagoya"},
				},
			},
		},
	}
}

func TestAuthGates(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "admin", true)
	s.seedUser(t, "alice", false)

	if w := s.do(t, http.MethodGet, "/quizzes/", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list: got %d", w.Code)
	}

	userToken := s.login(t, "alice")
	if w := s.do(t, http.MethodPost, "/quizzes/", userToken, sampleQuizPayload()); w.Code != http.StatusForbidden {
		t.Fatalf("non-admin create: got %d, want 403", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/users", userToken, nil); w.Code != http.StatusForbidden {
		t.Fatalf("non-admin user list: got %d, want 403", w.Code)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/token",
		strings.NewReader("username=alice&password=wrong"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password login: got %d, want 401", w.Code)
	}
}

func TestCreateQuizValidation(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "admin", true)
	adminToken := s.login(t, "admin")

	payload := sampleQuizPayload()
	payload["questions"] = payload["questions"].([]map[string]interface{})[:1]
	if w := s.do(t, http.MethodPost, "/quizzes/", adminToken, payload); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("single-question quiz: got %d, want 422", w.Code)
	}

	payload = sampleQuizPayload()
	payload["questions"].([]map[string]interface{})[0]["choices"] = []map[string]interface{}{
		{"content": "Paris"},
		{"content": "Lyon"},
	}
	if w := s.do(t, http.MethodPost, "/quizzes/", adminToken, payload); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("no correct choice: got %d, want 422", w.Code)
	}
}

func TestAttemptLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "admin", true)
	s.seedUser(t, "alice", false)
	adminToken := s.login(t, "admin")
	userToken := s.login(t, "alice")

	w := s.do(t, http.MethodPost, "/quizzes/", adminToken, sampleQuizPayload())
	if w.Code != http.StatusCreated {
		t.Fatalf("create quiz: %d %s", w.Code, w.Body.String())
	}
	var created struct {
		QuizID uuid.UUID `json:"quiz_id"`
	}
	decodeJSON(t, w, &created)
	quizPath := "/quizzes/" + created.QuizID.String()

	// foruser before any attempt
	if w := s.do(t, http.MethodGet, quizPath+"/foruser", userToken, nil); w.Code != http.StatusNotFound {
		t.Fatalf("foruser without attempt: got %d, want 404", w.Code)
	}

	// start attempt; repeat is idempotent
	w = s.do(t, http.MethodPost, quizPath+"/attempt", userToken, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("start attempt: %d %s", w.Code, w.Body.String())
	}
	var started struct {
		AttemptID uuid.UUID `json:"attempt_id"`
	}
	decodeJSON(t, w, &started)

	w = s.do(t, http.MethodPost, quizPath+"/attempt", userToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("repeat attempt: %d %s", w.Code, w.Body.String())
	}
	var repeated struct {
		AttemptID uuid.UUID `json:"attempt_id"`
	}
	decodeJSON(t, w, &repeated)
	if repeated.AttemptID != started.AttemptID {
		t.Fatalf("repeat attempt returned a different id")
	}

	// staff view exposes the answer key; grab ids for answering
	w = s.do(t, http.MethodGet, quizPath+"/forstaff", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("forstaff: %d %s", w.Code, w.Body.String())
	}
	var staff struct {
		Questions []struct {
			ID              uuid.UUID  `json:"id"`
			Content         string     `json:"content"`
			CorrectChoiceID *uuid.UUID `json:"correct_choice_id"`
			Choices         []struct {
				ID      uuid.UUID `json:"id"`
				Content string    `json:"content"`
			} `json:"choices"`
		} `json:"questions"`
	}
	decodeJSON(t, w, &staff)
	if len(staff.Questions) != 2 {
		t.Fatalf("expected 2 staff questions, got %d", len(staff.Questions))
	}

	answers := make([]map[string]interface{}, 0, 2)
	for _, question := range staff.Questions {
		if question.CorrectChoiceID == nil {
			t.Fatalf("staff view must expose correct_choice_id")
		}
		choiceID := *question.CorrectChoiceID
		if question.Content == "Capital of Japan?" {
			// answer this one wrong on purpose
			for _, choice := range question.Choices {
				if choice.ID != choiceID {
					choiceID = choice.ID
					break
				}
			}
		}
		answers = append(answers, map[string]interface{}{
			"question_id": question.ID,
			"choice_id":   choiceID,
		})
	}

	// user view must not reveal the answer key
	w = s.do(t, http.MethodGet, quizPath+"/foruser", userToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("foruser: %d %s", w.Code, w.Body.String())
	}
	var userView struct {
		Questions []struct {
			CorrectChoiceID *uuid.UUID `json:"correct_choice_id"`
		} `json:"questions"`
	}
	decodeJSON(t, w, &userView)
	for _, question := range userView.Questions {
		if question.CorrectChoiceID != nil {
			t.Fatalf("foruser leaked correct_choice_id")
		}
	}

	// save answers, then submit
	w = s.do(t, http.MethodPost, quizPath+"/answer", userToken, map[string]interface{}{"answer": answers})
	if w.Code != http.StatusOK {
		t.Fatalf("save answers: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodPost, quizPath+"/submit", userToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", w.Code, w.Body.String())
	}
	var submitted struct {
		AttemptID   uuid.UUID  `json:"attempt_id"`
		Score       int        `json:"score"`
		SubmittedAt *time.Time `json:"submitted_at"`
	}
	decodeJSON(t, w, &submitted)
	if submitted.Score != 1 {
		t.Fatalf("expected score 1, got %d", submitted.Score)
	}
	if submitted.SubmittedAt == nil || submitted.SubmittedAt.IsZero() {
		t.Fatalf("submitted_at missing")
	}

	// double submit is rejected and the score is frozen
	if w := s.do(t, http.MethodPost, quizPath+"/submit", userToken, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("second submit: got %d, want 400", w.Code)
	}
	if w := s.do(t, http.MethodPost, quizPath+"/answer", userToken, map[string]interface{}{"answer": answers}); w.Code != http.StatusBadRequest {
		t.Fatalf("answer after submit: got %d, want 400", w.Code)
	}

	var attempt models.QuizAttempt
	if err := s.db.First(&attempt, "id = ?", submitted.AttemptID).Error; err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	if attempt.Score != 1 {
		t.Fatalf("score changed after rejected resubmit: %d", attempt.Score)
	}
}

func TestListCacheServesStalePayloadWithinTTL(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "admin", true)
	adminToken := s.login(t, "admin")

	w := s.do(t, http.MethodPost, "/quizzes/", adminToken, sampleQuizPayload())
	if w.Code != http.StatusCreated {
		t.Fatalf("create quiz: %d %s", w.Code, w.Body.String())
	}
	var created struct {
		QuizID uuid.UUID `json:"quiz_id"`
	}
	decodeJSON(t, w, &created)

	first := s.do(t, http.MethodGet, "/quizzes/", adminToken, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first list: %d", first.Code)
	}

	if w := s.do(t, http.MethodDelete, "/quizzes/"+created.QuizID.String(), adminToken, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete quiz: got %d, want 204", w.Code)
	}

	second := s.do(t, http.MethodGet, "/quizzes/", adminToken, nil)
	if second.Body.String() != first.Body.String() {
		t.Fatalf("list within TTL should be served from cache byte-identical")
	}

	// staff detail reflects the delete immediately
	if w := s.do(t, http.MethodGet, "/quizzes/"+created.QuizID.String()+"/forstaff", adminToken, nil); w.Code != http.StatusNotFound {
		t.Fatalf("forstaff after delete: got %d, want 404", w.Code)
	}

	// after expiry the deletion becomes visible
	s.redis.FastForward(2 * time.Minute)
	third := s.do(t, http.MethodGet, "/quizzes/", adminToken, nil)
	var list struct {
		Quizzes []json.RawMessage `json:"quizzes"`
	}
	decodeJSON(t, third, &list)
	if len(list.Quizzes) != 0 {
		t.Fatalf("expected empty list after cache expiry, got %d quizzes", len(list.Quizzes))
	}
}

func TestUserAdministration(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "admin", true)
	adminToken := s.login(t, "admin")

	w := s.do(t, http.MethodPost, "/users", adminToken, map[string]interface{}{
		"name":     "carol",
		"email":    "carol@example.com",
		"password": "supersecret",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create user: %d %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "supersecret") {
		t.Fatalf("password leaked in create response")
	}

	w = s.do(t, http.MethodGet, "/users", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list users: %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Fatalf("password field leaked in user list")
	}

	w = s.do(t, http.MethodPost, "/users", adminToken, map[string]interface{}{
		"name":     "carol",
		"email":    "carol@example.com",
		"password": "supersecret",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate user: got %d, want 409", w.Code)
	}
}
