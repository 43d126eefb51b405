package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"medichat-server/internal/config"
	"medichat-server/internal/llm"
	"medichat-server/internal/models"
	"medichat-server/internal/services"
)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type memoryStore struct {
	mu   sync.Mutex
	keys []string
}

func (s *memoryStore) PutAttachment(_ context.Context, sessionID, filename, _ string, _ []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := "sessions/" + sessionID + "/" + filename
	s.keys = append(s.keys, key)
	return key, nil
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	db     *gorm.DB
	store  *memoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := models.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	cfg := &config.Config{
		JWTSecret:                 "test-secret",
		JWTRefreshSecret:          "test-refresh-secret",
		JWTExpirationMinutes:      60,
		JWTRefreshExpirationHours: 24,
		LLM: config.LLMConfig{
			DefaultProvider: "groq",
			GroqBaseURL:     "http://127.0.0.1:1",
			SafetyProvider:  "groq",
			SafetyModel:     "groq/compound-mini",
		},
	}
	log := zap.NewNop()
	evaluator, err := llm.NewEvaluator(cfg.LLM, log)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	messages := services.NewMessageService(db)
	store := &memoryStore{}

	router := gin.New()
	SetupRoutes(router, Dependencies{
		DB:          db,
		Config:      cfg,
		Logger:      log,
		Sessions:    services.NewSessionService(db),
		Messages:    messages,
		Chat:        services.NewChatService(db, messages, llm.NewClient(cfg.LLM, log), evaluator, nil, log, services.ChatOptions{}),
		Attachments: store,
	})
	return &testServer{t: t, router: router, db: db, store: store}
}

func (s *testServer) do(req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	var env envelope
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
			s.t.Fatalf("response is not JSON: %s", rr.Body.String())
		}
	}
	return rr, env
}

func (s *testServer) doJSON(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, token)
}

func (s *testServer) login(email, password, role string) string {
	s.t.Helper()
	rr, _ := s.doJSON(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Dr. Test", "email": email, "password": password, "role": role,
	})
	if rr.Code != http.StatusCreated {
		s.t.Fatalf("register: %d %s", rr.Code, rr.Body.String())
	}
	return s.loginOnly(email, password)
}

func (s *testServer) loginOnly(email, password string) string {
	s.t.Helper()
	rr, env := s.doJSON(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	if rr.Code != http.StatusOK {
		s.t.Fatalf("login: %d %s", rr.Code, rr.Body.String())
	}
	var data struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.AccessToken == "" {
		s.t.Fatalf("login response has no token: %s", rr.Body.String())
	}
	return data.AccessToken
}

func (s *testServer) seedPatientAndCase(token, patientID, caseID string) {
	s.t.Helper()
	rr, _ := s.doJSON(http.MethodPost, "/api/v1/patient", token, map[string]interface{}{
		"patient_id": patientID, "name": "Jane Roe", "age": 42, "gender": "female", "dob": "1982-01-01",
	})
	if rr.Code != http.StatusCreated {
		s.t.Fatalf("create patient: %d %s", rr.Code, rr.Body.String())
	}
	rr, _ = s.doJSON(http.MethodPost, "/api/v1/cases", token, map[string]interface{}{
		"case_id": caseID, "patient_id": patientID, "case_name": "Chest pain",
		"description": "Intermittent chest pain", "tags": []string{"cardio", "urgent"},
	})
	if rr.Code != http.StatusCreated {
		s.t.Fatalf("create case: %d %s", rr.Code, rr.Body.String())
	}
}

func chatURL(params map[string]string) string {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return "/api/v1/chat?" + values.Encode()
}

func (s *testServer) debugChat(token, sessionID, caseID, patientID string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	req := httptest.NewRequest(http.MethodPost, chatURL(map[string]string{
		"session_id": sessionID, "case_id": caseID, "patient_id": patientID,
		"prompt": "Hello, how are you?", "debug": "true",
	}), nil)
	return s.do(req, token)
}

func (s *testServer) history(token, sessionID string) []services.HistoryEntry {
	s.t.Helper()
	rr, env := s.doJSON(http.MethodGet, "/api/v1/history/messages/"+sessionID, token, nil)
	if rr.Code != http.StatusOK {
		s.t.Fatalf("history: %d %s", rr.Code, rr.Body.String())
	}
	var data struct {
		Conversations []services.HistoryEntry `json:"conversations"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		s.t.Fatalf("decode history: %v", err)
	}
	return data.Conversations
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	rr, _ := s.doJSON(http.MethodGet, "/api/v1/users/me", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	token := s.login("doc@example.com", "s3cret-pass", "doctor")
	rr, env := s.doJSON(http.MethodGet, "/api/v1/users/me", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("me: %d %s", rr.Code, rr.Body.String())
	}
	if strings.Contains(string(env.Data), "password") {
		t.Errorf("password leaked: %s", env.Data)
	}

	rr, _ = s.doJSON(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "doc@example.com", "password": "another-pass",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for duplicate email, got %d", rr.Code)
	}

	rr, env = s.doJSON(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "doc@example.com", "password": "wrong-pass",
	})
	if rr.Code != http.StatusUnauthorized || env.Error != "Invalid email or password" {
		t.Errorf("expected generic login failure, got %d %q", rr.Code, env.Error)
	}

	// a second login revokes the first token
	second := s.loginOnly("doc@example.com", "s3cret-pass")
	if rr, _ := s.doJSON(http.MethodGet, "/api/v1/users/me", token, nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("expected old token to be revoked, got %d", rr.Code)
	}

	rr, _ = s.doJSON(http.MethodPost, "/api/v1/auth/logout", second, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout: %d %s", rr.Code, rr.Body.String())
	}
	if rr, _ := s.doJSON(http.MethodGet, "/api/v1/users/me", second, nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("expected token to be revoked after logout, got %d", rr.Code)
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	s := newTestServer(t)
	s.login("doc@example.com", "s3cret-pass", "doctor")

	rr, env := s.doJSON(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "doc@example.com", "password": "s3cret-pass",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: %d", rr.Code)
	}
	var pair struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(env.Data, &pair); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rr, env = s.doJSON(http.MethodPost, "/api/v1/auth/refresh", pair.AccessToken, map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", rr.Code, rr.Body.String())
	}
	var rotated struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(env.Data, &rotated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rr, _ := s.doJSON(http.MethodGet, "/api/v1/users/me", rotated.AccessToken, nil); rr.Code != http.StatusOK {
		t.Errorf("rotated token rejected: %d", rr.Code)
	}
	if rr, _ := s.doJSON(http.MethodGet, "/api/v1/users/me", pair.AccessToken, nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("old access token still accepted: %d", rr.Code)
	}
}

func TestAdminOnlyUserListing(t *testing.T) {
	s := newTestServer(t)
	userToken := s.login("user@example.com", "s3cret-pass", "user")
	adminToken := s.login("admin@example.com", "s3cret-pass", "admin")

	if rr, _ := s.doJSON(http.MethodGet, "/api/v1/users", userToken, nil); rr.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin, got %d", rr.Code)
	}
	if rr, _ := s.doJSON(http.MethodGet, "/api/v1/users", adminToken, nil); rr.Code != http.StatusOK {
		t.Errorf("expected 200 for admin, got %d", rr.Code)
	}
}

func TestCaseRequiresPatient(t *testing.T) {
	s := newTestServer(t)
	token := s.login("doc@example.com", "s3cret-pass", "doctor")

	rr, env := s.doJSON(http.MethodPost, "/api/v1/cases", token, map[string]interface{}{
		"case_id": "c1", "patient_id": "nobody", "case_name": "x", "description": "y",
	})
	if rr.Code != http.StatusNotFound || env.Error != "Patient not found" {
		t.Fatalf("expected 404 Patient not found, got %d %q", rr.Code, env.Error)
	}

	s.seedPatientAndCase(token, "p1", "c1")
	rr, _ = s.doJSON(http.MethodPost, "/api/v1/cases", token, map[string]interface{}{
		"case_id": "c1", "patient_id": "p1", "case_name": "x", "description": "y",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for duplicate case, got %d", rr.Code)
	}

	rr, env = s.doJSON(http.MethodPut, "/api/v1/cases/c1", token, map[string]interface{}{"case_name": "Renamed"})
	if rr.Code != http.StatusOK {
		t.Fatalf("update case: %d %s", rr.Code, rr.Body.String())
	}
	var updated models.Case
	if err := json.Unmarshal(env.Data, &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.CaseName != "Renamed" || updated.Description != "Intermittent chest pain" || len(updated.Tags) != 2 {
		t.Errorf("partial update changed other fields: %+v", updated)
	}
}

func TestChatDebugEndToEnd(t *testing.T) {
	s := newTestServer(t)
	token := s.login("doc@example.com", "s3cret-pass", "doctor")
	s.seedPatientAndCase(token, "p1", "c1")

	rr, env := s.debugChat(token, "s1", "c1", "p1")
	if rr.Code != http.StatusOK {
		t.Fatalf("chat: %d %s", rr.Code, rr.Body.String())
	}
	var result struct {
		Response    string        `json:"response"`
		SafetyScore models.Safety `json:"safety_score"`
		MessageID   string        `json:"message_id"`
	}
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(strings.ToLower(result.Response), "mock response") {
		t.Errorf("expected mock response, got %q", result.Response)
	}
	if result.SafetyScore.Score != 100 || result.SafetyScore.SafetyLevel != "High" {
		t.Errorf("unexpected safety score %+v", result.SafetyScore)
	}

	history := s.history(token, "s1")
	if len(history) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(history))
	}
	if history[0].MessageID != result.MessageID {
		t.Errorf("history id %q != response id %q", history[0].MessageID, result.MessageID)
	}
	roles := []string{history[0].Content[0].Role, history[0].Content[1].Role}
	if roles[0] != models.RoleUserTurn || roles[1] != models.RoleAssistantTurn {
		t.Errorf("expected user then assistant, got %v", roles)
	}
}

func TestChatUnknownCaseOrPatient(t *testing.T) {
	s := newTestServer(t)
	token := s.login("doc@example.com", "s3cret-pass", "doctor")
	s.seedPatientAndCase(token, "p1", "c1")

	rr, env := s.debugChat(token, "s1", "missing-case", "p1")
	if rr.Code != http.StatusNotFound || env.Error != "Case not found" {
		t.Errorf("expected 404 Case not found, got %d %q", rr.Code, env.Error)
	}
	rr, env = s.debugChat(token, "s1", "c1", "missing-patient")
	if rr.Code != http.StatusNotFound || env.Error != "Patient not found" {
		t.Errorf("expected 404 Patient not found, got %d %q", rr.Code, env.Error)
	}

	var n int64
	s.db.Model(&models.SessionMessage{}).Count(&n)
	if n != 0 {
		t.Errorf("expected no stored messages, got %d", n)
	}
}

func TestChatWithImageUpload(t *testing.T) {
	s := newTestServer(t)
	token := s.login("doc@example.com", "s3cret-pass", "doctor")
	s.seedPatientAndCase(token, "p1", "c1")

	upload := func(contentType string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="files"; filename="scan.png"`)
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		part.Write([]byte("\x89PNG fake image bytes"))
		for k, v := range map[string]string{"case_id": "c1", "patient_id": "p1", "prompt": "Describe the scan"} {
			mw.WriteField(k, v)
		}
		mw.Close()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat?session_id=s1&debug=true", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rr, _ := s.do(req, token)
		return rr
	}

	if rr := upload("text/plain"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for text upload, got %d %s", rr.Code, rr.Body.String())
	}

	rr := upload("image/png")
	if rr.Code != http.StatusOK {
		t.Fatalf("chat with image: %d %s", rr.Code, rr.Body.String())
	}
	if len(s.store.keys) != 1 || s.store.keys[0] != "sessions/s1/scan.png" {
		t.Errorf("expected archived attachment, got %v", s.store.keys)
	}

	history := s.history(token, "s1")
	if len(history) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(history))
	}
	blocks := history[0].Content[0].Content
	if len(blocks) != 2 || blocks[0].Type != models.BlockImage || !strings.HasPrefix(blocks[0].Image, "data:image;base64,") {
		t.Errorf("expected image block before text, got %+v", blocks)
	}
}

func TestLikeAndFeedbackEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := s.login("doc@example.com", "s3cret-pass", "doctor")
	s.seedPatientAndCase(token, "p1", "c1")
	if rr, _ := s.debugChat(token, "s1", "c1", "p1"); rr.Code != http.StatusOK {
		t.Fatalf("chat: %d", rr.Code)
	}
	id := s.history(token, "s1")[0].MessageID

	for _, like := range []string{"true", "false"} {
		path := fmt.Sprintf("/api/v1/chat/like-message/%s?like=%s", id, like)
		if rr, _ := s.doJSON(http.MethodPost, path, token, nil); rr.Code != http.StatusOK {
			t.Fatalf("like=%s: %d %s", like, rr.Code, rr.Body.String())
		}
	}
	entry := s.history(token, "s1")[0]
	if entry.Like == nil || *entry.Like {
		t.Errorf("expected latest value false, got %v", entry.Like)
	}

	path := fmt.Sprintf("/api/v1/chat/submit-feedback/%s?feedback=%s&stars=4", id, url.QueryEscape("Very helpful"))
	if rr, _ := s.doJSON(http.MethodPost, path, token, nil); rr.Code != http.StatusOK {
		t.Fatalf("submit feedback: %d", rr.Code)
	}
	path = fmt.Sprintf("/api/v1/chat/edit-feedback/%s?stars=5", id)
	if rr, _ := s.doJSON(http.MethodPut, path, token, nil); rr.Code != http.StatusOK {
		t.Fatalf("edit feedback: %d", rr.Code)
	}
	entry = s.history(token, "s1")[0]
	if entry.Feedback == nil || *entry.Feedback != "Very helpful" || entry.Stars != 5 {
		t.Errorf("expected (Very helpful, 5), got (%v, %d)", entry.Feedback, entry.Stars)
	}

	path = fmt.Sprintf("/api/v1/chat/edit-feedback/%s?stars=9", id)
	if rr, _ := s.doJSON(http.MethodPut, path, token, nil); rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for 9 stars, got %d", rr.Code)
	}
	if rr, _ := s.doJSON(http.MethodPost, "/api/v1/chat/like-message/unknown?like=true", token, nil); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown message, got %d", rr.Code)
	}
}

func TestSessionEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := s.login("doc@example.com", "s3cret-pass", "doctor")
	s.seedPatientAndCase(token, "p1", "c1")

	body := map[string]string{"session_id": "s1", "title": "Follow-up", "case_id": "c1", "patient_id": "p1"}
	for i := 0; i < 2; i++ {
		if rr, _ := s.doJSON(http.MethodPost, "/api/v1/history/sessions", token, body); rr.Code != http.StatusCreated {
			t.Fatalf("create session %d: %d %s", i, rr.Code, rr.Body.String())
		}
	}
	if rr, _ := s.doJSON(http.MethodPut, "/api/v1/history/sessions/s1", token, map[string]string{"title": "Renamed"}); rr.Code != http.StatusOK {
		t.Errorf("edit session: %d", rr.Code)
	}
	if rr, _ := s.doJSON(http.MethodPut, "/api/v1/history/sessions/nope", token, map[string]string{"title": "x"}); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 editing unknown session, got %d", rr.Code)
	}

	rr, env := s.doJSON(http.MethodGet, "/api/v1/history/sessions?case_id=c1", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list sessions: %d", rr.Code)
	}
	var sessions []models.ChatSession
	if err := json.Unmarshal(env.Data, &sessions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Title != "Renamed" {
		t.Errorf("unexpected sessions %+v", sessions)
	}

	if rr, _ := s.doJSON(http.MethodGet, "/api/v1/history/messages/s1?since=yesterday", token, nil); rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed since, got %d", rr.Code)
	}

	if rr, _ := s.doJSON(http.MethodDelete, "/api/v1/history/session/s1", token, nil); rr.Code != http.StatusOK {
		t.Errorf("delete session: %d", rr.Code)
	}
	if rr, _ := s.doJSON(http.MethodDelete, "/api/v1/history/session/s1", token, nil); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for deleted session, got %d", rr.Code)
	}
}

func TestDeletePatientCascades(t *testing.T) {
	s := newTestServer(t)
	token := s.login("doc@example.com", "s3cret-pass", "doctor")
	s.seedPatientAndCase(token, "p1", "c1")
	if rr, _ := s.debugChat(token, "s1", "c1", "p1"); rr.Code != http.StatusOK {
		t.Fatalf("chat: %d", rr.Code)
	}

	if rr, _ := s.doJSON(http.MethodDelete, "/api/v1/patient/p1", token, nil); rr.Code != http.StatusOK {
		t.Fatalf("delete patient: %d", rr.Code)
	}

	for name, model := range map[string]interface{}{
		"cases":    &models.Case{},
		"sessions": &models.ChatSession{},
		"messages": &models.SessionMessage{},
	} {
		var n int64
		if err := s.db.Model(model).Count(&n).Error; err != nil {
			t.Fatalf("count %s: %v", name, err)
		}
		if n != 0 {
			t.Errorf("expected no %s after patient delete, got %d", name, n)
		}
	}

	if rr, _ := s.doJSON(http.MethodGet, "/api/v1/patient/p1", token, nil); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for deleted patient, got %d", rr.Code)
	}
}

func TestSessionOwnershipIsEnforced(t *testing.T) {
	s := newTestServer(t)
	token := s.login("doc@example.com", "s3cret-pass", "doctor")
	s.seedPatientAndCase(token, "p1", "c1")
	s.seedPatientAndCase(token, "p2", "c2")

	body := map[string]string{"session_id": "s2", "case_id": "c1", "patient_id": "p2"}
	if rr, _ := s.doJSON(http.MethodPost, "/api/v1/history/sessions", token, body); rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a case of another patient, got %d", rr.Code)
	}

	if rr, _ := s.debugChat(token, "s1", "c1", "p1"); rr.Code != http.StatusOK {
		t.Fatalf("chat: %d %s", rr.Code, rr.Body.String())
	}
	if rr, _ := s.debugChat(token, "s1", "c2", "p2"); rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a turn under another case, got %d", rr.Code)
	}

	if rr, _ := s.doJSON(http.MethodDelete, "/api/v1/cases/c2", token, nil); rr.Code != http.StatusOK {
		t.Fatalf("delete case: %d", rr.Code)
	}
	if got := s.history(token, "s1"); len(got) != 1 {
		t.Errorf("expected s1 history untouched, got %d entries", len(got))
	}
}
