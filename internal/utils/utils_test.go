package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medichat-server/internal/config"
	"medichat-server/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:                 "access-secret",
		JWTRefreshSecret:          "refresh-secret",
		JWTExpirationMinutes:      5,
		JWTRefreshExpirationHours: 1,
	}
}

func TestGenerateAndValidateTokens(t *testing.T) {
	cfg := testConfig()
	user := &models.User{UserID: "u1", Role: models.RoleDoctor}

	access, refresh, err := GenerateTokens(user, cfg)
	if err != nil {
		t.Fatalf("GenerateTokens: %v", err)
	}

	claims, err := ValidateToken(access, cfg.JWTSecret)
	if err != nil {
		t.Fatalf("ValidateToken(access): %v", err)
	}
	if claims.UserID != "u1" || claims.Role != models.RoleDoctor || claims.Subject != "u1" {
		t.Errorf("unexpected claims %+v", claims)
	}
	if claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time) != 5*time.Minute {
		t.Errorf("unexpected access lifetime")
	}

	if _, err := ValidateToken(refresh, cfg.JWTSecret); err == nil {
		t.Error("refresh token must not validate with the access secret")
	}
	if _, err := ValidateToken(refresh, cfg.JWTRefreshSecret); err != nil {
		t.Errorf("ValidateToken(refresh): %v", err)
	}

	again, _, err := GenerateTokens(user, cfg)
	if err != nil {
		t.Fatalf("GenerateTokens: %v", err)
	}
	if again == access {
		t.Error("tokens issued in the same second must differ")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	cfg := testConfig()
	token, err := signToken(&models.User{UserID: "u1"}, cfg.JWTSecret, -time.Minute)
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	if _, err := ValidateToken(token, cfg.JWTSecret); err == nil {
		t.Error("expected expired token to be rejected")
	}
}

func TestAppErrorStatusCodes(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{NotFoundError("Case"), http.StatusNotFound},
		{ValidationError("bad"), http.StatusBadRequest},
		{UnauthorizedError("no"), http.StatusUnauthorized},
		{PersistenceError("store message", errors.New("disk full")), http.StatusInternalServerError},
		{ExternalServiceError("model call timed out", nil), http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := tt.err.StatusCode(); got != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.err.Message, tt.want, got)
		}
	}

	if NotFoundError("Patient").Message != "Patient not found" {
		t.Error("unexpected not-found message")
	}
	wrapped := fmt.Errorf("outer: %w", PersistenceError("store message", errors.New("disk full")))
	if !IsKind(wrapped, KindPersistence) {
		t.Error("IsKind must see through wrapping")
	}
}

func TestRespondErrorHidesCauses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"classified", PersistenceError("store message", errors.New("pq: secret detail")), http.StatusInternalServerError, "Failed to store message"},
		{"not found", NotFoundError("Case"), http.StatusNotFound, "Case not found"},
		{"unclassified", errors.New("raw driver failure"), http.StatusInternalServerError, "An internal error occurred"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rr)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			RespondError(c, zap.NewNop(), tt.err)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, rr.Code)
			}
			var body ResponseData
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tt.wantMessage {
				t.Errorf("expected error %q, got %q", tt.wantMessage, body.Error)
			}
		})
	}
}
