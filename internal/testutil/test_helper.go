package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/noteduco342/chatsync/internal/models"
	"gorm.io/gorm"
)

const TestJWTSecret = "test-secret-key-for-testing-only"

// TestHelper provides utility functions for tests
type TestHelper struct {
	t *testing.T
}

func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{t: t}
}

// CreateTestUser creates a test user with default values
func (h *TestHelper) CreateTestUser(id uint, username, email string) *models.User {
	if id == 0 {
		id = 1
	}
	if username == "" {
		username = "testuser"
	}
	if email == "" {
		email = "test@example.com"
	}

	return &models.User{
		ID:            id,
		Username:      username,
		Email:         email,
		PasswordHash:  "hashed_password_123",
		FullName:      "Test User",
		Avatar:        "https://example.com/avatar.jpg",
		Status:        models.StatusOffline,
		IdleTimeoutMs: models.DefaultIdleTimeoutMs,
		DefaultStatus: models.StatusOnline,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

// CreateTestMessage creates a test message with default values
func (h *TestHelper) CreateTestMessage(id, conversationID, senderID uint, content string) *models.Message {
	if id == 0 {
		id = 1
	}
	if senderID == 0 {
		senderID = 1
	}
	if content == "" {
		content = "Test message"
	}

	return &models.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
		Sender: models.User{
			ID:       senderID,
			Username: "sender",
			Email:    "sender@example.com",
		},
	}
}

// SetupTestEnv sets up required environment variables for the duration of the test
func (h *TestHelper) SetupTestEnv() {
	h.t.Setenv("JWT_SECRET", TestJWTSecret)
	h.t.Setenv("PASSWORD_MIN_LENGTH", "10")
}

// AccessToken signs a token the auth middleware accepts.
func (h *TestHelper) AccessToken(userID uint) string {
	h.t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"email":   "test@example.com",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(TestJWTSecret))
	if err != nil {
		h.t.Fatalf("sign token: %v", err)
	}
	return signed
}

// JSONRequest builds a request with body encoded as JSON. A zero userID sends
// no Authorization header.
func (h *TestHelper) JSONRequest(method, target string, body interface{}, userID uint) *http.Request {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+h.AccessToken(userID))
	}
	return req
}

// DecodeJSON reads and closes the response body.
func (h *TestHelper) DecodeJSON(resp *http.Response, v interface{}) {
	h.t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		h.t.Fatalf("decode response: %v", err)
	}
}

// AssertError checks if an error occurred when it should (or shouldn't)
func (h *TestHelper) AssertError(err error, shouldErr bool, testName string) {
	if (err != nil) != shouldErr {
		if shouldErr {
			h.t.Errorf("%s: expected error but got nil", testName)
		} else {
			h.t.Errorf("%s: unexpected error: %v", testName, err)
		}
	}
}

// GetRecordNotFoundError returns the error repositories report for missing rows
func GetRecordNotFoundError() error {
	return gorm.ErrRecordNotFound
}
