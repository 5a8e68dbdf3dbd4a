package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parley/backend/internal/models"
	"github.com/parley/backend/internal/moderation"
	"github.com/parley/backend/internal/repository"
	"github.com/parley/backend/internal/store"
)

// faultyFlagStore fails every write under the flag prefix, leaving the
// rest of the store intact.
type faultyFlagStore struct {
	store.RecordStore
}

func (s *faultyFlagStore) Write(ctx context.Context, path string, value interface{}) error {
	if strings.HasPrefix(path, store.FlagsPrefix+"/") {
		return store.ErrWrite
	}
	return s.RecordStore.Write(ctx, path, value)
}

type sendFixture struct {
	handler  *MessageHandler
	messages *repository.MessageRepository
	author   *models.UserProfile
}

func newSendFixture(t *testing.T, s store.RecordStore) *sendFixture {
	t.Helper()
	msgRepo := repository.NewMessageRepository(s)
	flagRepo := repository.NewFlagRepository(s, msgRepo)
	userRepo := repository.NewUserRepository(s)
	activityRepo := repository.NewActivityRepository(s)
	enforcer := moderation.NewEnforcer(moderation.NewClassifier(0), msgRepo, flagRepo, userRepo, activityRepo, zerolog.Nop())
	handler := NewMessageHandler(msgRepo, userRepo, enforcer, zerolog.Nop())

	author := &models.UserProfile{
		ID:          uuid.New(),
		Email:       "sender@example.com",
		DisplayName: "Sender",
	}
	if err := userRepo.Create(context.Background(), author); err != nil {
		t.Fatalf("failed to create author: %v", err)
	}
	return &sendFixture{handler: handler, messages: msgRepo, author: author}
}

func (f *sendFixture) send(body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/messages",
		strings.NewReader(`{"body":`+strconv.Quote(body)+`}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set("user_id", f.author.ID)
	f.handler.SendMessage(c)
	return w
}

func TestSendMessage_CleanMessageValidated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newSendFixture(t, store.NewMemoryStore())

	w := f.send("good morning everyone")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}

	stored, err := f.messages.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(stored) != 1 || !stored[0].Validated {
		t.Fatalf("stored = %+v, want one validated message", stored)
	}
}

func TestSendMessage_AutoDeleteAcknowledgedRemoved(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newSendFixture(t, store.NewMemoryStore())

	w := f.send("kill yourself")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"removed":true`) {
		t.Fatalf("body = %s, want removed ack", w.Body.String())
	}

	stored, err := f.messages.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("stored = %+v, want message removed", stored)
	}
}

func TestSendMessage_EnforcementFailureLeavesUnvalidated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newSendFixture(t, &faultyFlagStore{store.NewMemoryStore()})

	// Severe profanity must be flagged before delete; the flag write
	// fails, so the send must not be acknowledged as moderated.
	w := f.send("fuck this")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "removed") {
		t.Fatalf("body = %s, must not claim removal", w.Body.String())
	}

	// The message stays stored and unvalidated so the post-write monitor
	// retries classification.
	stored, err := f.messages.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(stored) != 1 || stored[0].Validated {
		t.Fatalf("stored = %+v, want one unvalidated message", stored)
	}
}
