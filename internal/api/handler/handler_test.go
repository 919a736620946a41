package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"skillsetu/backend/internal/api/handler"
	"skillsetu/backend/internal/chathub"
	"skillsetu/backend/internal/lifecycle"
	"skillsetu/backend/internal/models"
	"skillsetu/backend/internal/notify"
	"skillsetu/backend/internal/report"
	"skillsetu/backend/internal/storage"
	"skillsetu/backend/internal/storage/storagetest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSecret = []byte("test-secret")

type apiFixture struct {
	router *gin.Engine
	store  *storage.Service
	notify *notify.Hub
	chat   *chathub.Manager
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storagetest.NewSQLite(t)
	logger := zap.NewNop()
	hub := notify.NewHub(nil, logger)
	chat := chathub.NewManager(store, nil, logger, time.Second)

	h := handler.NewHandler(handler.Deps{
		Sessions:  lifecycle.NewService(store, hub, nil, logger, time.Second),
		Chat:      chat,
		Notify:    hub,
		Reports:   report.NewService(store, nil, logger, time.Second),
		Links:     store,
		Ratings:   store,
		JWTSecret: testSecret,
		Logger:    logger,
	})

	r := gin.New()
	h.RegisterRoutes(r)
	return &apiFixture{router: r, store: store, notify: hub, chat: chat}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := handler.IssueToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *apiFixture) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	assert.Equal(t, code, decode[errorBody](t, w).Error)
}

func (f *apiFixture) requestSession(t *testing.T, from, to string) models.Session {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/sessions/request", from, gin.H{
		"userId2":     to,
		"skill":       "guitar",
		"sessionDate": "2030-05-01",
		"sessionTime": "10:00",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Session](t, w)
}

func (f *apiFixture) acceptedSession(t *testing.T, from, to string) models.Session {
	t.Helper()
	sess := f.requestSession(t, from, to)
	w := f.do(t, http.MethodPost, "/api/sessions/accept", to, gin.H{"sessionId": sess.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[models.Session](t, w)
}

func TestHealth(t *testing.T) {
	f := newAPI(t)
	w := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAuth(t *testing.T) {
	f := newAPI(t)

	t.Run("missing token", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/sessions/pending", "", nil)
		assertError(t, w, http.StatusUnauthorized, "unauthenticated")
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok, err := handler.IssueToken([]byte("other"), "alice", time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/sessions/pending", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		assertError(t, w, http.StatusUnauthorized, "unauthenticated")
	})

	t.Run("expired", func(t *testing.T) {
		tok, err := handler.IssueToken(testSecret, "alice", -time.Minute)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/sessions/pending", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("x-auth-token header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/sessions/pending", nil)
		req.Header.Set("x-auth-token", token(t, "alice"))
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String(), "projections are bare arrays")
	})
}

func TestParseToken(t *testing.T) {
	tok := token(t, "alice")

	userID, err := handler.ParseToken(testSecret, tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)

	_, err = handler.ParseToken(testSecret, tok+"x")
	assert.Error(t, err)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{models.ErrInvalidParticipants, http.StatusBadRequest, "invalid_participants"},
		{models.ErrFeedbackRequired, http.StatusBadRequest, "feedback_required"},
		{models.ErrNotAParticipant, http.StatusForbidden, "not_a_participant"},
		{models.ErrChatBlocked, http.StatusForbidden, "chat_blocked"},
		{models.ErrInvalidSession, http.StatusNotFound, "invalid_session"},
		{models.ErrOutcomeConflict, http.StatusConflict, "outcome_conflict"},
		{fmt.Errorf("get session: %w: %w", models.ErrStoreUnavailable, errors.New("conn refused")), http.StatusServiceUnavailable, "store_unavailable"},
		{storage.ErrRedisDisabled, http.StatusServiceUnavailable, "link_codes_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := handler.ErrorCode(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	f := newAPI(t)

	sess := f.requestSession(t, "alice", "bob")
	assert.Equal(t, models.StatusPending, sess.Status)
	assert.Equal(t, time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC), sess.ScheduledAt.UTC())

	pending := decode[[]models.Session](t, f.do(t, http.MethodGet, "/api/sessions/pending", "bob", nil))
	require.Len(t, pending, 1)
	assert.Equal(t, sess.ID, pending[0].ID)

	// Only the target may accept.
	w := f.do(t, http.MethodPost, "/api/sessions/accept", "alice", gin.H{"sessionId": sess.ID})
	assertError(t, w, http.StatusForbidden, "not_a_participant")

	w = f.do(t, http.MethodPost, "/api/sessions/accept", "bob", gin.H{"sessionId": sess.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/api/sessions/schedule", "alice", gin.H{
		"sessionId":      sess.ID,
		"newMeetingDate": "2030-05-02",
		"newMeetingTime": "18:30",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, time.Date(2030, 5, 2, 18, 30, 0, 0, time.UTC), decode[models.Session](t, w).ScheduledAt.UTC())

	accepted := decode[[]models.Session](t, f.do(t, http.MethodGet, "/api/sessions/acceptedOnly", "alice", nil))
	require.Len(t, accepted, 1)

	w = f.do(t, http.MethodPost, "/api/sessions/mark-session", "alice", gin.H{
		"sessionId": sess.ID, "status": "completed", "rating": 5, "feedback": "very helpful",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusCompleted, decode[models.Session](t, w).Status)

	w = f.do(t, http.MethodPost, "/api/sessions/mark-session", "alice", gin.H{
		"sessionId": sess.ID, "status": "completed", "rating": 4, "feedback": "again",
	})
	assertError(t, w, http.StatusConflict, "already_finalized")

	w = f.do(t, http.MethodPost, "/api/sessions/mark-session", "bob", gin.H{
		"sessionId": sess.ID, "status": "canceled", "rating": 4, "feedback": "nope",
	})
	assertError(t, w, http.StatusConflict, "outcome_conflict")

	w = f.do(t, http.MethodPost, "/api/sessions/mark-session", "bob", gin.H{
		"sessionId": sess.ID, "status": "completed", "rating": 3, "feedback": "good student",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	completed := decode[[]models.Session](t, f.do(t, http.MethodGet, "/api/sessions/completed", "bob", nil))
	require.Len(t, completed, 1)

	rating := decode[storage.Rating](t, f.do(t, http.MethodGet, "/api/sessions/ratings/bob", "alice", nil))
	assert.Equal(t, int64(1), rating.Count)
	assert.InDelta(t, 5.0, rating.Average, 0.001)

	w = f.do(t, http.MethodGet, "/api/sessions/"+sess.ID, "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[models.Session](t, w)
	assert.True(t, got.BothFeedbackGiven())

	w = f.do(t, http.MethodGet, "/api/sessions/"+sess.ID, "mallory", nil)
	assertError(t, w, http.StatusForbidden, "not_a_participant")
}

func TestRequestSession_Validation(t *testing.T) {
	f := newAPI(t)

	tests := []struct {
		name   string
		user   string
		body   gin.H
		status int
		code   string
	}{
		{"missing target", "alice", gin.H{"skill": "go", "sessionDate": "2030-01-01", "sessionTime": "10:00"}, http.StatusBadRequest, "bad_request"},
		{"self request", "alice", gin.H{"userId2": "alice", "skill": "go", "sessionDate": "2030-01-01", "sessionTime": "10:00"}, http.StatusBadRequest, "invalid_participants"},
		{"no skill", "alice", gin.H{"userId2": "bob", "sessionDate": "2030-01-01", "sessionTime": "10:00"}, http.StatusBadRequest, "skill_required"},
		{"bad date", "alice", gin.H{"userId2": "bob", "skill": "go", "sessionDate": "01/02/2030", "sessionTime": "10:00"}, http.StatusBadRequest, "invalid_schedule"},
		{"no time", "alice", gin.H{"userId2": "bob", "skill": "go", "sessionDate": "2030-01-01"}, http.StatusBadRequest, "invalid_schedule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/sessions/request", tt.user, tt.body)
			assertError(t, w, tt.status, tt.code)
		})
	}

	t.Run("rfc3339", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/sessions/request", "alice", gin.H{
			"userId2": "bob", "skill": "go", "scheduledAt": "2030-01-01T12:00:00+02:00",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC), decode[models.Session](t, w).ScheduledAt.UTC())
	})
}

func TestAcceptSession_Unknown(t *testing.T) {
	f := newAPI(t)
	w := f.do(t, http.MethodPost, "/api/sessions/accept", "bob", gin.H{"sessionId": "00000000-0000-0000-0000-000000000000"})
	assertError(t, w, http.StatusNotFound, "invalid_session")
}

func TestMalformedSessionID(t *testing.T) {
	f := newAPI(t)

	w := f.do(t, http.MethodGet, "/api/sessions/abc", "alice", nil)
	assertError(t, w, http.StatusNotFound, "session_not_found")

	w = f.do(t, http.MethodPost, "/api/sessions/accept", "bob", gin.H{"sessionId": "abc"})
	assertError(t, w, http.StatusNotFound, "invalid_session")

	w = f.do(t, http.MethodPost, "/api/sessions/mark-session", "bob", gin.H{
		"sessionId": "abc", "status": "completed", "rating": 5, "feedback": "ok",
	})
	assertError(t, w, http.StatusNotFound, "invalid_session")

	w = f.do(t, http.MethodPost, "/api/reports", "alice", gin.H{"session": "abc", "reason": "spam"})
	assertError(t, w, http.StatusNotFound, "invalid_session")

	w = f.do(t, http.MethodGet, "/api/sessions/message/abc", "alice", nil)
	assertError(t, w, http.StatusForbidden, "unauthorized")

	w = f.do(t, http.MethodPost, "/api/sessions/message", "alice", gin.H{"sessionId": "abc", "content": "hi"})
	assertError(t, w, http.StatusForbidden, "unauthorized")
}

func TestMessages(t *testing.T) {
	f := newAPI(t)

	pending := f.requestSession(t, "alice", "bob")
	w := f.do(t, http.MethodPost, "/api/sessions/message", "alice", gin.H{"sessionId": pending.ID, "content": "hi"})
	assertError(t, w, http.StatusForbidden, "unauthorized")

	sess := f.acceptedSession(t, "carol", "dave")

	w = f.do(t, http.MethodPost, "/api/sessions/message", "carol", gin.H{"sessionId": sess.ID, "content": "  "})
	assertError(t, w, http.StatusBadRequest, "empty_message")

	w = f.do(t, http.MethodPost, "/api/sessions/message", "carol", gin.H{"sessionId": sess.ID, "content": "hello"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	msg := decode[models.ChatMessage](t, w)
	assert.Equal(t, "dave", msg.ReceiverID)

	w = f.do(t, http.MethodPost, "/api/sessions/message", "dave", gin.H{"sessionId": sess.ID, "content": "hey", "media": "img/1.png"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, "/api/sessions/message/"+sess.ID, "dave", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	history := decode[models.ChatHistory](t, w)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "hello", history.Messages[0].Content)
	assert.Equal(t, "img/1.png", history.Messages[1].MediaRef)

	w = f.do(t, http.MethodGet, "/api/sessions/message/"+sess.ID, "mallory", nil)
	assertError(t, w, http.StatusForbidden, "unauthorized")
}

func TestFileReport(t *testing.T) {
	f := newAPI(t)
	sess := f.acceptedSession(t, "alice", "bob")

	w := f.do(t, http.MethodPost, "/api/reports", "alice", gin.H{
		"session": sess.ID, "reason": "Inappropriate Behavior", "description": "rude",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, decode[map[string]string](t, w)["report_id"])

	reports, err := f.store.ListReportsBySession(t.Context(), sess.ID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "bob", reports[0].TargetID)

	w = f.do(t, http.MethodPost, "/api/reports", "alice", gin.H{"sessionId": sess.ID, "reason": "boring"})
	assertError(t, w, http.StatusBadRequest, "invalid_report_reason")

	w = f.do(t, http.MethodPost, "/api/reports", "mallory", gin.H{"sessionId": sess.ID, "reason": "spam"})
	assertError(t, w, http.StatusNotFound, "invalid_session")

	w = f.do(t, http.MethodPost, "/api/reports", "alice", gin.H{"reason": "spam"})
	assertError(t, w, http.StatusBadRequest, "bad_request")
}

func TestTelegramLink(t *testing.T) {
	f := newAPI(t)

	w := f.do(t, http.MethodPost, "/api/notifications/telegram-link", "alice", nil)
	assertError(t, w, http.StatusServiceUnavailable, "link_codes_unavailable")

	mr := miniredis.RunT(t)
	f.store.Redis = redis.NewClient(&redis.Options{Addr: mr.Addr()})

	w = f.do(t, http.MethodPost, "/api/notifications/telegram-link", "alice", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body struct {
		Code      string `json:"code"`
		ExpiresIn int    `json:"expires_in"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Code, 8)
	assert.Equal(t, 600, body.ExpiresIn)

	userID, err := f.store.ConsumeLinkCode(t.Context(), body.Code)
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
}
