package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"facility-notify/internal/config"
	"facility-notify/internal/models"
	"facility-notify/internal/ws"
	"facility-notify/pkg/email"
)

type fakeStore struct {
	recent    []models.Notification
	unread    int
	err       error
	marked    []string
	markedAll []string
}

func (f *fakeStore) FetchRecent(_ context.Context, _ string, _ int) ([]models.Notification, error) {
	return f.recent, f.err
}

func (f *fakeStore) UnreadCount(_ context.Context, _ string) (int, error) {
	return f.unread, f.err
}

func (f *fakeStore) MarkRead(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.marked = append(f.marked, id)
	return nil
}

func (f *fakeStore) MarkAllRead(_ context.Context, userID string) error {
	if f.err != nil {
		return f.err
	}
	f.markedAll = append(f.markedAll, userID)
	return nil
}

type fakeDirectory struct {
	roles     map[string]string
	accounts  map[string]string
	users     []models.User
	upsertErr error
}

func (f *fakeDirectory) GetUserRole(_ context.Context, userID string) (string, error) {
	role, ok := f.roles[userID]
	if !ok {
		return "", fmt.Errorf("no user found for id %s", userID)
	}
	return role, nil
}

func (f *fakeDirectory) CreateAccount(_ context.Context, id, email, passwordHash string) error {
	if f.accounts == nil {
		f.accounts = make(map[string]string)
	}
	f.accounts[id] = passwordHash
	return nil
}

func (f *fakeDirectory) UpsertUser(_ context.Context, u models.User) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.users = append(f.users, u)
	return nil
}

type fakeMailer struct {
	err  error
	sent []email.Params
}

func (f *fakeMailer) Send(_ context.Context, p email.Params) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, p)
	return nil
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestRouter(store *fakeStore, dir *fakeDirectory, mailer *fakeMailer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := testLogger()
	var cfg config.Config
	cfg.API.BasePath = "/api/v0"
	h := NewHandler(store, dir, mailer, logger)
	wsHandler := NewWSHandler(ws.NewHub(logger), logger)
	return NewRouter(cfg, logger, h, wsHandler)
}

func doJSON(r *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetNotificationsByUserID(t *testing.T) {
	store := &fakeStore{recent: []models.Notification{
		{ID: "n1", Type: models.TypeTaskAssigned, Title: "New task", CreatedAt: time.Now()},
	}}
	r := newTestRouter(store, &fakeDirectory{}, &fakeMailer{})

	w := doJSON(r, http.MethodGet, "/api/v0/notifications/user/u1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got []models.Notification
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "n1", got[0].ID)
}

func TestGetNotificationsRejectsBadLimit(t *testing.T) {
	r := newTestRouter(&fakeStore{}, &fakeDirectory{}, &fakeMailer{})

	w := doJSON(r, http.MethodGet, "/api/v0/notifications/user/u1?limit=zero", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v0/notifications/user/u1?limit=0", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetUnreadCount(t *testing.T) {
	r := newTestRouter(&fakeStore{unread: 4}, &fakeDirectory{}, &fakeMailer{})

	w := doJSON(r, http.MethodGet, "/api/v0/notifications/user/u1/unread-count", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count": 4}`, w.Body.String())
}

func TestMarkNotificationRead(t *testing.T) {
	store := &fakeStore{}
	r := newTestRouter(store, &fakeDirectory{}, &fakeMailer{})

	w := doJSON(r, http.MethodPost, "/api/v0/notifications/n1/read", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"n1"}, store.marked)
}

func TestMarkNotificationReadFailure(t *testing.T) {
	store := &fakeStore{err: fmt.Errorf("connection refused")}
	r := newTestRouter(store, &fakeDirectory{}, &fakeMailer{})

	w := doJSON(r, http.MethodPost, "/api/v0/notifications/n1/read", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMarkAllNotificationsRead(t *testing.T) {
	store := &fakeStore{}
	r := newTestRouter(store, &fakeDirectory{}, &fakeMailer{})

	w := doJSON(r, http.MethodPost, "/api/v0/notifications/user/u1/read-all", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"u1"}, store.markedAll)
}

func validCreateUserBody() map[string]interface{} {
	return map[string]interface{}{
		"email":    "new.staff@example.com",
		"password": "hunter22",
		"name":     "New Staff",
	}
}

func TestCreateUserRequiresAuth(t *testing.T) {
	r := newTestRouter(&fakeStore{}, &fakeDirectory{}, &fakeMailer{})

	w := doJSON(r, http.MethodPost, "/api/v0/users", validCreateUserBody(), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	dir := &fakeDirectory{roles: map[string]string{"staffer": models.RoleStaff}}
	r := newTestRouter(&fakeStore{}, dir, &fakeMailer{})

	w := doJSON(r, http.MethodPost, "/api/v0/users", validCreateUserBody(),
		map[string]string{"X-User-ID": "staffer"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, dir.accounts)
}

func TestCreateUserUnknownRequester(t *testing.T) {
	r := newTestRouter(&fakeStore{}, &fakeDirectory{}, &fakeMailer{})

	w := doJSON(r, http.MethodPost, "/api/v0/users", validCreateUserBody(),
		map[string]string{"X-User-ID": "ghost"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateUserValidation(t *testing.T) {
	dir := &fakeDirectory{roles: map[string]string{"boss": models.RoleAdmin}}
	r := newTestRouter(&fakeStore{}, dir, &fakeMailer{})

	body := validCreateUserBody()
	body["email"] = "not-an-email"
	w := doJSON(r, http.MethodPost, "/api/v0/users", body, map[string]string{"X-User-ID": "boss"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body = validCreateUserBody()
	body["password"] = "tiny"
	w = doJSON(r, http.MethodPost, "/api/v0/users", body, map[string]string{"X-User-ID": "boss"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateUser(t *testing.T) {
	dir := &fakeDirectory{roles: map[string]string{"boss": models.RoleAdmin}}
	r := newTestRouter(&fakeStore{}, dir, &fakeMailer{})

	w := doJSON(r, http.MethodPost, "/api/v0/users", validCreateUserBody(),
		map[string]string{"X-User-ID": "boss"})
	require.Equal(t, http.StatusCreated, w.Code)

	require.Len(t, dir.users, 1)
	created := dir.users[0]
	assert.Equal(t, "new.staff@example.com", created.Email)
	assert.Equal(t, models.RoleStaff, created.Role)
	assert.True(t, created.IsActive)

	// The stored hash verifies against the plaintext but never equals it.
	hash, ok := dir.accounts[created.ID]
	require.True(t, ok)
	assert.NotEqual(t, "hunter22", hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter22")))
}

func TestCreateUserOrphanedAccount(t *testing.T) {
	dir := &fakeDirectory{
		roles:     map[string]string{"boss": models.RoleAdmin},
		upsertErr: fmt.Errorf("profiles table unavailable"),
	}
	r := newTestRouter(&fakeStore{}, dir, &fakeMailer{})

	w := doJSON(r, http.MethodPost, "/api/v0/users", validCreateUserBody(),
		map[string]string{"X-User-ID": "boss"})

	// The account write stands; the request still fails.
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Len(t, dir.accounts, 1)
}

func validEmailBody() map[string]interface{} {
	return map[string]interface{}{
		"to_email":   "pat@example.com",
		"staff_name": "Pat",
		"task_title": "Empty bin on floor 3",
	}
}

func TestSendTaskEmail(t *testing.T) {
	mailer := &fakeMailer{}
	r := newTestRouter(&fakeStore{}, &fakeDirectory{}, mailer)

	w := doJSON(r, http.MethodPost, "/api/v0/send-task-email", validEmailBody(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "pat@example.com", mailer.sent[0].ToEmail)
}

func TestSendTaskEmailValidation(t *testing.T) {
	r := newTestRouter(&fakeStore{}, &fakeDirectory{}, &fakeMailer{})

	for name, body := range map[string]map[string]interface{}{
		"bad address":   {"to_email": "nope", "staff_name": "Pat", "task_title": "x"},
		"no staff name": {"to_email": "pat@example.com", "task_title": "x"},
		"no task title": {"to_email": "pat@example.com", "staff_name": "Pat"},
	} {
		w := doJSON(r, http.MethodPost, "/api/v0/send-task-email", body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}
}

func TestSendTaskEmailTimeout(t *testing.T) {
	mailer := &fakeMailer{err: fmt.Errorf("send to pat@example.com: %w", email.ErrTimeout)}
	r := newTestRouter(&fakeStore{}, &fakeDirectory{}, mailer)

	w := doJSON(r, http.MethodPost, "/api/v0/send-task-email", validEmailBody(), nil)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestSendTaskEmailRejection(t *testing.T) {
	mailer := &fakeMailer{err: &email.RejectionError{StatusCode: 403, Body: "quota exceeded"}}
	r := newTestRouter(&fakeStore{}, &fakeDirectory{}, mailer)

	w := doJSON(r, http.MethodPost, "/api/v0/send-task-email", validEmailBody(), nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestWSRequiresUserID(t *testing.T) {
	r := newTestRouter(&fakeStore{}, &fakeDirectory{}, &fakeMailer{})

	w := doJSON(r, http.MethodGet, "/api/v0/ws", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&fakeStore{}, &fakeDirectory{}, &fakeMailer{})

	w := doJSON(r, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
}
