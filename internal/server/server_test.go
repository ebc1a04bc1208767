package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"accounts/internal/auth"
	"accounts/internal/config"
	"accounts/internal/database"
	"accounts/internal/mail"
	puser "accounts/internal/platform/user"
)

const publicURL = "https://accounts.test"

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*mail.Email
}

func (n *recordingNotifier) Dispatch(e *mail.Email) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, e)
}

func (n *recordingNotifier) last(t *testing.T) *mail.Email {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent)
	return n.sent[len(n.sent)-1]
}

type testServer struct {
	app      *fiber.App
	store    *database.MemoryStore
	notifier *recordingNotifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{APIVersion: "1", PublicURL: publicURL}

	store := database.NewMemoryStore()
	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost, 4)
	require.NoError(t, err)
	issuer := auth.NewIssuer("test-secret", time.Hour)
	notifier := &recordingNotifier{}

	app := New(cfg, Services{
		Auth: puser.NewAuthService(store, hasher, issuer, notifier, puser.AuthOptions{
			AllowGeneratedPassword: true,
		}),
		Reset: puser.NewResetWorkflow(store, hasher, notifier, puser.ResetOptions{
			PublicURL: publicURL,
			TTL:       time.Hour,
		}),
		Users:  puser.NewService(store, hasher),
		Issuer: issuer,
	})

	return &testServer{app: app, store: store, notifier: notifier}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (s *testServer) login(t *testing.T, handle, password string) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/v1/login", "", fiber.Map{"handle": handle, "password": password})
	require.Equal(t, http.StatusOK, status, body)
	return body["token"].(string)
}

func TestSignupLoginScenario(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/v1/signup", "", fiber.Map{
		"email":    "a@x.com",
		"password": "secret1",
		"name":     fiber.Map{"first": "Jhon", "last": "Doe"},
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, false, body["error"])

	user := body["user"].(map[string]any)
	assert.Equal(t, "a@x.com", user["email"])
	assert.Equal(t, "Jhon Doe", user["name"].(map[string]any)["full"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "passwordHash")

	stored, err := s.store.FindByHandle(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.PasswordHash)

	status, body = s.do(t, http.MethodPost, "/api/v1/login", "", fiber.Map{"handle": "a@x.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["error"])
	assert.Equal(t, "a@x.com", body["handle"])
	assert.NotEmpty(t, body["token"])

	status, body = s.do(t, http.MethodPost, "/api/v1/login", "", fiber.Map{"handle": "a@x.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, true, body["error"])
	assert.Equal(t, "CredentialMismatch", body["reason"])
}

func TestLogin_Errors(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/v1/signup", "", fiber.Map{"email": "a@x.com", "password": "secret1"})

	testCases := []struct {
		name       string
		body       any
		wantStatus int
		wantReason string
	}{
		{"missing password", fiber.Map{"handle": "a@x.com"}, http.StatusBadRequest, "MissingFields"},
		{"missing handle", fiber.Map{"password": "secret1"}, http.StatusBadRequest, "MissingFields"},
		{"unknown handle", fiber.Map{"handle": "b@x.com", "password": "secret1"}, http.StatusUnauthorized, "CredentialMismatch"},
		{"malformed body", "not an object", http.StatusBadRequest, "ValidationFailed"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := s.do(t, http.MethodPost, "/api/v1/login", "", tc.body)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantReason, body["reason"])
		})
	}
}

func TestLogin_InactiveAccount(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/v1/signup", "", fiber.Map{"email": "admin@x.com", "password": "secret1"})
	token := s.login(t, "admin@x.com", "secret1")

	status, body := s.do(t, http.MethodPost, "/api/v1/user", token, fiber.Map{
		"email":    "off@x.com",
		"password": "secret1",
		"isActive": false,
	})
	require.Equal(t, http.StatusOK, status, body)

	status, body = s.do(t, http.MethodPost, "/api/v1/login", "", fiber.Map{"handle": "off@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "AccountInactive", body["reason"])
}

func TestSignup_Duplicate(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodPost, "/api/v1/signup", "", fiber.Map{"email": "a@x.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, status)

	status, body := s.do(t, http.MethodPost, "/api/v1/signup", "", fiber.Map{"email": "A@x.com", "password": "secret2"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "DuplicateAccount", body["reason"])
}

func TestSignup_GeneratedPassword(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/v1/signup", "", fiber.Map{"email": "gen@x.com"})
	require.Equal(t, http.StatusOK, status, body)
	assert.NotContains(t, body["user"], "password")

	welcome := s.notifier.last(t)
	assert.Equal(t, "welcome", welcome.Template)
	s.login(t, "gen@x.com", welcome.TemplateVars["password"].(string))
}

func TestPasswordResetScenario(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/v1/signup", "", fiber.Map{"email": "a@x.com", "password": "secret1"})

	status, body := s.do(t, http.MethodPost, "/api/v1/forgotpassword", "", fiber.Map{"handle": "a@x.com"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, fiber.Map{"error": false}, fiber.Map(body))

	link := s.notifier.last(t).TemplateVars["link"].(string)
	require.True(t, strings.HasPrefix(link, publicURL+"/resetpassword/"))
	token := strings.TrimPrefix(link, publicURL+"/resetpassword/")

	for _, path := range []string{"/resetpassword/" + token, "/api/v1/resetpassword/" + token} {
		status, body = s.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, status, path)
		assert.Equal(t, "a@x.com", body["handle"])
		assert.Equal(t, token, body["token"])
	}

	status, _ = s.do(t, http.MethodPost, "/api/v1/resetpassword", "", fiber.Map{"token": token, "password": "newpass"})
	require.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodPost, "/api/v1/resetpassword", "", fiber.Map{"token": token, "password": "again"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "ExpiredOrInvalidToken", body["reason"])

	status, body = s.do(t, http.MethodGet, "/resetpassword/"+token, "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "ExpiredOrInvalidToken", body["reason"])

	s.login(t, "a@x.com", "newpass")
	status, _ = s.do(t, http.MethodPost, "/api/v1/login", "", fiber.Map{"handle": "a@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestForgotPassword_UnknownHandle(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/v1/forgotpassword", "", fiber.Map{"handle": "nobody@x.com"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["error"])

	status, body = s.do(t, http.MethodPost, "/api/v1/forgotpassword", "", fiber.Map{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "MissingFields", body["reason"])
}

func TestUserRoutes_RequireToken(t *testing.T) {
	s := newTestServer(t)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/users"},
		{http.MethodGet, "/api/v1/user/some-id"},
		{http.MethodPost, "/api/v1/user"},
		{http.MethodPut, "/api/v1/user/some-id"},
		{http.MethodDelete, "/api/v1/user/some-id"},
		{http.MethodGet, "/api/v1/me"},
	}
	for _, r := range routes {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			status, body := s.do(t, r.method, r.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, "TokenInvalidOrExpired", body["reason"])

			status, _ = s.do(t, r.method, r.path, "forged.token.value", nil)
			assert.Equal(t, http.StatusUnauthorized, status)
		})
	}
}

func TestUserCRUD(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/v1/signup", "", fiber.Map{"email": "admin@x.com", "password": "secret1"})
	token := s.login(t, "admin@x.com", "secret1")

	status, body := s.do(t, http.MethodGet, "/api/v1/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "admin@x.com", body["user"].(map[string]any)["email"])

	status, body = s.do(t, http.MethodPost, "/api/v1/user", token, fiber.Map{
		"email":    "b@x.com",
		"password": "secret1",
		"phone":    "5550001",
		"name":     fiber.Map{"first": "Bee"},
	})
	require.Equal(t, http.StatusOK, status, body)
	id := body["user"].(map[string]any)["id"].(string)

	status, body = s.do(t, http.MethodPost, "/api/v1/user", token, fiber.Map{"email": "c@x.com"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "MissingFields", body["reason"])

	status, body = s.do(t, http.MethodGet, "/api/v1/users", token, nil)
	require.Equal(t, http.StatusOK, status)
	users := body["users"].([]any)
	assert.Len(t, users, 2)
	for _, u := range users {
		assert.NotContains(t, u, "password")
	}

	status, body = s.do(t, http.MethodPut, "/api/v1/user/"+id, token, fiber.Map{
		"name":     fiber.Map{"last": "Keeper"},
		"isActive": false,
		"email":    "ignored@x.com",
	})
	require.Equal(t, http.StatusOK, status, body)
	updated := body["user"].(map[string]any)
	assert.Equal(t, "b@x.com", updated["email"])
	assert.Equal(t, "5550001", updated["phone"])
	assert.Equal(t, false, updated["isActive"])
	assert.Equal(t, "Bee Keeper", updated["name"].(map[string]any)["full"])

	status, body = s.do(t, http.MethodGet, "/api/v1/user/"+id, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Bee", body["user"].(map[string]any)["name"].(map[string]any)["first"])

	status, _ = s.do(t, http.MethodPut, "/api/v1/user/missing", token, fiber.Map{"phone": "1"})
	assert.Equal(t, http.StatusNotFound, status)

	for i := 0; i < 2; i++ {
		status, body = s.do(t, http.MethodDelete, "/api/v1/user/"+id, token, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, false, body["error"])
	}

	status, body = s.do(t, http.MethodGet, "/api/v1/user/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "AccountNotFound", body["reason"])
}

func TestResetPage_NotCached(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/resetpassword/whatever", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get(fiber.HeaderCacheControl))
}

func TestHealthcheck(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/livez", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, true, body["error"])
	assert.Equal(t, "NotFound", body["reason"])
}

func TestErrorHandler_ClientErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	app.Get("/fail/:code", func(c *fiber.Ctx) error {
		code, err := c.ParamsInt("code")
		if err != nil {
			return err
		}
		return fiber.NewError(code)
	})

	testCases := []struct {
		code       int
		wantReason string
	}{
		{http.StatusNotFound, "NotFound"},
		{http.StatusMethodNotAllowed, "MethodNotAllowed"},
		{http.StatusRequestEntityTooLarge, "RequestTooLarge"},
		{http.StatusUnsupportedMediaType, "BadRequest"},
		{http.StatusInternalServerError, "InternalError"},
	}
	for _, tc := range testCases {
		t.Run(http.StatusText(tc.code), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/fail/"+strconv.Itoa(tc.code), nil)
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tc.code, resp.StatusCode)
			assert.Equal(t, true, body["error"])
			assert.Equal(t, tc.wantReason, body["reason"])
		})
	}
}
