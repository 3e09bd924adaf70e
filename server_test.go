package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"recipecost/models"
	"recipecost/pkg/auth"
	"recipecost/pkg/config"
	"recipecost/pkg/store"
)

const testPassword = "secret1"

type testEnv struct {
	t   *testing.T
	cfg *config.Config
	db  *gorm.DB
	srv *server
	r   *gin.Engine
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		AppEnv:            "development",
		JWTAccessSecret:   "test-access-secret",
		JWTRefreshSecret:  "test-refresh-secret",
		JWTAccessExpires:  15 * time.Minute,
		JWTRefreshExpires: 7 * 24 * time.Hour,
		CookiePath:        "/api",
		UploadBase:        filepath.Join(dir, "uploads"),
		UploadMaxBytes:    1 << 20,
		ThumbWidth:        64,
	}
}

// setupTestServer builds the full router on a throwaway SQLite database.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	log, _ := test.NewNullLogger()

	db, err := store.OpenDialector(sqlite.Open(filepath.Join(dir, "app.db")+"?_foreign_keys=on"), log)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	cfg := testConfig(dir)
	require.NoError(t, cfg.Validate())
	srv := newServer(cfg, db, auth.NewHasher(bcrypt.MinCost), log)
	require.NoError(t, srv.images.Ensure())
	return &testEnv{t: t, cfg: cfg, db: db, srv: srv, r: srv.routes()}
}

// performRequest sends a request through the router with an optional bearer
// token and cookies.
func performRequest(r http.Handler, method, path string, body io.Reader, token, contentType string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// call sends body encoded as JSON.
func (e *testEnv) call(method, path string, body any, token string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		rd = bytes.NewReader(b)
	}
	return performRequest(e.r, method, path, rd, token, "application/json", cookies...)
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody[map[string]string](t, rec)
	require.Contains(t, body, "erro")
	assert.Len(t, body, 1)
	return body["erro"]
}

type session struct {
	TokenType   string             `json:"token_type"`
	AccessToken string             `json:"access_token"`
	ExpiresIn   int64              `json:"expires_in"`
	User        *models.PublicUser `json:"user"`
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == auth.RefreshCookieName {
			return ck
		}
	}
	return nil
}

// register creates an account and returns its session and refresh cookie.
func (e *testEnv) register(name, email string) (session, *http.Cookie) {
	e.t.Helper()
	rec := e.call(http.MethodPost, "/api/usuarios/register", gin.H{"name": name, "email": email, "password": testPassword}, "")
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[session](e.t, rec), refreshCookie(rec)
}

func (e *testEnv) login(email, password string) (session, *http.Cookie) {
	e.t.Helper()
	rec := e.call(http.MethodPost, "/api/usuarios/login", gin.H{"email": email, "password": password}, "")
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody[session](e.t, rec), refreshCookie(rec)
}

func (e *testEnv) promote(email string) {
	e.t.Helper()
	require.NoError(e.t, e.db.Model(&models.User{}).Where("email = ?", email).Update("role", models.RoleAdmin).Error)
}

// admin registers an account, promotes it and logs in again.
func (e *testEnv) admin(email string) session {
	e.t.Helper()
	e.register("Admin", email)
	e.promote(email)
	s, _ := e.login(email, testPassword)
	return s
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }

// create posts body and returns the decoded id of the created record.
func (e *testEnv) create(path string, body any, token string) uint {
	e.t.Helper()
	rec := e.call(http.MethodPost, path, body, token)
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[struct {
		ID uint `json:"id"`
	}](e.t, rec).ID
}

func TestHealthAndUnknownRoute(t *testing.T) {
	e := setupTestServer(t)

	rec := e.call(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.call(http.MethodGet, "/api/nada", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Rota não encontrada.", errorBody(t, rec))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := setupTestServer(t)

	for _, path := range []string{"/api/usuarios", "/api/usuarios/me", "/api/ingredientes", "/api/receitas", "/api/clientes", "/api/pedidos"} {
		rec := e.call(http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "Token ausente.", errorBody(t, rec), path)
	}
}

func TestMalformedBodyIsValidationError(t *testing.T) {
	e := setupTestServer(t)

	rec := performRequest(e.r, http.MethodPost, "/api/usuarios/register", bytes.NewBufferString("{"), "", "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Corpo da requisição inválido.", errorBody(t, rec))
}

func TestInvalidPathID(t *testing.T) {
	e := setupTestServer(t)
	s, _ := e.register("Ana", "ana@example.com")

	rec := e.call(http.MethodGet, "/api/ingredientes/abc", nil, s.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errorBody(t, rec)

	rec = e.call(http.MethodGet, "/api/ingredientes/0", nil, s.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
