package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/codexlibris/codex/pkg/config"
	"github.com/codexlibris/codex/pkg/migrations"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	// Every new pool connection to :memory: is a separate empty database, so
	// the whole test has to stay on one connection.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	srv, err := New(config.NewForTest(), db)
	require.NoError(t, err)

	return srv.Handler
}

func do(t *testing.T, h http.Handler, method, path, payload string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	if payload != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// registerUser creates an account through the public endpoint and returns
// its session token. The first account registered in a test becomes the
// admin.
func registerUser(t *testing.T, h http.Handler, username string) string {
	t.Helper()

	payload := fmt.Sprintf(`{"username":%q,"email":"%s@example.com","password":"password123"}`, username, username)
	rr := do(t, h, http.MethodPost, "/auth/register", payload, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func bearer(token string) map[string]string {
	return map[string]string{echo.HeaderAuthorization: "Bearer " + token}
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()

	var envelope struct {
		Error struct {
			Code       string `json:"code"`
			Message    string `json:"message"`
			StatusCode int    `json:"status_code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	assert.Equal(t, rr.Code, envelope.Error.StatusCode)
	return envelope.Error.Code
}

func TestServerRegisterAndBrowse(t *testing.T) {
	h := newTestHandler(t)

	token := registerUser(t, h, "admin")

	rr := do(t, h, http.MethodGet, "/books", "", bearer(token))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var list struct {
		Books []json.RawMessage `json:"books"`
		Total int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Zero(t, list.Total)
	assert.Empty(t, list.Books)

	// The tag catalog is seeded by migrations, so it's never empty.
	rr = do(t, h, http.MethodGet, "/tags", "", bearer(token))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Science Fiction")
}

func TestServerRejectsAnonymousRequests(t *testing.T) {
	h := newTestHandler(t)

	paths := []string{
		"/books",
		"/authors",
		"/genres",
		"/tags",
		"/progress/stats",
		"/archive",
		"/users",
		"/admin/dashboard",
		"/admin/scans",
	}
	for _, path := range paths {
		rr := do(t, h, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, rr.Code, path)
		assert.Equal(t, "unauthenticated", errorCode(t, rr), path)
	}
}

func TestServerPermissionGuards(t *testing.T) {
	h := newTestHandler(t)

	adminToken := registerUser(t, h, "admin")
	readerToken := registerUser(t, h, "reader")

	// The user role can browse the catalog.
	rr := do(t, h, http.MethodGet, "/books", "", bearer(readerToken))
	assert.Equal(t, http.StatusOK, rr.Code)

	// But not the admin surfaces.
	for _, path := range []string{"/users", "/admin/dashboard", "/admin/scans"} {
		rr = do(t, h, http.MethodGet, path, "", bearer(readerToken))
		require.Equal(t, http.StatusForbidden, rr.Code, path)
		assert.Equal(t, "forbidden", errorCode(t, rr), path)
	}

	for _, path := range []string{"/users", "/admin/dashboard", "/admin/scans"} {
		rr = do(t, h, http.MethodGet, path, "", bearer(adminToken))
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestServerNotFoundEnvelope(t *testing.T) {
	h := newTestHandler(t)

	rr := do(t, h, http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", errorCode(t, rr))
}

func TestServerOPDSBasicAuth(t *testing.T) {
	h := newTestHandler(t)

	registerUser(t, h, "reader")

	rr := do(t, h, http.MethodGet, "/opds", "", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/opds", nil)
	req.SetBasicAuth("reader", "password123")
	basic := httptest.NewRecorder()
	h.ServeHTTP(basic, req)

	require.Equal(t, http.StatusOK, basic.Code)
	assert.Contains(t, basic.Header().Get(echo.HeaderContentType), "atom+xml")
	assert.Contains(t, basic.Body.String(), "<feed")
}
