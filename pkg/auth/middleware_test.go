package auth

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiddlewareContext(token string, viaCookie bool) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/books", nil)
	if token != "" {
		if viaCookie {
			req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
		} else {
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		}
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestMiddlewareAuthenticateBearer(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	m := NewMiddleware(svc, permissions.NewService(db))

	user := registerTestUser(t, svc, "alice")
	token, err := svc.GenerateToken(user)
	require.NoError(t, err)

	c, _ := newMiddlewareContext(token, false)

	nextCalled := false
	err = m.Authenticate(func(c echo.Context) error {
		nextCalled = true
		assert.Equal(t, user.ID, c.Get("user_id"))
		assert.Equal(t, "alice", c.Get("username"))
		got, ok := c.Get("user").(*models.User)
		require.True(t, ok)
		assert.Equal(t, user.ID, got.ID)
		return nil
	})(c)
	require.NoError(t, err)
	assert.True(t, nextCalled)
}

func TestMiddlewareAuthenticateCookie(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	m := NewMiddleware(svc, permissions.NewService(db))

	user := registerTestUser(t, svc, "alice")
	token, err := svc.GenerateToken(user)
	require.NoError(t, err)

	c, _ := newMiddlewareContext(token, true)

	nextCalled := false
	err = m.Authenticate(func(_ echo.Context) error {
		nextCalled = true
		return nil
	})(c)
	require.NoError(t, err)
	assert.True(t, nextCalled)
}

func TestMiddlewareAuthenticateMissingToken(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	m := NewMiddleware(svc, permissions.NewService(db))

	c, _ := newMiddlewareContext("", false)

	nextCalled := false
	err := m.Authenticate(func(_ echo.Context) error {
		nextCalled = true
		return nil
	})(c)
	assert.Equal(t, errcodes.Unauthenticated(), err)
	assert.False(t, nextCalled)
}

func TestMiddlewareAuthenticateGarbageToken(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	m := NewMiddleware(svc, permissions.NewService(db))

	c, _ := newMiddlewareContext("garbage", false)

	err := m.Authenticate(func(_ echo.Context) error {
		return nil
	})(c)
	assert.Equal(t, errcodes.Unauthenticated(), err)
}

func TestMiddlewareAuthenticateDeactivatedUser(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	m := NewMiddleware(svc, permissions.NewService(db))

	user := registerTestUser(t, svc, "alice")
	token, err := svc.GenerateToken(user)
	require.NoError(t, err)

	_, err = db.Exec(`UPDATE users SET is_active = 0 WHERE id = ?`, user.ID)
	require.NoError(t, err)

	c, _ := newMiddlewareContext(token, false)

	err = m.Authenticate(func(_ echo.Context) error {
		return nil
	})(c)
	assert.Equal(t, errcodes.Unauthenticated(), err)
}

func TestMiddlewareAuthenticateOptional(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	m := NewMiddleware(svc, permissions.NewService(db))

	user := registerTestUser(t, svc, "alice")
	token, err := svc.GenerateToken(user)
	require.NoError(t, err)

	// Anonymous requests pass through without user info.
	c, _ := newMiddlewareContext("", false)
	err = m.AuthenticateOptional(func(c echo.Context) error {
		assert.Nil(t, c.Get("user"))
		return nil
	})(c)
	require.NoError(t, err)

	// Authenticated requests carry it.
	c, _ = newMiddlewareContext(token, false)
	err = m.AuthenticateOptional(func(c echo.Context) error {
		assert.Equal(t, user.ID, c.Get("user_id"))
		return nil
	})(c)
	require.NoError(t, err)
}

func TestMiddlewareRequirePermission(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	m := NewMiddleware(svc, permissions.NewService(db))

	registerTestUser(t, svc, "alice")
	// The second user gets the plain user role: books.read and genres.read.
	bob := registerTestUser(t, svc, "bob")

	c, _ := newMiddlewareContext("", false)
	c.Set("user_id", bob.ID)

	nextCalled := false
	err := m.RequirePermission(models.PermissionBooksRead)(func(_ echo.Context) error {
		nextCalled = true
		return nil
	})(c)
	require.NoError(t, err)
	assert.True(t, nextCalled)

	err = m.RequirePermission(models.PermissionBooksWrite)(func(_ echo.Context) error {
		return nil
	})(c)
	assert.Equal(t, errcodes.MissingPermission("books.write"), err)
}

func TestMiddlewareRequirePermissionUnauthenticated(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	m := NewMiddleware(svc, permissions.NewService(db))

	c, _ := newMiddlewareContext("", false)

	err := m.RequirePermission(models.PermissionBooksRead)(func(_ echo.Context) error {
		return nil
	})(c)
	assert.Equal(t, errcodes.Unauthenticated(), err)
}

func TestMiddlewareRequireAnyPermission(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	m := NewMiddleware(svc, permissions.NewService(db))

	registerTestUser(t, svc, "alice")
	bob := registerTestUser(t, svc, "bob")

	c, _ := newMiddlewareContext("", false)
	c.Set("user_id", bob.ID)

	err := m.RequireAnyPermission(models.PermissionAdminFull, models.PermissionBooksRead)(func(_ echo.Context) error {
		return nil
	})(c)
	require.NoError(t, err)

	err = m.RequireAnyPermission(models.PermissionAdminFull, models.PermissionUsersWrite)(func(_ echo.Context) error {
		return nil
	})(c)
	assert.Equal(t, errcodes.MissingPermission("admin.full or users.write"), err)
}

func TestMiddlewareRequireAllPermissions(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	m := NewMiddleware(svc, permissions.NewService(db))

	registerTestUser(t, svc, "alice")
	bob := registerTestUser(t, svc, "bob")

	c, _ := newMiddlewareContext("", false)
	c.Set("user_id", bob.ID)

	err := m.RequireAllPermissions(models.PermissionBooksRead, models.PermissionGenresRead)(func(_ echo.Context) error {
		return nil
	})(c)
	require.NoError(t, err)

	err = m.RequireAllPermissions(models.PermissionBooksRead, models.PermissionBooksWrite)(func(_ echo.Context) error {
		return nil
	})(c)
	assert.Equal(t, errcodes.MissingPermission("books.read and books.write"), err)
}

func TestMiddlewareRequireSelfOrAdmin(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	m := NewMiddleware(svc, permissions.NewService(db))

	admin := registerTestUser(t, svc, "alice")
	bob := registerTestUser(t, svc, "bob")

	selfContext := func(userID int, targetID string) echo.Context {
		c, _ := newMiddlewareContext("", false)
		c.Set("user_id", userID)
		c.SetParamNames("id")
		c.SetParamValues(targetID)
		return c
	}
	next := func(_ echo.Context) error { return nil }

	// Own account.
	err := m.RequireSelfOrAdmin("id")(next)(selfContext(bob.ID, strconv.Itoa(bob.ID)))
	require.NoError(t, err)

	// Someone else's account without admin.
	err = m.RequireSelfOrAdmin("id")(next)(selfContext(bob.ID, strconv.Itoa(admin.ID)))
	assert.Equal(t, errcodes.Forbidden("Accessing another user's account"), err)

	// Someone else's account with admin.
	err = m.RequireSelfOrAdmin("id")(next)(selfContext(admin.ID, strconv.Itoa(bob.ID)))
	require.NoError(t, err)

	// Unparseable id.
	err = m.RequireSelfOrAdmin("id")(next)(selfContext(bob.ID, "abc"))
	assert.Equal(t, errcodes.NotFound("User"), err)
}

func TestMiddlewareRequireAdmin(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	m := NewMiddleware(svc, permissions.NewService(db))

	admin := registerTestUser(t, svc, "alice")
	bob := registerTestUser(t, svc, "bob")

	c, _ := newMiddlewareContext("", false)
	c.Set("user_id", admin.ID)
	err := m.RequireAdmin(func(_ echo.Context) error { return nil })(c)
	require.NoError(t, err)

	c, _ = newMiddlewareContext("", false)
	c.Set("user_id", bob.ID)
	err = m.RequireAdmin(func(_ echo.Context) error { return nil })(c)
	assert.Equal(t, errcodes.MissingPermission("admin.full"), err)
}

func TestMiddlewareBasicAuth(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	m := NewMiddleware(svc, permissions.NewService(db))

	user := registerTestUser(t, svc, "alice")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/opds", nil)
	req.SetBasicAuth("alice", "password123")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	nextCalled := false
	err := m.BasicAuth(func(c echo.Context) error {
		nextCalled = true
		assert.Equal(t, user.ID, c.Get("user_id"))
		return nil
	})(c)
	require.NoError(t, err)
	assert.True(t, nextCalled)
}

func TestMiddlewareBasicAuthRejectsBadCredentials(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	m := NewMiddleware(svc, permissions.NewService(db))

	registerTestUser(t, svc, "alice")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/opds", nil)
	req.SetBasicAuth("alice", "wrong-password")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	nextCalled := false
	err := m.BasicAuth(func(_ echo.Context) error {
		nextCalled = true
		return nil
	})(c)
	// The 401 challenge is written straight to the response.
	require.NoError(t, err)
	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
}

func TestMiddlewareBasicAuthRequiresHeader(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	m := NewMiddleware(svc, permissions.NewService(db))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/opds", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := m.BasicAuth(func(_ echo.Context) error {
		return nil
	})(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
