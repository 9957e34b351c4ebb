package auth

import (
	"net/http"

	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// CookieName is the name of the session cookie.
const CookieName = "codex_session"

type handler struct {
	authService *Service
	permissions *permissions.Service
}

func (h *handler) buildMeResponse(c echo.Context, user *models.User) (MeResponse, error) {
	set, err := h.permissions.EffectivePermissions(c.Request().Context(), user.ID)
	if err != nil {
		return MeResponse{}, err
	}

	return MeResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Roles:       user.RoleNames(),
		Permissions: set.Names(),
	}, nil
}

func (h *handler) setSessionCookie(c echo.Context, token string) {
	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.authService.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Request().TLS != nil || c.Request().Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	}
	c.SetCookie(cookie)
}

// register creates an account and signs it in. The first account created
// becomes the admin.
func (h *handler) register(c echo.Context) error {
	ctx := c.Request().Context()

	params := RegisterPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.authService.Register(ctx, params.Username, params.Email, params.DisplayName, params.Password)
	if err != nil {
		return err
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		return err
	}
	h.setSessionCookie(c, token)

	me, err := h.buildMeResponse(c, user)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusCreated, SessionResponse{Token: token, User: me}))
}

// login handles user login.
func (h *handler) login(c echo.Context) error {
	ctx := c.Request().Context()

	params := LoginPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.authService.Authenticate(ctx, params.Email, params.Password)
	if err != nil {
		return err
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		return err
	}
	h.setSessionCookie(c, token)

	me, err := h.buildMeResponse(c, user)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, SessionResponse{Token: token, User: me}))
}

// logout clears the session cookie. Tokens aren't tracked server-side, so
// API clients just discard theirs.
func (h *handler) logout(c echo.Context) error {
	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Request().TLS != nil || c.Request().Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	}
	c.SetCookie(cookie)

	return errors.WithStack(c.JSON(http.StatusOK, map[string]string{"message": "Logged out successfully"}))
}

// me returns the current authenticated user's profile and resolved
// authorization.
func (h *handler) me(c echo.Context) error {
	user, ok := c.Get("user").(*models.User)
	if !ok {
		return errcodes.Unauthenticated()
	}

	me, err := h.buildMeResponse(c, user)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, me))
}

// status reports whether the app still needs its first account.
func (h *handler) status(c echo.Context) error {
	ctx := c.Request().Context()

	count, err := h.authService.CountUsers(ctx)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, StatusResponse{
		NeedsSetup: count == 0,
	}))
}
