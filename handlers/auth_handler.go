package handlers

import (
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"restaurant-queue/config"
	"restaurant-queue/utils"
)

const (
	staffCookieName = "staff_session"
	staffSessionTTL = 12 * time.Hour
)

func staffSessionKey(token string) string { return "staff:session:" + token }

// AuthHandler gates the staff surface behind the shared staff password.
// This is a convenience flag, not an authorization model: one password,
// one role.
type AuthHandler struct {
	app    *pocketbase.PocketBase
	redis  *redis.Client
	config *config.Config
}

func NewAuthHandler(app *pocketbase.PocketBase, redisClient *redis.Client, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		app:    app,
		redis:  redisClient,
		config: cfg,
	}
}

// Login - exchange the shared staff password for a session cookie
func (h *AuthHandler) Login(e *core.RequestEvent) error {
	var req struct {
		Password string `json:"password"`
	}

	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if h.config.StaffPasswordHash == "" {
		return apis.NewApiError(http.StatusServiceUnavailable, "Staff access is not configured", nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(h.config.StaffPasswordHash), []byte(req.Password)); err != nil {
		return apis.NewUnauthorizedError("Wrong password", nil)
	}

	token, err := utils.GenerateEntryID()
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to create session", err)
	}

	ctx := e.Request.Context()
	if err := h.redis.Set(ctx, staffSessionKey(token), time.Now().UnixMilli(), staffSessionTTL).Err(); err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to create session", err)
	}

	http.SetCookie(e.Response, &http.Cookie{
		Name:     staffCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(staffSessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return e.JSON(http.StatusOK, map[string]any{"message": "Logged in"})
}

// Logout - drop the staff session
func (h *AuthHandler) Logout(e *core.RequestEvent) error {
	cookie, err := e.Request.Cookie(staffCookieName)
	if err == nil && cookie.Value != "" {
		h.redis.Del(e.Request.Context(), staffSessionKey(cookie.Value))
	}

	http.SetCookie(e.Response, &http.Cookie{
		Name:   staffCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	return e.JSON(http.StatusOK, map[string]any{"message": "Logged out"})
}

// RequireStaff rejects requests without a live staff session.
func (h *AuthHandler) RequireStaff(e *core.RequestEvent) error {
	cookie, err := e.Request.Cookie(staffCookieName)
	if err != nil || cookie.Value == "" {
		return apis.NewUnauthorizedError("Staff access required", nil)
	}

	exists, err := h.redis.Exists(e.Request.Context(), staffSessionKey(cookie.Value)).Result()
	if err != nil || exists == 0 {
		return apis.NewUnauthorizedError("Staff access required", nil)
	}

	return nil
}
