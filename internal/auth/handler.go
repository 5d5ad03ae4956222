// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/angelamos/monostack/internal/core"
	"github.com/angelamos/monostack/internal/middleware"
)

// Handler exposes the session lifecycle over HTTP. All token failure modes
// on the refresh path collapse into one uniform unauthorized response; the
// distinct causes exist only in server logs.
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(
	service *Service,
	validate *validator.Validate,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		service:  service,
		validate: validate,
		logger:   logger,
	}
}

// RegisterRoutes mounts the public and authenticated auth endpoints.
// requireAuth must reject requests without a valid access token.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	requireAuth func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/register", h.Register)
		r.Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", h.Me)
			r.Post("/logout-all", h.LogoutAll)
			r.Get("/sessions", h.Sessions)
			r.Delete("/sessions/{sessionID}", h.RevokeSession)
			r.Post("/change-password", h.ChangePassword)
		})
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req, sessionMeta(r))
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			core.Unauthorized(w, r, "invalid credentials")
			return
		}
		h.logger.Error("login failed", "error", err)
		core.InternalServerError(w, r, err)
		return
	}

	core.OK(w, r, resp)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req, sessionMeta(r))
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			core.JSONError(w, r, core.DuplicateError("email already exists"))
			return
		}
		h.logger.Error("registration failed", "error", err)
		core.InternalServerError(w, r, err)
		return
	}

	core.Created(w, r, resp)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Refresh(r.Context(), req.RefreshToken, sessionMeta(r))
	if err != nil {
		// Every token failure mode gets the same response; the real
		// cause is logged here and nowhere the client can see it.
		if errors.Is(err, core.ErrTokenInvalid) ||
			errors.Is(err, core.ErrTokenExpired) ||
			errors.Is(err, core.ErrTokenRevoked) {
			h.logger.Info("refresh rejected",
				"cause", err,
				"remote_addr", r.RemoteAddr,
			)
			core.JSONError(w, r, core.TokenInvalidError())
			return
		}
		h.logger.Error("refresh failed", "error", err)
		core.InternalServerError(w, r, err)
		return
	}

	core.OK(w, r, resp)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		h.logger.Error("logout failed", "error", err)
		core.InternalServerError(w, r, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, r, "authentication required")
		return
	}

	user, err := h.service.GetMe(r.Context(), userID)
	if err != nil {
		core.JSONError(w, r, err)
		return
	}

	core.OK(w, r, user)
}

func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		core.Unauthorized(w, r, "authentication required")
		return
	}

	if err := h.service.RevokeAllUserTokens(r.Context(), claims.UserID); err != nil {
		h.logger.Error("logout-all failed", "error", err)
		core.InternalServerError(w, r, err)
		return
	}

	// Cut off the presenting access token too; otherwise the caller
	// keeps a live bearer token until it expires.
	if err := h.service.DenyAccessToken(r.Context(), claims); err != nil {
		h.logger.Warn("failed to denylist access token", "error", err)
	}

	core.OK(w, r, map[string]string{"message": "all sessions revoked"})
}

func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, r, "authentication required")
		return
	}

	sessions, err := h.service.GetActiveSessions(r.Context(), userID)
	if err != nil {
		h.logger.Error("session listing failed", "error", err)
		core.InternalServerError(w, r, err)
		return
	}

	core.OK(w, r, sessions)
}

func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, r, "authentication required")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		core.BadRequest(w, r, "session id is required")
		return
	}

	if err := h.service.RevokeSession(r.Context(), userID, sessionID); err != nil {
		core.JSONError(w, r, err)
		return
	}

	core.OK(w, r, map[string]string{"message": "session revoked"})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, r, "authentication required")
		return
	}

	var req ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), userID, req); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			core.Unauthorized(w, r, "current password is incorrect")
			return
		}
		h.logger.Error("password change failed", "error", err)
		core.InternalServerError(w, r, err)
		return
	}

	core.OK(w, r, map[string]string{"message": "password changed"})
}

func (h *Handler) decode(
	w http.ResponseWriter,
	r *http.Request,
	dst any,
) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, r, "invalid request body")
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		core.JSONError(w, r,
			core.ValidationError(core.FormatValidationError(err), nil))
		return false
	}

	return true
}

func sessionMeta(r *http.Request) SessionMeta {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.Header.Get("X-Real-IP")
	}
	if ip == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}

	return SessionMeta{
		UserAgent: r.UserAgent(),
		IPAddress: ip,
	}
}
