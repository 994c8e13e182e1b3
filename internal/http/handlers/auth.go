package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/inkwell/internal/config"
	"github.com/geocoder89/inkwell/internal/domain/user"
	"github.com/geocoder89/inkwell/internal/http/middlewares"
	"github.com/geocoder89/inkwell/internal/observability"
	"github.com/geocoder89/inkwell/internal/security"
	"github.com/gin-gonic/gin"
)

type UserStore interface {
	Create(ctx context.Context, username, passwordHash string) (user.User, error)
	GetByUsername(ctx context.Context, username string) (user.User, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Check(hash, plain string) error
}

type TokenIssuer interface {
	Issue(id user.Identity) (string, error)
	TTL() time.Duration
}

type AuthHandler struct {
	users  UserStore
	hasher PasswordHasher
	tokens TokenIssuer
	prom   *observability.Prom
	log    *slog.Logger
	secure bool
}

func NewAuthHandler(users UserStore, hasher PasswordHasher, tokens TokenIssuer, prom *observability.Prom, log *slog.Logger, cfg config.Config) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}

	return &AuthHandler{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		prom:   prom,
		log:    log,
		secure: cfg.Env == "prod",
	}
}

type LoginResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.Credentials

	if !BindJSON(ctx, &req) {
		h.prom.AuthAttempt("register", "invalid")
		return
	}

	hash, err := h.hasher.Hash(req.Password)

	if errors.Is(err, security.ErrPasswordTooLong) {
		h.prom.AuthAttempt("register", "invalid")
		RespondBadRequest(ctx, "Invalid request body", gin.H{"fields": []FieldError{{
			Field:   "password",
			Rule:    "max_bytes",
			Param:   "72",
			Message: "must be at most 72 bytes",
		}}})
		return
	}

	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "password_hash_failed", "err", err)
		RespondInternal(ctx, "Could not create user")
		return
	}

	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.users.Create(cctx, req.Username, hash)

	if err != nil {
		if errors.Is(err, user.ErrUsernameTaken) {
			h.prom.AuthAttempt("register", "taken")
			RespondError(ctx, http.StatusBadRequest, "username_taken", "Username is already taken", nil)
			return
		}

		h.log.ErrorContext(ctx.Request.Context(), "user_create_failed", "err", err)
		RespondInternal(ctx, "Could not create user")
		return
	}

	h.prom.AuthAttempt("register", "ok")

	ctx.JSON(http.StatusOK, u)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.Credentials

	if !BindJSON(ctx, &req) {
		h.prom.AuthAttempt("login", "invalid")
		return
	}

	// short timeout for DB lookup
	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	found, err := h.users.GetByUsername(cctx, req.Username)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			h.wrongCredentials(ctx)
			return
		}

		h.log.ErrorContext(ctx.Request.Context(), "user_lookup_failed", "err", err)
		RespondInternal(ctx, "Could not log in")
		return
	}

	if err := h.hasher.Check(found.PasswordHash, req.Password); err != nil {
		h.wrongCredentials(ctx)
		return
	}

	id := found.Identity()

	token, err := h.tokens.Issue(id)

	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "token_issue_failed", "err", err)
		RespondInternal(ctx, "Could not generate token")
		return
	}

	h.setSessionCookie(ctx, token)
	h.prom.AuthAttempt("login", "ok")

	ctx.JSON(http.StatusOK, LoginResponse{
		ID:       id.ID,
		Username: id.Username,
		Token:    token,
	})
}

// Profile echoes the identity RequireAuth resolved from the token.
func (h *AuthHandler) Profile(ctx *gin.Context) {
	id, ok := middlewares.IdentityFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "Missing session")
		return
	}

	ctx.JSON(http.StatusOK, id)
}

// Logout only clears the cookie. Tokens are stateless, so a copied token
// stays valid until it expires.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	h.clearSessionCookie(ctx)

	ctx.JSON(http.StatusOK, "ok")
}

func (h *AuthHandler) wrongCredentials(ctx *gin.Context) {
	h.prom.AuthAttempt("login", "wrong_credentials")
	RespondError(ctx, http.StatusBadRequest, "wrong_credentials", "Wrong credentials", nil)
}

func (h *AuthHandler) setSessionCookie(ctx *gin.Context, token string) {
	// zero max age keeps it a session cookie
	maxAge := int(h.tokens.TTL().Seconds())

	ctx.SetSameSite(http.SameSiteLaxMode)

	ctx.SetCookie(
		middlewares.SessionCookie,
		token,
		maxAge,
		"/",
		"",
		h.secure,
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearSessionCookie(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(
		middlewares.SessionCookie,
		"",
		-1,
		"/",
		"",
		h.secure,
		true,
	)
}
