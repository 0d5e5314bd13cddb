package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"p9e.in/fixport/middleware"
	"p9e.in/fixport/models"
	"p9e.in/fixport/pkg/tenant"
	"p9e.in/fixport/utils"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const loginTokenTTL = 15 * time.Minute

// UserStore is the identity slice of the store.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// SessionStore covers session issue/revoke/verify.
type SessionStore interface {
	CreateSession(ctx context.Context, s *models.Session) error
	RevokeUserSessions(ctx context.Context, userID uuid.UUID) error
	CountActiveSessions(ctx context.Context, userID uuid.UUID) (int64, error)
}

// TokenStore covers one-time magic-link tokens.
type TokenStore interface {
	CreateLoginToken(ctx context.Context, t *models.LoginToken) error
	ConsumeLoginToken(ctx context.Context, token string) (*models.LoginToken, error)
}

// MagicLinkSender is the mail slice the OTP flow needs.
type MagicLinkSender interface {
	SendMagicLink(ctx context.Context, toEmail, link string) error
}

// AuthHandler gates every protected page: password sign-in, magic-link
// sign-in, session probe and global sign-out.
type AuthHandler struct {
	users    UserStore
	sessions SessionStore
	tokens   TokenStore
	auth     *middleware.Auth
	resolver *tenant.Resolver
	mail     MagicLinkSender
	logger   *zap.Logger
}

func NewAuthHandler(users UserStore, sessions SessionStore, tokens TokenStore,
	auth *middleware.Auth, resolver *tenant.Resolver, mail MagicLinkSender, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		auth:     auth,
		resolver: resolver,
		mail:     mail,
		logger:   logger,
	}
}

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account under the request's tenant.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	company, err := h.resolver.Resolve(r.Context(), r.URL.Query().Get("slug"), middleware.RequestHost(r))
	if err != nil {
		middleware.WriteTenantError(w, err)
		return
	}

	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if !emailPattern.MatchString(req.Email) {
		http.Error(w, "invalid email address", http.StatusBadRequest)
		return
	}
	if len(req.Password) < 8 {
		http.Error(w, "password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "error hashing password", http.StatusInternalServerError)
		return
	}
	u := models.User{
		Name:         req.Name,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		CompanyID:    company.ID,
	}
	if err := h.users.CreateUser(r.Context(), &u); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			http.Error(w, "email already registered", http.StatusConflict)
		} else {
			http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResp struct {
	Token string      `json:"token"`
	User  userPayload `json:"user"`
}

type userPayload struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// Login is the email+password sign-in. Error strings are surfaced
// verbatim to the form.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	u, err := h.users.UserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if u.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.issueSession(r.Context(), u)
	if err != nil {
		http.Error(w, "couldn't create session: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.setSessionCookie(w, token)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResp{
		Token: token,
		User:  userPayload{ID: u.ID, Name: u.Name, Email: u.Email},
	})
}

type otpReq struct {
	Email      string `json:"email"`
	RedirectTo string `json:"redirect_to"`
}

// RequestLoginLink mails a one-time sign-in link. The redirect target
// must land on the requesting tenant's own subdomain so the follow-up
// password-set flow stays on the right tenant.
func (h *AuthHandler) RequestLoginLink(w http.ResponseWriter, r *http.Request) {
	company, err := h.resolver.Resolve(r.Context(), r.URL.Query().Get("slug"), middleware.RequestHost(r))
	if err != nil {
		middleware.WriteTenantError(w, err)
		return
	}

	var req otpReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if !emailPattern.MatchString(req.Email) {
		http.Error(w, "invalid email address", http.StatusBadRequest)
		return
	}
	redirect, err := url.Parse(req.RedirectTo)
	if err != nil || redirect.Host == "" {
		http.Error(w, "invalid redirect_to", http.StatusBadRequest)
		return
	}
	if utils.SlugFromHost(redirect.Host) != company.Slug {
		http.Error(w, "redirect_to must stay on this tenant's subdomain", http.StatusBadRequest)
		return
	}

	u, err := h.users.UserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "no account for that email", http.StatusNotFound)
		} else {
			http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}
	if u.CompanyID != company.ID {
		http.Error(w, "no account for that email", http.StatusNotFound)
		return
	}

	lt := models.LoginToken{
		Token:     uuid.NewString(),
		UserID:    u.ID,
		Redirect:  req.RedirectTo,
		ExpiresAt: time.Now().Add(loginTokenTTL),
	}
	if err := h.tokens.CreateLoginToken(r.Context(), &lt); err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	link := fmt.Sprintf("%s?token=%s", req.RedirectTo, lt.Token)
	if err := h.mail.SendMagicLink(r.Context(), u.Email, link); err != nil {
		h.logger.Error("magic link dispatch failed", zap.String("email", u.Email), zap.Error(err))
		http.Error(w, "couldn't send sign-in link: "+err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"ok": true})
}

// Callback consumes a magic-link token and signs the browser in.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		http.Error(w, "token parameter required", http.StatusBadRequest)
		return
	}
	lt, err := h.tokens.ConsumeLoginToken(r.Context(), raw)
	if err != nil {
		http.Error(w, "sign-in link is invalid or expired", http.StatusUnauthorized)
		return
	}
	u, err := h.users.UserByID(r.Context(), lt.UserID)
	if err != nil {
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}

	token, err := h.issueSession(r.Context(), u)
	if err != nil {
		http.Error(w, "couldn't create session: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.setSessionCookie(w, token)

	target := lt.Redirect
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Session returns the current principal; the middleware has already
// rejected requests without one.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	if claims == nil {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"user_id":      claims.UserID,
		"name":         claims.Name,
		"email":        claims.Email,
		"company_slug": claims.CompanySlug,
	})
}

// Logout revokes every session of the user (global scope), clears the
// cookie defensively, verifies the sessions are actually gone and
// retries the revocation exactly once if any survive.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == uuid.Nil {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	h.clearSessionCookie(w)

	if err := h.signOutGlobal(r.Context(), userID); err != nil {
		http.Error(w, "sign-out incomplete: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"ok": true})
}

// signOutGlobal is revoke + verify + at most one retry.
func (h *AuthHandler) signOutGlobal(ctx context.Context, userID uuid.UUID) error {
	if err := h.sessions.RevokeUserSessions(ctx, userID); err != nil {
		return err
	}
	left, err := h.sessions.CountActiveSessions(ctx, userID)
	if err != nil {
		return err
	}
	if left == 0 {
		return nil
	}

	h.logger.Warn("sessions survived sign-out, retrying once",
		zap.String("user_id", userID.String()), zap.Int64("left", left))
	if err := h.sessions.RevokeUserSessions(ctx, userID); err != nil {
		return err
	}
	left, err = h.sessions.CountActiveSessions(ctx, userID)
	if err != nil {
		return err
	}
	if left != 0 {
		return fmt.Errorf("%d session(s) still active after retry", left)
	}
	return nil
}

func (h *AuthHandler) issueSession(ctx context.Context, u *models.User) (string, error) {
	sess := models.Session{
		UserID:    u.ID,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	if err := h.sessions.CreateSession(ctx, &sess); err != nil {
		return "", err
	}

	slug := ""
	if company, err := h.companySlug(ctx, u); err == nil {
		slug = company
	}
	return h.auth.GenerateToken(u, slug, sess.ID)
}

func (h *AuthHandler) companySlug(ctx context.Context, u *models.User) (string, error) {
	if u.Company != nil {
		return u.Company.Slug, nil
	}
	full, err := h.users.UserByID(ctx, u.ID)
	if err != nil || full.Company == nil {
		return "", fmt.Errorf("company not loaded")
	}
	return full.Company.Slug, nil
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((24 * time.Hour).Seconds()),
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
