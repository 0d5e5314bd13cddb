package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"p9e.in/fixport/middleware"
	"p9e.in/fixport/models"
	"p9e.in/fixport/pkg/tenant"
)

// fakeSessions simulates the store's session slice. When sticky > 0,
// that many revocation rounds leave one session behind, mimicking a
// revocation that did not take.
type fakeSessions struct {
	sticky      int
	revokeCalls int
	countCalls  int
	active      int64
}

func (f *fakeSessions) CreateSession(ctx context.Context, s *models.Session) error {
	s.ID = uuid.New()
	f.active++
	return nil
}

func (f *fakeSessions) RevokeUserSessions(ctx context.Context, userID uuid.UUID) error {
	f.revokeCalls++
	if f.revokeCalls <= f.sticky {
		f.active = 1
	} else {
		f.active = 0
	}
	return nil
}

func (f *fakeSessions) CountActiveSessions(ctx context.Context, userID uuid.UUID) (int64, error) {
	f.countCalls++
	return f.active, nil
}

func logoutHandler(sessions *fakeSessions) *AuthHandler {
	return NewAuthHandler(nil, sessions, nil, nil, nil, nil, zap.NewNop())
}

func TestSignOutGlobalCleanFirstTry(t *testing.T) {
	sessions := &fakeSessions{active: 2}
	h := logoutHandler(sessions)

	err := h.signOutGlobal(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, sessions.revokeCalls)

	left, _ := sessions.CountActiveSessions(context.Background(), uuid.Nil)
	assert.Zero(t, left)
}

func TestSignOutGlobalRetriesExactlyOnce(t *testing.T) {
	sessions := &fakeSessions{active: 2, sticky: 1}
	h := logoutHandler(sessions)

	err := h.signOutGlobal(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 2, sessions.revokeCalls, "one initial attempt plus one retry")
}

func TestSignOutGlobalGivesUpAfterOneRetry(t *testing.T) {
	sessions := &fakeSessions{active: 2, sticky: 99}
	h := logoutHandler(sessions)

	err := h.signOutGlobal(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, 2, sessions.revokeCalls, "never more than one retry")
}

func TestLogoutEndpoint(t *testing.T) {
	sessions := &fakeSessions{active: 1}
	h := logoutHandler(sessions)

	claims := &middleware.Claims{UserID: uuid.NewString(), SessionID: uuid.NewString()}
	r := httptest.NewRequest(http.MethodPost, "/api/v1/logout", nil)
	r = r.WithContext(middleware.WithClaims(r.Context(), claims))

	w := httptest.NewRecorder()
	h.Logout(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":true`)

	// cookie cleared defensively before the store round-trips
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, middleware.SessionCookie, cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestLogoutWithoutPrincipal(t *testing.T) {
	h := logoutHandler(&fakeSessions{})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/logout", nil)
	w := httptest.NewRecorder()
	h.Logout(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type fakeUsers struct {
	users     map[string]*models.User
	createErr error
}

func (f *fakeUsers) CreateUser(ctx context.Context, u *models.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	u.ID = uuid.New()
	f.users[u.Email] = u
	return nil
}

func (f *fakeUsers) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := f.users[email]; ok {
		return u, nil
	}
	return nil, models.ErrNotFound
}

func (f *fakeUsers) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, models.ErrNotFound
}

// fakeTokens consumes with the same single-use semantics as the store:
// a token that is used or expired is gone.
type fakeTokens struct {
	created []models.LoginToken
}

func (f *fakeTokens) CreateLoginToken(ctx context.Context, t *models.LoginToken) error {
	t.ID = uuid.New()
	f.created = append(f.created, *t)
	return nil
}

func (f *fakeTokens) ConsumeLoginToken(ctx context.Context, token string) (*models.LoginToken, error) {
	for i := range f.created {
		if f.created[i].Token == token && f.created[i].Usable(time.Now()) {
			now := time.Now()
			f.created[i].UsedAt = &now
			cp := f.created[i]
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

type linkRecorder struct {
	to    []string
	links []string
}

func (l *linkRecorder) SendMagicLink(ctx context.Context, toEmail, link string) error {
	l.to = append(l.to, toEmail)
	l.links = append(l.links, link)
	return nil
}

func magicLinkFixture() (*AuthHandler, *fakeUsers, *fakeTokens, *linkRecorder, *models.Company) {
	acme := &models.Company{ID: uuid.New(), Slug: "acme", Name: "Acme Industries"}
	users := &fakeUsers{users: make(map[string]*models.User)}
	tokens := &fakeTokens{}
	mail := &linkRecorder{}
	resolver := tenant.NewResolver(&companyFinderStub{slugs: map[string]*models.Company{"acme": acme}}, zap.NewNop())
	auth := middleware.NewAuth("test-secret", nil)
	h := NewAuthHandler(users, &fakeSessions{}, tokens, auth, resolver, mail, zap.NewNop())
	return h, users, tokens, mail, acme
}

func TestRequestLoginLinkOnTenantSubdomain(t *testing.T) {
	h, users, tokens, mail, acme := magicLinkFixture()
	users.users["pat@acme.test"] = &models.User{ID: uuid.New(), Email: "pat@acme.test", CompanyID: acme.ID, Company: acme}

	body := []byte(`{"email":"pat@acme.test","redirect_to":"https://acme.portal.example.com/set-password"}`)
	r := httptest.NewRequest(http.MethodPost, "/auth/otp", bytes.NewReader(body))
	r.Host = "acme.portal.example.com"
	w := httptest.NewRecorder()
	h.RequestLoginLink(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, tokens.created, 1)
	require.Len(t, mail.links, 1)
	assert.Equal(t, []string{"pat@acme.test"}, mail.to)
	assert.Contains(t, mail.links[0], "https://acme.portal.example.com/set-password")
	assert.Contains(t, mail.links[0], "token="+tokens.created[0].Token)
}

func TestRequestLoginLinkRejectsForeignSubdomain(t *testing.T) {
	h, users, tokens, mail, acme := magicLinkFixture()
	users.users["pat@acme.test"] = &models.User{ID: uuid.New(), Email: "pat@acme.test", CompanyID: acme.ID, Company: acme}

	// the link must land on the requesting tenant's own subdomain
	body := []byte(`{"email":"pat@acme.test","redirect_to":"https://globex.portal.example.com/set-password"}`)
	r := httptest.NewRequest(http.MethodPost, "/auth/otp", bytes.NewReader(body))
	r.Host = "acme.portal.example.com"
	w := httptest.NewRecorder()
	h.RequestLoginLink(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, tokens.created)
	assert.Empty(t, mail.links)
}

func TestRequestLoginLinkRejectsCrossTenantEmail(t *testing.T) {
	h, users, tokens, _, _ := magicLinkFixture()
	// the account exists, but under a different company
	users.users["pat@acme.test"] = &models.User{ID: uuid.New(), Email: "pat@acme.test", CompanyID: uuid.New()}

	body := []byte(`{"email":"pat@acme.test","redirect_to":"https://acme.portal.example.com/set-password"}`)
	r := httptest.NewRequest(http.MethodPost, "/auth/otp", bytes.NewReader(body))
	r.Host = "acme.portal.example.com"
	w := httptest.NewRecorder()
	h.RequestLoginLink(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, tokens.created)
}

func TestCallbackConsumesTokenOnce(t *testing.T) {
	h, users, tokens, _, acme := magicLinkFixture()
	u := &models.User{ID: uuid.New(), Email: "pat@acme.test", CompanyID: acme.ID, Company: acme}
	users.users[u.Email] = u
	tokens.created = []models.LoginToken{{
		ID:        uuid.New(),
		Token:     "tok1",
		UserID:    u.ID,
		Redirect:  "https://acme.portal.example.com/set-password",
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}}

	r := httptest.NewRequest(http.MethodGet, "/auth/callback?token=tok1", nil)
	w := httptest.NewRecorder()
	h.Callback(w, r)

	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "https://acme.portal.example.com/set-password", w.Header().Get("Location"))
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, middleware.SessionCookie, cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)

	// the same link again is dead
	w2 := httptest.NewRecorder()
	h.Callback(w2, httptest.NewRequest(http.MethodGet, "/auth/callback?token=tok1", nil))
	assert.Equal(t, http.StatusUnauthorized, w2.Code)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h, users, _, _, _ := magicLinkFixture()
	users.createErr = fmt.Errorf("create user: %w: %w", models.ErrUpstream,
		&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	body := []byte(`{"name":"Pat","email":"pat@acme.test","password":"longenough"}`)
	r := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(body))
	r.Host = "acme.portal.example.com"
	w := httptest.NewRecorder()
	h.Register(w, r)
	assert.Equal(t, http.StatusConflict, w.Code)
}
