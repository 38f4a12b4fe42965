package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/unimart-ng/backend-unimart/internal/common"
	"github.com/unimart-ng/backend-unimart/internal/store"
)

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

type fakeAuthStore struct {
	usersByEmail map[string]store.User
	usersByID    map[uuid.UUID]store.User
	sessions     map[string]store.Session
}

func newFakeAuthStore() *fakeAuthStore {
	return &fakeAuthStore{
		usersByEmail: map[string]store.User{},
		usersByID:    map[uuid.UUID]store.User{},
		sessions:     map[string]store.Session{},
	}
}

func (s *fakeAuthStore) CreateUser(_ context.Context, email, passwordHash, name, role string) (store.User, error) {
	u := store.User{ID: uuid.New(), Email: email, PasswordHash: passwordHash, Name: name, Role: role, CreatedAt: testNow}
	s.usersByEmail[email] = u
	s.usersByID[u.ID] = u
	return u, nil
}

func (s *fakeAuthStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	u, ok := s.usersByEmail[email]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *fakeAuthStore) GetUser(_ context.Context, id uuid.UUID) (store.User, error) {
	u, ok := s.usersByID[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *fakeAuthStore) CreateSession(_ context.Context, sess store.Session) (store.Session, error) {
	sess.ID = uuid.New()
	s.sessions[sess.RefreshToken] = sess
	return sess, nil
}

func (s *fakeAuthStore) GetSessionByToken(_ context.Context, hashedToken string) (store.Session, error) {
	sess, ok := s.sessions[hashedToken]
	if !ok {
		return store.Session{}, store.ErrNotFound
	}
	return sess, nil
}

func (s *fakeAuthStore) RotateSessionToken(_ context.Context, id uuid.UUID, hashedToken string, expiresAt time.Time) (store.Session, error) {
	for old, sess := range s.sessions {
		if sess.ID == id {
			delete(s.sessions, old)
			sess.RefreshToken = hashedToken
			sess.ExpiresAt = expiresAt
			s.sessions[hashedToken] = sess
			return sess, nil
		}
	}
	return store.Session{}, store.ErrNotFound
}

func (s *fakeAuthStore) DeleteSessionByToken(_ context.Context, hashedToken string) error {
	delete(s.sessions, hashedToken)
	return nil
}

func (s *fakeAuthStore) DeleteSessionsByUser(_ context.Context, userID uuid.UUID) error {
	for k, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, k)
		}
	}
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeAuthStore) {
	t.Helper()
	fs := newFakeAuthStore()
	svc, err := NewService(Config{Store: fs, Secret: "test-secret-test-secret"})
	require.NoError(t, err)
	svc.WithNow(func() time.Time { return testNow })
	return svc, fs
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Ngozi", "Ngozi@Unilag.edu.NG", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, "ngozi@unilag.edu.ng", user.Email)
	require.Equal(t, RoleShopper, user.Role)

	result, err := svc.Login(ctx, "ngozi@unilag.edu.ng", "s3cret-pass", "test-agent", "127.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)
	require.NotEmpty(t, result.RefreshToken)
	require.Equal(t, testNow.Add(defaultAccessTTL), result.AccessExpiry)

	subject, role, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, subject)
	require.Equal(t, RoleShopper, role)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "Ngozi", "ngozi@unilag.edu.ng", "s3cret-pass")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "ngozi@unilag.edu.ng", "wrong-pass", "", "")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_CREDENTIALS", appErr.Code)

	_, err = svc.Login(ctx, "nobody@unilag.edu.ng", "s3cret-pass", "", "")
	require.ErrorAs(t, err, &appErr)
}

func TestRegisterValidatesInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var appErr *common.AppError
	_, err := svc.Register(ctx, "", "a@b.c", "longenough")
	require.ErrorAs(t, err, &appErr)
	_, err = svc.Register(ctx, "Ngozi", "", "longenough")
	require.ErrorAs(t, err, &appErr)
	_, err = svc.Register(ctx, "Ngozi", "a@b.c", "short")
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, fs := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "Ngozi", "ngozi@unilag.edu.ng", "s3cret-pass")
	require.NoError(t, err)
	login, err := svc.Login(ctx, "ngozi@unilag.edu.ng", "s3cret-pass", "", "")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.AccessToken)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The old refresh token no longer resolves to a session.
	_, err = svc.Refresh(ctx, login.RefreshToken)
	require.Error(t, err)
	require.Len(t, fs.sessions, 1)
}

func TestRefreshRejectsExpiredSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "Ngozi", "ngozi@unilag.edu.ng", "s3cret-pass")
	require.NoError(t, err)
	login, err := svc.Login(ctx, "ngozi@unilag.edu.ng", "s3cret-pass", "", "")
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return testNow.Add(defaultRefreshTTL + time.Hour) })
	_, err = svc.Refresh(ctx, login.RefreshToken)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "UNAUTHORIZED", appErr.Code)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "Ngozi", "ngozi@unilag.edu.ng", "s3cret-pass")
	require.NoError(t, err)
	login, err := svc.Login(ctx, "ngozi@unilag.edu.ng", "s3cret-pass", "", "")
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return testNow.Add(defaultAccessTTL + time.Minute) })
	_, _, err = svc.ParseAccessToken(login.AccessToken)
	require.Error(t, err)
}

func TestParseAccessTokenRejectsTamperedToken(t *testing.T) {
	svc, _ := newTestService(t)
	other, err := NewService(Config{Store: newFakeAuthStore(), Secret: "a-completely-different-secret"})
	require.NoError(t, err)
	other.WithNow(func() time.Time { return testNow })

	token, _, err := other.signAccessToken(uuid.NewString(), RoleShopper)
	require.NoError(t, err)
	_, _, err = svc.ParseAccessToken(token)
	require.Error(t, err)
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, fs := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "Ngozi", "ngozi@unilag.edu.ng", "s3cret-pass")
	require.NoError(t, err)
	login, err := svc.Login(ctx, "ngozi@unilag.edu.ng", "s3cret-pass", "", "")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, login.RefreshToken))
	require.Empty(t, fs.sessions)
	_, err = svc.Refresh(ctx, login.RefreshToken)
	require.Error(t, err)
}

func TestRequireRoleGatesByTokenClaim(t *testing.T) {
	svc, fs := newTestService(t)
	ctx := context.Background()
	user, err := svc.Register(ctx, "Ngozi", "ngozi@unilag.edu.ng", "s3cret-pass")
	require.NoError(t, err)

	// Promote to admin, then issue a fresh token carrying the role.
	id := uuid.MustParse(user.ID)
	u := fs.usersByID[id]
	u.Role = RoleAdmin
	fs.usersByID[id] = u
	fs.usersByEmail[u.Email] = u
	adminLogin, err := svc.Login(ctx, "ngozi@unilag.edu.ng", "s3cret-pass", "", "")
	require.NoError(t, err)

	mw := Middleware{Service: svc}
	ok := false
	handler := mw.RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok = true
		role, _ := common.Role(r.Context())
		require.Equal(t, RoleAdmin, role)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminLogin.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.True(t, ok)
	require.Equal(t, http.StatusOK, rec.Code)

	// No token at all.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleRejectsShopperToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "Ngozi", "ngozi@unilag.edu.ng", "s3cret-pass")
	require.NoError(t, err)
	login, err := svc.Login(ctx, "ngozi@unilag.edu.ng", "s3cret-pass", "", "")
	require.NoError(t, err)

	mw := Middleware{Service: svc}
	handler := mw.RequireRole(RoleAdmin)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
