package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/takumi/shiori/internal/model"
	"github.com/takumi/shiori/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn           func(ctx context.Context, id string) (*model.User, error)
	createWithIdentityFn func(ctx context.Context, user *model.User, identity *model.Identity) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	if m.createWithIdentityFn != nil {
		return m.createWithIdentityFn(ctx, user, identity)
	}
	return nil
}

type mockIdentityRepo struct {
	findByProviderFn func(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

func (m *mockIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	if m.findByProviderFn != nil {
		return m.findByProviderFn(ctx, provider, providerUserID)
	}
	return nil, nil
}

type mockSessionRepo struct {
	createFn     func(ctx context.Context, session *model.Session) error
	findByIDFn   func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

type mockOAuthProvider struct {
	getLoginURLFn  func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*OAuthUserInfo, error)
}

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.IdentityRepository = (*mockIdentityRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ OAuthProvider = (*mockOAuthProvider)(nil)

// --- テスト ---

func TestGetLoginURL_ReturnsOAuthURL(t *testing.T) {
	provider := &mockOAuthProvider{
		getLoginURLFn: func(state string) string {
			return "https://accounts.google.com/o/oauth2/auth?state=" + state
		},
	}
	svc := NewService(provider, nil, nil, nil, ServiceConfig{SessionMaxAge: 86400})

	url := svc.GetLoginURL("test-state")

	expected := "https://accounts.google.com/o/oauth2/auth?state=test-state"
	if url != expected {
		t.Errorf("GetLoginURL() = %q, want %q", url, expected)
	}
}

func TestHandleCallback_NewUser_CreatesUserAndIdentityAndSession(t *testing.T) {
	ctx := context.Background()

	var createdUser *model.User
	var createdIdentity *model.Identity
	var createdSession *model.Session

	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{
				ProviderUserID: "google-user-123",
				Email:          "new@example.com",
				Name:           "New User",
				Provider:       "google",
			}, nil
		},
	}
	userRepo := &mockUserRepo{
		createWithIdentityFn: func(ctx context.Context, user *model.User, identity *model.Identity) error {
			createdUser = user
			createdIdentity = identity
			return nil
		},
	}
	identRepo := &mockIdentityRepo{
		findByProviderFn: func(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
			return nil, nil // 未登録ユーザー
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}

	svc := NewService(provider, userRepo, identRepo, sessionRepo, ServiceConfig{SessionMaxAge: 3600})

	session, err := svc.HandleCallback(ctx, "auth-code")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if createdUser == nil {
		t.Fatal("expected user to be created")
	}
	if createdUser.Email != "new@example.com" {
		t.Errorf("expected email new@example.com, got %q", createdUser.Email)
	}
	if createdIdentity == nil || createdIdentity.ProviderUserID != "google-user-123" {
		t.Errorf("expected identity with provider user ID, got %+v", createdIdentity)
	}
	if createdIdentity.UserID != createdUser.ID {
		t.Error("expected identity to reference created user")
	}
	if createdSession == nil || session.UserID != createdUser.ID {
		t.Error("expected session for created user")
	}
	if len(session.ID) != 64 {
		t.Errorf("expected 64-char hex session ID, got %d chars", len(session.ID))
	}
}

func TestHandleCallback_ExistingUser_IssuesSessionWithoutCreating(t *testing.T) {
	ctx := context.Background()

	createCalled := false
	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{
				ProviderUserID: "google-user-123",
				Email:          "existing@example.com",
				Provider:       "google",
			}, nil
		},
	}
	userRepo := &mockUserRepo{
		createWithIdentityFn: func(ctx context.Context, user *model.User, identity *model.Identity) error {
			createCalled = true
			return nil
		},
	}
	identRepo := &mockIdentityRepo{
		findByProviderFn: func(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
			return &model.Identity{ID: "ident-1", UserID: "user-1", Provider: provider, ProviderUserID: providerUserID}, nil
		},
	}
	sessionRepo := &mockSessionRepo{}

	svc := NewService(provider, userRepo, identRepo, sessionRepo, ServiceConfig{SessionMaxAge: 3600})

	session, err := svc.HandleCallback(ctx, "auth-code")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if createCalled {
		t.Error("expected no user creation for existing identity")
	}
	if session.UserID != "user-1" {
		t.Errorf("expected session for user-1, got %q", session.UserID)
	}
}

func TestHandleCallback_ExchangeFails_ReturnsError(t *testing.T) {
	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return nil, errors.New("invalid code")
		},
	}
	svc := NewService(provider, &mockUserRepo{}, &mockIdentityRepo{}, &mockSessionRepo{}, ServiceConfig{SessionMaxAge: 3600})

	if _, err := svc.HandleCallback(context.Background(), "bad-code"); err == nil {
		t.Fatal("expected error")
	}
}

func TestLogout_DeletesSession(t *testing.T) {
	var deletedID string
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}
	svc := NewService(&mockOAuthProvider{}, &mockUserRepo{}, &mockIdentityRepo{}, sessionRepo, ServiceConfig{})

	if err := svc.Logout(context.Background(), "session-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deletedID != "session-1" {
		t.Errorf("expected session-1 to be deleted, got %q", deletedID)
	}
}

func TestLogout_EmptySessionID_ReturnsError(t *testing.T) {
	svc := NewService(&mockOAuthProvider{}, &mockUserRepo{}, &mockIdentityRepo{}, &mockSessionRepo{}, ServiceConfig{})

	if err := svc.Logout(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty session ID")
	}
}

func TestGetCurrentUser_ReturnsUser(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "u@example.com", Name: "U"}, nil
		},
	}
	svc := NewService(&mockOAuthProvider{}, userRepo, &mockIdentityRepo{}, sessionRepo, ServiceConfig{})

	user, err := svc.GetCurrentUser(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("expected user-1, got %q", user.ID)
	}
}

func TestGetCurrentUser_SessionNotFound_ReturnsError(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return nil, nil
		},
	}
	svc := NewService(&mockOAuthProvider{}, &mockUserRepo{}, &mockIdentityRepo{}, sessionRepo, ServiceConfig{})

	if _, err := svc.GetCurrentUser(context.Background(), "expired"); err == nil {
		t.Fatal("expected error for missing session")
	}
}
