package repository

import (
	"testing"
	"time"

	"github.com/takumi/shiori/internal/model"
)

// PostgresUserRepositoryはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepository_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepository)(nil)
}

// PostgresIdentityRepositoryはIdentityRepositoryインターフェースを満たすことを検証
func TestPostgresIdentityRepository_ImplementsInterface(t *testing.T) {
	var _ IdentityRepository = (*PostgresIdentityRepository)(nil)
}

// PostgresSessionRepositoryはSessionRepositoryインターフェースを満たすことを検証
func TestPostgresSessionRepository_ImplementsInterface(t *testing.T) {
	var _ SessionRepository = (*PostgresSessionRepository)(nil)
}

// NewPostgresUserRepositoryが正しく初期化されることを検証
func TestNewPostgresUserRepository_Initializes(t *testing.T) {
	repo := NewPostgresUserRepository(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// SessionのFindByIDが期限切れセッションを返さないことの期待動作
func TestPostgresSessionRepository_ExpiredSession_Concept(t *testing.T) {
	session := &model.Session{
		ID:        "expired-session",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(-1 * time.Hour),
	}

	if session.ExpiresAt.After(time.Now()) {
		t.Error("expected session to be expired")
	}
}
