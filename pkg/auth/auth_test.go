package auth

import (
	"errors"
	"testing"
	"time"
)

func TestCreateUserDefaultsToViewer(t *testing.T) {
	m := NewManager(DefaultConfig())
	u, err := m.CreateUser("alice", "longenoughpassword", nil)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if !u.HasRole(RoleViewer) {
		t.Fatalf("expected default role viewer, got %v", u.Roles)
	}
	if u.PasswordHash != "" {
		t.Fatalf("safeCopy leaked password hash")
	}
}

func TestCreateUserRejectsShortPassword(t *testing.T) {
	m := NewManager(DefaultConfig())
	_, err := m.CreateUser("alice", "short", nil)
	if !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
}

func TestCreateUserRejectsDuplicateUsername(t *testing.T) {
	m := NewManager(DefaultConfig())
	if _, err := m.CreateUser("alice", "longenoughpassword", nil); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := m.CreateUser("alice", "anotherlongpassword", nil); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthenticateSucceedsWithCorrectPassword(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.CreateUser("alice", "correcthorsebattery", []Role{RoleEditor})

	u, err := m.Authenticate("alice", "correcthorsebattery")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if u.Username != "alice" {
		t.Fatalf("got username %q", u.Username)
	}
}

func TestAuthenticateFailsWithWrongPassword(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.CreateUser("alice", "correcthorsebattery", nil)
	if _, err := m.Authenticate("alice", "wrongpassword"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateLocksAccountAfterMaxFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFailedLogins = 3
	cfg.LockoutDuration = time.Hour
	m := NewManager(cfg)
	m.CreateUser("alice", "correcthorsebattery", nil)

	for i := 0; i < 3; i++ {
		m.Authenticate("alice", "wrongpassword")
	}
	if _, err := m.Authenticate("alice", "correcthorsebattery"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked after %d failed attempts, got %v", cfg.MaxFailedLogins, err)
	}
}

func TestAuthenticateUnknownUserDoesNotRevealExistence(t *testing.T) {
	m := NewManager(DefaultConfig())
	_, err := m.Authenticate("ghost", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestHasPermissionFollowsRoleTable(t *testing.T) {
	editor := &User{Roles: []Role{RoleEditor}}
	if !editor.HasPermission(PermWrite) {
		t.Fatalf("editor should have write permission")
	}
	if editor.HasPermission(PermAdmin) {
		t.Fatalf("editor should not have admin permission")
	}

	viewer := &User{Roles: []Role{RoleViewer}}
	if !viewer.HasPermission(PermRead) {
		t.Fatalf("viewer should have read permission")
	}
	if viewer.HasPermission(PermWrite) {
		t.Fatalf("viewer should not have write permission")
	}
}

func TestCreateSessionResolvesPermissionCache(t *testing.T) {
	m := NewManager(DefaultConfig())
	u, _ := m.CreateUser("bob", "correcthorsebattery", []Role{RoleEditor})
	s := m.CreateSession(u, "/schema/graph")

	if !s.Authorize(PermWrite) {
		t.Fatalf("expected editor session to authorize write")
	}
	if s.Authorize(PermAdmin) {
		t.Fatalf("expected editor session to reject admin")
	}
	if _, ok := m.GetSession(s.ID); !ok {
		t.Fatalf("session should be retrievable by id")
	}
}

func TestCreateAnonymousSessionGrantsViewerOnly(t *testing.T) {
	m := NewManager(DefaultConfig())
	s := m.CreateAnonymousSession("/schema/graph")
	if !s.Authorize(PermRead) {
		t.Fatalf("anonymous session should authorize read")
	}
	if s.Authorize(PermWrite) {
		t.Fatalf("anonymous session should not authorize write")
	}
}

func TestCloseSessionRemovesIt(t *testing.T) {
	m := NewManager(DefaultConfig())
	s := m.CreateAnonymousSession("/schema/graph")
	m.CloseSession(s.ID)
	if _, ok := m.GetSession(s.ID); ok {
		t.Fatalf("expected session to be gone after CloseSession")
	}
}

func TestSetPasswordChangesCredentials(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.CreateUser("alice", "firstpassword", nil)
	if err := m.SetPassword("alice", "secondpassword12"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if _, err := m.Authenticate("alice", "firstpassword"); err == nil {
		t.Fatalf("old password should no longer authenticate")
	}
	if _, err := m.Authenticate("alice", "secondpassword12"); err != nil {
		t.Fatalf("new password should authenticate: %v", err)
	}
}

func TestDisableUserBlocksAuthentication(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.CreateUser("alice", "correcthorsebattery", nil)
	m.DisableUser("alice")
	if _, err := m.Authenticate("alice", "correcthorsebattery"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("disabled account should not authenticate, got %v", err)
	}
}

func TestUnlockUserClearsLockout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFailedLogins = 1
	m := NewManager(cfg)
	m.CreateUser("alice", "correcthorsebattery", nil)
	m.Authenticate("alice", "wrong")

	if err := m.UnlockUser("alice"); err != nil {
		t.Fatalf("UnlockUser: %v", err)
	}
	if _, err := m.Authenticate("alice", "correcthorsebattery"); err != nil {
		t.Fatalf("expected unlocked account to authenticate: %v", err)
	}
}
