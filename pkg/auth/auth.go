// Package auth implements the role-based authorization and session
// bookkeeping spec.md §3 and §4.9 describe: a User with bcrypt-hashed
// credentials and a Role set, and a Session carrying the authenticated
// principal, selected graph path, and a permission cache the coordinator
// consults on every statement.
//
// Grounded on the teacher's pkg/auth/auth.go, scaled down to the slice
// spec.md actually calls for: user accounts, roles/permissions, bcrypt
// hashing, and account lockout survive; JWT issuance/verification,
// OAuth-2-shaped token responses, audit-log callbacks, and cluster-token
// generation do not, since spec.md §1 explicitly places "authentication,
// session issuance ... beyond the authorization decisions the executor
// consumes" out of this system's scope. What the executor/coordinator
// actually consumes is exactly User.Roles/HasPermission and Session — so
// that's what this package keeps.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrUserExists         = errors.New("auth: user already exists")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrAccountLocked      = errors.New("auth: account locked due to failed login attempts")
	ErrPasswordTooShort   = errors.New("auth: password does not meet minimum length requirement")
	ErrSessionNotFound    = errors.New("auth: session not found")
)

// Role follows the teacher's Neo4j-style naming.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
	RoleNone   Role = "none"
)

// Permission is an action the executor checks before running a write or
// DDL statement. Read/write/create/delete line up one-to-one with
// spec.md §4.7's write-statement operation kinds; schema covers text
// index DDL.
type Permission string

const (
	PermRead   Permission = "read"
	PermWrite  Permission = "write"
	PermCreate Permission = "create"
	PermDelete Permission = "delete"
	PermAdmin  Permission = "admin"
	PermSchema Permission = "schema"
)

var rolePermissions = map[Role][]Permission{
	RoleAdmin:  {PermRead, PermWrite, PermCreate, PermDelete, PermAdmin, PermSchema},
	RoleEditor: {PermRead, PermWrite, PermCreate, PermDelete},
	RoleViewer: {PermRead},
	RoleNone:   {},
}

// User is an account: credentials, roles, lockout state.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Roles        []Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLogin    time.Time
	FailedLogins int
	LockedUntil  time.Time
	Disabled     bool
}

func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u *User) HasPermission(perm Permission) bool {
	for _, role := range u.Roles {
		for _, p := range rolePermissions[role] {
			if p == perm {
				return true
			}
		}
	}
	return false
}

func (u *User) safeCopy() *User {
	roles := make([]Role, len(u.Roles))
	copy(roles, u.Roles)
	return &User{
		ID: u.ID, Username: u.Username, Roles: roles,
		CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt, LastLogin: u.LastLogin,
		Disabled: u.Disabled,
	}
}

// Session is spec.md §3's Session: an authenticated principal bound to
// one currently-selected graph, with its permission set resolved once at
// creation rather than recomputed from Roles on every check.
type Session struct {
	ID              string
	UserID          string
	Username        string
	GraphPath       string
	permissionCache map[Permission]bool
	CreatedAt       time.Time
}

// Authorize reports whether the session's principal holds perm, per the
// permission cache computed at session creation.
func (s *Session) Authorize(perm Permission) bool {
	return s.permissionCache[perm]
}

// Config mirrors the teacher's AuthConfig, minus the JWT/lockout-feature-
// flag fields that only served the dropped token path.
type Config struct {
	MinPasswordLength int
	BcryptCost        int
	MaxFailedLogins   int
	LockoutDuration   time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinPasswordLength: 8,
		BcryptCost:        bcrypt.DefaultCost,
		MaxFailedLogins:   5,
		LockoutDuration:   15 * time.Minute,
	}
}

// Manager owns user accounts and live sessions. All methods are
// thread-safe.
type Manager struct {
	mu       sync.RWMutex
	users    map[string]*User // by username
	sessions map[string]*Session
	config   Config
}

func NewManager(config Config) *Manager {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if config.MinPasswordLength == 0 {
		config.MinPasswordLength = 8
	}
	if config.MaxFailedLogins == 0 {
		config.MaxFailedLogins = 5
	}
	if config.LockoutDuration == 0 {
		config.LockoutDuration = 15 * time.Minute
	}
	return &Manager{
		users:    make(map[string]*User),
		sessions: make(map[string]*Session),
		config:   config,
	}
}

// CreateUser hashes password with bcrypt immediately; it is never stored
// or returned in plain text. roles defaults to RoleViewer when empty.
func (m *Manager) CreateUser(username, password string, roles []Role) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[username]; exists {
		return nil, ErrUserExists
	}
	if len(password) < m.config.MinPasswordLength {
		return nil, fmt.Errorf("%w: minimum %d characters required", ErrPasswordTooShort, m.config.MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to hash password: %w", err)
	}
	if len(roles) == 0 {
		roles = []Role{RoleViewer}
	}

	now := time.Now()
	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[username] = user
	return user.safeCopy(), nil
}

// Authenticate verifies username/password, enforcing account lockout
// after MaxFailedLogins consecutive failures, and returns the user on
// success. It does not issue a token — callers that want a working
// session call CreateSession next.
func (m *Manager) Authenticate(username, password string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.users[username]
	if !exists {
		return nil, ErrInvalidCredentials // don't reveal whether the username exists
	}
	if !user.LockedUntil.IsZero() && time.Now().Before(user.LockedUntil) {
		return nil, ErrAccountLocked
	}
	if user.Disabled {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		user.FailedLogins++
		if user.FailedLogins >= m.config.MaxFailedLogins {
			user.LockedUntil = time.Now().Add(m.config.LockoutDuration)
		}
		user.UpdatedAt = time.Now()
		return nil, ErrInvalidCredentials
	}

	user.FailedLogins = 0
	user.LockedUntil = time.Time{}
	user.LastLogin = time.Now()
	user.UpdatedAt = time.Now()
	return user.safeCopy(), nil
}

// CreateSession opens a session for an already-authenticated user over
// graphPath, resolving its permission cache once up front. Session ids
// use google/uuid rather than a process-local counter (unlike pkg/txn's
// transaction ids): sessions are externally visible to a client and must
// stay unique and unguessable across coordinator restarts, properties a
// monotonic counter doesn't give.
func (m *Manager) CreateSession(user *User, graphPath string) *Session {
	perms := make(map[Permission]bool, len(rolePermissions[RoleAdmin]))
	for _, role := range user.Roles {
		for _, p := range rolePermissions[role] {
			perms[p] = true
		}
	}
	s := &Session{
		ID:              uuid.NewString(),
		UserID:          user.ID,
		Username:        user.Username,
		GraphPath:       graphPath,
		permissionCache: perms,
		CreatedAt:       time.Now(),
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// CreateAnonymousSession opens a session with no authenticated user,
// granted RoleViewer — the "create_simple_session" entry point the
// coordinator exposes for unauthenticated local use.
func (m *Manager) CreateAnonymousSession(graphPath string) *Session {
	anon := &User{ID: "", Username: "", Roles: []Role{RoleViewer}}
	return m.CreateSession(anon, graphPath)
}

func (m *Manager) GetSession(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// CloseSession discards a session; it is a no-op on an already-closed id.
func (m *Manager) CloseSession(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func (m *Manager) GetUser(username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u.safeCopy(), nil
}

func (m *Manager) ListUsers() []*User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u.safeCopy())
	}
	return out
}

// SetPassword overwrites username's password hash directly, bypassing
// the old-password check ChangePassword would otherwise require — the
// coordinator's `set_user_password` administrative entry point.
func (m *Manager) SetPassword(username, newPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[username]
	if !exists {
		return ErrUserNotFound
	}
	if len(newPassword) < m.config.MinPasswordLength {
		return fmt.Errorf("%w: minimum %d characters required", ErrPasswordTooShort, m.config.MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), m.config.BcryptCost)
	if err != nil {
		return fmt.Errorf("auth: failed to hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.UpdatedAt = time.Now()
	return nil
}

func (m *Manager) UpdateRoles(username string, roles []Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[username]
	if !exists {
		return ErrUserNotFound
	}
	user.Roles = roles
	user.UpdatedAt = time.Now()
	return nil
}

func (m *Manager) DisableUser(username string) error {
	return m.setDisabled(username, true)
}

func (m *Manager) EnableUser(username string) error {
	if err := m.setDisabled(username, false); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[username]; ok {
		user.FailedLogins = 0
		user.LockedUntil = time.Time{}
	}
	return nil
}

func (m *Manager) setDisabled(username string, disabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[username]
	if !exists {
		return ErrUserNotFound
	}
	user.Disabled = disabled
	user.UpdatedAt = time.Now()
	return nil
}

func (m *Manager) UnlockUser(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[username]
	if !exists {
		return ErrUserNotFound
	}
	user.FailedLogins = 0
	user.LockedUntil = time.Time{}
	user.UpdatedAt = time.Now()
	return nil
}

func (m *Manager) DeleteUser(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[username]; !exists {
		return ErrUserNotFound
	}
	delete(m.users, username)
	return nil
}

func (m *Manager) UserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

// RestoreUser inserts u directly into the account table, bypassing
// CreateUser's password hashing — used by pkg/coordinator to rehydrate
// accounts from the catalog:users tree on reopen, where PasswordHash is
// already a bcrypt hash, not a plaintext password.
func (m *Manager) RestoreUser(u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[u.Username]; exists {
		return ErrUserExists
	}
	m.users[u.Username] = u
	return nil
}

// ExportUsers returns every account's full record (including
// PasswordHash, unlike ListUsers/safeCopy) for the coordinator to persist
// into the catalog:users tree.
func (m *Manager) ExportUsers() []*User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		cp.Roles = append([]Role(nil), u.Roles...)
		out = append(out, &cp)
	}
	return out
}

// ValidRole reports whether r is one of the four recognized roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer, RoleNone:
		return true
	default:
		return false
	}
}

func RoleFromString(s string) (Role, error) {
	r := Role(s)
	if !ValidRole(r) {
		return RoleNone, fmt.Errorf("auth: invalid role %q", s)
	}
	return r, nil
}
