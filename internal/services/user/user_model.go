package user

// Role is the account role. Admin accounts manage users and may wipe
// the store; everyone else is a regular member.
type Role int

const (
	RoleAdmin  Role = 0
	RoleMember Role = 1
)

// User is the stored account record. Password is a sha-512 hex digest
// and stays empty for OAuth-only accounts.
type User struct {
	ID         string `json:"user_id"`
	ScreenName string `json:"screen_name,omitempty"`
	Role       Role   `json:"role"`
	Password   string `json:"password,omitempty"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// Resolved is the verified identity of the acting user, as produced by
// the session credential check. It carries just what the authorization
// predicates need.
type Resolved struct {
	ID         string `json:"user_id"`
	ScreenName string `json:"screen_name,omitempty"`
	Role       Role   `json:"role"`
}

// Snapshot returns a copy of u safe to embed into a document: same
// identity and profile, no password digest.
func (u *User) Snapshot() *User {
	cp := *u
	cp.Password = ""
	return &cp
}

// CreateUserRequest is the payload for creating a member account.
type CreateUserRequest struct {
	ID         string `json:"user_id"`
	ScreenName string `json:"screen_name,omitempty"`
	Password   string `json:"password"`
	Name       string `json:"name"`
	Email      string `json:"email"`
}
