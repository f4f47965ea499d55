package users

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Role is the access level attached to an account.
type Role string

const (
	// RoleAdmin may read the transaction log and trigger storage rebuilds.
	RoleAdmin Role = "ADMIN"
	// RoleUser may search, store records and keep favorites and notes.
	RoleUser Role = "USER"
	// RoleGuest may only search online; nothing it does is persisted.
	RoleGuest Role = "GUEST"
)

// ParseRole maps a raw role string to a Role, degrading unknown values to
// RoleUser the way the credentials file contract requires.
func ParseRole(raw string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleGuest:
		return RoleGuest
	default:
		return RoleUser
	}
}

// CanStoreData reports whether the role may mutate record storage.
func (r Role) CanStoreData() bool {
	return r == RoleUser || r == RoleAdmin
}

// Account is a persisted login. The password hash is an opaque
// equality-comparable hex string; nothing downstream depends on the
// algorithm beyond round-tripping it through the credentials file.
type Account struct {
	Username     string    `gorm:"column:username;primaryKey;size:190;not null"`
	PasswordHash string    `gorm:"column:password_hash;size:128;not null"`
	Role         Role      `gorm:"column:role;size:16;not null;default:'USER'"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Account) TableName() string {
	return "accounts"
}

// IsAdmin reports whether the account has admin privileges.
func (a Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// HashPassword returns the lowercase hex SHA-256 digest of the password.
func HashPassword(password string) string {
	digest := sha256.Sum256([]byte(password))
	return hex.EncodeToString(digest[:])
}
