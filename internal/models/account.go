package models

import (
	"fmt"
	"strings"
	"time"

	"davsync/internal/shared"
)

// Account holds credentials for one user on a configured [Server].
type Account struct {
	id        string
	sequence  int
	name      string
	serverID  string
	username  string
	password  string
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewAccount creates an Account with the given sequence, display name, server reference and credentials.
func NewAccount(sequence int, name, serverID, username, password string) *Account {
	now := time.Now()
	return &Account{
		sequence:  sequence,
		name:      name,
		serverID:  serverID,
		username:  username,
		password:  password,
		createdAt: now,
		updatedAt: now,
	}
}

func (a *Account) ID() string            { return a.id }
func (a *Account) Sequence() int         { return a.sequence }
func (a *Account) Name() string          { return a.name }
func (a *Account) ServerID() string      { return a.serverID }
func (a *Account) Username() string      { return a.username }
func (a *Account) Password() string      { return a.password }
func (a *Account) CreatedAt() time.Time  { return a.createdAt }
func (a *Account) UpdatedAt() time.Time  { return a.updatedAt }
func (a *Account) DeletedAt() *time.Time { return a.deletedAt }

func (a *Account) SetID(id string)           { a.id = id }
func (a *Account) SetName(name string)       { a.name = name }
func (a *Account) SetServerID(id string)     { a.serverID = id }
func (a *Account) SetUsername(u string)      { a.username = u }
func (a *Account) SetPassword(p string)      { a.password = p }
func (a *Account) SetCreatedAt(t time.Time)  { a.createdAt = t }
func (a *Account) SetUpdatedAt(t time.Time)  { a.updatedAt = t }
func (a *Account) SetDeletedAt(t *time.Time) { a.deletedAt = t }

// Validate checks that the account has a name, a server reference and credentials.
func (a *Account) Validate() error {
	if strings.TrimSpace(a.name) == "" {
		return fmt.Errorf("%w: account name is required", shared.ErrInvalidInput)
	}
	if a.serverID == "" {
		return fmt.Errorf("%w: account requires a server", shared.ErrInvalidInput)
	}
	if a.username == "" || a.password == "" {
		return fmt.Errorf("%w: account requires username and password", shared.ErrInvalidInput)
	}
	return nil
}

// ToMap converts the account to a map for JSON serialization.
// The password is never included.
func (a *Account) ToMap() map[string]any {
	return map[string]any{
		"id":         a.id,
		"name":       a.name,
		"server_id":  a.serverID,
		"username":   a.username,
		"created_at": a.createdAt.Format(time.RFC3339),
		"updated_at": a.updatedAt.Format(time.RFC3339),
	}
}
