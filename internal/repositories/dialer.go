package repositories

import (
	"database/sql"
	"fmt"

	"davsync/internal/dav"
)

// ClientDialer builds live endpoint adapters from stored accounts.
// It implements the worker's Dialer interface.
type ClientDialer struct {
	accounts *AccountRepository
	servers  *ServerRepository
}

// NewClientDialer creates a ClientDialer over the given database connection.
func NewClientDialer(db *sql.DB) *ClientDialer {
	return &ClientDialer{
		accounts: NewAccountRepository(db),
		servers:  NewServerRepository(db),
	}
}

// Dial resolves an account and its server into a connected-but-unauthenticated
// client. Authentication happens when the engine runs.
func (d *ClientDialer) Dial(accountID string) (dav.Client, error) {
	account, err := d.accounts.Get(accountID)
	if err != nil {
		return nil, err
	}

	server, err := d.servers.Get(account.ServerID())
	if err != nil {
		return nil, fmt.Errorf("server for account %s: %w", accountID, err)
	}

	return dav.NewClient(dav.ClientConfig{
		URL:           server.URL(),
		Username:      account.Username(),
		Password:      account.Password(),
		PrincipalPath: server.PrincipalPath(),
		ServerType:    server.ServerType(),
		VerifySSL:     server.VerifySSL(),
	}), nil
}
