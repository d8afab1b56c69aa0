package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"davsync/internal/models"
	"davsync/internal/shared"
)

// AccountRepository implements models.Repository[*models.Account].
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new AccountRepository with the given database connection
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account with generated ID and sequence
func (r *AccountRepository) Create(account *models.Account) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "accounts")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	account.SetID(shared.GenerateID())

	query := `
		INSERT INTO accounts (id, sequence, name, server_id, username, password, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		account.ID(),
		sequence,
		account.Name(),
		account.ServerID(),
		account.Username(),
		account.Password(),
		account.CreatedAt(),
		account.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}

	return nil
}

// Get retrieves an account by ID, excluding soft-deleted accounts
func (r *AccountRepository) Get(id string) (*models.Account, error) {
	query := selectAccounts + " WHERE id = ? AND deleted_at IS NULL"
	account, err := scanAccount(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %s", shared.ErrNotFound, id)
	}
	return account, err
}

// GetByName retrieves an account by its unique display name
func (r *AccountRepository) GetByName(name string) (*models.Account, error) {
	query := selectAccounts + " WHERE name = ? AND deleted_at IS NULL"
	account, err := scanAccount(r.db.QueryRow(query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %q", shared.ErrNotFound, name)
	}
	return account, err
}

// Update modifies an existing account
func (r *AccountRepository) Update(account *models.Account) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	account.SetUpdatedAt(now)

	query := `
		UPDATE accounts
		SET name = ?, server_id = ?, username = ?, password = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		account.Name(),
		account.ServerID(),
		account.Username(),
		account.Password(),
		now,
		account.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	return requireRow(result, "account", account.ID())
}

// Delete soft-deletes an account by ID
func (r *AccountRepository) Delete(id string) error {
	result, err := r.db.Exec("UPDATE accounts SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return requireRow(result, "account", id)
}

// List retrieves all accounts matching the given criteria, excluding soft-deleted accounts
func (r *AccountRepository) List(criteria map[string]any) ([]*models.Account, error) {
	query := selectAccounts + " WHERE deleted_at IS NULL"
	args := []any{}

	if serverID, ok := criteria["server_id"].(string); ok && serverID != "" {
		query += " AND server_id = ?"
		args = append(args, serverID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return accounts, nil
}

const selectAccounts = `
	SELECT id, sequence, name, server_id, username, password, created_at, updated_at, deleted_at
	FROM accounts
`

func scanAccount(s scanner) (*models.Account, error) {
	var (
		id        string
		sequence  int
		name      string
		serverID  string
		username  string
		password  string
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := s.Scan(&id, &sequence, &name, &serverID, &username, &password,
		&createdAt, &updatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	account := models.NewAccount(sequence, name, serverID, username, password)
	account.SetID(id)
	account.SetCreatedAt(createdAt)
	account.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		account.SetDeletedAt(&deletedAt.Time)
	}

	return account, nil
}
