package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"davsync/internal/models"
	"davsync/internal/shared"
)

// ServerRepository implements models.Repository[*models.Server].
type ServerRepository struct {
	db *sql.DB
}

// NewServerRepository creates a new ServerRepository with the given database connection
func NewServerRepository(db *sql.DB) *ServerRepository {
	return &ServerRepository{db: db}
}

// Create inserts a new server configuration with generated ID and sequence
func (r *ServerRepository) Create(server *models.Server) error {
	if err := server.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "servers")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	server.SetID(shared.GenerateID())

	query := `
		INSERT INTO servers (
			id, sequence, name, url, principal_path, description,
			server_type, verify_ssl, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		server.ID(),
		sequence,
		server.Name(),
		server.URL(),
		nullable(server.PrincipalPath()),
		nullable(server.Description()),
		nullable(server.ServerType()),
		server.VerifySSL(),
		server.CreatedAt(),
		server.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert server: %w", err)
	}

	return nil
}

// Get retrieves a server by ID, excluding soft-deleted servers
func (r *ServerRepository) Get(id string) (*models.Server, error) {
	query := selectServers + " WHERE id = ? AND deleted_at IS NULL"
	server, err := scanServer(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: server %s", shared.ErrNotFound, id)
	}
	return server, err
}

// GetByName retrieves a server by its unique display name
func (r *ServerRepository) GetByName(name string) (*models.Server, error) {
	query := selectServers + " WHERE name = ? AND deleted_at IS NULL"
	server, err := scanServer(r.db.QueryRow(query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: server %q", shared.ErrNotFound, name)
	}
	return server, err
}

// Update modifies an existing server configuration
func (r *ServerRepository) Update(server *models.Server) error {
	if err := server.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	server.SetUpdatedAt(now)

	query := `
		UPDATE servers
		SET name = ?, url = ?, principal_path = ?, description = ?,
			server_type = ?, verify_ssl = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		server.Name(),
		server.URL(),
		nullable(server.PrincipalPath()),
		nullable(server.Description()),
		nullable(server.ServerType()),
		server.VerifySSL(),
		now,
		server.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update server: %w", err)
	}

	return requireRow(result, "server", server.ID())
}

// Delete soft-deletes a server by ID
func (r *ServerRepository) Delete(id string) error {
	result, err := r.db.Exec("UPDATE servers SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete server: %w", err)
	}
	return requireRow(result, "server", id)
}

// List retrieves all servers matching the given criteria, excluding soft-deleted servers
func (r *ServerRepository) List(criteria map[string]any) ([]*models.Server, error) {
	query := selectServers + " WHERE deleted_at IS NULL"
	args := []any{}

	if serverType, ok := criteria["server_type"].(string); ok && serverType != "" {
		query += " AND server_type = ?"
		args = append(args, serverType)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query servers: %w", err)
	}
	defer rows.Close()

	var servers []*models.Server
	for rows.Next() {
		server, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, server)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return servers, nil
}

const selectServers = `
	SELECT
		id, sequence, name, url, principal_path, description,
		server_type, verify_ssl, created_at, updated_at, deleted_at
	FROM servers
`

func scanServer(s scanner) (*models.Server, error) {
	var (
		id            string
		sequence      int
		name          string
		url           string
		principalPath sql.NullString
		description   sql.NullString
		serverType    sql.NullString
		verifySSL     bool
		createdAt     time.Time
		updatedAt     time.Time
		deletedAt     sql.NullTime
	)

	err := s.Scan(&id, &sequence, &name, &url, &principalPath, &description,
		&serverType, &verifySSL, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan server: %w", err)
	}

	server := models.NewServer(sequence, name, url)
	server.SetID(id)
	server.SetPrincipalPath(principalPath.String)
	server.SetDescription(description.String)
	server.SetServerType(serverType.String)
	server.SetVerifySSL(verifySSL)
	server.SetCreatedAt(createdAt)
	server.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		server.SetDeletedAt(&deletedAt.Time)
	}

	return server, nil
}

// nullable converts an empty string to NULL for optional text columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// requireRow converts a zero-row update into a not-found error.
func requireRow(result sql.Result, entity, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s %s", shared.ErrNotFound, entity, id)
	}
	return nil
}
