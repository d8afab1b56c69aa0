package models

import (
	"fmt"
	"strings"
	"time"

	"davsync/internal/shared"
)

// Server is a CalDAV/CardDAV server configuration shared by one or more accounts.
type Server struct {
	id            string
	sequence      int
	name          string
	url           string
	principalPath string
	description   string
	serverType    string
	verifySSL     bool
	createdAt     time.Time
	updatedAt     time.Time
	deletedAt     *time.Time
}

// NewServer creates a Server with the given sequence, display name and base URL.
// SSL verification defaults to enabled.
func NewServer(sequence int, name, url string) *Server {
	now := time.Now()
	return &Server{
		sequence:  sequence,
		name:      name,
		url:       strings.TrimRight(url, "/"),
		verifySSL: true,
		createdAt: now,
		updatedAt: now,
	}
}

func (s *Server) ID() string            { return s.id }
func (s *Server) Sequence() int         { return s.sequence }
func (s *Server) Name() string          { return s.name }
func (s *Server) URL() string           { return s.url }
func (s *Server) PrincipalPath() string { return s.principalPath }
func (s *Server) Description() string   { return s.description }
func (s *Server) ServerType() string    { return s.serverType }
func (s *Server) VerifySSL() bool       { return s.verifySSL }
func (s *Server) CreatedAt() time.Time  { return s.createdAt }
func (s *Server) UpdatedAt() time.Time  { return s.updatedAt }
func (s *Server) DeletedAt() *time.Time { return s.deletedAt }

func (s *Server) SetID(id string)              { s.id = id }
func (s *Server) SetName(name string)          { s.name = name }
func (s *Server) SetURL(url string)            { s.url = strings.TrimRight(url, "/") }
func (s *Server) SetPrincipalPath(path string) { s.principalPath = path }
func (s *Server) SetDescription(desc string)   { s.description = desc }
func (s *Server) SetServerType(t string)       { s.serverType = t }
func (s *Server) SetVerifySSL(v bool)          { s.verifySSL = v }
func (s *Server) SetCreatedAt(t time.Time)     { s.createdAt = t }
func (s *Server) SetUpdatedAt(t time.Time)     { s.updatedAt = t }
func (s *Server) SetDeletedAt(t *time.Time)    { s.deletedAt = t }

// Validate checks that the server has a name and a usable base URL.
func (s *Server) Validate() error {
	if strings.TrimSpace(s.name) == "" {
		return fmt.Errorf("%w: server name is required", shared.ErrInvalidInput)
	}
	if !strings.HasPrefix(s.url, "http://") && !strings.HasPrefix(s.url, "https://") {
		return fmt.Errorf("%w: server url must start with http:// or https://", shared.ErrInvalidInput)
	}
	return nil
}

// ToMap converts the server to a map for JSON serialization.
func (s *Server) ToMap() map[string]any {
	return map[string]any{
		"id":             s.id,
		"name":           s.name,
		"url":            s.url,
		"principal_path": s.principalPath,
		"description":    s.description,
		"server_type":    s.serverType,
		"verify_ssl":     s.verifySSL,
		"created_at":     s.createdAt.Format(time.RFC3339),
		"updated_at":     s.updatedAt.Format(time.RFC3339),
	}
}
