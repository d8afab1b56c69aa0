// Package models defines domain entities and persistence interfaces for the davsync migration service.
//
// All persistent entities implement the [Model] interface providing ID generation, timestamps,
// validation, and soft delete support:
//   - [Server] : CalDAV/CardDAV server configuration (base URL, principal path, SSL policy)
//   - [Account] : credentials for one user on a configured server
//   - [SyncJob] : a migration between two accounts with flags, status, progress and statistics
//   - [SyncLog] : one timestamped log line attached to a job
//
// The Repository[T] interface defines standard CRUD operations for database access.
//
// Entity state is unexported and accessed through getter/setter methods so that
// repositories control all mutation paths and validation happens before writes.
package models
