package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Endpoint errors. ErrConnection is fatal to a run; ErrRemote covers a
	// single rejected collection or item and never aborts a run.
	ErrConnection = fmt.Errorf("connection failed")
	ErrRemote     = fmt.Errorf("remote server rejected request")

	// Run control errors
	ErrCancelled = fmt.Errorf("cancelled by user")

	// Worker errors
	ErrWorkerBusy    = fmt.Errorf("a job is already queued or running")
	ErrJobNotRunning = fmt.Errorf("job is not currently executing")

	// Persistence errors
	ErrNotFound  = fmt.Errorf("record not found")
	ErrDuplicate = fmt.Errorf("record already exists")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
