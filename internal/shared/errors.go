package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Session errors
	ErrAlreadyRunning   = fmt.Errorf("download already in progress")
	ErrNotRunning       = fmt.Errorf("no download in progress")
	ErrWorkerFailure    = fmt.Errorf("downloader failed")
	ErrRetryNotAllowed  = fmt.Errorf("only failed tracks can be retried")
	ErrRetryUnsupported = fmt.Errorf("downloader does not support retries")
	ErrTrackNotFound    = fmt.Errorf("track not found")

	// Persistence errors
	ErrSessionNotFound = fmt.Errorf("session not found")

	// Input validation errors
	ErrUnsupportedInput = fmt.Errorf("unsupported input")
	ErrInvalidInput     = fmt.Errorf("invalid input")
	ErrMissingArgument  = fmt.Errorf("missing required argument")
	ErrInvalidArgument  = fmt.Errorf("invalid argument")
)
