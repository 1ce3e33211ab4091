package models

// ErrorResponse is the body returned with any non-2xx status.
// Successful analyses encode the analysis result itself.
type ErrorResponse struct {
	// Error is a human-readable description of what went wrong
	Error string `json:"error"`

	// Kind is a stable machine-readable error class
	Kind string `json:"kind"`
}
