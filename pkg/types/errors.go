package types

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching. The typed errors below unwrap to these.
var (
	ErrEmptyTree            = errors.New("empty merkle tree")
	ErrUnsupportedAlgorithm = errors.New("unsupported digest algorithm")
	ErrProofFormat          = errors.New("malformed proof")
	ErrVerificationFailed   = errors.New("verification failed")
	ErrIndexOutOfRange      = errors.New("leaf index out of range")
	ErrInvalidSize          = errors.New("invalid tree size")
)

// EmptyTreeError is returned when a tree is requested over zero segments
type EmptyTreeError struct{}

func (e *EmptyTreeError) Error() string {
	return "cannot build merkle tree from an empty segment list"
}

func (e *EmptyTreeError) Unwrap() error { return ErrEmptyTree }

// UnsupportedAlgorithmError names a digest algorithm with no registered provider
type UnsupportedAlgorithmError struct {
	Algorithm string
}

func (e *UnsupportedAlgorithmError) Error() string {
	return fmt.Sprintf("unsupported digest algorithm: %q", e.Algorithm)
}

func (e *UnsupportedAlgorithmError) Unwrap() error { return ErrUnsupportedAlgorithm }

// ProofFormatError reports a structurally invalid proof or proof document.
// It is raised before any hashing takes place.
type ProofFormatError struct {
	Field  string
	Reason string
}

func (e *ProofFormatError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed proof: %s", e.Reason)
	}
	return fmt.Sprintf("malformed proof: %s: %s", e.Field, e.Reason)
}

func (e *ProofFormatError) Unwrap() error { return ErrProofFormat }

// NewProofFormatError builds a ProofFormatError with a formatted reason
func NewProofFormatError(field string, format string, args ...interface{}) *ProofFormatError {
	return &ProofFormatError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// VerificationStep identifies which check of a file verification failed
type VerificationStep string

const (
	// StepContentHash compares the live file digest with the proof's leaf hash
	StepContentHash VerificationStep = "content-hash"
	// StepPathRoot folds the audit path and compares against the claimed root
	StepPathRoot VerificationStep = "path-root"
)

// VerificationFailedError is a well-formed proof that does not check out
type VerificationFailedError struct {
	Step   VerificationStep
	Reason string
}

func (e *VerificationFailedError) Error() string {
	return fmt.Sprintf("verification failed at %s step: %s", e.Step, e.Reason)
}

func (e *VerificationFailedError) Unwrap() error { return ErrVerificationFailed }
