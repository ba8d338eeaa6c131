package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures so the worker can decide between
// falling back and failing the job.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindSubmission    ErrorKind = "submission"
	KindTimeout       ErrorKind = "timeout"
	KindRemote        ErrorKind = "remote"
	KindAssembly      ErrorKind = "assembly"
	KindFatal         ErrorKind = "fatal"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrNotConfigured  = errors.New("remote generation not configured")
	ErrEmptyPayload   = errors.New("operation completed without a video payload")
	ErrNoOperationRef = errors.New("remote service returned no operation handle")
)

// PipelineError is a failure tagged with its kind and the operation that raised it.
type PipelineError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewError wraps err with a kind. An err that already carries a kind keeps it.
func NewError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return err
	}
	return &PipelineError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind carried by err, or KindFatal for untagged errors.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindFatal
}

// IsFallbackEligible reports whether a failed remote scene may be replaced by a local render.
func IsFallbackEligible(err error) bool {
	switch KindOf(err) {
	case KindConfiguration, KindSubmission, KindTimeout, KindRemote:
		return true
	}
	return false
}
