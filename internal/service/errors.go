package service

import (
	"errors"
	"fmt"
)

// Kind is the stable failure category reported to callers.
type Kind string

const (
	KindUnauthenticated Kind = "UNAUTHENTICATED"
	KindValidation      Kind = "VALIDATION_ERROR"
	KindNotFound        Kind = "NOT_FOUND"
	KindConflict        Kind = "CONFLICT"
	KindForbidden       Kind = "FORBIDDEN"
	KindStorage         Kind = "STORAGE_FAILURE"
)

type DomainError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError of the same kind, so the sentinels below work
// with errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Kind == e.Kind
}

var (
	ErrUnauthenticated = &DomainError{Kind: KindUnauthenticated}
	ErrValidation      = &DomainError{Kind: KindValidation}
	ErrNotFound        = &DomainError{Kind: KindNotFound}
	ErrConflict        = &DomainError{Kind: KindConflict}
	ErrForbidden       = &DomainError{Kind: KindForbidden}
	ErrStorage         = &DomainError{Kind: KindStorage}
)

func domainError(kind Kind, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

func validationError(message string) *DomainError {
	return domainError(KindValidation, message)
}

func notFound(message string) *DomainError {
	return domainError(KindNotFound, message)
}

func storageFailure(op string, err error) *DomainError {
	return &DomainError{Kind: KindStorage, Message: "storage failure", Err: fmt.Errorf("%s: %w", op, err)}
}

// AsDomainError returns err as a DomainError, treating anything unknown as
// a storage failure.
func AsDomainError(err error) *DomainError {
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	return storageFailure("unexpected", err)
}
