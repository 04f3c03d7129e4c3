package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indica que la entidad o el registro solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un conflicto (ej: id duplicado al crear).
	ErrConflict = errors.New("conflict")

	// ErrNotImplemented indica que la operación no está implementada por este driver.
	ErrNotImplemented = errors.New("not implemented")

	// ErrNoDatabase indica que no hay store configurado.
	ErrNoDatabase = errors.New("no database configured")
)

// StoreError envuelve una falla opaca del store. Retryable sólo es true si
// el adapter lo marca; el core nunca reintenta por su cuenta.
type StoreError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// WrapStore envuelve err como StoreError salvo que ya sea un error de dominio
// (not found / conflict), que se propaga tal cual.
func WrapStore(op string, err error, retryable bool) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Retryable: retryable, Err: err}
}

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsRetryable reporta si err es un StoreError marcado como reintentable.
func IsRetryable(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Retryable
}
