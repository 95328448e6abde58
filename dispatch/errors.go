package dispatch

import "errors"

var (
	// ErrInvalidAction is the validation cause for an unknown or missing action.
	ErrInvalidAction = errors.New("dispatch: action is invalid")

	// ErrNilStore is returned by New without a store.
	ErrNilStore = errors.New("dispatch: store is nil")
)
