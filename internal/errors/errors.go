package appErrors

import (
	"errors"
	"fmt"
)

// ErrBroadcastNotFound is a sentinel error
type ErrBroadcastNotFound struct {
	BroadcastID int
}

func (e *ErrBroadcastNotFound) Error() string {
	return fmt.Sprintf("broadcast with ID %d not found", e.BroadcastID)
}

// Helper constructor
func NewBroadcastNotFound(id int) error {
	return &ErrBroadcastNotFound{BroadcastID: id}
}

// ErrAccountNotFound is a sentinel error
type ErrAccountNotFound struct {
	AccountID int
}

func (e *ErrAccountNotFound) Error() string {
	return fmt.Sprintf("account with ID %d not found", e.AccountID)
}

func NewAccountNotFound(id int) error {
	return &ErrAccountNotFound{AccountID: id}
}

// ErrSequenceNotFound is a sentinel error
type ErrSequenceNotFound struct {
	SequenceID int
}

func (e *ErrSequenceNotFound) Error() string {
	return fmt.Sprintf("sequence with ID %d not found", e.SequenceID)
}

func NewSequenceNotFound(id int) error {
	return &ErrSequenceNotFound{SequenceID: id}
}

// SendErrorClass classifies a failed send attempt and decides what the
// dispatcher does next.
type SendErrorClass string

const (
	// ClassCapacity: no eligible account right now. Not a failure; the
	// message is deferred without charging an attempt.
	ClassCapacity SendErrorClass = "capacity_unavailable"
	// ClassConnection: the chosen account was not reachable at send time.
	// Retried shortly, ideally on a different account.
	ClassConnection SendErrorClass = "connection_error"
	// ClassTransient: timeout or rate limit from the provider. Retried
	// with exponential backoff up to the tenant's max attempts.
	ClassTransient SendErrorClass = "transient_provider_error"
	// ClassPermanent: invalid or unreachable recipient. Fails immediately,
	// no retry.
	ClassPermanent SendErrorClass = "permanent_recipient_error"
	// ClassBanned: the provider disabled the account itself. The account
	// leaves the pool and the message is requeued for another one.
	ClassBanned SendErrorClass = "account_banned"
)

// SendError wraps an adapter failure with its class.
type SendError struct {
	Class SendErrorClass
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

func NewSendError(class SendErrorClass, err error) *SendError {
	return &SendError{Class: class, Err: err}
}

// ClassOf extracts the class from an adapter error. Unclassified errors
// are treated as transient so they get the safe retry path.
func ClassOf(err error) SendErrorClass {
	var se *SendError
	if errors.As(err, &se) {
		return se.Class
	}
	return ClassTransient
}
