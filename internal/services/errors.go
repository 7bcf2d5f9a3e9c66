package services

import "errors"

var (
	// ErrInvalidAmount rejects top-ups below the minimum before any gateway
	// call is made.
	ErrInvalidAmount = errors.New("amount below minimum")
	// ErrUnauthorized means the caller identity could not be resolved.
	ErrUnauthorized = errors.New("unknown or missing user")
	// ErrMalformedNotification marks a webhook body we can never process;
	// it is acknowledged so the gateway stops redelivering it.
	ErrMalformedNotification = errors.New("malformed notification")
	// ErrUnknownTransaction marks a notification for a payment this system
	// never created. Reported, not retried.
	ErrUnknownTransaction = errors.New("unknown transaction")
)
