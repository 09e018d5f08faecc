package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound            = errors.New("not found")
	ErrAffinityUnsupported = errors.New("server-only claiming requested but the table has no affinity column")
	ErrSchemaMismatch      = errors.New("table is missing a mandatory column")
	ErrInvalidRecipient    = errors.New("recipient must not be empty")
	ErrInvalidSender       = errors.New("sender must not be empty")
	ErrInvalidSubject      = errors.New("subject must be at most 100 characters")
	ErrInvalidBody         = errors.New("body must not be empty")
	ErrInvalidServer       = errors.New("assigned server must be non-negative")
	ErrInvalidQuantity     = errors.New("quantity must be positive")
	ErrBatchEmpty          = errors.New("batch must contain at least one mail")
	ErrBatchTooLarge       = errors.New("batch must not exceed 1000 mails")
)
