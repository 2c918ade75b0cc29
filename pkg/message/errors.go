package message

import "errors"

var (
	// ErrEmptyTemplate indicates the template content is empty.
	ErrEmptyTemplate = errors.New("message: template is empty")

	// ErrUnknownPlaceholder indicates the template references a placeholder
	// outside the supported set.
	ErrUnknownPlaceholder = errors.New("message: unknown placeholder")

	// ErrNoRecipient indicates the recipient email address is missing.
	ErrNoRecipient = errors.New("message: recipient email is required")

	// ErrEncodeFailed indicates the MIME envelope could not be assembled.
	ErrEncodeFailed = errors.New("message: failed to encode envelope")
)
