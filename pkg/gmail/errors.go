package gmail

import "errors"

var (
	// ErrMissingCredentials is returned when no OAuth client secret has been
	// uploaded for the account owner.
	ErrMissingCredentials = errors.New("gmail: credentials not uploaded")

	// ErrInvalidCredentials is returned when the uploaded client secret blob
	// cannot be parsed as a Google OAuth client configuration.
	ErrInvalidCredentials = errors.New("gmail: invalid credentials file")

	// ErrNoToken is returned when no token has been persisted for the
	// account owner.
	ErrNoToken = errors.New("gmail: no token stored")

	// ErrRefreshFailed is returned when exchanging the refresh token for a
	// fresh access token fails.
	ErrRefreshFailed = errors.New("gmail: token refresh failed")

	// ErrUnrecoverable is returned when the access token is expired and no
	// refresh token is available; the account owner must re-authorize.
	ErrUnrecoverable = errors.New("gmail: token expired with no refresh token")

	// ErrMissingAuthorizationCode is returned when a pasted redirect URL has
	// no code query parameter.
	ErrMissingAuthorizationCode = errors.New("gmail: authorization code missing from redirect URL")

	// ErrMalformedInput is returned when the pasted authorization input
	// cannot be parsed.
	ErrMalformedInput = errors.New("gmail: malformed authorization input")

	// ErrExchangeFailed is returned when the code-for-token exchange fails.
	ErrExchangeFailed = errors.New("gmail: authorization code exchange failed")

	// ErrNoResume is returned when no resume has been uploaded for the
	// account owner.
	ErrNoResume = errors.New("gmail: resume not uploaded")

	// ErrSendFailed is returned when the Gmail send API rejects a message.
	ErrSendFailed = errors.New("gmail: send failed")
)
