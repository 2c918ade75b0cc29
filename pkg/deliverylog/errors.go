package deliverylog

import "errors"

var (
	ErrInvalidStatus = errors.New("deliverylog: invalid status")
	ErrNoFilter      = errors.New("deliverylog: purge requires at least one filter")
	ErrNotFound      = errors.New("deliverylog: record not found")
	ErrQueryFailed   = errors.New("deliverylog: query failed")
	ErrAppendFailed  = errors.New("deliverylog: failed to append record")
)
