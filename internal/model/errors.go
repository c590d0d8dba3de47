package model

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrEmptySelection       = errors.New("no users selected")
	ErrActionInProgress     = errors.New("another action is in progress")
	ErrConfirmationDeclined = errors.New("confirmation declined")
	ErrInvalidPage          = errors.New("page out of range")
	ErrInvalidSortColumn    = errors.New("unknown sort column")
	ErrInvalidStatusFilter  = errors.New("unknown status filter")
	ErrInvalidAction        = errors.New("unknown bulk action")
)
