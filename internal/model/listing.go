package model

import (
	"context"
	"time"
)

// SortColumn names a sortable listing column.
type SortColumn string

const (
	SortByName             SortColumn = "name"
	SortByEmail            SortColumn = "email"
	SortByStatus           SortColumn = "status"
	SortByLastLoginTime    SortColumn = "last_login_time"
	SortByCreatedAt        SortColumn = "created_at"
	SortByLastActivityTime SortColumn = "last_activity_time"
)

// SortColumns lists every column the backend accepts for sortBy.
var SortColumns = []SortColumn{
	SortByName,
	SortByEmail,
	SortByStatus,
	SortByLastLoginTime,
	SortByCreatedAt,
	SortByLastActivityTime,
}

// IsTime reports whether the column holds timestamps.
func (c SortColumn) IsTime() bool {
	switch c {
	case SortByLastLoginTime, SortByCreatedAt, SortByLastActivityTime:
		return true
	}
	return false
}

// Valid reports whether the column is known.
func (c SortColumn) Valid() bool {
	for _, col := range SortColumns {
		if col == c {
			return true
		}
	}
	return false
}

// DefaultOrder is the order adopted when a column becomes the sort key.
func (c SortColumn) DefaultOrder() SortOrder {
	if c.IsTime() {
		return SortDesc
	}
	return SortAsc
}

// SortOrder is the listing direction.
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// Flip returns the opposite direction.
func (o SortOrder) Flip() SortOrder {
	if o == SortAsc {
		return SortDesc
	}
	return SortAsc
}

// StatusFilter restricts the listing by status; empty means all.
type StatusFilter string

const (
	StatusAll     StatusFilter = ""
	StatusActive  StatusFilter = StatusFilter(UserStatusActive)
	StatusBlocked StatusFilter = StatusFilter(UserStatusBlocked)
)

// Valid reports whether the filter is one of the known values.
func (f StatusFilter) Valid() bool {
	return f == StatusAll || f == StatusActive || f == StatusBlocked
}

// ListingQuery drives listing fetches.
type ListingQuery struct {
	Search       string
	StatusFilter StatusFilter
	SortBy       SortColumn
	SortOrder    SortOrder
	Page         int
}

// DefaultListingQuery is the query a fresh console starts with.
func DefaultListingQuery() ListingQuery {
	return ListingQuery{
		SortBy:    SortByName,
		SortOrder: SortAsc,
		Page:      1,
	}
}

// Page is one page of the listing.
type Page struct {
	Users      []User `json:"users"`
	TotalPages int    `json:"totalPages"`
}

// CacheEntry is the persisted last successful listing.
type CacheEntry struct {
	Data      Page  `json:"data"`
	Timestamp int64 `json:"timestamp"`
}

// SavedAt converts the millisecond timestamp.
func (e CacheEntry) SavedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// BulkAction is an action applied to a set of users.
type BulkAction string

const (
	BulkBlock   BulkAction = "block"
	BulkUnblock BulkAction = "unblock"
	BulkDelete  BulkAction = "delete"
)

// Valid reports whether the action is supported.
func (a BulkAction) Valid() bool {
	return a == BulkBlock || a == BulkUnblock || a == BulkDelete
}

// BulkResult is the backend reply to a bulk action.
type BulkResult struct {
	Message     string `json:"message"`
	SelfDeleted bool   `json:"selfDeleted,omitempty"`
	SelfBlocked bool   `json:"selfBlocked,omitempty"`
}

// UserAPI is the user-management part of the backend.
type UserAPI interface {
	ListUsers(ctx context.Context, q ListingQuery) (Page, error)
	BulkAction(ctx context.Context, action BulkAction, userIDs []string) (BulkResult, error)
}

// NetworkStatus reports connectivity.
type NetworkStatus interface {
	Online() bool
}
