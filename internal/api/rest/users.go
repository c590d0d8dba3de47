package rest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dtroode/useradmin-console/internal/model"
)

// ListUsers fetches one page of the listing.
func (c *Client) ListUsers(ctx context.Context, q model.ListingQuery) (model.Page, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("search", q.Search)
	params.Set("status", string(q.StatusFilter))
	params.Set("sortBy", string(q.SortBy))
	params.Set("order", string(q.SortOrder))

	var page model.Page
	if err := c.do(ctx, http.MethodGet, "/api/users", params, nil, &page); err != nil {
		return model.Page{}, err
	}
	if page.Users == nil {
		page.Users = []model.User{}
	}
	return page, nil
}

type bulkRequest struct {
	UserIDs []string `json:"userIds"`
}

// BulkAction applies action to userIDs.
func (c *Client) BulkAction(ctx context.Context, action model.BulkAction, userIDs []string) (model.BulkResult, error) {
	if !action.Valid() {
		return model.BulkResult{}, model.ErrInvalidAction
	}

	var result model.BulkResult
	err := c.do(ctx, http.MethodPost, "/api/users/"+string(action), nil, bulkRequest{UserIDs: userIDs}, &result)
	if err != nil {
		return model.BulkResult{}, err
	}
	return result, nil
}
