package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// SummaryTTL is how long a workspace summary is served from the cache.
const SummaryTTL = time.Minute

// Login exchanges Telegram WebApp init data for a session and stores its
// token. Logins are never coalesced.
func (c *Client) Login(ctx context.Context, initData string) (*Session, error) {
	var s Session
	err := c.Do(ctx, Request{
		Method:    http.MethodPost,
		Path:      "/auth/telegram",
		Body:      map[string]string{"init_data": initData},
		Exclusive: true,
	}, &s)
	if err != nil {
		return nil, err
	}
	if err := c.SetToken(s.AccessToken); err != nil {
		return nil, err
	}
	return &s, nil
}

// Logout forgets the token and every cached read.
func (c *Client) Logout() error {
	if c.cache != nil {
		c.cache.ClearAll()
	}
	return c.ClearToken()
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/users/me"}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Workspaces(ctx context.Context) ([]Workspace, error) {
	var ws []Workspace
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/workspaces"}, &ws)
	return ws, err
}

func (c *Client) Transactions(ctx context.Context, workspaceID int64, f TransactionFilter) ([]Transaction, error) {
	var txs []Transaction
	err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   workspacePath(workspaceID, "transactions"),
		Query:  f.query(),
	}, &txs)
	return txs, err
}

func (c *Client) CreateTransaction(ctx context.Context, workspaceID int64, in TransactionInput) (*Transaction, error) {
	var tx Transaction
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   workspacePath(workspaceID, "transactions"),
		Body:   in,
	}, &tx)
	if err != nil {
		return nil, err
	}
	c.invalidate(workspaceID)
	return &tx, nil
}

func (c *Client) UpdateTransaction(ctx context.Context, workspaceID, txID int64, in TransactionInput) (*Transaction, error) {
	var tx Transaction
	err := c.Do(ctx, Request{
		Method: http.MethodPut,
		Path:   workspacePath(workspaceID, fmt.Sprintf("transactions/%d", txID)),
		Body:   in,
	}, &tx)
	if err != nil {
		return nil, err
	}
	c.invalidate(workspaceID)
	return &tx, nil
}

func (c *Client) DeleteTransaction(ctx context.Context, workspaceID, txID int64) error {
	var ok Success
	err := c.Do(ctx, Request{
		Method: http.MethodDelete,
		Path:   workspacePath(workspaceID, fmt.Sprintf("transactions/%d", txID)),
	}, &ok)
	if err != nil {
		return err
	}
	c.invalidate(workspaceID)
	return nil
}

// Categories lists a workspace's categories, or the public default set when
// unauthenticated.
func (c *Client) Categories(ctx context.Context, workspaceID int64) ([]Category, error) {
	path := "/public/categories"
	if c.Authenticated() {
		path = workspacePath(workspaceID, "categories")
	}
	var cats []Category
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: path}, &cats)
	return cats, err
}

func (c *Client) Budgets(ctx context.Context, workspaceID int64) ([]Budget, error) {
	var bs []Budget
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: workspacePath(workspaceID, "budgets")}, &bs)
	return bs, err
}

func (c *Client) Goals(ctx context.Context, workspaceID int64) ([]Goal, error) {
	var gs []Goal
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: workspacePath(workspaceID, "goals")}, &gs)
	return gs, err
}

func (c *Client) Debts(ctx context.Context, workspaceID int64) ([]Debt, error) {
	var ds []Debt
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: workspacePath(workspaceID, "debts")}, &ds)
	return ds, err
}

// Summary returns the analytics summary for period ("week", "month",
// "year"). With a cache configured the result is reused for SummaryTTL or
// until a transaction in the workspace changes.
func (c *Client) Summary(ctx context.Context, workspaceID int64, period string) (*Summary, error) {
	load := func(ctx context.Context) (any, error) {
		var s Summary
		err := c.Do(ctx, Request{
			Method: http.MethodGet,
			Path:   workspacePath(workspaceID, "analytics/summary"),
			Query:  url.Values{"period": {period}},
		}, &s)
		if err != nil {
			return nil, err
		}
		return &s, nil
	}

	if c.cache == nil {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return v.(*Summary), nil
	}

	key := fmt.Sprintf("%ssummary:%s", cacheScope(workspaceID), period)
	v, err := c.cache.Fetch(ctx, key, SummaryTTL, load)
	if err != nil {
		return nil, err
	}
	return v.(*Summary), nil
}

// Leaderboard returns the gamification leaderboard; the public variant is
// used when unauthenticated.
func (c *Client) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	path := "/public/leaderboard"
	if c.Authenticated() {
		path = "/gamification/leaderboard"
	}
	var entries []LeaderboardEntry
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: path}, &entries)
	return entries, err
}

func (c *Client) invalidate(workspaceID int64) {
	if c.cache != nil {
		c.cache.Clear(cacheScope(workspaceID))
	}
}

func cacheScope(workspaceID int64) string {
	return fmt.Sprintf("ws:%d:", workspaceID)
}

func workspacePath(workspaceID int64, rest string) string {
	return fmt.Sprintf("/workspaces/%d/%s", workspaceID, rest)
}
