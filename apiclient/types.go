package apiclient

import (
	"net/url"
	"strconv"
	"time"
)

type User struct {
	ID           int64  `json:"id"`
	TelegramID   int64  `json:"telegram_id"`
	Username     string `json:"username,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	Currency     string `json:"currency,omitempty"`
}

// Session is returned by Login.
type Session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

type Workspace struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Role     string `json:"role,omitempty"`
}

// Transaction types.
const (
	Income   = "income"
	Expense  = "expense"
	Transfer = "transfer"
)

type Transaction struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"workspace_id"`
	Type        string    `json:"type"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency,omitempty"`
	CategoryID  *int64    `json:"category_id,omitempty"`
	Description string    `json:"description,omitempty"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
}

// TransactionInput is the body of create and update calls.
type TransactionInput struct {
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	CategoryID  *int64  `json:"category_id,omitempty"`
	Description string  `json:"description,omitempty"`
	Date        string  `json:"date"`
}

// TransactionFilter narrows a transaction listing. Zero fields are omitted.
type TransactionFilter struct {
	From       string
	To         string
	Type       string
	CategoryID int64
	Limit      int
	Offset     int
}

func (f TransactionFilter) query() url.Values {
	q := url.Values{}
	if f.From != "" {
		q.Set("date_from", f.From)
	}
	if f.To != "" {
		q.Set("date_to", f.To)
	}
	if f.Type != "" {
		q.Set("type", f.Type)
	}
	if f.CategoryID != 0 {
		q.Set("category_id", strconv.FormatInt(f.CategoryID, 10))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Icon string `json:"icon,omitempty"`
}

type Budget struct {
	ID         int64   `json:"id"`
	CategoryID *int64  `json:"category_id,omitempty"`
	Amount     float64 `json:"amount"`
	Spent      float64 `json:"spent"`
	Period     string  `json:"period"`
}

type Goal struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	TargetAmount  float64 `json:"target_amount"`
	CurrentAmount float64 `json:"current_amount"`
	Deadline      string  `json:"deadline,omitempty"`
}

// Debt directions.
const (
	Lent     = "lent"
	Borrowed = "borrowed"
)

type Debt struct {
	ID           int64   `json:"id"`
	Counterparty string  `json:"counterparty"`
	Amount       float64 `json:"amount"`
	Direction    string  `json:"direction"`
	DueDate      string  `json:"due_date,omitempty"`
	Settled      bool    `json:"settled"`
}

type CategoryTotal struct {
	CategoryID int64   `json:"category_id"`
	Name       string  `json:"name"`
	Total      float64 `json:"total"`
}

// Summary is the analytics overview of a workspace for a period.
type Summary struct {
	Period     string          `json:"period"`
	Income     float64         `json:"income"`
	Expense    float64         `json:"expense"`
	Balance    float64         `json:"balance"`
	ByCategory []CategoryTotal `json:"by_category,omitempty"`
}

type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	XP       int    `json:"xp"`
	Level    int    `json:"level"`
}

// Success is the body of calls that only acknowledge, including 204s.
type Success struct {
	Success bool `json:"success"`
}
