package core

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

type (
	// TransactionType distinguishes income from expense. Unknown values are
	// stored verbatim and leave the account balance untouched.
	TransactionType string

	User struct {
		ID        string
		Email     string
		Password  string // bcrypt hash
		FirstName string
		LastName  string
	}

	// Account is keyed by name across the whole system, not per user.
	Account struct {
		Name    string
		UserID  string
		Balance decimal.Decimal
	}

	Category struct {
		ID     string
		Name   string
		UserID string
	}

	Transaction struct {
		ID          string
		UserID      string
		Amount      decimal.Decimal
		Category    string // free-text, not a Category.ID reference
		Description string
		Type        TransactionType
		AccountName string
		Date        time.Time // date portion only, UTC
	}

	// CategoryStat is one row of the dashboard aggregation.
	CategoryStat struct {
		Name       string `json:"name"`
		Percentage int    `json:"percentage"`
	}
)

// NewID returns a fresh opaque identifier (32 hex characters).
func NewID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
