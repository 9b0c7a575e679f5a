// Package services implements the ledger operations the HTTP layer and
// CLI call into. Every operation takes the resolved user id explicitly;
// there is no ambient session state down here.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finledger/internal/amqp"
	"finledger/internal/core"
	"finledger/internal/storage"

	"github.com/shopspring/decimal"
)

// LedgerService orchestrates transactions, accounts, categories and the
// dashboard aggregation over the store, publishing a sync message after
// each recorded transaction.
type LedgerService struct {
	store      *storage.Store
	amqpClient *amqp.Client // nil disables sync publishing
}

func NewLedgerService(store *storage.Store, amqpClient *amqp.Client) *LedgerService {
	return &LedgerService{store: store, amqpClient: amqpClient}
}

// RecordTransactionInput carries the raw fields of an incoming
// transaction. Amount and Date arrive as strings and are parsed here.
type RecordTransactionInput struct {
	Amount      string
	Category    string
	Description string
	AccountName string
	Date        string
	Type        string
}

// ApplyTransactionToAccount materializes the account on first reference
// (owned by ownerID, balance 0) and applies the amount to its balance:
// income adds, expense subtracts, anything else changes nothing.
func (s *LedgerService) ApplyTransactionToAccount(ctx context.Context, accountName, ownerID string, amount decimal.Decimal, txType core.TransactionType) error {
	account, err := s.store.GetAccount(ctx, accountName)
	if errors.Is(err, core.ErrNotFound) {
		account = core.Account{Name: accountName, UserID: ownerID, Balance: decimal.Zero}
		if createErr := s.store.CreateAccount(ctx, account); createErr != nil {
			if !errors.Is(createErr, core.ErrConflict) {
				return createErr
			}
			// Lost a creation race; reread and continue with the winner.
			if account, err = s.store.GetAccount(ctx, accountName); err != nil {
				return err
			}
		}
	} else if err != nil {
		return err
	}

	switch txType {
	case core.TypeIncome:
		account.Balance = account.Balance.Add(amount)
	case core.TypeExpense:
		account.Balance = account.Balance.Sub(amount)
	default:
		// Unknown type: store the transaction, leave the balance alone.
		return nil
	}

	return s.store.UpdateAccountBalance(ctx, accountName, account.Balance)
}

// RecordTransaction validates the input, applies it to the account and
// persists the transaction. The new transaction's id is deliberately
// not returned; callers only learn success or failure.
func (s *LedgerService) RecordTransaction(ctx context.Context, userID string, in RecordTransactionInput) error {
	if userID == "" {
		return core.ErrUnauthorized
	}

	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return err
	}
	date, err := core.ParseDate(in.Date)
	if err != nil {
		return err
	}

	if err := s.ApplyTransactionToAccount(ctx, in.AccountName, userID, amount, core.TransactionType(in.Type)); err != nil {
		return fmt.Errorf("apply transaction to account %q: %w", in.AccountName, err)
	}

	t := core.Transaction{
		ID:          core.NewID(),
		UserID:      userID,
		Amount:      amount,
		Category:    in.Category,
		Description: in.Description,
		Type:        core.TransactionType(in.Type),
		AccountName: in.AccountName,
		Date:        date,
	}
	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	s.publishSync(ctx, t.ID)
	return nil
}

// publishSync is best effort: the transaction is already durable, so a
// publish failure is logged and swallowed.
func (s *LedgerService) publishSync(ctx context.Context, id string) {
	if s.amqpClient == nil {
		return
	}
	if err := s.amqpClient.PublishTransactionSync(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message", "id", id, "error", err)
	}
}

// UpdateTransactionInput carries the optional fields of an update.
// Amount and Date are parsed when present.
type UpdateTransactionInput struct {
	Amount      *string
	Category    *string
	Description *string
	Date        *string
}

// UpdateTransaction overwrites the present fields of an existing
// transaction. The owning account's balance keeps the value applied at
// creation time; edits never propagate to it.
func (s *LedgerService) UpdateTransaction(ctx context.Context, id string, in UpdateTransactionInput) error {
	var upd storage.TransactionUpdate
	if in.Amount != nil {
		amount, err := core.ParseAmount(*in.Amount)
		if err != nil {
			return err
		}
		upd.Amount = &amount
	}
	if in.Date != nil {
		date, err := core.ParseDate(*in.Date)
		if err != nil {
			return err
		}
		upd.Date = &date
	}
	upd.Category = in.Category
	upd.Description = in.Description

	if err := s.store.UpdateTransaction(ctx, id, upd); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("%w: transaction %q", core.ErrNotFound, id)
		}
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

// DashboardStatistics returns one {name, percentage} row per category
// the user owns, in store order. The percentage denominator is the sum
// over ALL of the user's transactions regardless of type, and the
// division truncates.
func (s *LedgerService) DashboardStatistics(ctx context.Context, userID string) ([]core.CategoryStat, error) {
	if userID == "" {
		return nil, core.ErrUnauthorized
	}

	transactions, err := s.store.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	categories, err := s.store.ListCategoriesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	total := decimal.Zero
	byCategory := make(map[string]decimal.Decimal, len(categories))
	for _, t := range transactions {
		total = total.Add(t.Amount)
		byCategory[t.Category] = byCategory[t.Category].Add(t.Amount)
	}

	stats := make([]core.CategoryStat, 0, len(categories))
	for _, c := range categories {
		stats = append(stats, core.CategoryStat{
			Name:       c.Name,
			Percentage: core.Percentage(byCategory[c.Name], total),
		})
	}
	return stats, nil
}

// AddCategory creates a category; the (user, name) pair must be unique.
func (s *LedgerService) AddCategory(ctx context.Context, userID, name string) error {
	if userID == "" {
		return core.ErrUnauthorized
	}
	if name == "" {
		return fmt.Errorf("%w: category name is required", core.ErrInvalidInput)
	}
	return s.store.CreateCategory(ctx, core.Category{ID: core.NewID(), Name: name, UserID: userID})
}

// AddAccount creates an account explicitly. The pre-check is per user
// even though the store's primary key is global.
func (s *LedgerService) AddAccount(ctx context.Context, userID, name, balance string) error {
	if userID == "" {
		return core.ErrUnauthorized
	}
	if name == "" {
		return fmt.Errorf("%w: account name is required", core.ErrInvalidInput)
	}
	b, err := core.ParseAmount(balance)
	if err != nil {
		return err
	}
	exists, err := s.store.AccountExistsForUser(ctx, userID, name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: account %q already exists", core.ErrConflict, name)
	}
	return s.store.CreateAccount(ctx, core.Account{Name: name, UserID: userID, Balance: b})
}

func (s *LedgerService) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	if userID == "" {
		return nil, core.ErrUnauthorized
	}
	return s.store.ListTransactionsByUser(ctx, userID)
}

func (s *LedgerService) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	if userID == "" {
		return nil, core.ErrUnauthorized
	}
	return s.store.ListCategoriesByUser(ctx, userID)
}

func (s *LedgerService) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	if userID == "" {
		return nil, core.ErrUnauthorized
	}
	return s.store.ListAccountsByUser(ctx, userID)
}
