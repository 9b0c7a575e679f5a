// Package storage persists the ledger in SQLite. Queries are written by
// hand against database/sql; uniqueness violations surface as
// core.ErrConflict and missing rows as core.ErrNotFound so callers never
// have to know about driver error shapes.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Sync states for the sheet mirror worker.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
)

type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the SQLite database at dbPath and
// applies migrations. Use ":memory:" for an ephemeral database.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dbPath != ":memory:" && dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite serializes writers anyway; a single connection also keeps
	// in-memory databases coherent across the pool.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping verifies the database connection is still usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, u core.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password, first_name, last_name) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Password, u.FirstName, u.LastName)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: user with email %q already exists", core.ErrConflict, u.Email)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) scanUser(row *sql.Row) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FirstName, &u.LastName)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (core.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, password, first_name, last_name FROM users WHERE id = ?`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, password, first_name, last_name FROM users WHERE email = ?`, email))
}

// --- accounts ---

func (s *Store) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (name, user_id, balance) VALUES (?, ?, ?)`,
		a.Name, a.UserID, a.Balance.String())
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: account %q already exists", core.ErrConflict, a.Name)
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, name string) (core.Account, error) {
	var (
		a       core.Account
		balance string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT name, user_id, balance FROM accounts WHERE name = ?`, name).
		Scan(&a.Name, &a.UserID, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("scan account: %w", err)
	}
	a.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return core.Account{}, fmt.Errorf("parse stored balance %q: %w", balance, err)
	}
	return a, nil
}

// AccountExistsForUser reports whether the user already owns an account
// with this name. The explicit add-account operation checks per user,
// unlike the global primary key.
func (s *Store) AccountExistsForUser(ctx context.Context, userID, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE user_id = ? AND name = ?`, userID, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count accounts: %w", err)
	}
	return n > 0, nil
}

func (s *Store) UpdateAccountBalance(ctx context.Context, name string, balance decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET balance = ? WHERE name = ?`, balance.String(), name)
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	return nil
}

func (s *Store) ListAccountsByUser(ctx context.Context, userID string) ([]core.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, user_id, balance FROM accounts WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var (
			a       core.Account
			balance string
		)
		if err := rows.Scan(&a.Name, &a.UserID, &balance); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		if a.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("parse stored balance %q: %w", balance, err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// --- categories ---

func (s *Store) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, user_id) VALUES (?, ?, ?)`,
		c.ID, c.Name, c.UserID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: category %q already exists for this user", core.ErrConflict, c.Name)
	}
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (s *Store) ListCategoriesByUser(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, user_id FROM categories WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.UserID); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// --- transactions ---

func (s *Store) CreateTransaction(ctx context.Context, t core.Transaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, amount, category, description, type, account_name, date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Amount.String(), t.Category, t.Description, string(t.Type),
		t.AccountName, t.Date.Format(core.DateLayout))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

const transactionColumns = `id, user_id, amount, category, description, type, account_name, date`

func scanTransaction(scan func(dest ...any) error) (core.Transaction, error) {
	var (
		t            core.Transaction
		amount, date string
		txType       string
	)
	err := scan(&t.ID, &t.UserID, &amount, &t.Category, &t.Description, &txType, &t.AccountName, &date)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(txType)
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored amount %q: %w", amount, err)
	}
	if t.Date, err = time.Parse(core.DateLayout, date); err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored date %q: %w", date, err)
	}
	return t, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// TransactionUpdate carries the fields of an update; nil means leave
// the stored value alone.
type TransactionUpdate struct {
	Amount      *decimal.Decimal
	Category    *string
	Description *string
	Date        *time.Time
}

// UpdateTransaction overwrites the present fields of an existing
// transaction. It never touches the owning account's balance.
func (s *Store) UpdateTransaction(ctx context.Context, id string, upd TransactionUpdate) error {
	t, err := s.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if upd.Amount != nil {
		t.Amount = *upd.Amount
	}
	if upd.Category != nil {
		t.Category = *upd.Category
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.Date != nil {
		t.Date = *upd.Date
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE transactions SET amount = ?, category = ?, description = ?, date = ? WHERE id = ?`,
		t.Amount.String(), t.Category, t.Description, t.Date.Format(core.DateLayout), id)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// ListTransactionsByUser returns the user's transactions newest first.
func (s *Store) ListTransactionsByUser(ctx context.Context, userID string) ([]core.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? ORDER BY date DESC, rowid DESC`,
		userID)
}

// ListAllTransactions returns every transaction of every user in
// insertion order. The CSV export is deliberately not scoped to one
// user.
func (s *Store) ListAllTransactions(ctx context.Context) ([]core.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY rowid`)
}

// --- sheet mirror sync state ---

func (s *Store) ListPendingSyncTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE sync_status = ? ORDER BY rowid LIMIT ?`,
		SyncPending, limit)
}

func (s *Store) setSyncStatus(ctx context.Context, id, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set sync status: %w", err)
	}
	return nil
}

func (s *Store) MarkTransactionSynced(ctx context.Context, id string) error {
	return s.setSyncStatus(ctx, id, SyncDone)
}

func (s *Store) MarkTransactionSyncError(ctx context.Context, id string) error {
	return s.setSyncStatus(ctx, id, SyncError)
}

// --- sessions ---

func (s *Store) CreateSession(ctx context.Context, token, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, userID, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetUserBySession resolves a session token to its user, rejecting
// expired sessions.
func (s *Store) GetUserBySession(ctx context.Context, token string) (core.User, error) {
	var (
		u         core.User
		expiresAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.password, u.first_name, u.last_name, s.expires_at
		 FROM sessions s JOIN users u ON s.user_id = u.id
		 WHERE s.token = ?`, token).
		Scan(&u.ID, &u.Email, &u.Password, &u.FirstName, &u.LastName, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan session: %w", err)
	}
	if time.Now().After(expiresAt) {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Store) CleanExpiredSessions(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("clean expired sessions: %w", err)
	}
	return nil
}
