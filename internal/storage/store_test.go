package storage

import (
	"context"
	"testing"
	"time"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// StoreTestSuite runs every test against a fresh in-memory database.
type StoreTestSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func (suite *StoreTestSuite) SetupTest() {
	store, err := NewStore(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.store = store
	suite.ctx = context.Background()
}

func (suite *StoreTestSuite) TearDownTest() {
	if suite.store != nil {
		suite.store.Close()
	}
}

func (suite *StoreTestSuite) newUser(email string) core.User {
	u := core.User{
		ID:        core.NewID(),
		Email:     email,
		Password:  "hash",
		FirstName: "Test",
		LastName:  "User",
	}
	require.NoError(suite.T(), suite.store.CreateUser(suite.ctx, u))
	return u
}

func (suite *StoreTestSuite) newTransaction(userID, account, amount string) core.Transaction {
	t := core.Transaction{
		ID:          core.NewID(),
		UserID:      userID,
		Amount:      decimal.RequireFromString(amount),
		Category:    "Misc",
		Description: "test",
		Type:        core.TypeExpense,
		AccountName: account,
		Date:        core.Today(),
	}
	require.NoError(suite.T(), suite.store.CreateTransaction(suite.ctx, t))
	return t
}

func (suite *StoreTestSuite) TestCreateUserDuplicateEmail() {
	suite.newUser("mario@example.com")

	err := suite.store.CreateUser(suite.ctx, core.User{
		ID:    core.NewID(),
		Email: "mario@example.com",
	})
	assert.ErrorIs(suite.T(), err, core.ErrConflict)
}

func (suite *StoreTestSuite) TestGetUserNotFound() {
	_, err := suite.store.GetUserByID(suite.ctx, "missing")
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)

	_, err = suite.store.GetUserByEmail(suite.ctx, "nobody@example.com")
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)
}

func (suite *StoreTestSuite) TestAccountLifecycle() {
	u := suite.newUser("mario@example.com")

	err := suite.store.CreateAccount(suite.ctx, core.Account{
		Name:    "Checking",
		UserID:  u.ID,
		Balance: decimal.RequireFromString("100"),
	})
	require.NoError(suite.T(), err)

	a, err := suite.store.GetAccount(suite.ctx, "Checking")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), u.ID, a.UserID)
	assert.True(suite.T(), a.Balance.Equal(decimal.RequireFromString("100")))

	require.NoError(suite.T(), suite.store.UpdateAccountBalance(suite.ctx, "Checking", decimal.RequireFromString("250.50")))
	a, err = suite.store.GetAccount(suite.ctx, "Checking")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "250.5", a.Balance.String())

	exists, err := suite.store.AccountExistsForUser(suite.ctx, u.ID, "Checking")
	require.NoError(suite.T(), err)
	assert.True(suite.T(), exists)

	exists, err = suite.store.AccountExistsForUser(suite.ctx, "other", "Checking")
	require.NoError(suite.T(), err)
	assert.False(suite.T(), exists)
}

func (suite *StoreTestSuite) TestAccountNameIsGlobalKey() {
	u1 := suite.newUser("a@example.com")
	u2 := suite.newUser("b@example.com")

	require.NoError(suite.T(), suite.store.CreateAccount(suite.ctx, core.Account{Name: "Cash", UserID: u1.ID, Balance: decimal.Zero}))
	err := suite.store.CreateAccount(suite.ctx, core.Account{Name: "Cash", UserID: u2.ID, Balance: decimal.Zero})
	assert.ErrorIs(suite.T(), err, core.ErrConflict)
}

func (suite *StoreTestSuite) TestListAccountsInsertionOrder() {
	u := suite.newUser("mario@example.com")
	for _, name := range []string{"Checking", "Savings", "Cash"} {
		require.NoError(suite.T(), suite.store.CreateAccount(suite.ctx, core.Account{Name: name, UserID: u.ID, Balance: decimal.Zero}))
	}

	accounts, err := suite.store.ListAccountsByUser(suite.ctx, u.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), accounts, 3)
	assert.Equal(suite.T(), "Checking", accounts[0].Name)
	assert.Equal(suite.T(), "Savings", accounts[1].Name)
	assert.Equal(suite.T(), "Cash", accounts[2].Name)
}

func (suite *StoreTestSuite) TestCategoryUniquePerUser() {
	u1 := suite.newUser("a@example.com")
	u2 := suite.newUser("b@example.com")

	require.NoError(suite.T(), suite.store.CreateCategory(suite.ctx, core.Category{ID: core.NewID(), Name: "Rent", UserID: u1.ID}))

	err := suite.store.CreateCategory(suite.ctx, core.Category{ID: core.NewID(), Name: "Rent", UserID: u1.ID})
	assert.ErrorIs(suite.T(), err, core.ErrConflict)

	// Same name under another user is fine.
	assert.NoError(suite.T(), suite.store.CreateCategory(suite.ctx, core.Category{ID: core.NewID(), Name: "Rent", UserID: u2.ID}))
}

func (suite *StoreTestSuite) TestTransactionRoundTrip() {
	u := suite.newUser("mario@example.com")
	created := suite.newTransaction(u.ID, "Checking", "42.75")

	got, err := suite.store.GetTransaction(suite.ctx, created.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), created.ID, got.ID)
	assert.Equal(suite.T(), u.ID, got.UserID)
	assert.True(suite.T(), got.Amount.Equal(created.Amount))
	assert.Equal(suite.T(), core.TypeExpense, got.Type)
	assert.Equal(suite.T(), "Checking", got.AccountName)
}

func (suite *StoreTestSuite) TestUpdateTransactionPartial() {
	u := suite.newUser("mario@example.com")
	created := suite.newTransaction(u.ID, "Checking", "10")

	newAmount := decimal.RequireFromString("99")
	newDesc := "groceries"
	err := suite.store.UpdateTransaction(suite.ctx, created.ID, TransactionUpdate{
		Amount:      &newAmount,
		Description: &newDesc,
	})
	require.NoError(suite.T(), err)

	got, err := suite.store.GetTransaction(suite.ctx, created.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "99", got.Amount.String())
	assert.Equal(suite.T(), "groceries", got.Description)
	// Untouched fields survive.
	assert.Equal(suite.T(), "Misc", got.Category)
}

func (suite *StoreTestSuite) TestUpdateTransactionNotFound() {
	err := suite.store.UpdateTransaction(suite.ctx, "missing", TransactionUpdate{})
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)
}

func (suite *StoreTestSuite) TestListTransactionsNewestFirst() {
	u := suite.newUser("mario@example.com")

	old := core.Transaction{
		ID: core.NewID(), UserID: u.ID, Amount: decimal.RequireFromString("1"),
		Type: core.TypeExpense, AccountName: "Cash",
		Date: core.Today().AddDate(0, 0, -2),
	}
	require.NoError(suite.T(), suite.store.CreateTransaction(suite.ctx, old))
	recent := suite.newTransaction(u.ID, "Cash", "2")

	transactions, err := suite.store.ListTransactionsByUser(suite.ctx, u.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), transactions, 2)
	assert.Equal(suite.T(), recent.ID, transactions[0].ID)
	assert.Equal(suite.T(), old.ID, transactions[1].ID)
}

func (suite *StoreTestSuite) TestPendingSyncLifecycle() {
	u := suite.newUser("mario@example.com")
	t1 := suite.newTransaction(u.ID, "Cash", "1")
	t2 := suite.newTransaction(u.ID, "Cash", "2")

	pending, err := suite.store.ListPendingSyncTransactions(suite.ctx, 10)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), pending, 2)

	require.NoError(suite.T(), suite.store.MarkTransactionSynced(suite.ctx, t1.ID))
	require.NoError(suite.T(), suite.store.MarkTransactionSyncError(suite.ctx, t2.ID))

	pending, err = suite.store.ListPendingSyncTransactions(suite.ctx, 10)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), pending)
}

func (suite *StoreTestSuite) TestSessionLifecycle() {
	u := suite.newUser("mario@example.com")

	require.NoError(suite.T(), suite.store.CreateSession(suite.ctx, "tok", u.ID, time.Now().Add(time.Hour)))

	got, err := suite.store.GetUserBySession(suite.ctx, "tok")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), u.ID, got.ID)

	require.NoError(suite.T(), suite.store.DeleteSession(suite.ctx, "tok"))
	_, err = suite.store.GetUserBySession(suite.ctx, "tok")
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)
}

func (suite *StoreTestSuite) TestExpiredSessionRejected() {
	u := suite.newUser("mario@example.com")

	require.NoError(suite.T(), suite.store.CreateSession(suite.ctx, "stale", u.ID, time.Now().Add(-time.Minute)))
	_, err := suite.store.GetUserBySession(suite.ctx, "stale")
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)

	require.NoError(suite.T(), suite.store.CleanExpiredSessions(suite.ctx))
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
