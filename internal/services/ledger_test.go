package services

import (
	"context"
	"testing"

	"finledger/internal/core"
	"finledger/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// LedgerServiceTestSuite exercises the service layer on a fresh
// in-memory store, with sync publishing disabled.
type LedgerServiceTestSuite struct {
	suite.Suite
	store  *storage.Store
	ledger *LedgerService
	ctx    context.Context
	userID string
}

func (suite *LedgerServiceTestSuite) SetupTest() {
	store, err := storage.NewStore(":memory:")
	require.NoError(suite.T(), err)
	suite.store = store
	suite.ledger = NewLedgerService(store, nil)
	suite.ctx = context.Background()

	u := core.User{ID: core.NewID(), Email: "mario@example.com", Password: "hash", FirstName: "Mario", LastName: "Rossi"}
	require.NoError(suite.T(), store.CreateUser(suite.ctx, u))
	suite.userID = u.ID
}

func (suite *LedgerServiceTestSuite) TearDownTest() {
	if suite.store != nil {
		suite.store.Close()
	}
}

func (suite *LedgerServiceTestSuite) record(amount, account, category, txType string) {
	err := suite.ledger.RecordTransaction(suite.ctx, suite.userID, RecordTransactionInput{
		Amount:      amount,
		Category:    category,
		Description: "test",
		AccountName: account,
		Type:        txType,
	})
	require.NoError(suite.T(), err)
}

func (suite *LedgerServiceTestSuite) balance(account string) decimal.Decimal {
	a, err := suite.store.GetAccount(suite.ctx, account)
	require.NoError(suite.T(), err)
	return a.Balance
}

func (suite *LedgerServiceTestSuite) TestIncomeCreatesAccountAndAddsBalance() {
	suite.record("1000", "Checking", "Salary", "income")

	a, err := suite.store.GetAccount(suite.ctx, "Checking")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), suite.userID, a.UserID)
	assert.Equal(suite.T(), "1000", a.Balance.String())
}

func (suite *LedgerServiceTestSuite) TestExpenseSubtractsBalance() {
	suite.record("1000", "Checking", "Salary", "income")
	suite.record("300", "Checking", "Rent", "expense")

	assert.Equal(suite.T(), "700", suite.balance("Checking").String())
}

func (suite *LedgerServiceTestSuite) TestAccountMaterializedOnce() {
	suite.record("10", "Cash", "Misc", "expense")
	suite.record("5", "Cash", "Misc", "expense")

	accounts, err := suite.store.ListAccountsByUser(suite.ctx, suite.userID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), accounts, 1)
	assert.Equal(suite.T(), "-15", accounts[0].Balance.String())
}

func (suite *LedgerServiceTestSuite) TestUnknownTypeStoredButBalanceUntouched() {
	suite.record("50", "Cash", "Misc", "transfer")

	assert.Equal(suite.T(), "0", suite.balance("Cash").String())

	transactions, err := suite.ledger.ListTransactions(suite.ctx, suite.userID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), transactions, 1)
	assert.Equal(suite.T(), core.TransactionType("transfer"), transactions[0].Type)
}

func (suite *LedgerServiceTestSuite) TestInvalidAmountRejected() {
	err := suite.ledger.RecordTransaction(suite.ctx, suite.userID, RecordTransactionInput{
		Amount:      "not-a-number",
		AccountName: "Cash",
		Type:        "expense",
	})
	assert.ErrorIs(suite.T(), err, core.ErrInvalidInput)
}

func (suite *LedgerServiceTestSuite) TestRecordRequiresUser() {
	err := suite.ledger.RecordTransaction(suite.ctx, "", RecordTransactionInput{
		Amount: "10", AccountName: "Cash", Type: "expense",
	})
	assert.ErrorIs(suite.T(), err, core.ErrUnauthorized)
}

func (suite *LedgerServiceTestSuite) TestUpdateNeverTouchesBalance() {
	suite.record("1000", "Checking", "Salary", "income")

	transactions, err := suite.ledger.ListTransactions(suite.ctx, suite.userID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), transactions, 1)

	newAmount := "1"
	err = suite.ledger.UpdateTransaction(suite.ctx, transactions[0].ID, UpdateTransactionInput{Amount: &newAmount})
	require.NoError(suite.T(), err)

	// The stored transaction changed, the balance did not.
	got, err := suite.store.GetTransaction(suite.ctx, transactions[0].ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "1", got.Amount.String())
	assert.Equal(suite.T(), "1000", suite.balance("Checking").String())
}

func (suite *LedgerServiceTestSuite) TestUpdateMissingTransaction() {
	desc := "nope"
	err := suite.ledger.UpdateTransaction(suite.ctx, "missing", UpdateTransactionInput{Description: &desc})
	assert.ErrorIs(suite.T(), err, core.ErrNotFound)
}

func (suite *LedgerServiceTestSuite) TestDashboardStatistics() {
	require.NoError(suite.T(), suite.ledger.AddCategory(suite.ctx, suite.userID, "Rent"))
	require.NoError(suite.T(), suite.ledger.AddCategory(suite.ctx, suite.userID, "Food"))

	suite.record("200", "Checking", "Rent", "expense")
	suite.record("600", "Checking", "Food", "expense")

	stats, err := suite.ledger.DashboardStatistics(suite.ctx, suite.userID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), stats, 2)
	assert.Equal(suite.T(), core.CategoryStat{Name: "Rent", Percentage: 25}, stats[0])
	assert.Equal(suite.T(), core.CategoryStat{Name: "Food", Percentage: 75}, stats[1])
}

func (suite *LedgerServiceTestSuite) TestDashboardUnusedCategoryIsZero() {
	require.NoError(suite.T(), suite.ledger.AddCategory(suite.ctx, suite.userID, "Travel"))
	suite.record("100", "Cash", "Groceries", "expense")

	stats, err := suite.ledger.DashboardStatistics(suite.ctx, suite.userID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), stats, 1)
	assert.Equal(suite.T(), core.CategoryStat{Name: "Travel", Percentage: 0}, stats[0])
}

func (suite *LedgerServiceTestSuite) TestAddCategoryDuplicate() {
	require.NoError(suite.T(), suite.ledger.AddCategory(suite.ctx, suite.userID, "Rent"))
	err := suite.ledger.AddCategory(suite.ctx, suite.userID, "Rent")
	assert.ErrorIs(suite.T(), err, core.ErrConflict)
}

func (suite *LedgerServiceTestSuite) TestAddCategoryRequiresName() {
	err := suite.ledger.AddCategory(suite.ctx, suite.userID, "")
	assert.ErrorIs(suite.T(), err, core.ErrInvalidInput)
}

func (suite *LedgerServiceTestSuite) TestAddAccountDuplicate() {
	require.NoError(suite.T(), suite.ledger.AddAccount(suite.ctx, suite.userID, "Savings", "500"))
	err := suite.ledger.AddAccount(suite.ctx, suite.userID, "Savings", "0")
	assert.ErrorIs(suite.T(), err, core.ErrConflict)

	assert.Equal(suite.T(), "500", suite.balance("Savings").String())
}

func (suite *LedgerServiceTestSuite) TestListingsRequireUser() {
	_, err := suite.ledger.ListTransactions(suite.ctx, "")
	assert.ErrorIs(suite.T(), err, core.ErrUnauthorized)
	_, err = suite.ledger.ListCategories(suite.ctx, "")
	assert.ErrorIs(suite.T(), err, core.ErrUnauthorized)
	_, err = suite.ledger.ListAccounts(suite.ctx, "")
	assert.ErrorIs(suite.T(), err, core.ErrUnauthorized)
	_, err = suite.ledger.DashboardStatistics(suite.ctx, "")
	assert.ErrorIs(suite.T(), err, core.ErrUnauthorized)
}

func TestLedgerServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceTestSuite))
}
