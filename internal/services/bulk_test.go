package services

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"finledger/internal/core"
	"finledger/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type BulkTestSuite struct {
	suite.Suite
	store  *storage.Store
	ledger *LedgerService
	ctx    context.Context
	userID string
}

func (suite *BulkTestSuite) SetupTest() {
	store, err := storage.NewStore(":memory:")
	require.NoError(suite.T(), err)
	suite.store = store
	suite.ledger = NewLedgerService(store, nil)
	suite.ctx = context.Background()

	u := core.User{ID: core.NewID(), Email: "mario@example.com", Password: "hash", FirstName: "Mario", LastName: "Rossi"}
	require.NoError(suite.T(), store.CreateUser(suite.ctx, u))
	suite.userID = u.ID
}

func (suite *BulkTestSuite) TearDownTest() {
	if suite.store != nil {
		suite.store.Close()
	}
}

const importCSV = `account_name,amount,category,description,date,type
Checking,1000,Salary,march pay,2025-03-01,income
Checking,300,Rent,march rent,2025-03-02,expense
`

func (suite *BulkTestSuite) TestImportCSV() {
	imported, err := suite.ledger.ImportCSV(suite.ctx, suite.userID, strings.NewReader(importCSV))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 2, imported)

	// Balance reflects both rows.
	a, err := suite.store.GetAccount(suite.ctx, "Checking")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "700", a.Balance.String())

	// Accounts materialized during import belong to the fallback owner,
	// while the transactions belong to the importing user.
	assert.Equal(suite.T(), FallbackImportOwner, a.UserID)

	transactions, err := suite.store.ListTransactionsByUser(suite.ctx, suite.userID)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), transactions, 2)
}

func (suite *BulkTestSuite) TestImportRejectsBadHeader() {
	csv := "name,amount\nCash,10\n"
	imported, err := suite.ledger.ImportCSV(suite.ctx, suite.userID, strings.NewReader(csv))
	assert.Zero(suite.T(), imported)
	assert.ErrorIs(suite.T(), err, core.ErrInvalidInput)
}

func (suite *BulkTestSuite) TestImportStopsAtBadRowKeepingEarlierOnes() {
	csv := `account_name,amount,category,description,date,type
Cash,10,Misc,ok,2025-03-01,expense
Cash,not-a-number,Misc,bad,2025-03-02,expense
`
	imported, err := suite.ledger.ImportCSV(suite.ctx, suite.userID, strings.NewReader(csv))
	assert.Equal(suite.T(), 1, imported)
	assert.ErrorIs(suite.T(), err, core.ErrInvalidInput)

	// The first row stays persisted.
	transactions, err := suite.store.ListTransactionsByUser(suite.ctx, suite.userID)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), transactions, 1)
}

func (suite *BulkTestSuite) TestImportRequiresUser() {
	_, err := suite.ledger.ImportCSV(suite.ctx, "", strings.NewReader(importCSV))
	assert.ErrorIs(suite.T(), err, core.ErrUnauthorized)
}

func (suite *BulkTestSuite) TestExportCoversAllUsers() {
	other := core.User{ID: core.NewID(), Email: "luigi@example.com", Password: "hash", FirstName: "Luigi", LastName: "Verdi"}
	require.NoError(suite.T(), suite.store.CreateUser(suite.ctx, other))

	require.NoError(suite.T(), suite.ledger.RecordTransaction(suite.ctx, suite.userID, RecordTransactionInput{
		Amount: "10", Category: "Misc", AccountName: "Cash", Date: "2025-03-01", Type: "expense",
	}))
	require.NoError(suite.T(), suite.ledger.RecordTransaction(suite.ctx, other.ID, RecordTransactionInput{
		Amount: "20", Category: "Misc", AccountName: "Cash", Date: "2025-03-02", Type: "expense",
	}))

	var buf bytes.Buffer
	require.NoError(suite.T(), suite.ledger.ExportCSV(suite.ctx, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(suite.T(), lines, 3)
	// The export header carries no type column.
	assert.Equal(suite.T(), "account_name,amount,category,description,date", lines[0])
	assert.Contains(suite.T(), lines[1], "Cash,10,Misc")
	assert.Contains(suite.T(), lines[2], "Cash,20,Misc")
}

func TestBulkTestSuite(t *testing.T) {
	suite.Run(t, new(BulkTestSuite))
}
