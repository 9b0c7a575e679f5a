package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"finledger/internal/core"
)

// FallbackImportOwner owns accounts materialized during bulk import.
// Imports always attribute new accounts to this fixed owner rather than
// the importing user, so materialized accounts and the imported
// transactions can end up with different owners.
const FallbackImportOwner = "1"

// ImportHeader is the required first row of an import file. Export
// writes the same columns minus type.
var ImportHeader = []string{"account_name", "amount", "category", "description", "date", "type"}

// ImportCSV records one transaction per row, committing row by row.
// A failing row stops the import but leaves earlier rows persisted;
// the returned count says how many rows made it in.
func (s *LedgerService) ImportCSV(ctx context.Context, userID string, r io.Reader) (int, error) {
	if userID == "" {
		return 0, core.ErrUnauthorized
	}

	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("%w: missing CSV header", core.ErrInvalidInput)
	}
	if err := checkImportHeader(header); err != nil {
		return 0, err
	}

	imported := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return imported, nil
		}
		if err != nil {
			return imported, fmt.Errorf("%w: row %d: %v", core.ErrInvalidInput, imported+2, err)
		}

		if err := s.importRow(ctx, userID, row); err != nil {
			return imported, fmt.Errorf("row %d: %w", imported+2, err)
		}
		imported++
	}
}

func checkImportHeader(header []string) error {
	if len(header) != len(ImportHeader) {
		return fmt.Errorf("%w: expected header %v", core.ErrInvalidInput, ImportHeader)
	}
	for i, col := range ImportHeader {
		if header[i] != col {
			return fmt.Errorf("%w: expected header column %q, got %q", core.ErrInvalidInput, col, header[i])
		}
	}
	return nil
}

// importRow is the import-side twin of RecordTransaction: same
// materialize-then-record flow, but accounts created here belong to the
// fallback owner while the transaction belongs to the importing user.
func (s *LedgerService) importRow(ctx context.Context, userID string, row []string) error {
	accountName, amountStr := row[0], row[1]
	category, description := row[2], row[3]
	dateStr, txType := row[4], row[5]

	amount, err := core.ParseAmount(amountStr)
	if err != nil {
		return err
	}
	date, err := core.ParseDate(dateStr)
	if err != nil {
		return err
	}

	if err := s.ApplyTransactionToAccount(ctx, accountName, FallbackImportOwner, amount, core.TransactionType(txType)); err != nil {
		return fmt.Errorf("apply transaction to account %q: %w", accountName, err)
	}

	t := core.Transaction{
		ID:          core.NewID(),
		UserID:      userID,
		Amount:      amount,
		Category:    category,
		Description: description,
		Type:        core.TransactionType(txType),
		AccountName: accountName,
		Date:        date,
	}
	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	s.publishSync(ctx, t.ID)
	return nil
}

// ExportCSV writes every transaction of every user, in insertion order,
// with a header row. The export is not scoped to the requesting user
// and carries no type column.
func (s *LedgerService) ExportCSV(ctx context.Context, w io.Writer) error {
	transactions, err := s.store.ListAllTransactions(ctx)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"account_name", "amount", "category", "description", "date"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range transactions {
		record := []string{
			t.AccountName,
			t.Amount.String(),
			t.Category,
			t.Description,
			t.Date.Format(core.DateLayout),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
