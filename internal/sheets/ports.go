// Package sheets defines the outbound port for mirroring recorded
// transactions to a spreadsheet.
package sheets

import (
	"context"

	"finledger/internal/core"
)

// TransactionAppender appends one transaction row to the mirror,
// returning an opaque reference to the written row.
type TransactionAppender interface {
	AppendTransaction(ctx context.Context, t core.Transaction) (rowRef string, err error)
}
