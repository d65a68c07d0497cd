package library

import (
	"errors"

	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore/querymeta"
)

// Repository operations.
const (
	OperationBooksInCirculation   querymeta.OperationName = "booksInCirculation"
	OperationLendBookCopyToReader querymeta.OperationName = "lendBookCopyToReader"
	OperationBookCopyHistory      querymeta.OperationName = "bookCopyHistory"
)

// reportingQueries is shared by all read-only operations which may run for long,
// so DBAs can find them with a single pg_stat_statements filter.
var reportingQueries = querymeta.MustNewTemplate("reporting", querymeta.WithComment("library reporting"))

// RegisterQueryMeta declares the query metadata of all Repository operations.
// It fails if one of the operations was registered before.
func RegisterQueryMeta(registry *querymeta.Registry) error {
	return errors.Join(
		registry.RegisterTemplate(OperationBooksInCirculation, reportingQueries),
		registry.Register(OperationLendBookCopyToReader, querymeta.MustNew(querymeta.WithComment("lend book copy to reader"))),
		registry.Register(OperationBookCopyHistory, querymeta.MustNew()),
	)
}
