package tx

import "context"

// Tx runs fn inside one atomic transaction. Every store call made with the
// ctx passed to fn joins that transaction; any error aborts the whole thing.
type Tx interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}
