package domain

import "context"

// Transactor runs fn inside a single store transaction. Repository calls made
// with the ctx passed to fn join that transaction. The transaction commits when
// fn returns nil and rolls back otherwise; the connection is always released.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
