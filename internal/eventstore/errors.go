package eventstore

import (
	ferrors "github.com/sugarshin/frrr-boilerplate/internal/foundation/errors"
)

var (
	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = ferrors.NewError(ferrors.CategoryEventStore, "could not open run history database").Build()

	// ErrEventAppendFailed indicates appending an event failed.
	ErrEventAppendFailed = ferrors.NewError(ferrors.CategoryEventStore, "failed to append event to run history").Build()

	// ErrEventQueryFailed indicates querying or scanning events failed.
	ErrEventQueryFailed = ferrors.NewError(ferrors.CategoryEventStore, "failed to query run history").Build()
)
