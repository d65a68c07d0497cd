package eventstore

import (
	"errors"
)

var (
	// ErrEmptyEventsTableName is returned when an empty events table name is supplied.
	ErrEmptyEventsTableName = errors.New("events table name must not be empty")

	// ErrNilDatabaseConnection is returned when a nil database connection is supplied.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrConcurrencyConflict is returned when fewer events than expected were appended.
	ErrConcurrencyConflict = errors.New("concurrency error, no rows were affected")

	// ErrNoEventsToAppend is returned when Append is called without any event.
	ErrNoEventsToAppend = errors.New("no events to append")

	ErrBuildingQueryFailed         = errors.New("building the query failed")
	ErrQueryingEventsFailed        = errors.New("querying events failed")
	ErrScanningDBRowFailed         = errors.New("scanning db row failed")
	ErrBuildingStorableEventFailed = errors.New("building storable event failed")
	ErrAppendingEventFailed        = errors.New("appending the event failed")
	ErrGettingRowsAffectedFailed   = errors.New("getting rows affected failed")
)

// MaxSequenceNumberUint is a type alias for uint, representing the maximum sequence number for a "dynamic event stream".
type MaxSequenceNumberUint = uint
