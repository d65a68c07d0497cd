package postgresengine_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"regexp"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore"
	. "github.com/AntonStoeckl/querymeta-eventstore-go/eventstore/postgresengine"
	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore/querymeta"
	. "github.com/AntonStoeckl/querymeta-eventstore-go/testutil/helper"
)

var resultColumns = []string{"event_type", "occurred_at", "payload", "metadata", "sequence_number"}

func givenRegistry(t *testing.T) *querymeta.Registry {
	t.Helper()

	registry := querymeta.NewRegistry()
	require.NoError(t, registry.Register("findAllActive", querymeta.MustNew(querymeta.WithComment("findAll query"))))
	require.NoError(t, registry.Register("lendBookCopy", querymeta.MustNew(querymeta.WithComment("lend book copy"))))
	require.NoError(t, registry.Register("count", querymeta.MustNew()))

	return registry
}

func givenMockedSQLDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db, mock
}

func startsWith(sqlPrefix string) string {
	return "^" + regexp.QuoteMeta(sqlPrefix)
}

func givenResultRows(t *testing.T, bookID string, sequenceNumbers ...int64) *sqlmock.Rows {
	t.Helper()

	rows := sqlmock.NewRows(resultColumns)
	for _, sequenceNumber := range sequenceNumbers {
		rows.AddRow(
			BookCopyAddedToCirculationEventType,
			time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
			[]byte(`{"BookID":"`+bookID+`"}`),
			[]byte(`{"MessageID":"m1"}`),
			sequenceNumber,
		)
	}

	return rows
}

func Test_Constructors_RejectNilConnections(t *testing.T) {
	_, err := NewEventStoreFromPGXPool(nil)
	assert.ErrorIs(t, err, eventstore.ErrNilDatabaseConnection)

	_, err = NewEventStoreFromPGXPoolAndReplica(nil, nil)
	assert.ErrorIs(t, err, eventstore.ErrNilDatabaseConnection)

	_, err = NewEventStoreFromSQLDB(nil)
	assert.ErrorIs(t, err, eventstore.ErrNilDatabaseConnection)

	_, err = NewEventStoreFromSQLX(nil)
	assert.ErrorIs(t, err, eventstore.ErrNilDatabaseConnection)
}

func Test_Constructors_RejectEmptyTableName(t *testing.T) {
	db, _ := givenMockedSQLDB(t)

	_, err := NewEventStoreFromSQLDB(db, WithTableName(""))

	assert.ErrorIs(t, err, eventstore.ErrEmptyEventsTableName)
}

func Test_Query_EmbedsTheCommentOfTheOperation(t *testing.T) {
	// arrange
	db, mock := givenMockedSQLDB(t)
	es, err := NewEventStoreFromSQLDB(db, WithQueryMeta(givenRegistry(t)))
	require.NoError(t, err)

	bookID := GivenUniqueID(t)
	filter := FilterAllEventTypesForOneBookCopy(bookID)

	mock.ExpectQuery(startsWith(`/* findAll query */ SELECT "event_type", "occurred_at", "payload", "metadata", "sequence_number" FROM "events"`)).
		WillReturnRows(givenResultRows(t, bookID.String(), 3, 7))

	// act
	events, maxSequenceNumber, err := es.Query(querymeta.WithOperation(context.Background(), "findAllActive"), filter)

	// assert
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, BookCopyAddedToCirculationEventType, events[0].EventType)
	assert.JSONEq(t, `{"BookID":"`+bookID.String()+`"}`, string(events[0].PayloadJSON))
	assert.Equal(t, eventstore.MaxSequenceNumberUint(7), maxSequenceNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_Query_WithoutComment(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
	}{
		{name: "operation with empty comment", ctx: querymeta.WithOperation(context.Background(), "count")},
		{name: "unregistered operation", ctx: querymeta.WithOperation(context.Background(), "neverRegistered")},
		{name: "no operation in context", ctx: context.Background()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := givenMockedSQLDB(t)
			es, err := NewEventStoreFromSQLDB(db, WithQueryMeta(givenRegistry(t)))
			require.NoError(t, err)

			mock.ExpectQuery(startsWith(`SELECT "event_type"`)).
				WillReturnRows(sqlmock.NewRows(resultColumns))

			events, maxSequenceNumber, err := es.Query(tt.ctx, FilterAllEventTypesForOneBookCopy(GivenUniqueID(t)))

			require.NoError(t, err)
			assert.Empty(t, events)
			assert.Equal(t, eventstore.MaxSequenceNumberUint(0), maxSequenceNumber)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func Test_Query_WithCustomTableName(t *testing.T) {
	db, mock := givenMockedSQLDB(t)
	es, err := NewEventStoreFromSQLDB(db, WithTableName("library_events"))
	require.NoError(t, err)

	mock.ExpectQuery(`FROM "library_events"`).WillReturnRows(sqlmock.NewRows(resultColumns))

	_, _, err = es.Query(context.Background(), eventstore.BuildEventFilter().MatchingAnyEvent())

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_Query_WithSQLX(t *testing.T) {
	db, mock := givenMockedSQLDB(t)
	es, err := NewEventStoreFromSQLX(sqlx.NewDb(db, "sqlmock"), WithQueryMeta(givenRegistry(t)))
	require.NoError(t, err)

	bookID := GivenUniqueID(t)
	mock.ExpectQuery(startsWith(`/* findAll query */ SELECT`)).
		WillReturnRows(givenResultRows(t, bookID.String(), 1))

	events, maxSequenceNumber, err := es.Query(
		querymeta.WithOperation(context.Background(), "findAllActive"),
		FilterAllEventTypesForOneBookCopy(bookID),
	)

	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, eventstore.MaxSequenceNumberUint(1), maxSequenceNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_Query_DatabaseError(t *testing.T) {
	db, mock := givenMockedSQLDB(t)
	logHandler := NewLogHandlerSpy(false)
	metrics := NewMetricsCollectorSpy()
	es, err := NewEventStoreFromSQLDB(
		db,
		WithQueryMeta(givenRegistry(t)),
		WithLogger(slog.New(logHandler)),
		WithMetrics(metrics),
	)
	require.NoError(t, err)

	dbErr := errors.New("connection refused")
	mock.ExpectQuery(startsWith(`/* findAll query */ SELECT`)).WillReturnError(dbErr)

	_, _, err = es.Query(
		querymeta.WithOperation(context.Background(), "findAllActive"),
		FilterAllEventTypesForOneBookCopy(GivenUniqueID(t)),
	)

	assert.ErrorIs(t, err, eventstore.ErrQueryingEventsFailed)
	assert.ErrorIs(t, err, dbErr)
	assert.True(t, logHandler.HasErrorLogWithMessage("database query execution failed").
		WithAttribute("operation", "findAllActive").
		Assert())

	durations := metrics.GetDurationRecords()
	require.Len(t, durations, 1)
	assert.Equal(t, "eventstore_query_duration_seconds", durations[0].Metric)
	assert.Equal(t, "error", durations[0].Labels["status"])
	assert.Equal(t, "findAllActive", durations[0].Labels["operation"])

	counters := metrics.GetCounterRecords()
	require.Len(t, counters, 1)
	assert.Equal(t, "eventstore_database_errors_total", counters[0].Metric)
	assert.Equal(t, "database_query", counters[0].Labels["error_type"])
}

func Test_Query_ScanError(t *testing.T) {
	db, mock := givenMockedSQLDB(t)
	es, err := NewEventStoreFromSQLDB(db)
	require.NoError(t, err)

	rows := sqlmock.NewRows(resultColumns).
		AddRow(BookCopyAddedToCirculationEventType, "not a timestamp", []byte(`{}`), []byte(`{}`), 1)
	mock.ExpectQuery(startsWith(`SELECT`)).WillReturnRows(rows)

	_, _, err = es.Query(context.Background(), FilterAllEventTypesForOneBookCopy(GivenUniqueID(t)))

	assert.ErrorIs(t, err, eventstore.ErrScanningDBRowFailed)
}

func Test_Query_RowsError(t *testing.T) {
	db, mock := givenMockedSQLDB(t)
	es, err := NewEventStoreFromSQLDB(db)
	require.NoError(t, err)

	rowsErr := errors.New("connection reset")
	rows := givenResultRows(t, GivenUniqueID(t).String(), 1).RowError(0, rowsErr)
	mock.ExpectQuery(startsWith(`SELECT`)).WillReturnRows(rows)

	_, _, err = es.Query(context.Background(), FilterAllEventTypesForOneBookCopy(GivenUniqueID(t)))

	assert.ErrorIs(t, err, eventstore.ErrScanningDBRowFailed)
	assert.ErrorIs(t, err, rowsErr)
}

func Test_Query_InvalidPayloadFromDatabase(t *testing.T) {
	db, mock := givenMockedSQLDB(t)
	es, err := NewEventStoreFromSQLDB(db)
	require.NoError(t, err)

	rows := sqlmock.NewRows(resultColumns).
		AddRow(BookCopyAddedToCirculationEventType, time.Now(), []byte(`{broken`), []byte(`{}`), 1)
	mock.ExpectQuery(startsWith(`SELECT`)).WillReturnRows(rows)

	_, _, err = es.Query(context.Background(), FilterAllEventTypesForOneBookCopy(GivenUniqueID(t)))

	assert.ErrorIs(t, err, eventstore.ErrBuildingStorableEventFailed)
}

func Test_Append_EmbedsTheCommentOfTheOperation(t *testing.T) {
	// arrange
	db, mock := givenMockedSQLDB(t)
	es, err := NewEventStoreFromSQLDB(db, WithQueryMeta(givenRegistry(t)))
	require.NoError(t, err)

	bookID := GivenUniqueID(t)
	event := FixtureStorableEvent(t, BookCopyLentToReaderEventType, bookID, time.Now())

	mock.ExpectExec(startsWith(`/* lend book copy */ WITH context AS`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// act
	err = es.Append(
		querymeta.WithOperation(context.Background(), "lendBookCopy"),
		FilterAllEventTypesForOneBookCopy(bookID),
		3,
		event,
	)

	// assert
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_Append_MultipleEvents(t *testing.T) {
	db, mock := givenMockedSQLDB(t)
	es, err := NewEventStoreFromSQLDB(db)
	require.NoError(t, err)

	bookID := GivenUniqueID(t)
	event1 := FixtureStorableEvent(t, BookCopyAddedToCirculationEventType, bookID, time.Now())
	event2 := FixtureStorableEvent(t, BookCopyLentToReaderEventType, bookID, time.Now())

	mock.ExpectExec(`UNION ALL`).WillReturnResult(sqlmock.NewResult(0, 2))

	err = es.Append(context.Background(), FilterAllEventTypesForOneBookCopy(bookID), 0, event1, event2)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_Append_ConcurrencyConflict(t *testing.T) {
	// arrange
	db, mock := givenMockedSQLDB(t)
	logHandler := NewLogHandlerSpy(false)
	metrics := NewMetricsCollectorSpy()
	tracing := NewTracingCollectorSpy()
	es, err := NewEventStoreFromSQLDB(
		db,
		WithQueryMeta(givenRegistry(t)),
		WithLogger(slog.New(logHandler)),
		WithMetrics(metrics),
		WithTracing(tracing),
	)
	require.NoError(t, err)

	bookID := GivenUniqueID(t)
	event := FixtureStorableEvent(t, BookCopyLentToReaderEventType, bookID, time.Now())

	mock.ExpectExec(startsWith(`/* lend book copy */`)).WillReturnResult(sqlmock.NewResult(0, 0))

	// act
	err = es.Append(
		querymeta.WithOperation(context.Background(), "lendBookCopy"),
		FilterAllEventTypesForOneBookCopy(bookID),
		3,
		event,
	)

	// assert
	assert.ErrorIs(t, err, eventstore.ErrConcurrencyConflict)
	assert.True(t, logHandler.HasInfoLogWithMessage("eventstore operation: concurrency conflict detected").
		WithAttribute("operation", "lendBookCopy").
		WithAttribute("query_comment", "lend book copy").
		Assert())

	counters := metrics.GetCounterRecords()
	require.Len(t, counters, 1)
	assert.Equal(t, "eventstore_concurrency_conflicts_total", counters[0].Metric)
	assert.Equal(t, "lendBookCopy", counters[0].Labels["operation"])

	spans := tracing.GetSpanRecordsByName("eventstore.append")
	require.Len(t, spans, 1)
	assert.Equal(t, "conflict", spans[0].Status)
	assert.Equal(t, "3", spans[0].StartAttributes["expected_sequence"])
}

func Test_Append_DatabaseError(t *testing.T) {
	db, mock := givenMockedSQLDB(t)
	metrics := NewMetricsCollectorSpy()
	es, err := NewEventStoreFromSQLDB(db, WithMetrics(metrics))
	require.NoError(t, err)

	dbErr := errors.New("disk full")
	mock.ExpectExec(startsWith(`WITH`)).WillReturnError(dbErr)

	err = es.Append(
		context.Background(),
		FilterAllEventTypesForOneBookCopy(GivenUniqueID(t)),
		0,
		FixtureStorableEvent(t, BookCopyAddedToCirculationEventType, GivenUniqueID(t), time.Now()),
	)

	assert.ErrorIs(t, err, eventstore.ErrAppendingEventFailed)
	assert.ErrorIs(t, err, dbErr)

	counters := metrics.GetCounterRecords()
	require.Len(t, counters, 1)
	assert.Equal(t, "eventstore_database_errors_total", counters[0].Metric)
	assert.Equal(t, "database_exec", counters[0].Labels["error_type"])
	assert.Equal(t, eventstore.OperationAppend, counters[0].Labels["operation"])

	durations := metrics.GetDurationRecords()
	require.Len(t, durations, 1)
	assert.Equal(t, "eventstore_append_duration_seconds", durations[0].Metric)
	assert.Equal(t, "error", durations[0].Labels["status"])
	assert.Equal(t, eventstore.OperationAppend, durations[0].Labels["operation"])
}

func Test_Observability_CarriesTheOperation(t *testing.T) {
	// arrange
	db, mock := givenMockedSQLDB(t)
	logHandler := NewLogHandlerSpy(false)
	contextualLogHandler := NewLogHandlerSpy(false)
	metrics := NewMetricsCollectorSpy()
	tracing := NewTracingCollectorSpy()
	es, err := NewEventStoreFromSQLDB(
		db,
		WithQueryMeta(givenRegistry(t)),
		WithLogger(slog.New(logHandler)),
		WithContextualLogger(slog.New(contextualLogHandler)),
		WithMetrics(metrics),
		WithTracing(tracing),
	)
	require.NoError(t, err)

	bookID := GivenUniqueID(t)
	mock.ExpectQuery(startsWith(`/* findAll query */`)).WillReturnRows(givenResultRows(t, bookID.String(), 5))
	mock.ExpectQuery(startsWith(`SELECT`)).WillReturnRows(sqlmock.NewRows(resultColumns))

	// act
	_, _, err = es.Query(querymeta.WithOperation(context.Background(), "findAllActive"), FilterAllEventTypesForOneBookCopy(bookID))
	require.NoError(t, err)
	_, _, err = es.Query(querymeta.WithOperation(context.Background(), "count"), FilterAllEventTypesForOneBookCopy(bookID))
	require.NoError(t, err)

	// assert
	for _, handler := range []*LogHandlerSpy{logHandler, contextualLogHandler} {
		assert.True(t, handler.HasDebugLogWithMessage("executed sql for: query").
			WithAttribute("operation", "findAllActive").
			WithAttribute("query_comment", "findAll query").
			WithDurationMS().
			Assert())
		assert.True(t, handler.HasInfoLogWithMessage("eventstore operation: query completed").
			WithAttribute("operation", "count").
			WithoutAttribute("query_comment").
			Assert())
	}

	spans := tracing.GetSpanRecordsByName("eventstore.query")
	require.Len(t, spans, 2)
	assert.Equal(t, "findAllActive", spans[0].StartAttributes["operation"])
	assert.Equal(t, "findAll query", spans[0].StartAttributes["query_comment"])
	assert.Equal(t, "success", spans[0].Status)
	assert.Equal(t, "1", spans[0].EndAttributes["event_count"])
	assert.Equal(t, "5", spans[0].EndAttributes["max_sequence"])
	assert.NotContains(t, spans[1].StartAttributes, "query_comment")

	durations := metrics.GetDurationRecords()
	require.Len(t, durations, 2)
	assert.Equal(t, "eventstore_query_duration_seconds", durations[0].Metric)
	assert.Equal(t, "findAllActive", durations[0].Labels["operation"])
	assert.Equal(t, "count", durations[1].Labels["operation"])
	assert.Positive(t, metrics.GetContextualCallCount())
}

func Test_RenderQuery(t *testing.T) {
	db, _ := givenMockedSQLDB(t)
	es, err := NewEventStoreFromSQLDB(db, WithQueryMeta(givenRegistry(t)))
	require.NoError(t, err)

	bookID := GivenUniqueID(t)

	sqlQuery, err := es.RenderQuery(
		querymeta.WithOperation(context.Background(), "findAllActive"),
		FilterAllEventTypesForOneBookCopy(bookID),
	)

	require.NoError(t, err)
	assert.Regexp(t, startsWith(`/* findAll query */ SELECT`), sqlQuery)
	assert.Contains(t, sqlQuery, `"event_type" IN ('BookCopyAddedToCirculation', 'BookCopyLentToReader', 'BookCopyRemovedFromCirculation')`)
	assert.Contains(t, sqlQuery, `payload @> '{"BookID":"`+bookID.String()+`"}'::jsonb`)
	assert.Contains(t, sqlQuery, `ORDER BY "sequence_number" ASC`)
}

func Test_RenderQuery_OccurredAtRange(t *testing.T) {
	db, _ := givenMockedSQLDB(t)
	es, err := NewEventStoreFromSQLDB(db)
	require.NoError(t, err)

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	sqlQuery, err := es.RenderQuery(
		context.Background(),
		eventstore.BuildEventFilter().OccurredFrom(from).OccurredUntil(until).MatchingAnyEvent(),
	)

	require.NoError(t, err)
	assert.Contains(t, sqlQuery, `"occurred_at" >= `)
	assert.Contains(t, sqlQuery, `"occurred_at" <= `)
	assert.NotContains(t, sqlQuery, `"event_type" IN`)
}

func Test_RenderQuery_SanitizesTheComment(t *testing.T) {
	registry := querymeta.NewRegistry()
	require.NoError(t, registry.Register("evil", querymeta.MustNew(querymeta.WithComment("x */ DROP TABLE events; /*"))))

	db, _ := givenMockedSQLDB(t)
	es, err := NewEventStoreFromSQLDB(db, WithQueryMeta(registry))
	require.NoError(t, err)

	sqlQuery, err := es.RenderQuery(querymeta.WithOperation(context.Background(), "evil"), eventstore.BuildEventFilter().MatchingAnyEvent())

	require.NoError(t, err)
	assert.Regexp(t, startsWith(`/* x * / DROP TABLE events; / * */ SELECT`), sqlQuery)
}

func Test_RenderQuery_DropsInvalidUTF8FromTheComment(t *testing.T) {
	registry := querymeta.NewRegistry()
	require.NoError(t, registry.Register("findAllActive", querymeta.MustNew(querymeta.WithComment("bad \xff\xfe bytes"))))

	db, _ := givenMockedSQLDB(t)
	es, err := NewEventStoreFromSQLDB(db, WithQueryMeta(registry))
	require.NoError(t, err)

	sqlQuery, err := es.RenderQuery(querymeta.WithOperation(context.Background(), "findAllActive"), eventstore.BuildEventFilter().MatchingAnyEvent())

	require.NoError(t, err)
	assert.True(t, utf8.ValidString(sqlQuery))
	assert.Regexp(t, startsWith(`/* bad  bytes */ SELECT`), sqlQuery)
}

func Test_RenderAppend(t *testing.T) {
	db, _ := givenMockedSQLDB(t)
	es, err := NewEventStoreFromSQLDB(db, WithQueryMeta(givenRegistry(t)))
	require.NoError(t, err)

	bookID := GivenUniqueID(t)
	ctx := querymeta.WithOperation(context.Background(), "lendBookCopy")
	filter := FilterAllEventTypesForOneBookCopy(bookID)

	_, err = es.RenderAppend(ctx, filter, 0)
	assert.ErrorIs(t, err, eventstore.ErrNoEventsToAppend)

	sqlQuery, err := es.RenderAppend(ctx, filter, 42, FixtureStorableEvent(t, BookCopyLentToReaderEventType, bookID, time.Now()))
	require.NoError(t, err)
	assert.Regexp(t, startsWith(`/* lend book copy */ WITH context AS (SELECT MAX("sequence_number") AS "max_seq"`), sqlQuery)
	assert.Contains(t, sqlQuery, `INSERT INTO "events"`)
	assert.Contains(t, sqlQuery, `= 42`)
}
