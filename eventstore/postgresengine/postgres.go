package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore"
	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore/postgresengine/internal/adapters"
	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore/querymeta"
)

const (
	defaultEventTableName = "events"
	colEventType          = "event_type"
	colOccurredAt         = "occurred_at"
	colPayload            = "payload"
	colMetadata           = "metadata"
	colSequenceNumber     = "sequence_number"
	cteContext            = "context"
	cteVals               = "vals"
	dialectPostgres       = "postgres"
	aliasMaxSeq           = "max_seq"
	castText              = "?::text"
	castTimestamp         = "?::timestamp with time zone"
	castJsonb             = "?::jsonb"
	payloadContains       = colPayload + " @> ?::jsonb"
)

type (
	sqlQueryString    = string
	rowsAffectedInt64 = int64
	queryDuration     = time.Duration
)

// EventStore is the PostgreSQL implementation of an event store with dynamic event streams.
//
// It acts as the query builder for repository operations: every Query and Append resolves the operation's
// query metadata and embeds its comment into the generated SQL.
type EventStore struct {
	db               adapters.DBAdapter
	eventTableName   string
	logger           eventstore.Logger
	contextualLogger eventstore.ContextualLogger
	metricsCollector eventstore.MetricsCollector
	tracingCollector eventstore.TracingCollector
	queryMeta        *querymeta.Registry
}

type queryResultRow struct {
	eventType         string
	payload           []byte
	metadata          []byte
	occurredAt        time.Time
	maxSequenceNumber eventstore.MaxSequenceNumberUint
}

// NewEventStoreFromPGXPool creates a new EventStore using a pgx Pool with optional configuration.
func NewEventStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewPGXAdapter(db), options...)
}

// NewEventStoreFromPGXPoolAndReplica creates a new EventStore which sends eventually consistent queries to the replica.
// See eventstore.WithEventualConsistency.
func NewEventStoreFromPGXPoolAndReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (*EventStore, error) {
	if db == nil || replica == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewEventStoreFromSQLDB creates a new EventStore using a sql.DB with optional configuration.
func NewEventStoreFromSQLDB(db *sql.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLAdapter(db), options...)
}

// NewEventStoreFromSQLX creates a new EventStore using a sqlx.DB with optional configuration.
func NewEventStoreFromSQLX(db *sqlx.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLXAdapter(db), options...)
}

func newEventStore(db adapters.DBAdapter, options ...Option) (*EventStore, error) {
	es := &EventStore{
		db:             db,
		eventTableName: defaultEventTableName,
	}

	for _, option := range options {
		if err := option(es); err != nil {
			return nil, err
		}
	}

	return es, nil
}

// Query retrieves events from the Postgres event store based on the provided eventstore.Filter criteria
// and returns them as eventstore.StorableEvents
// as well as the MaxSequenceNumberUint for this "dynamic event stream" at the time of the query.
//
// The repository operation is taken from the context (see querymeta.WithOperation),
// without one the query runs as eventstore.OperationQuery.
func (es *EventStore) Query(ctx context.Context, filter eventstore.Filter) (
	eventstore.StorableEvents,
	eventstore.MaxSequenceNumberUint,
	error,
) {

	var empty eventstore.StorableEvents

	meta := es.resolveQueryMeta(ctx, eventstore.OperationQuery)
	tracing, ctx := es.startQueryTracing(ctx, meta)
	metrics := es.startMetrics(ctx, meta, metricQueryDuration)

	sqlQuery, buildQueryErr := es.buildSelectQuery(filter, meta)
	if buildQueryErr != nil {
		es.logError(ctx, logMsgBuildSelectQueryFailed, buildQueryErr, meta.logArgs()...)
		tracing.finishError(errorTypeBuildQuery, 0)
		metrics.recordError(errorTypeBuildQuery, 0)

		return empty, 0, buildQueryErr
	}

	rows, duration, queryErr := es.executeQuery(ctx, sqlQuery, meta)
	if queryErr != nil {
		tracing.finishError(errorTypeDatabaseQuery, duration)
		metrics.recordError(errorTypeDatabaseQuery, duration)

		return empty, 0, queryErr
	}
	defer es.closeRows(ctx, rows)

	eventStream, maxSequenceNumber, scanErr := es.processQueryResults(ctx, rows)
	if scanErr != nil {
		tracing.finishError(errorTypeRowScan, duration)
		metrics.recordError(errorTypeRowScan, duration)

		return empty, 0, scanErr
	}

	es.logOperation(
		ctx,
		logMsgQueryCompleted,
		append(meta.logArgs(),
			logAttrEventCount, len(eventStream),
			logAttrDurationMS, es.toMilliseconds(duration))...,
	)
	tracing.finishSuccess(eventStream, maxSequenceNumber, duration)
	metrics.recordSuccess(eventStream, duration)

	return eventStream, maxSequenceNumber, nil
}

// RenderQuery returns the SQL which Query would execute for the filter in this context, comment included.
// It does not touch the database.
func (es *EventStore) RenderQuery(ctx context.Context, filter eventstore.Filter) (string, error) {
	return es.buildSelectQuery(filter, es.resolveQueryMeta(ctx, eventstore.OperationQuery))
}

// executeQuery executes the SQL query and returns rows with timing information.
func (es *EventStore) executeQuery(ctx context.Context, sqlQuery string, meta queryMeta) (
	adapters.DBRows,
	queryDuration,
	error,
) {

	start := time.Now()
	rows, queryErr := es.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDuration(ctx, sqlQuery, logActionQuery, duration, meta)

	if queryErr != nil {
		es.logError(ctx, logMsgDBQueryFailed, queryErr, append(meta.logArgs(), logAttrQuery, sqlQuery)...)

		return nil, duration, errors.Join(eventstore.ErrQueryingEventsFailed, queryErr)
	}

	return rows, duration, nil
}

// closeRows closes database rows and logs any errors.
func (es *EventStore) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		es.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

// processQueryResults converts database rows to storable events.
func (es *EventStore) processQueryResults(ctx context.Context, rows adapters.DBRows) (
	eventstore.StorableEvents,
	eventstore.MaxSequenceNumberUint,
	error,
) {

	var empty eventstore.StorableEvents
	result := queryResultRow{}
	eventStream := make(eventstore.StorableEvents, 0)
	maxSequenceNumber := eventstore.MaxSequenceNumberUint(0)

	for rows.Next() {
		rowScanErr := rows.Scan(&result.eventType, &result.occurredAt, &result.payload, &result.metadata, &result.maxSequenceNumber)
		if rowScanErr != nil {
			es.logError(ctx, logMsgScanRowFailed, rowScanErr)

			return empty, 0, errors.Join(eventstore.ErrScanningDBRowFailed, rowScanErr)
		}

		event, buildStorableErr := eventstore.BuildStorableEvent(result.eventType, result.occurredAt, result.payload, result.metadata)
		if buildStorableErr != nil {
			es.logError(ctx, logMsgBuildStorableEventFailed, buildStorableErr, logAttrEventType, result.eventType)

			return empty, 0, errors.Join(eventstore.ErrBuildingStorableEventFailed, buildStorableErr)
		}

		eventStream = append(eventStream, event)
		maxSequenceNumber = result.maxSequenceNumber
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		es.logError(ctx, logMsgScanRowFailed, rowsErr)

		return empty, 0, errors.Join(eventstore.ErrScanningDBRowFailed, rowsErr)
	}

	return eventStream, maxSequenceNumber, nil
}

// Append attempts to append one or multiple eventstore.StorableEvent(s) onto the Postgres event store respecting concurrency constraints
// for this "dynamic event stream" based on the provided eventstore.Filter criteria and the expected MaxSequenceNumberUint.
//
// The provided eventstore.Filter criteria should be the same as the ones used for the Query before making the business decisions.
//
// The insert query to append multiple events atomically is heavier than the one built to append a single event.
// In event-sourced applications, one command/request should typically only produce one event.
//
// The repository operation is taken from the context (see querymeta.WithOperation),
// without one the append runs as eventstore.OperationAppend.
func (es *EventStore) Append(
	ctx context.Context,
	filter eventstore.Filter,
	expectedMaxSequenceNumber eventstore.MaxSequenceNumberUint,
	event eventstore.StorableEvent,
	additionalEvents ...eventstore.StorableEvent,
) error {

	allEvents := eventstore.StorableEvents{event}
	allEvents = append(allEvents, additionalEvents...)

	meta := es.resolveQueryMeta(ctx, eventstore.OperationAppend)
	tracing, ctx := es.startAppendTracing(ctx, meta, allEvents, expectedMaxSequenceNumber)
	metrics := es.startMetrics(ctx, meta, metricAppendDuration)

	sqlQuery, buildQueryErr := es.buildAppendQuery(allEvents, filter, expectedMaxSequenceNumber, meta)
	if buildQueryErr != nil {
		es.logError(ctx, logMsgBuildInsertQueryFailed, buildQueryErr, append(meta.logArgs(), logAttrEventCount, len(allEvents))...)
		tracing.finishError(errorTypeBuildQuery, 0)
		metrics.recordError(errorTypeBuildQuery, 0)

		return buildQueryErr
	}

	rowsAffected, duration, execErr := es.executeAppendQuery(ctx, sqlQuery, meta)
	if execErr != nil {
		tracing.finishError(errorTypeDatabaseExec, duration)
		metrics.recordError(errorTypeDatabaseExec, duration)

		return execErr
	}

	if rowsAffected < int64(len(allEvents)) {
		es.logOperation(
			ctx,
			logMsgConcurrencyConflict,
			append(meta.logArgs(),
				logAttrExpectedEvents, len(allEvents),
				logAttrRowsAffected, rowsAffected,
				logAttrExpectedSequence, expectedMaxSequenceNumber)...,
		)
		tracing.finishConflict(rowsAffected, duration)
		metrics.recordConcurrencyConflict(duration)

		return eventstore.ErrConcurrencyConflict
	}

	es.logOperation(
		ctx,
		logMsgEventsAppended,
		append(meta.logArgs(),
			logAttrEventCount, len(allEvents),
			logAttrDurationMS, es.toMilliseconds(duration))...,
	)
	tracing.finishSuccess(rowsAffected, duration)
	metrics.recordAppendSuccess(len(allEvents), duration)

	return nil
}

// RenderAppend returns the SQL which Append would execute in this context, comment included.
// It does not touch the database.
func (es *EventStore) RenderAppend(
	ctx context.Context,
	filter eventstore.Filter,
	expectedMaxSequenceNumber eventstore.MaxSequenceNumberUint,
	events ...eventstore.StorableEvent,
) (string, error) {

	if len(events) == 0 {
		return "", eventstore.ErrNoEventsToAppend
	}

	return es.buildAppendQuery(events, filter, expectedMaxSequenceNumber, es.resolveQueryMeta(ctx, eventstore.OperationAppend))
}

// executeAppendQuery executes the SQL append query and returns rows affected and duration.
func (es *EventStore) executeAppendQuery(ctx context.Context, sqlQuery string, meta queryMeta) (
	rowsAffectedInt64,
	queryDuration,
	error,
) {

	start := time.Now()
	result, execErr := es.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDuration(ctx, sqlQuery, logActionAppend, duration, meta)

	if execErr != nil {
		es.logError(ctx, logMsgDBExecFailed, execErr, append(meta.logArgs(), logAttrQuery, sqlQuery)...)

		return 0, duration, errors.Join(eventstore.ErrAppendingEventFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		es.logError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr)

		return 0, duration, errors.Join(eventstore.ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	return rowsAffected, duration, nil
}

func (es *EventStore) buildSelectQuery(filter eventstore.Filter, meta queryMeta) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.eventTableName).
		Select(colEventType, colOccurredAt, colPayload, colMetadata, colSequenceNumber).
		Order(goqu.I(colSequenceNumber).Asc())

	selectStmt, whereErr := es.addWhereClause(filter, selectStmt)
	if whereErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, whereErr)
	}

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return withComment(meta.comment, sqlQuery), nil
}

// buildAppendQuery builds a CTE-guarded INSERT which only inserts if the max sequence number of the
// "dynamic event stream" still equals the expected one.
func (es *EventStore) buildAppendQuery(
	events eventstore.StorableEvents,
	filter eventstore.Filter,
	expectedMaxSequenceNumber eventstore.MaxSequenceNumberUint,
	meta queryMeta,
) (sqlQueryString, error) {

	builder := goqu.Dialect(dialectPostgres)

	cteStmt := builder.
		From(es.eventTableName).
		Select(goqu.MAX(colSequenceNumber).As(aliasMaxSeq))

	cteStmt, whereErr := es.addWhereClause(filter, cteStmt)
	if whereErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, whereErr)
	}

	guard := goqu.COALESCE(goqu.C(aliasMaxSeq), 0).Eq(goqu.V(expectedMaxSequenceNumber))

	var insertStmt *goqu.InsertDataset

	switch len(events) {
	case 1:
		insertStmt = builder.
			Insert(es.eventTableName).
			Cols(colEventType, colOccurredAt, colPayload, colMetadata).
			With(cteContext, cteStmt).
			FromQuery(
				builder.From(cteContext).
					Select(eventColumns(events[0])...).
					Where(guard),
			)

	default:
		valuesStmt := builder.Select(eventColumns(events[0])...)
		for _, event := range events[1:] {
			valuesStmt = valuesStmt.UnionAll(builder.Select(eventColumns(event)...))
		}

		insertStmt = builder.
			Insert(es.eventTableName).
			Cols(colEventType, colOccurredAt, colPayload, colMetadata).
			With(cteContext, cteStmt).
			With(cteVals, valuesStmt).
			FromQuery(
				builder.From(cteContext, cteVals).
					Select(
						fmt.Sprintf("%s.%s", cteVals, colEventType),
						fmt.Sprintf("%s.%s", cteVals, colOccurredAt),
						fmt.Sprintf("%s.%s", cteVals, colPayload),
						fmt.Sprintf("%s.%s", cteVals, colMetadata),
					).
					Where(guard),
			)
	}

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return withComment(meta.comment, sqlQuery), nil
}

// eventColumns renders the event as explicitly cast literals, so Postgres does not have to infer the column types.
func eventColumns(event eventstore.StorableEvent) []any {
	return []any{
		goqu.L(castText, event.EventType).As(colEventType),
		goqu.L(castTimestamp, event.OccurredAt).As(colOccurredAt),
		goqu.L(castJsonb, string(event.PayloadJSON)).As(colPayload),
		goqu.L(castJsonb, string(event.MetadataJSON)).As(colMetadata),
	}
}

func (es *EventStore) addWhereClause(filter eventstore.Filter, selectStmt *goqu.SelectDataset) (*goqu.SelectDataset, error) {
	itemsExpressions := make([]exp.Expression, 0, len(filter.Items()))

	for _, item := range filter.Items() {
		itemExpressions := make([]exp.Expression, 0, 2)

		if len(item.EventTypes()) > 0 {
			eventTypes := make([]any, 0, len(item.EventTypes()))
			for _, eventType := range item.EventTypes() {
				eventTypes = append(eventTypes, eventType)
			}

			itemExpressions = append(itemExpressions, goqu.C(colEventType).In(eventTypes...))
		}

		if len(item.Predicates()) > 0 {
			predicateExpressions := make([]exp.Expression, 0, len(item.Predicates()))

			for _, predicate := range item.Predicates() {
				predicateJSON, marshalErr := jsoniter.ConfigFastest.MarshalToString(
					map[string]string{predicate.Key(): predicate.Val()},
				)
				if marshalErr != nil {
					return nil, marshalErr
				}

				predicateExpressions = append(predicateExpressions, goqu.L(payloadContains, predicateJSON))
			}

			if item.AllPredicatesMustMatch() {
				itemExpressions = append(itemExpressions, goqu.And(predicateExpressions...))
			} else {
				itemExpressions = append(itemExpressions, goqu.Or(predicateExpressions...))
			}
		}

		itemsExpressions = append(itemsExpressions, goqu.And(itemExpressions...))
	}

	if len(itemsExpressions) > 0 {
		selectStmt = selectStmt.Where(goqu.Or(itemsExpressions...))
	}

	if !filter.OccurredFrom().IsZero() {
		selectStmt = selectStmt.Where(goqu.C(colOccurredAt).Gte(filter.OccurredFrom()))
	}

	if !filter.OccurredUntil().IsZero() {
		selectStmt = selectStmt.Where(goqu.C(colOccurredAt).Lte(filter.OccurredUntil()))
	}

	return selectStmt, nil
}
