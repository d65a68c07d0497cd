package postgresengine

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore"
)

const (
	logMsgBuildSelectQueryFailed   = "failed to build select query"
	logMsgDBQueryFailed            = "database query execution failed"
	logMsgCloseRowsFailed          = "failed to close database rows"
	logMsgScanRowFailed            = "failed to scan database row"
	logMsgBuildStorableEventFailed = "failed to build storable event from database row"
	logMsgBuildInsertQueryFailed   = "failed to build insert query"
	logMsgDBExecFailed             = "database execution failed during event append"
	logMsgRowsAffectedFailed       = "failed to get rows affected count"
	logMsgQueryCompleted           = "query completed"
	logMsgEventsAppended           = "events appended"
	logMsgConcurrencyConflict      = "concurrency conflict detected"
	logMsgSQLExecuted              = "executed sql for: "
	logMsgOperation                = "eventstore operation: "
	logAttrError                   = "error"
	logAttrQuery                   = "query"
	logAttrOperation               = "operation"
	logAttrQueryComment            = "query_comment"
	logAttrEventType               = "event_type"
	logAttrEventCount              = "event_count"
	logAttrDurationMS              = "duration_ms"
	logAttrExpectedEvents          = "expected_events"
	logAttrRowsAffected            = "rows_affected"
	logAttrExpectedSequence        = "expected_sequence"
	logActionQuery                 = "query"
	logActionAppend                = "append"

	spanNameQuery        = "eventstore.query"
	spanNameAppend       = "eventstore.append"
	spanAttrAction       = "action"
	spanAttrOperation    = "operation"
	spanAttrQueryComment = "query_comment"
	spanAttrEventCount   = "event_count"
	spanAttrEventType    = "event_type"
	spanAttrMaxSequence  = "max_sequence"
	spanAttrExpectedSeq  = "expected_sequence"
	spanAttrRowsAffected = "rows_affected"
	spanAttrDurationMS   = "duration_ms"
	spanAttrErrorType    = "error_type"

	metricQueryDuration        = "eventstore_query_duration_seconds"
	metricAppendDuration       = "eventstore_append_duration_seconds"
	metricEventsQueried        = "eventstore_events_queried_total"
	metricEventsAppended       = "eventstore_events_appended_total"
	metricDatabaseErrors       = "eventstore_database_errors_total"
	metricConcurrencyConflicts = "eventstore_concurrency_conflicts_total"
	labelOperation             = "operation"
	labelStatus                = "status"
	labelErrorType             = "error_type"

	statusSuccess  = "success"
	statusError    = "error"
	statusConflict = "conflict"

	errorTypeBuildQuery    = "build_query"
	errorTypeDatabaseQuery = "database_query"
	errorTypeDatabaseExec  = "database_exec"
	errorTypeRowScan       = "row_scan"
)

// logArgs returns the attributes identifying the repository operation, the comment only if there is one.
func (m queryMeta) logArgs() []any {
	args := []any{logAttrOperation, m.operation}

	if m.comment != "" {
		args = append(args, logAttrQueryComment, m.comment)
	}

	return args
}

// spanAttrs returns the span attributes identifying the repository operation.
func (m queryMeta) spanAttrs(action string) map[string]string {
	attrs := map[string]string{
		spanAttrAction:    action,
		spanAttrOperation: m.operation,
	}

	if m.comment != "" {
		attrs[spanAttrQueryComment] = m.comment
	}

	return attrs
}

// === Logging ===
// Every message goes to the Logger and to the ContextualLogger, whichever are configured.

// logQueryWithDuration logs SQL queries with execution time at debug level.
func (es *EventStore) logQueryWithDuration(
	ctx context.Context,
	sqlQuery string,
	action string,
	duration time.Duration,
	meta queryMeta,
) {

	args := append(meta.logArgs(), logAttrDurationMS, es.toMilliseconds(duration), logAttrQuery, sqlQuery)

	if es.logger != nil {
		es.logger.Debug(logMsgSQLExecuted+action, args...)
	}

	if es.contextualLogger != nil {
		es.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, args...)
	}
}

// logOperation logs operational information at info level.
func (es *EventStore) logOperation(ctx context.Context, action string, args ...any) {
	if es.logger != nil {
		es.logger.Info(logMsgOperation+action, args...)
	}

	if es.contextualLogger != nil {
		es.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	}
}

// logWarn logs non-critical issues at warn level.
func (es *EventStore) logWarn(ctx context.Context, message string, args ...any) {
	if es.logger != nil {
		es.logger.Warn(message, args...)
	}

	if es.contextualLogger != nil {
		es.contextualLogger.WarnContext(ctx, message, args...)
	}
}

// logError logs failures at error level.
func (es *EventStore) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if es.logger != nil {
		es.logger.Error(message, allArgs...)
	}

	if es.contextualLogger != nil {
		es.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (es *EventStore) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func (es *EventStore) formatDuration(d time.Duration) string {
	return strconv.FormatFloat(es.toMilliseconds(d), 'f', 2, 64)
}

// === Tracing ===
// The observers hide whether a TracingCollector is configured at all.

type queryTracingObserver struct {
	es   *EventStore
	span eventstore.SpanContext
}

type appendTracingObserver struct {
	es   *EventStore
	span eventstore.SpanContext
}

func (es *EventStore) startQueryTracing(ctx context.Context, meta queryMeta) (*queryTracingObserver, context.Context) {
	if es.tracingCollector == nil {
		return &queryTracingObserver{es: es}, ctx
	}

	newCtx, span := es.tracingCollector.StartSpan(ctx, spanNameQuery, meta.spanAttrs(logActionQuery))

	return &queryTracingObserver{es: es, span: span}, newCtx
}

func (es *EventStore) startAppendTracing(
	ctx context.Context,
	meta queryMeta,
	events eventstore.StorableEvents,
	expectedMaxSequenceNumber eventstore.MaxSequenceNumberUint,
) (*appendTracingObserver, context.Context) {

	if es.tracingCollector == nil {
		return &appendTracingObserver{es: es}, ctx
	}

	attrs := meta.spanAttrs(logActionAppend)
	attrs[spanAttrEventCount] = strconv.Itoa(len(events))
	attrs[spanAttrExpectedSeq] = strconv.FormatUint(uint64(expectedMaxSequenceNumber), 10)

	if len(events) > 0 {
		attrs[spanAttrEventType] = events[0].EventType
	}

	newCtx, span := es.tracingCollector.StartSpan(ctx, spanNameAppend, attrs)

	return &appendTracingObserver{es: es, span: span}, newCtx
}

func (o *queryTracingObserver) finishSuccess(
	eventStream eventstore.StorableEvents,
	maxSequenceNumber eventstore.MaxSequenceNumberUint,
	duration time.Duration,
) {

	if o.span == nil {
		return
	}

	o.es.tracingCollector.FinishSpan(o.span, statusSuccess, map[string]string{
		spanAttrEventCount:  strconv.Itoa(len(eventStream)),
		spanAttrMaxSequence: strconv.FormatUint(uint64(maxSequenceNumber), 10),
		spanAttrDurationMS:  o.es.formatDuration(duration),
	})
}

func (o *queryTracingObserver) finishError(errorType string, duration time.Duration) {
	if o.span == nil {
		return
	}

	o.es.tracingCollector.FinishSpan(o.span, statusError, errorAttrs(o.es, errorType, duration))
}

func (o *appendTracingObserver) finishSuccess(rowsAffected int64, duration time.Duration) {
	if o.span == nil {
		return
	}

	o.es.tracingCollector.FinishSpan(o.span, statusSuccess, map[string]string{
		spanAttrRowsAffected: strconv.FormatInt(rowsAffected, 10),
		spanAttrDurationMS:   o.es.formatDuration(duration),
	})
}

func (o *appendTracingObserver) finishConflict(rowsAffected int64, duration time.Duration) {
	if o.span == nil {
		return
	}

	o.es.tracingCollector.FinishSpan(o.span, statusConflict, map[string]string{
		spanAttrRowsAffected: strconv.FormatInt(rowsAffected, 10),
		spanAttrDurationMS:   o.es.formatDuration(duration),
	})
}

func (o *appendTracingObserver) finishError(errorType string, duration time.Duration) {
	if o.span == nil {
		return
	}

	o.es.tracingCollector.FinishSpan(o.span, statusError, errorAttrs(o.es, errorType, duration))
}

func errorAttrs(es *EventStore, errorType string, duration time.Duration) map[string]string {
	attrs := map[string]string{spanAttrErrorType: errorType}

	if duration > 0 {
		attrs[spanAttrDurationMS] = es.formatDuration(duration)
	}

	return attrs
}

// === Metrics ===

type metricsObserver struct {
	es             *EventStore
	ctx            context.Context
	operation      string
	durationMetric string
}

// startMetrics creates an observer which records all durations of one Query or Append call into durationMetric.
func (es *EventStore) startMetrics(ctx context.Context, meta queryMeta, durationMetric string) *metricsObserver {
	return &metricsObserver{es: es, ctx: ctx, operation: meta.operation, durationMetric: durationMetric}
}

func (o *metricsObserver) labels(status string) map[string]string {
	return map[string]string{
		labelOperation: o.operation,
		labelStatus:    status,
	}
}

// recordSuccess records a successful query.
func (o *metricsObserver) recordSuccess(eventStream eventstore.StorableEvents, duration time.Duration) {
	o.recordDuration(o.durationMetric, duration, o.labels(statusSuccess))
	o.recordValue(metricEventsQueried, float64(len(eventStream)), o.labels(statusSuccess))
}

func (o *metricsObserver) recordError(errorType string, duration time.Duration) {
	labels := o.labels(statusError)
	labels[labelErrorType] = errorType

	o.recordDuration(o.durationMetric, duration, o.labels(statusError))
	o.incrementCounter(metricDatabaseErrors, labels)
}

func (o *metricsObserver) recordConcurrencyConflict(duration time.Duration) {
	o.recordDuration(o.durationMetric, duration, o.labels(statusConflict))
	o.incrementCounter(metricConcurrencyConflicts, o.labels(statusConflict))
}

func (o *metricsObserver) recordAppendSuccess(eventCount int, duration time.Duration) {
	o.recordDuration(o.durationMetric, duration, o.labels(statusSuccess))
	o.recordValue(metricEventsAppended, float64(eventCount), o.labels(statusSuccess))
}

func (o *metricsObserver) recordDuration(metric string, duration time.Duration, labels map[string]string) {
	if o.es.metricsCollector == nil {
		return
	}

	if contextual, ok := o.es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(o.ctx, metric, duration, labels)
		return
	}

	o.es.metricsCollector.RecordDuration(metric, duration, labels)
}

func (o *metricsObserver) recordValue(metric string, value float64, labels map[string]string) {
	if o.es.metricsCollector == nil {
		return
	}

	if contextual, ok := o.es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextual.RecordValueContext(o.ctx, metric, value, labels)
		return
	}

	o.es.metricsCollector.RecordValue(metric, value, labels)
}

func (o *metricsObserver) incrementCounter(metric string, labels map[string]string) {
	if o.es.metricsCollector == nil {
		return
	}

	if contextual, ok := o.es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(o.ctx, metric, labels)
		return
	}

	o.es.metricsCollector.IncrementCounter(metric, labels)
}
