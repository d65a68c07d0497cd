package helper

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// LogHandlerSpy is a slog.Handler implementation that captures log records for testing.
type LogHandlerSpy struct {
	records     []slog.Record
	mu          sync.Mutex
	logToStdout bool
}

// NewLogHandlerSpy creates a new LogHandlerSpy
// Switchable to log to stdout, which can be useful for debugging tests by seeing the actual log output.
func NewLogHandlerSpy(logToStdOut bool) *LogHandlerSpy {
	return &LogHandlerSpy{
		records:     make([]slog.Record, 0),
		logToStdout: logToStdOut,
	}
}

// Handle implements slog.Handler interface.
func (s *LogHandlerSpy) Handle(ctx context.Context, record slog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)

	if s.logToStdout {
		jsonHandler := slog.NewJSONHandler(os.Stdout, nil)
		_ = jsonHandler.Handle(ctx, record)
	}

	return nil
}

// Enabled implements slog.Handler interface.
func (s *LogHandlerSpy) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

// WithAttrs implements slog.Handler interface.
func (s *LogHandlerSpy) WithAttrs(_ []slog.Attr) slog.Handler {
	return s
}

// WithGroup implements slog.Handler interface.
func (s *LogHandlerSpy) WithGroup(_ string) slog.Handler {
	return s
}

// GetRecords returns a copy of all captured log records.
func (s *LogHandlerSpy) GetRecords() []slog.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]slog.Record, len(s.records))
	copy(records, s.records)

	return records
}

// Reset clears all captured log records.
func (s *LogHandlerSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = s.records[:0]
}

// SpyLogRecordMatcher provides a fluent interface for checking log record attributes.
type SpyLogRecordMatcher struct {
	records []slog.Record
}

// HasDebugLogWithMessage starts a fluent chain to check a debug-level log record.
func (s *LogHandlerSpy) HasDebugLogWithMessage(message string) *SpyLogRecordMatcher {
	return s.matching(slog.LevelDebug, message)
}

// HasInfoLogWithMessage starts a fluent chain to check an info-level log record.
func (s *LogHandlerSpy) HasInfoLogWithMessage(message string) *SpyLogRecordMatcher {
	return s.matching(slog.LevelInfo, message)
}

// HasWarnLogWithMessage starts a fluent chain to check a warn-level log record.
func (s *LogHandlerSpy) HasWarnLogWithMessage(message string) *SpyLogRecordMatcher {
	return s.matching(slog.LevelWarn, message)
}

// HasErrorLogWithMessage starts a fluent chain to check an error-level log record.
func (s *LogHandlerSpy) HasErrorLogWithMessage(message string) *SpyLogRecordMatcher {
	return s.matching(slog.LevelError, message)
}

func (s *LogHandlerSpy) matching(level slog.Level, message string) *SpyLogRecordMatcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches := make([]slog.Record, 0)
	for _, record := range s.records {
		if record.Level == level && record.Message == message {
			matches = append(matches, record)
		}
	}

	return &SpyLogRecordMatcher{records: matches}
}

// WithAttribute narrows the matches to records carrying the attribute with the given string value.
func (m *SpyLogRecordMatcher) WithAttribute(key, value string) *SpyLogRecordMatcher {
	return m.filter(func(attr slog.Attr) bool {
		return attr.Key == key && attr.Value.String() == value
	})
}

// WithoutAttribute narrows the matches to records that do not carry the attribute at all.
func (m *SpyLogRecordMatcher) WithoutAttribute(key string) *SpyLogRecordMatcher {
	matches := make([]slog.Record, 0, len(m.records))

	for _, record := range m.records {
		found := false
		record.Attrs(func(attr slog.Attr) bool {
			found = attr.Key == key
			return !found
		})

		if !found {
			matches = append(matches, record)
		}
	}

	return &SpyLogRecordMatcher{records: matches}
}

// WithDurationMS narrows the matches to records with a non-negative duration_ms attribute.
func (m *SpyLogRecordMatcher) WithDurationMS() *SpyLogRecordMatcher {
	return m.filter(func(attr slog.Attr) bool {
		return attr.Key == "duration_ms" && attr.Value.Kind() == slog.KindFloat64 && attr.Value.Float64() >= 0
	})
}

// Assert returns true if at least one record is still matching.
func (m *SpyLogRecordMatcher) Assert() bool {
	return len(m.records) > 0
}

func (m *SpyLogRecordMatcher) filter(predicate func(slog.Attr) bool) *SpyLogRecordMatcher {
	matches := make([]slog.Record, 0, len(m.records))

	for _, record := range m.records {
		found := false
		record.Attrs(func(attr slog.Attr) bool {
			found = predicate(attr)
			return !found
		})

		if found {
			matches = append(matches, record)
		}
	}

	return &SpyLogRecordMatcher{records: matches}
}
