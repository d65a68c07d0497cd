package library

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore"
	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore/querymeta"
)

var (
	// ErrBookCopyNotInCirculation is returned when lending a book copy which is not (or no longer) in circulation.
	ErrBookCopyNotInCirculation = errors.New("book copy is not in circulation")

	// ErrBookCopyAlreadyLent is returned when lending a book copy which is lent to another reader.
	ErrBookCopyAlreadyLent = errors.New("book copy is already lent to another reader")
)

// EventStore defines what the Repository needs from the event store.
type EventStore interface {
	Query(ctx context.Context, filter eventstore.Filter) (
		eventstore.StorableEvents,
		eventstore.MaxSequenceNumberUint,
		error,
	)
	Append(
		ctx context.Context,
		filter eventstore.Filter,
		expectedMaxSequenceNumber eventstore.MaxSequenceNumberUint,
		event eventstore.StorableEvent,
		additionalEvents ...eventstore.StorableEvent,
	) error
}

// Repository runs the library's operations against the event store, each one tagged with its operation name.
type Repository struct {
	eventStore  EventStore
	maxAttempts int
	baseDelay   time.Duration
	now         func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithRetry sets how often a command is attempted on concurrency conflicts and the initial backoff delay.
// A command is attempted at least once, even if maxAttempts is less than 1.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(r *Repository) {
		r.maxAttempts = maxAttempts
		r.baseDelay = baseDelay
	}
}

// NewRepository creates a Repository.
func NewRepository(eventStore EventStore, options ...Option) *Repository {
	r := &Repository{
		eventStore:  eventStore,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		now:         time.Now,
	}

	for _, option := range options {
		option(r)
	}

	return r
}

// BooksInCirculation returns the IDs of all book copies currently in circulation, sorted.
func (r *Repository) BooksInCirculation(ctx context.Context) ([]string, error) {
	ctx = querymeta.WithOperation(ctx, OperationBooksInCirculation)

	filter := eventstore.BuildEventFilter().
		Matching().
		AnyEventTypeOf(BookCopyAddedToCirculationEventType, BookCopyRemovedFromCirculationEventType).
		Finalize()

	storableEvents, _, err := r.eventStore.Query(eventstore.WithEventualConsistency(ctx), filter)
	if err != nil {
		return nil, err
	}

	history, err := eventsFrom(storableEvents)
	if err != nil {
		return nil, err
	}

	inCirculation := make(map[string]bool)
	for _, event := range history {
		switch event.Type {
		case BookCopyAddedToCirculationEventType:
			inCirculation[event.BookID] = true
		case BookCopyRemovedFromCirculationEventType:
			delete(inCirculation, event.BookID)
		}
	}

	bookIDs := make([]string, 0, len(inCirculation))
	for bookID := range inCirculation {
		bookIDs = append(bookIDs, bookID)
	}

	slices.Sort(bookIDs)

	return bookIDs, nil
}

// BookCopyHistory returns all events of one book copy in the order they happened.
func (r *Repository) BookCopyHistory(ctx context.Context, bookID string) ([]Event, error) {
	ctx = querymeta.WithOperation(ctx, OperationBookCopyHistory)

	storableEvents, _, err := r.eventStore.Query(ctx, bookCopyFilter(bookID))
	if err != nil {
		return nil, err
	}

	return eventsFrom(storableEvents)
}

// LendBookCopyToReader records that the reader borrowed the book copy.
// Lending a copy to the reader who already has it is a no-op. Concurrency conflicts are retried.
func (r *Repository) LendBookCopyToReader(ctx context.Context, bookID string, readerID string) error {
	ctx = eventstore.WithStrongConsistency(querymeta.WithOperation(ctx, OperationLendBookCopyToReader))
	filter := bookCopyFilter(bookID)

	return retryOnConflict(ctx, r.maxAttempts, r.baseDelay, func(ctx context.Context) error {
		storableEvents, maxSequenceNumber, err := r.eventStore.Query(ctx, filter)
		if err != nil {
			return err
		}

		history, err := eventsFrom(storableEvents)
		if err != nil {
			return err
		}

		lend, err := decideLending(history, readerID)
		if err != nil || !lend {
			return err
		}

		storableEvent, err := storableEventFrom(Event{
			Type:       BookCopyLentToReaderEventType,
			BookID:     bookID,
			ReaderID:   readerID,
			OccurredAt: r.now(),
		}, uuid.NewString())
		if err != nil {
			return err
		}

		return r.eventStore.Append(ctx, filter, maxSequenceNumber, storableEvent)
	})
}

// decideLending reports whether a BookCopyLentToReader event has to be appended.
func decideLending(history []Event, readerID string) (bool, error) {
	inCirculation := false
	lentTo := ""

	for _, event := range history {
		switch event.Type {
		case BookCopyAddedToCirculationEventType:
			inCirculation = true
		case BookCopyRemovedFromCirculationEventType:
			inCirculation = false
		case BookCopyLentToReaderEventType:
			lentTo = event.ReaderID
		case BookCopyReturnedByReaderEventType:
			lentTo = ""
		}
	}

	switch {
	case !inCirculation:
		return false, ErrBookCopyNotInCirculation
	case lentTo == readerID:
		return false, nil
	case lentTo != "":
		return false, ErrBookCopyAlreadyLent
	default:
		return true, nil
	}
}

func bookCopyFilter(bookID string) eventstore.Filter {
	return eventstore.BuildEventFilter().
		Matching().
		AnyEventTypeOf(
			BookCopyAddedToCirculationEventType,
			BookCopyRemovedFromCirculationEventType,
			BookCopyLentToReaderEventType,
			BookCopyReturnedByReaderEventType,
		).
		AnyPredicateOf(eventstore.P("BookID", bookID)).
		Finalize()
}
