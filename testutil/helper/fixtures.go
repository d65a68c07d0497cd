package helper

import (
	"testing"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore"
)

// Event types used by the fixtures.
const (
	BookCopyAddedToCirculationEventType     = "BookCopyAddedToCirculation"
	BookCopyRemovedFromCirculationEventType = "BookCopyRemovedFromCirculation"
	BookCopyLentToReaderEventType           = "BookCopyLentToReader"
)

type bookCopyPayload struct {
	BookID string `json:"BookID"`
	Title  string `json:"Title,omitempty"`
}

type eventMetadata struct {
	MessageID     string `json:"MessageID"`
	CausationID   string `json:"CausationID"`
	CorrelationID string `json:"CorrelationID"`
}

// GivenUniqueID returns a fresh random ID.
func GivenUniqueID(t testing.TB) uuid.UUID {
	t.Helper()

	id, err := uuid.NewRandom()
	require.NoError(t, err)

	return id
}

// FixtureStorableEvent builds a storable event of the given type for the book copy, with fresh metadata IDs.
func FixtureStorableEvent(t testing.TB, eventType string, bookID uuid.UUID, occurredAt time.Time) eventstore.StorableEvent {
	t.Helper()

	payloadJSON, err := jsoniter.ConfigFastest.Marshal(bookCopyPayload{BookID: bookID.String(), Title: "Refactoring"})
	require.NoError(t, err)

	messageID := GivenUniqueID(t).String()
	metadataJSON, err := jsoniter.ConfigFastest.Marshal(eventMetadata{
		MessageID:     messageID,
		CausationID:   messageID,
		CorrelationID: messageID,
	})
	require.NoError(t, err)

	event, err := eventstore.BuildStorableEvent(eventType, occurredAt, payloadJSON, metadataJSON)
	require.NoError(t, err)

	return event
}

// FilterAllEventTypesForOneBookCopy matches all fixture event types of one book copy.
func FilterAllEventTypesForOneBookCopy(bookID uuid.UUID) eventstore.Filter {
	return eventstore.BuildEventFilter().
		Matching().
		AnyEventTypeOf(
			BookCopyAddedToCirculationEventType,
			BookCopyRemovedFromCirculationEventType,
			BookCopyLentToReaderEventType,
		).
		AnyPredicateOf(eventstore.P("BookID", bookID.String())).
		Finalize()
}
