package library

import (
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore"
)

// Event types.
const (
	BookCopyAddedToCirculationEventType     = "BookCopyAddedToCirculation"
	BookCopyRemovedFromCirculationEventType = "BookCopyRemovedFromCirculation"
	BookCopyLentToReaderEventType           = "BookCopyLentToReader"
	BookCopyReturnedByReaderEventType       = "BookCopyReturnedByReader"
)

// ErrUnmarshalingEventFailed is returned when a stored event can not be turned back into an Event.
var ErrUnmarshalingEventFailed = errors.New("unmarshaling event failed")

// Event is a library domain event. ReaderID is empty for events which do not involve a reader.
type Event struct {
	Type       string    `json:"-"`
	BookID     string    `json:"BookID"`
	ReaderID   string    `json:"ReaderID,omitempty"`
	OccurredAt time.Time `json:"-"`
}

type eventMetadata struct {
	MessageID     string `json:"MessageID"`
	CausationID   string `json:"CausationID"`
	CorrelationID string `json:"CorrelationID"`
}

func storableEventFrom(event Event, messageID string) (eventstore.StorableEvent, error) {
	payloadJSON, err := jsoniter.ConfigFastest.Marshal(event)
	if err != nil {
		return eventstore.StorableEvent{}, err
	}

	metadataJSON, err := jsoniter.ConfigFastest.Marshal(eventMetadata{
		MessageID:     messageID,
		CausationID:   messageID,
		CorrelationID: messageID,
	})
	if err != nil {
		return eventstore.StorableEvent{}, err
	}

	return eventstore.BuildStorableEvent(event.Type, event.OccurredAt, payloadJSON, metadataJSON)
}

func eventsFrom(storableEvents eventstore.StorableEvents) ([]Event, error) {
	history := make([]Event, 0, len(storableEvents))

	for _, storableEvent := range storableEvents {
		var event Event
		if err := jsoniter.ConfigFastest.Unmarshal(storableEvent.PayloadJSON, &event); err != nil {
			return nil, errors.Join(ErrUnmarshalingEventFailed, err)
		}

		event.Type = storableEvent.EventType
		event.OccurredAt = storableEvent.OccurredAt
		history = append(history, event)
	}

	return history, nil
}
