package eventstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_BuildStorableEvent_RejectsInvalidJSON(t *testing.T) {
	validJSON := []byte(`{"BookID": "book-123"}`)

	tests := []struct {
		name         string
		payloadJSON  []byte
		metadataJSON []byte
		expectedErr  error
	}{
		{name: "malformed payload", payloadJSON: []byte(`{"invalid": json}`), metadataJSON: validJSON, expectedErr: ErrInvalidPayloadJSON},
		{name: "empty payload", payloadJSON: []byte(``), metadataJSON: validJSON, expectedErr: ErrInvalidPayloadJSON},
		{name: "nil payload", payloadJSON: nil, metadataJSON: validJSON, expectedErr: ErrInvalidPayloadJSON},
		{name: "malformed metadata", payloadJSON: validJSON, metadataJSON: []byte(`{"invalid": json}`), expectedErr: ErrInvalidMetadataJSON},
		{name: "nil metadata", payloadJSON: validJSON, metadataJSON: nil, expectedErr: ErrInvalidMetadataJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildStorableEvent("BookCopyLentToReader", time.Now(), tt.payloadJSON, tt.metadataJSON)
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func Test_BuildStorableEventWithEmptyMetadata_Success(t *testing.T) {
	occurredAt := time.Now()
	payloadJSON := []byte(`{"BookID": "book-123", "ReaderID": "reader-456"}`)

	storableEvent, err := BuildStorableEventWithEmptyMetadata("BookCopyReturnedByReader", occurredAt, payloadJSON)

	assert.NoError(t, err)
	assert.Equal(t, "BookCopyReturnedByReader", storableEvent.EventType)
	assert.Equal(t, occurredAt, storableEvent.OccurredAt)
	assert.Equal(t, payloadJSON, storableEvent.PayloadJSON)
	assert.Equal(t, []byte(`{}`), storableEvent.MetadataJSON)
}

func Test_BuildStorableEventWithEmptyMetadata_RejectsInvalidPayload(t *testing.T) {
	_, err := BuildStorableEventWithEmptyMetadata("BookCopyReturnedByReader", time.Now(), []byte(`nope`))

	assert.ErrorIs(t, err, ErrInvalidPayloadJSON)
}
