package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishJSON(t *testing.T) {
	bus := NewEventBus()

	var got BookingEventPayload
	bus.Subscribe(EventBookingCreated, func(e *Event) error {
		return json.Unmarshal(e.Payload, &got)
	})

	payload := BookingEventPayload{BookingID: 5, StartTime: "09:00", EndTime: "10:30", Status: "pending"}
	require.NoError(t, bus.PublishJSON(EventBookingCreated, payload))

	assert.Equal(t, int64(5), got.BookingID)
	assert.Equal(t, "09:00", got.StartTime)
}

func TestEventBus_OnlyMatchingTypeFires(t *testing.T) {
	bus := NewEventBus()

	fired := 0
	bus.Subscribe(EventBookingCancelled, func(e *Event) error {
		fired++
		return nil
	})

	require.NoError(t, bus.PublishJSON(EventBookingCreated, BookingEventPayload{}))
	assert.Zero(t, fired)

	require.NoError(t, bus.PublishJSON(EventBookingCancelled, BookingEventPayload{}))
	assert.Equal(t, 1, fired)
}

func TestEventBus_NilReceiver(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventBookingCreated, BookingEventPayload{}))
}
