package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryStatus_Valid(t *testing.T) {
	for _, s := range []EntryStatus{StatusWaiting, StatusServing, StatusCompleted, StatusSkipped} {
		assert.True(t, s.Valid(), string(s))
	}

	assert.False(t, EntryStatus("").Valid())
	assert.False(t, EntryStatus("seated").Valid())
	assert.False(t, EntryStatus("Waiting").Valid())
}

func TestEntryStatus_Terminal(t *testing.T) {
	assert.False(t, StatusWaiting.Terminal())
	assert.False(t, StatusServing.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusSkipped.Terminal())
}

func TestQueueEntry_JSONSerialization(t *testing.T) {
	served := time.Now()
	entry := QueueEntry{
		ID:        "entry-123",
		Name:      "Alice",
		PartySize: 4,
		Phone:     "5551234567",
		Position:  7,
		Status:    StatusServing,
		CreatedAt: served.Add(-20 * time.Minute),
		UpdatedAt: served,
		ServedAt:  &served,
	}

	jsonData, err := json.Marshal(entry)
	require.NoError(t, err)

	var unmarshaled QueueEntry
	err = json.Unmarshal(jsonData, &unmarshaled)
	require.NoError(t, err)

	assert.Equal(t, entry.ID, unmarshaled.ID)
	assert.Equal(t, entry.Name, unmarshaled.Name)
	assert.Equal(t, entry.PartySize, unmarshaled.PartySize)
	assert.Equal(t, entry.Phone, unmarshaled.Phone)
	assert.Equal(t, entry.Position, unmarshaled.Position)
	assert.Equal(t, entry.Status, unmarshaled.Status)
	require.NotNil(t, unmarshaled.ServedAt)
	assert.WithinDuration(t, served, *unmarshaled.ServedAt, time.Second)
}

func TestQueueEntry_ServedAtOmittedWhileWaiting(t *testing.T) {
	entry := QueueEntry{ID: "entry-123", Status: StatusWaiting}

	jsonData, err := json.Marshal(entry)
	require.NoError(t, err)

	assert.NotContains(t, string(jsonData), "served_at")
}
