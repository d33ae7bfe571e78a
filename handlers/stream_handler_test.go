package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-queue/config"
	"restaurant-queue/fanout"
	"restaurant-queue/services"
)

func setupStreamHandler() (*QueueHandler, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	cfg := &config.Config{
		AverageServingTime: 5 * time.Minute,
		MaxNameLength:      50,
		MaxPartySize:       20,
	}

	service := services.NewQueueService(db, cfg, fanout.NewBroker(), nil, nil)
	return NewQueueHandler(nil, service, nil), mock
}

func TestOfferLatest_DropsOldestWhenFull(t *testing.T) {
	updates := make(chan []byte, 2)

	offerLatest(updates, []byte("first"))
	offerLatest(updates, []byte("second"))
	offerLatest(updates, []byte("third"))

	assert.Equal(t, "second", string(<-updates))
	assert.Equal(t, "third", string(<-updates))
	assert.Empty(t, updates)
}

func TestStreamStatus_MissingID(t *testing.T) {
	handler, mock := setupStreamHandler()
	defer mock.ClearExpect()

	event, _ := newRequestEvent(http.MethodGet, "/api/v1/queue//stream", "")

	err := handler.StreamStatus(event)

	assert.Equal(t, http.StatusBadRequest, apiStatus(t, err))
}

func TestStreamStatus_DeliversInitialSnapshot(t *testing.T) {
	handler, mock := setupStreamHandler()
	defer mock.ClearExpect()

	mock.ExpectHGetAll("queue:waiting:entry-1").SetVal(map[string]string{
		"name": "Alice", "phone": "5551234567", "party_size": "4", "position": "2",
	})
	mock.ExpectZRank("queue:waiting:index", "entry-1").SetVal(1)
	mock.ExpectZCard("queue:waiting:index").SetVal(3)
	mock.ExpectHGet("settings:config", "average_serving_time").SetVal("5")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue/entry-1/stream", nil)
	req = req.WithContext(ctx)
	req.SetPathValue("id", "entry-1")
	rec := httptest.NewRecorder()

	event, _ := newRequestEvent(http.MethodGet, "/", "")
	event.Request = req
	event.Response = rec

	err := handler.StreamStatus(event)

	require.NoError(t, err)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "data: ")
	assert.Contains(t, rec.Body.String(), `"entry-1"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}
