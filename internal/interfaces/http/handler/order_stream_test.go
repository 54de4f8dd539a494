package handler

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniorder/backend/internal/domain/ordering"
	"github.com/uniorder/backend/internal/infrastructure/event"
	"github.com/uniorder/backend/internal/interfaces/http/dto"
)

// readFrame reads one SSE frame as a map of field name to value
func readFrame(t *testing.T, r *bufio.Reader) map[string]string {
	t.Helper()
	frame := map[string]string{}
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			return frame
		}
		name, value, _ := strings.Cut(line, ": ")
		frame[name] = value
	}
}

func TestOrderStreamHandler_Stream(t *testing.T) {
	hub := event.NewHub(nil, []string{ordering.EventTypeNewOrder, ordering.EventTypeOrderUpdated})
	router := gin.New()
	router.GET("/orders/stream", NewOrderStreamHandler(hub, WithStreamHeartbeat(time.Hour)).Stream)
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/orders/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	assert.Equal(t, "connected", readFrame(t, reader)["event"])
	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)

	order := sampleOrder(ordering.StatusReceived)
	ev := ordering.NewOrderReceivedEvent(order)
	require.NoError(t, hub.Handle(context.Background(), ev))

	frame := readFrame(t, reader)
	assert.Equal(t, ordering.EventTypeNewOrder, frame["event"])
	assert.Equal(t, ev.EventID().String(), frame["id"])
	assert.Contains(t, frame["data"], `"platform_order_id":"A-1"`)

	cancel()
	require.Eventually(t, func() bool { return hub.SubscriberCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestOrderStreamHandler_MaxClients(t *testing.T) {
	hub := event.NewHub(nil, nil)
	_, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	router := gin.New()
	router.GET("/orders/stream", NewOrderStreamHandler(hub, WithStreamMaxClients(1)).Stream)

	w := doJSON(router, http.MethodGet, "/orders/stream", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodeUnavailable)
}
