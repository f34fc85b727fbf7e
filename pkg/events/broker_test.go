package events

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/foliobooks/folio/pkg/auth"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_DeliversToMatchingUser(t *testing.T) {
	t.Parallel()
	b := NewBroker()

	alice, unsubAlice := b.Subscribe("alice")
	defer unsubAlice()
	guest, unsubGuest := b.Subscribe("")
	defer unsubGuest()

	b.Publish(Event{Type: TypeRefresh, BookID: "b1", UserID: "alice"})

	select {
	case evt := <-alice:
		assert.Equal(t, "b1", evt.BookID)
		assert.False(t, evt.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected an event")
	}
	select {
	case evt := <-guest:
		t.Fatalf("guest received %+v", evt)
	default:
	}
}

func TestBroker_SlowSubscriberDoesNotBlock(t *testing.T) {
	t.Parallel()
	b := NewBroker()
	_, unsub := b.Subscribe("")

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			b.Publish(Event{Type: TypeRefresh, BookID: "b1"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	unsub()
	unsub()
	assert.Equal(t, 0, b.Subscribers())

	var nilBroker *Broker
	nilBroker.Publish(Event{BookID: "b1"})
}

func TestStream(t *testing.T) {
	t.Parallel()
	b := NewBroker()
	mw := auth.NewMiddleware(auth.NewService(""))

	e := echo.New()
	RegisterRoutes(e, b, 20*time.Millisecond, mw)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get(echo.HeaderContentType))

	require.Eventually(t, func() bool { return b.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	b.Publish(Event{Type: TypeRefresh, BookID: "b42", State: "complete"})

	scanner := bufio.NewScanner(resp.Body)
	var sawHeartbeat, sawEvent bool
	for scanner.Scan() && !(sawHeartbeat && sawEvent) {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, ": heartbeat"):
			sawHeartbeat = true
		case strings.HasPrefix(line, "data: "):
			assert.Contains(t, line, `"book_id":"b42"`)
			assert.Contains(t, line, `"state":"complete"`)
			sawEvent = true
		}
	}
	assert.True(t, sawEvent)
	assert.True(t, sawHeartbeat)
}
