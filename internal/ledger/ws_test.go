package ledger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamServer upgrades connections, drops the first one right after the
// subscribe command, and announces a validated transaction on every later
// connection.
func streamServer(t *testing.T, dials *atomic.Int32, txHash string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := dials.Add(1)

		if _, _, err := conn.ReadMessage(); err != nil { // subscribe command
			conn.Close()
			return
		}

		if n == 1 {
			conn.Close()
			return
		}

		msg := `{"type":"transaction","validated":true,"ledger_index":7,` +
			`"transaction":{"hash":"` + txHash + `"},` +
			`"meta":{"TransactionResult":"tesSUCCESS"}}`
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			conn.Close()
			return
		}

		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}))
}

func TestTxStream_ReconnectSettles(t *testing.T) {
	if testing.Short() {
		t.Skip("reconnect backoff makes this test slow")
	}

	var dials atomic.Int32
	srv := streamServer(t, &dials, "TXHASH")
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	s := NewTxStream(wsURL, []string{"rTRADER"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx))
	defer s.Close()

	// Registered before the server drops the first connection; it can only
	// fire if the reconnected stream stays alive long enough to deliver.
	ch, release := s.Watch("TXHASH")
	defer release()

	select {
	case <-ch:
	case <-time.After(10 * time.Second):
		t.Fatal("watcher never fired after reconnect")
	}

	// A healthy stream stops at the second dial. A loop that closes its
	// replacement connection would keep dialing past it.
	time.Sleep(2*reconnectDelay + 500*time.Millisecond)
	assert.Equal(t, int32(2), dials.Load(), "stream must settle on the reconnected connection")
}

func TestTxStream_CloseStopsReconnecting(t *testing.T) {
	var dials atomic.Int32
	srv := streamServer(t, &dials, "UNSEEN")
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	s := NewTxStream(wsURL, []string{"rTRADER"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Close())

	// The server drops the first connection, but a closed stream must not
	// dial again.
	time.Sleep(reconnectDelay + 500*time.Millisecond)
	assert.Equal(t, int32(1), dials.Load())

	assert.Error(t, s.Connect(context.Background()), "connect after close is rejected")
}
