package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// ValidatedTx is one transaction observed in a validated ledger on the
// subscription stream.
type ValidatedTx struct {
	Hash        string
	Result      string
	LedgerIndex uint64
	ObservedAt  time.Time
}

// TxHandler is called for every validated transaction touching a
// subscribed account.
type TxHandler func(ValidatedTx)

// TxStream subscribes to the ledger's validated-transaction WebSocket
// stream for a set of accounts. It feeds two consumers: Watch, the
// executor's fast path for confirming its own submissions, and registered
// handlers, which the monitor uses to publish activity signals.
type TxStream struct {
	wsURL    string
	accounts []string
	conn     *websocket.Conn

	mu     sync.RWMutex
	closed bool

	handlerMu sync.RWMutex
	handlers  []TxHandler

	watchMu  sync.Mutex
	watchers map[string][]chan struct{}

	// done is closed when the stream is shut down.
	done chan struct{}
}

// NewTxStream creates a stream client for the given WebSocket endpoint and
// accounts to follow.
func NewTxStream(wsURL string, accounts []string) *TxStream {
	return &TxStream{
		wsURL:    wsURL,
		accounts: accounts,
		watchers: make(map[string][]chan struct{}),
		done:     make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and subscribes to the
// transaction stream for the configured accounts.
func (s *TxStream) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("ledger/ws: stream closed")
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}

	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("ledger/ws: connect: %w", err)
	}
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if err := s.subscribe(conn); err != nil {
		conn.Close()
		return fmt.Errorf("ledger/ws: subscribe: %w", err)
	}
	s.conn = conn

	// Each loop is bound to this connection. When the read loop exits it
	// closes the connection, which in turn errors the ping loop out.
	go s.readLoop(conn)
	go s.pingLoop(conn)
	return nil
}

// Watch registers interest in a transaction hash. The returned channel is
// closed once the hash is seen in a validated ledger; the release function
// must be called when the caller stops waiting.
func (s *TxStream) Watch(hash string) (<-chan struct{}, func()) {
	ch := make(chan struct{})

	s.watchMu.Lock()
	s.watchers[hash] = append(s.watchers[hash], ch)
	s.watchMu.Unlock()

	release := func() {
		s.watchMu.Lock()
		defer s.watchMu.Unlock()
		chans := s.watchers[hash]
		for i, c := range chans {
			if c == ch {
				s.watchers[hash] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		if len(s.watchers[hash]) == 0 {
			delete(s.watchers, hash)
		}
	}
	return ch, release
}

// OnTransaction registers a handler called for every validated transaction
// observed on the stream.
func (s *TxStream) OnTransaction(h TxHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.handlers = append(s.handlers, h)
}

// Close shuts down the connection and stops the read loop.
func (s *TxStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)

	if s.conn != nil {
		_ = s.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return s.conn.Close()
	}
	return nil
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// subscribe sends the account subscription command on conn. Caller must
// hold s.mu.
func (s *TxStream) subscribe(conn *websocket.Conn) error {
	cmd := map[string]any{
		"command":  "subscribe",
		"accounts": s.accounts,
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads stream messages from the connection it owns and dispatches
// validated transactions. On disconnect it closes only its own connection
// and reconnects with exponential backoff; the replacement connection gets
// its own loops.
func (s *TxStream) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		select {
		case <-s.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			s.reconnect()
			return
		}

		s.handleMessage(message)
	}
}

// pingLoop sends periodic ping messages on the connection it owns. It exits
// when a write fails, which happens as soon as the paired read loop closes
// the connection.
func (s *TxStream) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage parses one stream message and, for validated transactions,
// fires watchers and handlers.
func (s *TxStream) handleMessage(raw []byte) {
	var msg struct {
		Type        string `json:"type"`
		Validated   bool   `json:"validated"`
		LedgerIndex uint64 `json:"ledger_index"`
		Transaction struct {
			Hash string `json:"hash"`
		} `json:"transaction"`
		Meta struct {
			TransactionResult string `json:"TransactionResult"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return // silently drop unparseable messages
	}
	if msg.Type != "transaction" || !msg.Validated || msg.Transaction.Hash == "" {
		return
	}

	tx := ValidatedTx{
		Hash:        msg.Transaction.Hash,
		Result:      msg.Meta.TransactionResult,
		LedgerIndex: msg.LedgerIndex,
		ObservedAt:  time.Now().UTC(),
	}

	s.watchMu.Lock()
	for _, ch := range s.watchers[tx.Hash] {
		close(ch)
	}
	delete(s.watchers, tx.Hash)
	s.watchMu.Unlock()

	s.handlerMu.RLock()
	handlers := s.handlers
	s.handlerMu.RUnlock()

	for _, h := range handlers {
		h(tx)
	}
}

// reconnect re-establishes the connection with exponential backoff. It
// blocks until successful or the stream is closed.
func (s *TxStream) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-s.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := s.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
