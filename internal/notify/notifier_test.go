package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSender struct {
	mu     sync.Mutex
	name   string
	err    error
	titles []string
}

func (s *fakeSender) Send(_ context.Context, title, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles = append(s.titles, title)
	return s.err
}

func (s *fakeSender) Name() string { return s.name }

func (s *fakeSender) sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.titles)
}

func TestNotify_EventFilter(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{"execution_failed"}, testLogger)

	require.NoError(t, n.Notify(context.Background(), "execution_validated", "ok", "profit"))
	assert.Zero(t, s.sent(), "unsubscribed events are dropped")

	require.NoError(t, n.Notify(context.Background(), "execution_failed", "bad", "loss"))
	assert.Equal(t, 1, s.sent())
}

func TestNotify_EmptyFilterAllowsAll(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, nil, testLogger)

	require.NoError(t, n.Notify(context.Background(), "anything", "t", "m"))
	assert.Equal(t, 1, s.sent())
}

func TestNotifyAll_BypassesFilter(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{"execution_failed"}, testLogger)

	require.NoError(t, n.NotifyAll(context.Background(), "t", "m"))
	assert.Equal(t, 1, s.sent())
}

func TestNotify_OneSenderFailingDoesNotStopOthers(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("webhook 500")}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger)

	err := n.Notify(context.Background(), "error", "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Equal(t, 1, good.sent(), "delivery continues past a failing sender")
}

func TestNotify_NoSendersIsNoop(t *testing.T) {
	n := NewNotifier(nil, nil, testLogger)
	assert.NoError(t, n.Notify(context.Background(), "error", "t", "m"))
}
