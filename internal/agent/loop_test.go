package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/chrisrobison/ouija/internal/channel"
	"github.com/chrisrobison/ouija/internal/server"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type call struct {
	action string
	params server.Params
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakeDispatcher) Do(_ context.Context, action string, p server.Params) server.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{action, p})
	if action == "levitate" {
		return server.Result{Status: 200}
	}
	return server.Result{Status: 200, Body: "reply to " + action}
}

type fakeAdapter struct {
	incoming chan *channel.Message
	mu       sync.Mutex
	sent     map[string][]string
	sendErr  error
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{incoming: make(chan *channel.Message, 10), sent: map[string][]string{}}
}

func (f *fakeAdapter) Start(context.Context) error { return nil }
func (f *fakeAdapter) Stop() error                 { close(f.incoming); return nil }
func (f *fakeAdapter) Name() string                { return "fake" }
func (f *fakeAdapter) IsEnabled() bool             { return true }
func (f *fakeAdapter) Incoming() <-chan *channel.Message {
	return f.incoming
}
func (f *fakeAdapter) SendMessage(userID string, resp *channel.Response) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[userID] = append(f.sent[userID], resp.Content)
	return f.sendErr
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in     string
		action string
		params server.Params
	}{
		{"Who are you?", "ask", server.Params{Q: "Who are you?"}},
		{"  ", "ask", server.Params{}},
		{"/start", "ask", server.Params{}},
		{"/ask where is the key", "ask", server.Params{Q: "where is the key"}},
		{"/reset", "reset", server.Params{}},
		{"/list", "list", server.Params{}},
		{"/LIST@ouija_bot", "list", server.Params{}},
		{"/switch Ida Bell", "switch", server.Params{Name: "Ida Bell"}},
		{"/switch@ouija_bot  Ida ", "switch", server.Params{Name: "Ida"}},
		{"/search john", "search", server.Params{Name: "john"}},
		{"/profile", "profile", server.Params{}},
		{"/history", "history", server.Params{N: 20}},
		{"/history 5", "history", server.Params{N: 5}},
		{"/history 0", "history", server.Params{N: 1}},
		{"/history lots", "history", server.Params{N: 20}},
		{"/levitate", "levitate", server.Params{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			action, params := ParseCommand(tt.in)
			assert.Equal(t, tt.action, action)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestProcessRepliesToSender(t *testing.T) {
	d := &fakeDispatcher{}
	adapter := newFakeAdapter()
	loop := NewAgentLoop(d, quietLogger())

	loop.Process(context.Background(), &channel.Message{UserID: "u1", Content: "/list"}, adapter)
	loop.Process(context.Background(), &channel.Message{UserID: "u1", Content: "/levitate"}, adapter)

	assert.Equal(t, []string{"reply to list"}, adapter.sent["u1"], "empty results are not sent")
}

func TestProcessSendFailureIsLogged(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.sendErr = errors.New("network down")
	loop := NewAgentLoop(&fakeDispatcher{}, quietLogger())

	assert.NotPanics(t, func() {
		loop.Process(context.Background(), &channel.Message{UserID: "u1", Content: "hi"}, adapter)
	})
}

func TestRunDrainsUntilClosed(t *testing.T) {
	d := &fakeDispatcher{}
	a1, a2 := newFakeAdapter(), newFakeAdapter()
	loop := NewAgentLoop(d, quietLogger())

	loop.Run(context.Background(), a1, a2)
	a1.incoming <- &channel.Message{UserID: "u1", Content: "hello"}
	a2.incoming <- &channel.Message{UserID: "u2", Content: "/reset"}
	a1.Stop()
	a2.Stop()
	loop.Wait()

	assert.Equal(t, []string{"reply to ask"}, a1.sent["u1"])
	assert.Equal(t, []string{"reply to reset"}, a2.sent["u2"])
	require.Len(t, d.calls, 2)
}

func TestRunStopsOnCancel(t *testing.T) {
	adapter := newFakeAdapter()
	loop := NewAgentLoop(&fakeDispatcher{}, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())

	loop.Run(ctx, adapter)
	cancel()

	done := make(chan struct{})
	go func() {
		loop.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}
}
