// Package agent feeds chat-channel messages into the action dispatcher.
package agent

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/chrisrobison/ouija/internal/channel"
	"github.com/chrisrobison/ouija/internal/metrics"
	"github.com/chrisrobison/ouija/internal/server"
)

// Dispatcher runs one action; *server.Dispatcher satisfies it.
type Dispatcher interface {
	Do(ctx context.Context, action string, p server.Params) server.Result
}

type AgentLoop struct {
	dispatcher Dispatcher
	logger     *slog.Logger
	wg         sync.WaitGroup
}

func NewAgentLoop(d Dispatcher, logger *slog.Logger) *AgentLoop {
	return &AgentLoop{dispatcher: d, logger: logger}
}

// Run consumes every adapter until its incoming channel closes or ctx is
// cancelled. It does not block; call Wait to join the consumers.
func (a *AgentLoop) Run(ctx context.Context, adapters ...channel.ChannelAdapter) {
	for _, adapter := range adapters {
		a.wg.Add(1)
		go func(adapter channel.ChannelAdapter) {
			defer a.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-adapter.Incoming():
					if !ok {
						return
					}
					a.Process(ctx, msg, adapter)
				}
			}
		}(adapter)
	}
}

// Wait blocks until every consumer started by Run has returned.
func (a *AgentLoop) Wait() {
	a.wg.Wait()
}

// Process answers one message on the adapter it came from.
func (a *AgentLoop) Process(ctx context.Context, msg *channel.Message, adapter channel.ChannelAdapter) {
	metrics.ChannelMessages.WithLabelValues(adapter.Name()).Inc()
	action, params := ParseCommand(msg.Content)

	res := a.dispatcher.Do(context.WithoutCancel(ctx), action, params)
	if res.Body == "" {
		return
	}
	if err := adapter.SendMessage(msg.UserID, &channel.Response{Content: res.Body}); err != nil {
		a.logger.Error("failed to send reply", "channel", adapter.Name(), "user_id", msg.UserID, "error", err)
	}
}

// ParseCommand maps chat text onto an action. Plain text is a question;
// slash commands select the other actions. Telegram style "/cmd@bot"
// suffixes are ignored.
func ParseCommand(content string) (string, server.Params) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "/") {
		return server.ActionAsk, server.Params{Q: content}
	}

	cmd, arg, _ := strings.Cut(content[1:], " ")
	cmd, _, _ = strings.Cut(strings.ToLower(cmd), "@")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "start":
		return server.ActionAsk, server.Params{}
	case server.ActionAsk:
		return server.ActionAsk, server.Params{Q: arg}
	case server.ActionSwitch, server.ActionSearch:
		return cmd, server.Params{Name: arg}
	case server.ActionHistory:
		n := server.DefaultHistory
		if arg != "" {
			n = server.ParseHistoryN(arg)
		}
		return cmd, server.Params{N: n}
	default:
		// reset, list, profile, and anything unknown
		return cmd, server.Params{}
	}
}
