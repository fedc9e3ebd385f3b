package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/chrisrobison/ouija/internal/channel"
	"github.com/chrisrobison/ouija/internal/logging"
)

type DiscordAdapter struct {
	token    string
	session  *discordgo.Session
	incoming *channel.Inbox
	stopOnce sync.Once
	logger   *slog.Logger
}

func NewDiscordAdapter(token string) *DiscordAdapter {
	return &DiscordAdapter{
		token:    token,
		incoming: channel.NewInbox(100),
		logger:   logging.WithComponent("discord"),
	}
}

func (d *DiscordAdapter) Name() string {
	return "discord"
}

func (d *DiscordAdapter) IsEnabled() bool {
	return d.token != ""
}

func (d *DiscordAdapter) Start(ctx context.Context) error {
	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}
	d.session = session

	session.AddHandler(d.onMessageCreate(ctx))

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	d.logger.Info("discord session opened")

	go func() {
		<-ctx.Done()
		session.Close()
	}()

	return nil
}

// onMessageCreate returns the handler discordgo runs, each call on its own
// goroutine.
func (d *DiscordAdapter) onMessageCreate(ctx context.Context) func(*discordgo.Session, *discordgo.MessageCreate) {
	return func(s *discordgo.Session, m *discordgo.MessageCreate) {
		msg := messageFromCreate(s.State.User.ID, m)
		if msg == nil {
			return
		}
		d.incoming.Deliver(ctx, msg)
	}
}

// messageFromCreate keeps direct messages and guild messages that mention
// the bot, with the mention stripped. Bot authors are ignored.
func messageFromCreate(botID string, m *discordgo.MessageCreate) *channel.Message {
	if m.Author == nil || m.Author.Bot {
		return nil
	}
	if m.GuildID != "" && !isMentioned(botID, m.Mentions) {
		return nil
	}

	content := m.Content
	for _, mention := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
		content = strings.ReplaceAll(content, mention, "")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	return &channel.Message{
		ID:      m.ID,
		Channel: "discord",
		UserID:  m.Author.ID,
		Content: content,
		Metadata: map[string]string{
			"guild_id":    m.GuildID,
			"channel_id":  m.ChannelID,
			"author_id":   m.Author.ID,
			"author_name": m.Author.Username,
		},
		Timestamp: m.Timestamp.Unix(),
	}
}

func (d *DiscordAdapter) Stop() error {
	d.stopOnce.Do(func() {
		if d.session != nil {
			d.session.Close()
		}
		d.incoming.Close()
	})
	return nil
}

func (d *DiscordAdapter) SendMessage(userID string, resp *channel.Response) error {
	if d.session == nil {
		return fmt.Errorf("discord adapter not started")
	}
	dm, err := d.session.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("failed to open DM channel: %w", err)
	}

	_, err = d.session.ChannelMessageSend(dm.ID, resp.Content)
	return err
}

func (d *DiscordAdapter) Incoming() <-chan *channel.Message {
	return d.incoming.C()
}

func isMentioned(botID string, mentions []*discordgo.User) bool {
	for _, mention := range mentions {
		if mention.ID == botID {
			return true
		}
	}
	return false
}
