package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/chrisrobison/ouija/internal/channel"
	"github.com/chrisrobison/ouija/internal/logging"
)

type TelegramAdapter struct {
	bot      *tgbotapi.BotAPI
	token    string
	incoming *channel.Inbox
	logger   *slog.Logger
}

func NewTelegramAdapter(token string) *TelegramAdapter {
	return &TelegramAdapter{
		token:    token,
		incoming: channel.NewInbox(100),
		logger:   logging.WithComponent("telegram"),
	}
}

func (t *TelegramAdapter) Name() string {
	return "telegram"
}

func (t *TelegramAdapter) IsEnabled() bool {
	return t.token != ""
}

func (t *TelegramAdapter) Start(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("failed to connect telegram bot: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected", "username", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.bot.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		t.bot.StopReceivingUpdates()
	}()
	go t.forward(ctx, updates)
	return nil
}

// forward delivers text updates until updates closes or the inbox refuses.
func (t *TelegramAdapter) forward(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		if msg := messageFromUpdate(update); msg != nil {
			if !t.incoming.Deliver(ctx, msg) {
				return
			}
		}
	}
}

// messageFromUpdate converts a text update; anything else yields nil.
func messageFromUpdate(update tgbotapi.Update) *channel.Message {
	m := update.Message
	if m == nil || m.Text == "" {
		return nil
	}
	meta := map[string]string{}
	if m.From != nil {
		meta["from_id"] = strconv.FormatInt(m.From.ID, 10)
		meta["from_name"] = m.From.UserName
	}
	return &channel.Message{
		ID:        strconv.Itoa(m.MessageID),
		Channel:   "telegram",
		UserID:    strconv.FormatInt(m.Chat.ID, 10),
		Content:   m.Text,
		Metadata:  meta,
		Timestamp: int64(m.Date),
	}
}

func (t *TelegramAdapter) Stop() error {
	t.incoming.Close()
	return nil
}

func (t *TelegramAdapter) SendMessage(userID string, resp *channel.Response) error {
	if t.bot == nil {
		return fmt.Errorf("telegram adapter not started")
	}
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", userID, err)
	}
	reply := tgbotapi.NewMessage(chatID, resp.Content)
	_, err = t.bot.Send(reply)
	return err
}

func (t *TelegramAdapter) Incoming() <-chan *channel.Message {
	return t.incoming.C()
}
