package telegram

import (
	"context"
	"fmt"
	"log"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Sender delivers alert messages to Telegram chats through the bot API.
type Sender struct {
	bot *tele.Bot
}

// NewSender creates a Telegram sender for the given bot token.
func NewSender(token string) (*Sender, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}

	log.Println("[Telegram] Bot initialized successfully")
	return &Sender{bot: bot}, nil
}

// Send delivers one text message to a chat. The error is returned to the
// caller so the job queue's retry policy applies.
func (s *Sender) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.bot.Send(tele.ChatID(chatID), text)
	if err != nil {
		return fmt.Errorf("failed to send Telegram message to chat %d: %w", chatID, err)
	}
	return nil
}
