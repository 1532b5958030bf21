// Package telegram implements the Telegram Bot channel over long polling.
// Each chat gets its own dialog session; one update is one turn.
package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/ajanda/dialog"
)

const updateTimeoutSeconds = 30

// Config holds configuration for the Telegram channel.
type Config struct {
	BotToken string
	// ContextFor builds the per-turn environment (day windows move with the
	// clock, so they are recomputed every turn).
	ContextFor func() dialog.TurnContext
}

// Channel drives the dialog engine from Telegram updates.
type Channel struct {
	bot    *tgbotapi.BotAPI
	engine *dialog.Orchestrator
	config *Config
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[int64]*dialog.Session
}

// NewChannel creates a new Telegram channel.
func NewChannel(config *Config, engine *dialog.Orchestrator, logger *slog.Logger) (*Channel, error) {
	bot, err := tgbotapi.NewBotAPI(config.BotToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Telegram bot")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		bot:      bot,
		engine:   engine,
		config:   config,
		logger:   logger,
		sessions: map[int64]*dialog.Session{},
	}, nil
}

// Run blocks on the long-poll loop until the context is cancelled.
func (c *Channel) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = updateTimeoutSeconds
	updates := c.bot.GetUpdatesChan(u)

	c.logger.Info("telegram channel started", "bot", c.bot.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			c.handleUpdate(ctx, update)
		}
	}
}

func (c *Channel) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil || msg.Text == "" {
		return
	}

	sess := c.sessionFor(msg.Chat.ID)
	started := time.Now()
	res := c.engine.Turn(ctx, msg.Text, c.config.ContextFor(), sess)
	c.logger.Debug("turn processed",
		"chat_id", msg.Chat.ID,
		"kind", string(res.Kind),
		"steps", res.StepsUsed,
		"duration_ms", time.Since(started).Milliseconds())

	reply := tgbotapi.NewMessage(msg.Chat.ID, res.Text)
	reply.ReplyToMessageID = msg.MessageID
	if _, err := c.bot.Send(reply); err != nil {
		c.logger.Warn("telegram: failed to send reply",
			"chat_id", strconv.FormatInt(msg.Chat.ID, 10), "error", err)
	}
}

// sessionFor returns the chat's dialog session, creating it on first contact.
func (c *Channel) sessionFor(chatID int64) *dialog.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.sessions[chatID]
	if !ok {
		sess = dialog.NewSession(shortuuid.New())
		c.sessions[chatID] = sess
	}
	return sess
}
