// Package bot exposes review sessions through Telegram commands and inline buttons.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"auto_thread_publisher/metrics"
	"auto_thread_publisher/review"
)

const (
	actionFeedback = "fb:"
	actionFinalize = "fin:"
)

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Options configure a Bot.
type Options struct {
	// Allowed reports whether a chat may use the bot. Nil allows every chat.
	Allowed func(chatID int64) bool
	// Timeout bounds one generation or publish call.
	Timeout time.Duration
	Logger  zerolog.Logger
}

type promptKey struct {
	chatID    int64
	messageID int
}

type pendingFeedback struct {
	sessionID string
	createdAt time.Time
}

// Bot routes Telegram updates to review sessions.
type Bot struct {
	api     API
	manager *review.Manager
	allowed func(int64) bool
	timeout time.Duration
	logger  zerolog.Logger

	mu      sync.Mutex
	pending map[promptKey]pendingFeedback
}

func New(api API, manager *review.Manager, opts Options) (*Bot, error) {
	if api == nil {
		return nil, errors.New("telegram api is required")
	}
	if manager == nil {
		return nil, errors.New("session manager is required")
	}
	if opts.Allowed == nil {
		opts.Allowed = func(int64) bool { return true }
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Bot{
		api:     api,
		manager: manager,
		allowed: opts.Allowed,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		pending: make(map[promptKey]pendingFeedback),
	}, nil
}

// Run long-polls for updates and handles each one in its own goroutine until ctx is done.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.HandleUpdate(ctx, update)
			}()
		}
	}
}

// HandleUpdate processes a single update. Errors are reported to the chat, never returned.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Int("update_id", update.UpdateID).Msg("update handler panicked")
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil || msg.From == nil {
		return
	}
	if !b.allowed(msg.Chat.ID) {
		if msg.IsCommand() {
			b.logger.Warn().Int64("chat", msg.Chat.ID).Str("command", msg.Command()).Msg("command from chat outside allow-list")
			b.reply(msg.Chat.ID, msg.MessageID, "This bot is not enabled for this chat.")
		}
		return
	}

	if msg.ReplyToMessage != nil {
		if p, ok := b.lookupPrompt(msg.Chat.ID, msg.ReplyToMessage.MessageID); ok {
			b.handleFeedback(ctx, msg, p)
			return
		}
	}
	if !msg.IsCommand() {
		return
	}

	switch msg.Command() {
	case "create", "draft":
		metrics.IncCommand("create")
		b.handleCreate(ctx, msg)
	case "help", "start":
		metrics.IncCommand("help")
		b.reply(msg.Chat.ID, msg.MessageID, usage)
	}
}

func (b *Bot) handleCreate(ctx context.Context, msg *tgbotapi.Message) {
	owner := userID(msg.From)
	req, err := parseCreate(msg.CommandArguments())
	if err != nil {
		b.reply(msg.Chat.ID, msg.MessageID, review.UserMessage(err)+"\n\n"+usage)
		return
	}

	b.reply(msg.Chat.ID, msg.MessageID, "Generating your thread…")
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	sess, err := b.manager.Create(ctx, req, owner)
	if err != nil {
		b.logger.Error().Err(err).Str("owner", owner).Msg("create failed")
		b.reply(msg.Chat.ID, msg.MessageID, review.UserMessage(err))
		return
	}
	b.sendDraft(msg.Chat.ID, sess, owner)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil || cb.From == nil {
		b.answer(cb.ID, "")
		return
	}
	chatID := cb.Message.Chat.ID
	if !b.allowed(chatID) {
		b.answer(cb.ID, "This bot is not enabled for this chat.")
		return
	}
	caller := userID(cb.From)

	switch {
	case strings.HasPrefix(cb.Data, actionFeedback):
		metrics.IncCommand("feedback")
		b.handleFeedbackButton(cb, chatID, caller, strings.TrimPrefix(cb.Data, actionFeedback))
	case strings.HasPrefix(cb.Data, actionFinalize):
		metrics.IncCommand("finalize")
		b.handleFinalize(ctx, cb, chatID, caller, strings.TrimPrefix(cb.Data, actionFinalize))
	default:
		b.answer(cb.ID, "")
	}
}

func (b *Bot) handleFeedbackButton(cb *tgbotapi.CallbackQuery, chatID int64, caller, sessionID string) {
	sess, err := b.manager.Get(sessionID)
	if err == nil {
		var snap review.Snapshot
		if snap, err = sess.Snapshot(caller); err == nil && snap.State == review.StateFinalized {
			err = review.ErrAlreadyFinalized
		}
	}
	if err != nil {
		b.answer(cb.ID, review.UserMessage(err))
		return
	}
	b.answer(cb.ID, "")

	prompt := tgbotapi.NewMessage(chatID, fmt.Sprintf("Reply to this message with your feedback (max %d characters).", review.MaxFeedbackLen))
	prompt.ReplyToMessageID = cb.Message.MessageID
	prompt.ReplyMarkup = tgbotapi.ForceReply{
		ForceReply:            true,
		InputFieldPlaceholder: "e.g. shorter, more emojis",
	}
	sent, err := b.api.Send(prompt)
	if err != nil {
		b.logger.Error().Err(err).Str("session", sessionID).Msg("send feedback prompt")
		return
	}
	b.storePrompt(promptKey{chatID: chatID, messageID: sent.MessageID}, pendingFeedback{
		sessionID: sessionID,
		createdAt: time.Now(),
	})
}

func (b *Bot) handleFeedback(ctx context.Context, msg *tgbotapi.Message, p pendingFeedback) {
	metrics.IncCommand("revise")
	caller := userID(msg.From)
	key := promptKey{chatID: msg.Chat.ID, messageID: msg.ReplyToMessage.MessageID}

	sess, err := b.manager.Get(p.sessionID)
	if err != nil {
		b.dropPrompt(key)
		b.reply(msg.Chat.ID, msg.MessageID, review.UserMessage(err))
		return
	}

	b.reply(msg.Chat.ID, msg.MessageID, "Revising…")
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if _, err := sess.Revise(ctx, caller, msg.Text); err != nil {
		if errors.Is(err, review.ErrSessionExpired) || errors.Is(err, review.ErrAlreadyFinalized) {
			b.dropPrompt(key)
		}
		b.logger.Warn().Err(err).Str("session", p.sessionID).Str("caller", caller).Msg("revise failed")
		b.reply(msg.Chat.ID, msg.MessageID, review.UserMessage(err))
		return
	}
	b.dropPrompt(key)
	b.sendDraft(msg.Chat.ID, sess, caller)
}

func (b *Bot) handleFinalize(ctx context.Context, cb *tgbotapi.CallbackQuery, chatID int64, caller, sessionID string) {
	sess, err := b.manager.Get(sessionID)
	if err != nil {
		b.answer(cb.ID, review.UserMessage(err))
		return
	}
	b.answer(cb.ID, "Publishing…")

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	url, err := sess.Finalize(ctx, caller)
	if err != nil {
		b.logger.Warn().Err(err).Str("session", sessionID).Str("caller", caller).Msg("finalize failed")
		b.reply(chatID, cb.Message.MessageID, review.UserMessage(err))
		return
	}

	markup := tgbotapi.NewEditMessageReplyMarkup(chatID, cb.Message.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := b.api.Request(markup); err != nil {
		b.logger.Debug().Err(err).Msg("clear keyboard")
	}
	b.reply(chatID, cb.Message.MessageID, "Thread draft created: "+url)
}

// --- Helpers ---

func (b *Bot) sendDraft(chatID int64, sess *review.Session, caller string) {
	snap, err := sess.Snapshot(caller)
	if err != nil {
		b.send(tgbotapi.NewMessage(chatID, review.UserMessage(err)))
		return
	}
	msg := tgbotapi.NewMessage(chatID, formatDraft(snap))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ Feedback", actionFeedback+sess.ID),
			tgbotapi.NewInlineKeyboardButtonData("✅ Finalize", actionFinalize+sess.ID),
		),
	)
	b.send(msg)
}

func (b *Bot) reply(chatID int64, replyTo int, text string) {
	msg := tgbotapi.NewMessage(chatID, truncate(text, maxMessageLen))
	msg.ReplyToMessageID = replyTo
	b.send(msg)
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.logger.Error().Err(err).Msg("telegram send failed")
	}
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Debug().Err(err).Msg("answer callback")
	}
}

func (b *Bot) storePrompt(key promptKey, p pendingFeedback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// prompts older than a session lifetime can no longer be acted on
	cutoff := time.Now().Add(-b.manager.TTL())
	for k, v := range b.pending {
		if v.createdAt.Before(cutoff) {
			delete(b.pending, k)
		}
	}
	b.pending[key] = p
}

func (b *Bot) lookupPrompt(chatID int64, messageID int) (pendingFeedback, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pending[promptKey{chatID: chatID, messageID: messageID}]
	return p, ok
}

func (b *Bot) dropPrompt(key promptKey) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, key)
}

func userID(u *tgbotapi.User) string {
	return strconv.FormatInt(u.ID, 10)
}
