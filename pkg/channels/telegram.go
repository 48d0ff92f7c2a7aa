package channels

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/model"
)

// TelegramSender delivers one chat message with the given bot token.
type TelegramSender interface {
	Send(ctx context.Context, token, chatID, text string) error
}

// TelegramChannel sends reminders to the configured Telegram chat.
type TelegramChannel struct {
	sender TelegramSender
}

// NewTelegramChannel creates a Telegram chat channel.
func NewTelegramChannel(sender TelegramSender) *TelegramChannel {
	return &TelegramChannel{sender: sender}
}

func (t *TelegramChannel) Name() string { return "telegram" }

func (t *TelegramChannel) Kind() Kind { return KindMessage }

func (t *TelegramChannel) Enabled(s model.Settings) bool {
	return t.sender != nil && s.IsTelegramEnabled && s.TelegramToken != "" && s.TelegramChatID != ""
}

func (t *TelegramChannel) Send(ctx context.Context, r Reminder, s model.Settings) error {
	if !t.Enabled(s) {
		return ErrNotConfigured
	}
	if err := t.sender.Send(ctx, s.TelegramToken, s.TelegramChatID, ChatText(r)); err != nil {
		return fmt.Errorf("send telegram message for bill %d: %w", r.Bill.ID, err)
	}
	return nil
}

func (t *TelegramChannel) SendTest(ctx context.Context, s model.Settings) error {
	switch {
	case t.sender == nil:
		return fmt.Errorf("%w: no telegram transport", ErrNotConfigured)
	case !s.IsTelegramEnabled:
		return fmt.Errorf("%w: telegram notifications are disabled", ErrNotConfigured)
	case s.TelegramToken == "" || s.TelegramChatID == "":
		return fmt.Errorf("%w: telegram token and chat id are required", ErrNotConfigured)
	}
	text := fmt.Sprintf("✅ <b>%s</b>\n\n%s", testSubject, testText)
	if err := t.sender.Send(ctx, s.TelegramToken, s.TelegramChatID, text); err != nil {
		return fmt.Errorf("send test telegram message: %w", err)
	}
	return nil
}

// BotSender is a TelegramSender backed by the Telegram Bot API. Bots are
// created lazily per token and reused.
type BotSender struct {
	endpoint string
	client   *http.Client

	mu   sync.Mutex
	bots map[string]*tgbotapi.BotAPI
}

// NewBotSender creates a sender. An empty endpoint uses the public Bot API.
func NewBotSender(endpoint string, timeout time.Duration) *BotSender {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BotSender{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		bots:     make(map[string]*tgbotapi.BotAPI),
	}
}

func (b *BotSender) Send(ctx context.Context, token, chatID, text string) error {
	msg, err := newChatMessage(chatID, text)
	if err != nil {
		return err
	}

	bot, err := b.bot(ctx, token)
	if err != nil {
		return err
	}

	// Shallow copy so this call's context travels with its requests.
	scoped := *bot
	scoped.Client = contextClient{ctx: ctx, client: b.client}
	if _, err := scoped.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func (b *BotSender) bot(ctx context.Context, token string) (*tgbotapi.BotAPI, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if bot, ok := b.bots[token]; ok {
		return bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, b.endpoint, contextClient{ctx: ctx, client: b.client})
	if err != nil {
		return nil, fmt.Errorf("telegram bot login: %w", err)
	}
	b.bots[token] = bot
	return bot, nil
}

func newChatMessage(chatID, text string) (tgbotapi.MessageConfig, error) {
	var msg tgbotapi.MessageConfig
	if strings.HasPrefix(chatID, "@") {
		msg = tgbotapi.NewMessageToChannel(chatID, text)
	} else {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return msg, fmt.Errorf("invalid telegram chat id %q", chatID)
		}
		msg = tgbotapi.NewMessage(id, text)
	}
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	return msg, nil
}

// contextClient binds a context to requests issued by the bot library,
// which builds them without one.
type contextClient struct {
	ctx    context.Context
	client *http.Client
}

func (c contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}
