package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	logx "trackrelay/pkg/logx"
)

type Config struct {
	Token string
	// Channel is the public channel name without "@".
	Channel string
	// Offline skips Telegram's getMe probe at construction (tests).
	Offline bool
}

// channel addresses a public channel by name.
type channel string

func (c channel) Recipient() string { return "@" + string(c) }

// Client wraps telebot as a plain API client. The bot never polls: updates
// arrive through the webhook server and the client only performs outbound
// calls.
type Client struct {
	cfg Config
	bot *tele.Bot
	log logx.Logger

	// channelChatID is learned from the first successful channel send; edits
	// and deletes need the numeric id, sends go by public name.
	mu            sync.Mutex
	channelChatID int64
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if strings.TrimSpace(cfg.Channel) == "" {
		return nil, errors.New("telegram channel is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: cfg.Offline,
	})
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, bot: b, log: log}, nil
}

// SetWebhook registers url as the bot's webhook endpoint.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	_ = ctx
	_, err := c.bot.Raw("setWebhook", map[string]string{"url": url})
	return err
}

// SendAudio posts the referenced audio to the channel with a Markdown caption
// and returns the assigned channel message id.
func (c *Client) SendAudio(ctx context.Context, fileID, caption string) (int, error) {
	_ = ctx
	a := &tele.Audio{File: tele.File{FileID: fileID}, Caption: caption}
	msg, err := c.bot.Send(channel(c.cfg.Channel), a, tele.ModeMarkdown)
	if err != nil {
		return 0, err
	}
	if msg.Chat != nil {
		c.mu.Lock()
		c.channelChatID = msg.Chat.ID
		c.mu.Unlock()
	}
	return msg.ID, nil
}

// EditCaption replaces the caption of an already-posted channel message.
func (c *Client) EditCaption(ctx context.Context, messageID int, caption string) error {
	_ = ctx
	c.mu.Lock()
	chatID := c.channelChatID
	c.mu.Unlock()
	if chatID == 0 {
		return errors.New("channel chat id unknown (no send yet)")
	}
	ref := &tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	_, err := c.bot.EditCaption(ref, caption, tele.ModeMarkdown)
	return err
}

// SendText replies in a private/owner chat.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	_ = ctx
	_, err := c.bot.Send(tele.ChatID(chatID), text)
	return err
}

// DeleteMessage removes a message from the source chat.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	_ = ctx
	return c.bot.Delete(&tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID})
}
