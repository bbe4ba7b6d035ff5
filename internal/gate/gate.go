// Package gate classifies inbound webhook updates and decides what reaches
// the relay queue. Exactly one chat is allowed to feed the bot; everyone
// else gets a polite rejection and nothing more.
package gate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"trackrelay/internal/storage"
	logx "trackrelay/pkg/logx"
)

// Kind is the shape of an inbound update, matched once at the gate boundary.
type Kind int

const (
	KindNonMessage Kind = iota
	KindCommand
	KindAudio
	KindOther
)

// Event is a classified update. Only the fields relevant to its Kind are set.
type Event struct {
	Kind        Kind
	MessageID   int
	ChatID      int64
	SenderName  string
	Text        string
	AudioFileID string
}

// Canned command replies. /stats is recognized here but rendered dynamically.
var commandReplies = map[string]string{
	"/start": "Hi. Forward me audio and I'll post it to the channel.",
	"/help":  "Send or forward audio messages; they are batched and relayed to the channel in order. /stats shows relay history.",
	"/stats": "",
}

// Classify maps a raw update onto the event taxonomy. Anything that is not a
// message (callbacks, edits, channel posts, junk) is a no-op, not an error.
func Classify(u tele.Update) Event {
	m := u.Message
	if m == nil || m.Chat == nil {
		return Event{Kind: KindNonMessage}
	}
	ev := Event{
		Kind:       KindOther,
		MessageID:  m.ID,
		ChatID:     m.Chat.ID,
		SenderName: senderName(m),
		Text:       m.Text,
	}
	if _, ok := commandReplies[m.Text]; ok {
		ev.Kind = KindCommand
		return ev
	}
	if m.Audio != nil {
		ev.Kind = KindAudio
		ev.AudioFileID = m.Audio.FileID
		return ev
	}
	return ev
}

func senderName(m *tele.Message) string {
	if m.Sender != nil {
		if m.Sender.Username != "" {
			return "@" + m.Sender.Username
		}
		if m.Sender.FirstName != "" {
			return m.Sender.FirstName
		}
		return strconv.FormatInt(m.Sender.ID, 10)
	}
	return strconv.FormatInt(m.Chat.ID, 10)
}

// Messenger is the slice of the Telegram client the gate needs.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// Admitter feeds the relay queue.
type Admitter interface {
	Admit(fileID string, seq int)
}

type Gate struct {
	owner int64
	queue Admitter
	msgr  Messenger
	store storage.Store // may be nil
	log   logx.Logger
}

func New(owner int64, queue Admitter, msgr Messenger, store storage.Store, log logx.Logger) *Gate {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Gate{owner: owner, queue: queue, msgr: msgr, store: store, log: log}
}

// Handle processes one inbound update. It is called on its own goroutine per
// webhook request; the HTTP acknowledgment never waits on it.
func (g *Gate) Handle(ctx context.Context, u tele.Update) {
	ev := Classify(u)
	if ev.Kind == KindNonMessage {
		return
	}

	if ev.ChatID != g.owner {
		g.log.Info("rejected update from unauthorized chat",
			logx.Int64("chat_id", ev.ChatID),
			logx.String("sender", ev.SenderName),
		)
		reply := fmt.Sprintf("Sorry %s, this bot only takes tracks from its owner.", ev.SenderName)
		if err := g.msgr.SendText(ctx, ev.ChatID, reply); err != nil {
			g.log.Warn("rejection reply failed", logx.Int64("chat_id", ev.ChatID), logx.Err(err))
		}
		// The stranger's message is left alone.
		return
	}

	switch ev.Kind {
	case KindCommand:
		g.handleCommand(ctx, ev)
	case KindAudio:
		g.queue.Admit(ev.AudioFileID, ev.MessageID)
	case KindOther:
		// Nothing to relay; cleanup below still applies.
	}

	if err := g.msgr.DeleteMessage(ctx, ev.ChatID, ev.MessageID); err != nil {
		g.log.Warn("source message delete failed",
			logx.Int("msg_id", ev.MessageID),
			logx.Err(err),
		)
	}
}

func (g *Gate) handleCommand(ctx context.Context, ev Event) {
	reply := commandReplies[ev.Text]
	if ev.Text == "/stats" {
		reply = g.renderStats(ctx)
	}
	if err := g.msgr.SendText(ctx, ev.ChatID, reply); err != nil {
		g.log.Warn("command reply failed", logx.String("cmd", ev.Text), logx.Err(err))
	}
}

func (g *Gate) renderStats(ctx context.Context) string {
	if g.store == nil {
		return "History is disabled."
	}
	day, err := g.store.Stats(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		g.log.Warn("stats query failed", logx.Err(err))
		return "History is unavailable right now."
	}
	total, err := g.store.Stats(ctx, time.Time{})
	if err != nil {
		g.log.Warn("stats query failed", logx.Err(err))
		return "History is unavailable right now."
	}
	return fmt.Sprintf("Relayed %d tracks in the last 24h (%d corrected), %d all time.",
		day.Total, day.Corrected, total.Total)
}
