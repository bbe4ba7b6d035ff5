package relay

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"trackrelay/internal/storage"
	logx "trackrelay/pkg/logx"
)

// Sender is the slice of the Telegram client the dispatcher needs.
type Sender interface {
	SendAudio(ctx context.Context, fileID, caption string) (messageID int, err error)
	EditCaption(ctx context.Context, messageID int, caption string) error
}

// Dispatcher posts drained batches to the public channel, paced, predicting
// each post's channel message id so the permalink caption can be attached in
// the same call. When Telegram assigns a different id (other posts may
// interleave), exactly one caption edit fixes the link.
type Dispatcher struct {
	sender  Sender
	tracker *Tracker
	channel string
	pace    time.Duration
	store   storage.Store // may be nil
	log     logx.Logger
}

func NewDispatcher(sender Sender, tracker *Tracker, channel string, pace time.Duration, store storage.Store, log logx.Logger) *Dispatcher {
	if pace <= 0 {
		pace = DefaultPace
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		sender:  sender,
		tracker: tracker,
		channel: channel,
		pace:    pace,
		store:   store,
		log:     log,
	}
}

// Dispatch sends batch in order. Items whose send fails are logged and
// skipped, never re-queued: they already left the queue with the drain.
func (d *Dispatcher) Dispatch(ctx context.Context, batch []Item) {
	if len(batch) == 0 {
		return
	}

	// Fresh limiter per pass: the initial token makes the first send (and a
	// single-item batch) immediate, each later send waits out the pace, and
	// nothing waits after the last.
	lim := rate.NewLimiter(rate.Every(d.pace), 1)

	for _, it := range batch {
		if err := lim.Wait(ctx); err != nil {
			d.log.Warn("dispatch pass aborted", logx.Int("seq", it.Seq), logx.Err(err))
			return
		}

		predicted := d.tracker.Last() + 1
		msgID, err := d.sender.SendAudio(ctx, it.FileID, d.caption(predicted))
		if err != nil {
			d.log.Warn("send failed; track dropped",
				logx.Int("seq", it.Seq),
				logx.String("file_id", it.FileID),
				logx.Err(err),
			)
			continue
		}

		corrected := false
		if msgID != predicted {
			corrected = true
			if err := d.sender.EditCaption(ctx, msgID, d.caption(msgID)); err != nil {
				// Not retried; the tracker still advances to the actual id so
				// later predictions stay consistent.
				d.log.Warn("caption correction failed",
					logx.Int("seq", it.Seq),
					logx.Int("msg_id", msgID),
					logx.Int("predicted", predicted),
					logx.Err(err),
				)
			} else {
				d.log.Info("caption corrected",
					logx.Int("predicted", predicted),
					logx.Int("msg_id", msgID),
				)
			}
		}
		d.tracker.Store(msgID)

		d.record(ctx, it, msgID, predicted, corrected)
	}
}

// caption renders the public permalink for a channel message id.
func (d *Dispatcher) caption(id int) string {
	return fmt.Sprintf("[#%d](https://t.me/%s/%d)", id, d.channel, id)
}

func (d *Dispatcher) record(ctx context.Context, it Item, msgID, predicted int, corrected bool) {
	if d.store == nil {
		return
	}
	err := d.store.AppendPost(ctx, storage.PostRecord{
		At:        time.Now(),
		Seq:       it.Seq,
		FileID:    it.FileID,
		MessageID: msgID,
		Predicted: predicted,
		Corrected: corrected,
	})
	if err != nil {
		// History is observability only; never fail the relay over it.
		d.log.Warn("history append failed", logx.Int("msg_id", msgID), logx.Err(err))
	}
}
