package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"trackrelay/internal/storage"
)

type sentAudio struct {
	fileID  string
	caption string
	at      time.Time
}

// fakeSender assigns message ids from a script (or sequentially past `next`)
// and records every call.
type fakeSender struct {
	mu    sync.Mutex
	sends []sentAudio
	edits map[int]string // message id -> corrected caption

	assign  []int // scripted ids, consumed in order
	next    int   // fallback: next++ per send
	sendErr map[int]error // fail the i-th send (0-based)
}

func newFakeSender(next int) *fakeSender {
	return &fakeSender{edits: map[int]string{}, sendErr: map[int]error{}, next: next}
}

func (f *fakeSender) SendAudio(ctx context.Context, fileID, caption string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.sends)
	f.sends = append(f.sends, sentAudio{fileID: fileID, caption: caption, at: time.Now()})
	if err := f.sendErr[idx]; err != nil {
		return 0, err
	}
	if len(f.assign) > 0 {
		id := f.assign[0]
		f.assign = f.assign[1:]
		return id, nil
	}
	f.next++
	return f.next, nil
}

func (f *fakeSender) EditCaption(ctx context.Context, messageID int, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits[messageID] = caption
	return nil
}

type fakeStore struct {
	mu      sync.Mutex
	records []storage.PostRecord
}

func (f *fakeStore) AppendPost(ctx context.Context, r storage.PostRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, r)
	return nil
}
func (f *fakeStore) RecentPosts(ctx context.Context, n int) ([]storage.PostRecord, error) {
	return nil, nil
}
func (f *fakeStore) Stats(ctx context.Context, since time.Time) (storage.PostStats, error) {
	return storage.PostStats{}, nil
}
func (f *fakeStore) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) { return 0, nil }
func (f *fakeStore) Close() error                                                   { return nil }

func TestDispatchPredictionSuccess(t *testing.T) {
	s := newFakeSender(41) // platform will assign 42
	tr := &Tracker{}
	tr.Store(41)
	d := NewDispatcher(s, tr, "mychan", time.Millisecond, nil, discardLogger())

	d.Dispatch(context.Background(), []Item{{FileID: "f1", Seq: 10}})

	if len(s.sends) != 1 {
		t.Fatalf("expected 1 send, got %d", len(s.sends))
	}
	if !strings.Contains(s.sends[0].caption, "t.me/mychan/42") {
		t.Fatalf("caption should reference predicted id 42: %q", s.sends[0].caption)
	}
	if len(s.edits) != 0 {
		t.Fatalf("no correction expected, got %v", s.edits)
	}
	if tr.Last() != 42 {
		t.Fatalf("tracker = %d, want 42", tr.Last())
	}
}

func TestDispatchPredictionCorrection(t *testing.T) {
	s := newFakeSender(0)
	s.assign = []int{50} // platform skips ahead of the predicted 42
	tr := &Tracker{}
	tr.Store(41)
	d := NewDispatcher(s, tr, "mychan", time.Millisecond, nil, discardLogger())

	d.Dispatch(context.Background(), []Item{{FileID: "f1", Seq: 10}})

	if !strings.Contains(s.sends[0].caption, "t.me/mychan/42") {
		t.Fatalf("send caption should carry the prediction: %q", s.sends[0].caption)
	}
	if len(s.edits) != 1 {
		t.Fatalf("expected exactly one correction, got %d", len(s.edits))
	}
	if got := s.edits[50]; !strings.Contains(got, "t.me/mychan/50") {
		t.Fatalf("correction should reference actual id 50: %q", got)
	}
	if tr.Last() != 50 {
		t.Fatalf("tracker = %d, want 50", tr.Last())
	}
}

func TestDispatchPacingBetweenSends(t *testing.T) {
	const pace = 60 * time.Millisecond
	s := newFakeSender(0)
	d := NewDispatcher(s, &Tracker{}, "mychan", pace, nil, discardLogger())

	batch := []Item{{FileID: "a", Seq: 1}, {FileID: "b", Seq: 2}, {FileID: "c", Seq: 3}}
	start := time.Now()
	d.Dispatch(context.Background(), batch)
	total := time.Since(start)

	if len(s.sends) != 3 {
		t.Fatalf("expected 3 sends, got %d", len(s.sends))
	}
	for i := 1; i < len(s.sends); i++ {
		gap := s.sends[i].at.Sub(s.sends[i-1].at)
		if gap < pace-10*time.Millisecond {
			t.Fatalf("gap %d too short: %v", i, gap)
		}
	}
	// Two gaps, and nothing after the last send.
	if total > 3*pace {
		t.Fatalf("dispatch waited after the final send: total %v", total)
	}
}

func TestDispatchSingleItemNoPacingDelay(t *testing.T) {
	s := newFakeSender(0)
	d := NewDispatcher(s, &Tracker{}, "mychan", 500*time.Millisecond, nil, discardLogger())

	start := time.Now()
	d.Dispatch(context.Background(), []Item{{FileID: "a", Seq: 1}})
	if took := time.Since(start); took > 100*time.Millisecond {
		t.Fatalf("single-item dispatch should not pace: took %v", took)
	}
}

func TestDispatchSendFailureSkipsItem(t *testing.T) {
	s := newFakeSender(10)
	s.sendErr[0] = errors.New("boom")
	tr := &Tracker{}
	tr.Store(10)
	d := NewDispatcher(s, tr, "mychan", time.Millisecond, nil, discardLogger())

	d.Dispatch(context.Background(), []Item{{FileID: "bad", Seq: 1}, {FileID: "good", Seq: 2}})

	if len(s.sends) != 2 {
		t.Fatalf("expected the batch to continue past the failure, sends=%d", len(s.sends))
	}
	// Failed send must not advance the tracker; the second item re-predicts 11.
	if !strings.Contains(s.sends[1].caption, "t.me/mychan/11") {
		t.Fatalf("second prediction should still be 11: %q", s.sends[1].caption)
	}
	if tr.Last() != 11 {
		t.Fatalf("tracker = %d, want 11", tr.Last())
	}
}

func TestDispatchRecordsHistory(t *testing.T) {
	s := newFakeSender(0)
	s.assign = []int{1, 7} // second post gets corrected
	tr := &Tracker{}
	st := &fakeStore{}
	d := NewDispatcher(s, tr, "mychan", time.Millisecond, st, discardLogger())

	d.Dispatch(context.Background(), []Item{{FileID: "a", Seq: 1}, {FileID: "b", Seq: 2}})

	if len(st.records) != 2 {
		t.Fatalf("expected 2 history records, got %d", len(st.records))
	}
	if st.records[0].Corrected {
		t.Fatalf("first post should not be corrected: %+v", st.records[0])
	}
	if !st.records[1].Corrected || st.records[1].MessageID != 7 || st.records[1].Predicted != 2 {
		t.Fatalf("second record wrong: %+v", st.records[1])
	}
}

func TestCaptionFormat(t *testing.T) {
	d := NewDispatcher(nil, &Tracker{}, "mychan", time.Second, nil, discardLogger())
	got := d.caption(123)
	want := fmt.Sprintf("[#%d](https://t.me/mychan/%d)", 123, 123)
	if got != want {
		t.Fatalf("caption = %q, want %q", got, want)
	}
}
