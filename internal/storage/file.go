package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "trackrelay/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.posts.jsonl (append-only JSON Lines)
//
// The full history is kept in memory (it is small: one record per relayed
// track) and replayed from the jsonl file at open. PruneBefore rewrites the
// file atomically via tmp+rename.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	path  string
	file  *os.File
	posts []PostRecord // ascending by At
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	postsPath := filepath.Join(dir, base) + ".posts.jsonl"

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	posts, err := replayPosts(postsPath)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(postsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{log: log, path: postsPath, file: f, posts: posts}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *fileStore) AppendPost(ctx context.Context, r PostRecord) error {
	_ = ctx
	if r.At.IsZero() {
		r.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return errors.New("posts file closed")
	}
	if err := json.NewEncoder(s.file).Encode(r); err != nil {
		return err
	}
	s.posts = append(s.posts, r)
	return nil
}

func (s *fileStore) RecentPosts(ctx context.Context, n int) ([]PostRecord, error) {
	_ = ctx
	if n <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.posts) {
		n = len(s.posts)
	}
	out := make([]PostRecord, n)
	copy(out, s.posts[len(s.posts)-n:])
	return out, nil
}

func (s *fileStore) Stats(ctx context.Context, since time.Time) (PostStats, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var st PostStats
	for _, p := range s.posts {
		if p.At.Before(since) {
			continue
		}
		st.Total++
		if p.Corrected {
			st.Corrected++
		}
	}
	return st, nil
}

func (s *fileStore) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return 0, errors.New("posts file closed")
	}

	kept := s.posts[:0:0]
	for _, p := range s.posts {
		if !p.At.Before(cutoff) {
			kept = append(kept, p)
		}
	}
	removed := len(s.posts) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(f)
	for _, p := range kept {
		if err := enc.Encode(p); err != nil {
			_ = f.Close()
			return 0, err
		}
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return 0, err
	}

	// Reopen the append handle against the rewritten file.
	_ = s.file.Close()
	nf, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		s.file = nil
		return removed, err
	}
	s.file = nf
	s.posts = kept
	return removed, nil
}

func replayPosts(path string) ([]PostRecord, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []PostRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r PostRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			// Skip torn/corrupt lines (e.g. crash mid-append).
			continue
		}
		out = append(out, r)
	}
	return out, sc.Err()
}
