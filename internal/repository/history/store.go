package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis"
)

// Entry is one remembered turn of a conversation.
type Entry struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Store keeps a rolling per-user conversation window in redis. Entries
// expire as a unit; the window is trimmed on every append.
type Store struct {
	rc     *redis.Client
	ttl    time.Duration
	window int
}

func New(rc *redis.Client, window int, ttl time.Duration) *Store {
	return &Store{rc: rc, window: window, ttl: ttl}
}

func historyKey(userID int64) string {
	return fmt.Sprintf("chat:%d:history", userID)
}

func (s *Store) Append(userID int64, role, text string) error {
	raw, err := json.Marshal(Entry{Role: role, Text: text, At: time.Now()})
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}
	key := historyKey(userID)
	if err := s.rc.RPush(key, raw).Err(); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	s.rc.LTrim(key, int64(-s.window), -1)
	s.rc.Expire(key, s.ttl)
	return nil
}

func (s *Store) Recent(userID int64) ([]Entry, error) {
	raws, err := s.rc.LRange(historyKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *Store) Clear(userID int64) error {
	return s.rc.Del(historyKey(userID)).Err()
}
