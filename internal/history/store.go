// Package history persists chat transcripts as one JSON file per chat,
// named by chat ID. Records are stored verbatim so a listing never has
// to re-derive anything from message bodies.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no chat exists for the given ID.
var ErrNotFound = errors.New("chat not found")

// ErrInvalidID is returned when a chat ID is not a UUID.
var ErrInvalidID = errors.New("invalid chat id")

// Message is one chat turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Record is a stored chat. Config is kept opaque: the store round-trips
// whatever generation settings the client saved.
type Record struct {
	ChatID       string          `json:"chatId"`
	Messages     []Message       `json:"messages"`
	Config       json.RawMessage `json:"config,omitempty"`
	SavedAt      time.Time       `json:"savedAt"`
	Title        string          `json:"title,omitempty"`
	MessageCount int             `json:"messageCount"`
}

// Metadata is the listing view of a stored chat.
type Metadata struct {
	ChatID       string    `json:"chatId"`
	Title        string    `json:"title,omitempty"`
	SavedAt      time.Time `json:"savedAt"`
	MessageCount int       `json:"messageCount"`
}

// Store is a directory-backed chat store. Safe for concurrent use at
// the filesystem level: writes are atomic via tmp+rename.
type Store struct {
	dir string
}

// NewStore creates the store directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = "data/chats"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Save stores a record, assigning a chat ID and savedAt timestamp when
// absent. MessageCount is always recomputed from the messages.
func (s *Store) Save(rec *Record) (*Record, error) {
	if rec == nil {
		return nil, fmt.Errorf("record is required")
	}
	if rec.ChatID == "" {
		rec.ChatID = uuid.NewString()
	} else if err := validateChatID(rec.ChatID); err != nil {
		return nil, err
	}
	rec.SavedAt = time.Now().UTC()
	rec.MessageCount = len(rec.Messages)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat %s: %w", rec.ChatID, err)
	}

	// Atomic write: tmp file in the same directory, then rename.
	path := s.path(rec.ChatID)
	tmp, err := os.CreateTemp(s.dir, ".chat-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to write chat %s: %w", rec.ChatID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to store chat %s: %w", rec.ChatID, err)
	}
	return rec, nil
}

// Load reads one chat by ID.
func (s *Store) Load(chatID string) (*Record, error) {
	if err := validateChatID(chatID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(chatID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read chat %s: %w", chatID, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse chat %s: %w", chatID, err)
	}
	return &rec, nil
}

// List returns metadata for every stored chat, newest first. Unreadable
// files are skipped rather than failing the whole listing.
func (s *Store) List() ([]Metadata, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	metas := make([]Metadata, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, err := s.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		metas = append(metas, Metadata{
			ChatID:       rec.ChatID,
			Title:        rec.Title,
			SavedAt:      rec.SavedAt,
			MessageCount: rec.MessageCount,
		})
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].SavedAt.After(metas[j].SavedAt)
	})
	return metas, nil
}

// Delete removes one chat by ID.
func (s *Store) Delete(chatID string) error {
	if err := validateChatID(chatID); err != nil {
		return err
	}
	if err := os.Remove(s.path(chatID)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete chat %s: %w", chatID, err)
	}
	return nil
}

func (s *Store) path(chatID string) string {
	return filepath.Join(s.dir, chatID+".json")
}

// validateChatID requires a UUID, which doubles as path-traversal
// protection since IDs become file names.
func validateChatID(chatID string) error {
	if _, err := uuid.Parse(chatID); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, chatID)
	}
	return nil
}
