package auditlog

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelgate/internal/storage"
)

// memStore collects batches for assertions.
type memStore struct {
	mu      sync.Mutex
	entries []*LogEntry
	flushed bool
}

func (m *memStore) WriteBatch(_ context.Context, entries []*LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *memStore) Flush(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushed = true
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func testEntry() *LogEntry {
	return &LogEntry{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Provider:   "openai",
		Model:      "gpt-4o",
		StatusCode: 200,
		DurationNs: int64(120 * time.Millisecond),
	}
}

func TestLogger_FlushesOnClose(t *testing.T) {
	store := &memStore{}
	logger := NewLogger(store, Config{BufferSize: 10, FlushInterval: time.Hour})

	for i := 0; i < 5; i++ {
		logger.Write(testEntry())
	}
	require.NoError(t, logger.Close())

	assert.Equal(t, 5, store.count())
	assert.True(t, store.flushed)
}

func TestLogger_FlushesOnInterval(t *testing.T) {
	store := &memStore{}
	logger := NewLogger(store, Config{BufferSize: 10, FlushInterval: 20 * time.Millisecond})
	defer logger.Close()

	logger.Write(testEntry())

	require.Eventually(t, func() bool {
		return store.count() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestLogger_DropsWhenBufferFull(t *testing.T) {
	// A full buffer with a slow flusher must never block Write.
	store := &memStore{}
	logger := NewLogger(store, Config{BufferSize: 1, FlushInterval: time.Hour})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			logger.Write(testEntry())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Write blocked on a full buffer")
	}
	logger.Close()
}

func TestLogger_NilEntryIgnored(t *testing.T) {
	store := &memStore{}
	logger := NewLogger(store, Config{})
	logger.Write(nil)
	require.NoError(t, logger.Close())
	assert.Zero(t, store.count())
}

func TestNoopLogger(t *testing.T) {
	var logger Recorder = &NoopLogger{}
	logger.Write(testEntry())
	assert.NoError(t, logger.Close())
}

func TestSQLiteStore_WriteAndReadBack(t *testing.T) {
	store, err := storage.NewSQLite(storage.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "audit.db"),
	})
	require.NoError(t, err)
	defer store.Close()

	logStore, err := NewSQLiteStore(store.SQLiteDB(), 0)
	require.NoError(t, err)
	defer logStore.Close()

	entry := testEntry()
	entry.RequestID = "req-1"
	entry.Path = "/api/models/chat"
	entry.Stream = true
	entry.TotalTokens = 42
	entry.ErrorKind = ""

	require.NoError(t, logStore.WriteBatch(context.Background(), []*LogEntry{entry}))

	var (
		provider string
		model    string
		status   int
		stream   int
		tokens   int
	)
	row := store.SQLiteDB().QueryRow(
		"SELECT provider, model, status_code, stream, total_tokens FROM audit_logs WHERE id = ?", entry.ID)
	require.NoError(t, row.Scan(&provider, &model, &status, &stream, &tokens))

	assert.Equal(t, "openai", provider)
	assert.Equal(t, "gpt-4o", model)
	assert.Equal(t, 200, status)
	assert.Equal(t, 1, stream)
	assert.Equal(t, 42, tokens)
}

func TestSQLiteStore_BatchLargerThanParamLimit(t *testing.T) {
	store, err := storage.NewSQLite(storage.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "audit.db"),
	})
	require.NoError(t, err)
	defer store.Close()

	logStore, err := NewSQLiteStore(store.SQLiteDB(), 0)
	require.NoError(t, err)
	defer logStore.Close()

	entries := make([]*LogEntry, maxEntriesPerBatch*2+3)
	for i := range entries {
		entries[i] = testEntry()
	}
	require.NoError(t, logStore.WriteBatch(context.Background(), entries))

	var count int
	require.NoError(t, store.SQLiteDB().QueryRow("SELECT COUNT(*) FROM audit_logs").Scan(&count))
	assert.Equal(t, len(entries), count)
}

func TestSQLiteStore_RetentionCleanup(t *testing.T) {
	store, err := storage.NewSQLite(storage.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "audit.db"),
	})
	require.NoError(t, err)
	defer store.Close()

	logStore, err := NewSQLiteStore(store.SQLiteDB(), 0)
	require.NoError(t, err)
	defer logStore.Close()

	old := testEntry()
	old.Timestamp = time.Now().AddDate(0, 0, -40)
	fresh := testEntry()
	require.NoError(t, logStore.WriteBatch(context.Background(), []*LogEntry{old, fresh}))

	logStore.retentionDays = 30
	logStore.cleanup()

	var count int
	require.NoError(t, store.SQLiteDB().QueryRow("SELECT COUNT(*) FROM audit_logs").Scan(&count))
	assert.Equal(t, 1, count)
}
