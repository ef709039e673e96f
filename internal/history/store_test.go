package history

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestStore_SaveAssignsID(t *testing.T) {
	store := newTestStore(t)

	rec, err := store.Save(&Record{
		Messages: []Message{{Role: "user", Content: "hi", Timestamp: time.Now()}},
		Title:    "greeting",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ChatID)
	_, err = uuid.Parse(rec.ChatID)
	assert.NoError(t, err)
	assert.Equal(t, 1, rec.MessageCount)
	assert.False(t, rec.SavedAt.IsZero())
}

func TestStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	saved, err := store.Save(&Record{
		Messages: []Message{
			{Role: "user", Content: "hi", Timestamp: time.Now().UTC().Truncate(time.Second)},
			{Role: "assistant", Content: "hello", Timestamp: time.Now().UTC().Truncate(time.Second)},
		},
		Config: json.RawMessage(`{"temperature":0.2,"model":"gpt-4o"}`),
		Title:  "greeting",
	})
	require.NoError(t, err)

	loaded, err := store.Load(saved.ChatID)
	require.NoError(t, err)

	assert.Equal(t, saved.ChatID, loaded.ChatID)
	assert.Equal(t, "greeting", loaded.Title)
	assert.Equal(t, 2, loaded.MessageCount)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, "assistant", loaded.Messages[1].Role)
	assert.JSONEq(t, `{"temperature":0.2,"model":"gpt-4o"}`, string(loaded.Config))
}

func TestStore_LoadMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load(uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RejectsNonUUID(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load("../../etc/passwd")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	err = store.Delete("not-a-uuid")
	require.Error(t, err)
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := newTestStore(t)

	first, err := store.Save(&Record{Title: "first"})
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	second, err := store.Save(&Record{Title: "second"})
	require.NoError(t, err)

	metas, err := store.List()
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, second.ChatID, metas[0].ChatID)
	assert.Equal(t, first.ChatID, metas[1].ChatID)
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)

	rec, err := store.Save(&Record{Title: "doomed"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(rec.ChatID))
	_, err = store.Load(rec.ChatID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Delete(rec.ChatID), ErrNotFound)
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := newTestStore(t)

	rec, err := store.Save(&Record{Title: "v1"})
	require.NoError(t, err)

	rec.Title = "v2"
	rec.Messages = append(rec.Messages, Message{Role: "user", Content: "more"})
	_, err = store.Save(rec)
	require.NoError(t, err)

	loaded, err := store.Load(rec.ChatID)
	require.NoError(t, err)
	assert.Equal(t, "v2", loaded.Title)
	assert.Equal(t, 1, loaded.MessageCount)

	metas, err := store.List()
	require.NoError(t, err)
	assert.Len(t, metas, 1)
}
