package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saveChat(t *testing.T, srv *Server, body string) map[string]interface{} {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/chats", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody(t, rec)
}

func TestChats_SaveAssignsID(t *testing.T) {
	srv := newTestServer(t, &stubAdapter{}, nil)

	saved := saveChat(t, srv, `{
		"messages": [{"role": "user", "content": "hi", "timestamp": "2026-08-25T10:00:00Z"}],
		"title": "greeting"
	}`)

	chatID, ok := saved["chatId"].(string)
	require.True(t, ok)
	_, err := uuid.Parse(chatID)
	assert.NoError(t, err)
	assert.Equal(t, float64(1), saved["messageCount"])
}

func TestChats_RoundTrip(t *testing.T) {
	srv := newTestServer(t, &stubAdapter{}, nil)

	saved := saveChat(t, srv, `{
		"messages": [
			{"role": "user", "content": "hi", "timestamp": "2026-08-25T10:00:00Z"},
			{"role": "assistant", "content": "hello", "timestamp": "2026-08-25T10:00:01Z"}
		],
		"config": {"temperature": 0.2, "model": "gpt-4o"},
		"title": "greeting"
	}`)
	chatID := saved["chatId"].(string)

	rec := doJSON(t, srv, http.MethodGet, "/api/chats/"+chatID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, chatID, body["chatId"])
	assert.Equal(t, "greeting", body["title"])
	assert.Equal(t, float64(2), body["messageCount"])
	messages := body["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "assistant", messages[1].(map[string]interface{})["role"])
}

func TestChats_ListNewestFirst(t *testing.T) {
	srv := newTestServer(t, &stubAdapter{}, nil)

	saveChat(t, srv, `{"title": "first"}`)
	second := saveChat(t, srv, `{"title": "second"}`)

	rec := doJSON(t, srv, http.MethodGet, "/api/chats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	chats := body["chats"].([]interface{})
	require.Len(t, chats, 2)
	assert.Equal(t, second["chatId"], chats[0].(map[string]interface{})["chatId"])
}

func TestChats_GetMissing(t *testing.T) {
	srv := newTestServer(t, &stubAdapter{}, nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/chats/"+uuid.NewString(), "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "validation_error", body["error"])
	assert.Equal(t, "chat not found", body["message"])
}

func TestChats_InvalidID(t *testing.T) {
	srv := newTestServer(t, &stubAdapter{}, nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/chats/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeBody(t, rec)["error"])
}

func TestChats_Delete(t *testing.T) {
	srv := newTestServer(t, &stubAdapter{}, nil)

	saved := saveChat(t, srv, `{"title": "doomed"}`)
	chatID := saved["chatId"].(string)

	rec := doJSON(t, srv, http.MethodDelete, "/api/chats/"+chatID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["success"])

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/chats/%s", chatID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, http.MethodDelete, "/api/chats/"+chatID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
