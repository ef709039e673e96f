package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"modelgate/internal/core"
	"modelgate/internal/history"
)

// SaveChat stores a chat transcript. A missing chat ID gets one
// assigned; an existing ID overwrites the stored record.
func (h *Handler) SaveChat(c echo.Context) error {
	var rec history.Record
	if err := c.Bind(&rec); err != nil {
		return h.handleError(c, core.NewValidationError([]core.FieldViolation{{
			Field:   "body",
			Message: "request body is not a valid chat record",
		}}))
	}

	saved, err := h.history.Save(&rec)
	if err != nil {
		return h.handleError(c, historyError(err))
	}
	return c.JSON(http.StatusCreated, saved)
}

// ListChats returns metadata for every stored chat, newest first.
func (h *Handler) ListChats(c echo.Context) error {
	metas, err := h.history.List()
	if err != nil {
		return h.handleError(c, historyError(err))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"chats":     metas,
		"timestamp": time.Now().UTC(),
	})
}

// GetChat returns one full chat record by ID.
func (h *Handler) GetChat(c echo.Context) error {
	rec, err := h.history.Load(c.Param("chatId"))
	if err != nil {
		return h.handleError(c, historyError(err))
	}
	return c.JSON(http.StatusOK, rec)
}

// DeleteChat removes one chat by ID.
func (h *Handler) DeleteChat(c echo.Context) error {
	chatID := c.Param("chatId")
	if err := h.history.Delete(chatID); err != nil {
		return h.handleError(c, historyError(err))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":   true,
		"chatId":    chatID,
		"timestamp": time.Now().UTC(),
	})
}

// historyError maps store failures onto the gateway error taxonomy.
func historyError(err error) error {
	switch {
	case errors.Is(err, history.ErrNotFound):
		return &core.Error{
			Kind:        core.KindValidation,
			Message:     "chat not found",
			StatusCode:  http.StatusNotFound,
			UserMessage: "No chat exists with that ID.",
			Err:         err,
		}
	case errors.Is(err, history.ErrInvalidID):
		return &core.Error{
			Kind:       core.KindValidation,
			Message:    err.Error(),
			StatusCode: http.StatusBadRequest,
			Details: []core.FieldViolation{{
				Field:   "chatId",
				Message: "chat IDs are UUIDs",
			}},
			Err: err,
		}
	default:
		return core.NewInternalError("chat store failure", err)
	}
}
