package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"modelgate/config"
	"modelgate/internal/adapters"
	"modelgate/internal/auditlog"
	"modelgate/internal/core"
	"modelgate/internal/history"
	"modelgate/internal/observability"
	"modelgate/internal/validate"
	"modelgate/internal/version"
)

// Handler holds the dispatch dependencies shared by all routes.
type Handler struct {
	cfg     *config.Config
	factory *adapters.Factory
	history *history.Store
	audit   auditlog.Recorder
	metrics *observability.Metrics
}

// NewHandler builds the handler set. A nil audit recorder degrades to a
// noop; a nil metrics handle records nothing.
func NewHandler(deps Deps) *Handler {
	audit := deps.Audit
	if audit == nil {
		audit = &auditlog.NoopLogger{}
	}
	return &Handler{
		cfg:     deps.Config,
		factory: deps.Factory,
		history: deps.History,
		audit:   audit,
		metrics: deps.Metrics,
	}
}

// errorEnvelope is the wire shape of every error response.
type errorEnvelope struct {
	Error       string                `json:"error"`
	Message     string                `json:"message"`
	Details     []core.FieldViolation `json:"details,omitempty"`
	Provider    string                `json:"provider,omitempty"`
	UserMessage string                `json:"userMessage,omitempty"`
	Timestamp   time.Time             `json:"timestamp"`
}

// chatResponse is the success envelope of a completion. Duration is the
// wall-clock adapter call time in milliseconds.
type chatResponse struct {
	Success   bool                     `json:"success"`
	Provider  string                   `json:"provider"`
	Model     string                   `json:"model"`
	Response  *core.NormalizedResponse `json:"response"`
	Duration  int64                    `json:"duration"`
	Timestamp time.Time                `json:"timestamp"`
}

// providerStatus is one entry of the provider overview.
type providerStatus struct {
	Available bool     `json:"available"`
	Models    []string `json:"models"`
}

// Health reports process liveness. No upstream calls are made here.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"timestamp":   time.Now().UTC(),
		"environment": h.cfg.Environment,
		"version":     version.Version,
	})
}

// ListProviders returns every supported provider with its availability
// and declared model set. Availability is credential presence, not a
// live upstream probe.
func (h *Handler) ListProviders(c echo.Context) error {
	providers := make(map[string]providerStatus, len(config.SupportedProviders()))
	for _, name := range config.SupportedProviders() {
		pCfg, _ := h.cfg.Provider(name)
		providers[name] = providerStatus{
			Available: pCfg.Available(),
			Models:    validate.Models(name),
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"providers": providers,
		"timestamp": time.Now().UTC(),
	})
}

// ProviderModels returns one provider's model set. Unknown providers are
// a 404; known but unconfigured providers answer 503 with the same body
// shape so clients can still see the model list.
func (h *Handler) ProviderModels(c echo.Context) error {
	name := c.Param("provider")
	if !validate.KnownProvider(name) {
		return h.handleError(c, core.NewUnknownProviderError(name))
	}

	pCfg, _ := h.cfg.Provider(name)
	status := http.StatusOK
	if !pCfg.Available() {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, map[string]interface{}{
		"provider":  name,
		"models":    validate.Models(name),
		"available": pCfg.Available(),
		"timestamp": time.Now().UTC(),
	})
}

// Chat handles a synchronous completion: validate, resolve the adapter,
// make one upstream call, and wrap the normalized result.
func (h *Handler) Chat(c echo.Context) error {
	req, err := h.parseChatRequest(c)
	if err != nil {
		return h.handleError(c, err)
	}

	adapter, err := h.resolve(req.Provider)
	if err != nil {
		return h.handleError(c, err)
	}

	start := time.Now()
	resp, err := adapter.GenerateCompletion(c.Request().Context(), req)
	duration := time.Since(start)

	if err != nil {
		h.observe(c, req, start, duration, errorStatus(err), nil, false, err)
		return h.handleError(c, err)
	}

	h.observe(c, req, start, duration, http.StatusOK, resp.Usage, false, nil)
	return c.JSON(http.StatusOK, chatResponse{
		Success:   true,
		Provider:  req.Provider,
		Model:     req.Model,
		Response:  resp,
		Duration:  duration.Milliseconds(),
		Timestamp: time.Now().UTC(),
	})
}

// Stream handles a streamed completion over SSE. Failures before the
// first byte render the normal error envelope; once headers are
// committed, failures surface as an in-band error event and the stream
// closes without the [DONE] terminator.
func (h *Handler) Stream(c echo.Context) error {
	req, err := h.parseChatRequest(c)
	if err != nil {
		return h.handleError(c, err)
	}
	req.Parameters.Stream = true

	adapter, err := h.resolve(req.Provider)
	if err != nil {
		return h.handleError(c, err)
	}

	start := time.Now()
	ch, err := adapter.GenerateStreamingCompletion(c.Request().Context(), req)
	if err != nil {
		duration := time.Since(start)
		h.observe(c, req, start, duration, errorStatus(err), nil, true, err)
		return h.handleError(c, err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	var streamErr string
	for chunk := range ch {
		data, err := json.Marshal(chunk)
		if err != nil {
			slog.Error("failed to marshal stream chunk", "error", err)
			continue
		}
		fmt.Fprintf(res, "data: %s\n\n", data)
		res.Flush()
		if chunk.Error != "" {
			streamErr = chunk.Error
			break
		}
	}
	if streamErr == "" {
		io.WriteString(res, "data: [DONE]\n\n")
		res.Flush()
	}

	duration := time.Since(start)
	var obsErr error
	if streamErr != "" {
		obsErr = core.NewUpstreamError(req.Provider, http.StatusBadGateway, streamErr, nil)
	}
	// The status was committed as 200 before the stream body started.
	h.observe(c, req, start, duration, http.StatusOK, nil, true, obsErr)
	return nil
}

// parseChatRequest reads and validates the request body.
func (h *Handler) parseChatRequest(c echo.Context) (*core.ChatRequest, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, core.NewValidationError([]core.FieldViolation{{
			Field:   "body",
			Message: "failed to read request body",
		}})
	}
	return validate.Validate(body, h.cfg.Defaults)
}

// resolve maps a provider name onto a constructed adapter. Availability
// is checked by the factory before any adapter is built.
func (h *Handler) resolve(name string) (core.Adapter, error) {
	pCfg, _ := h.cfg.Provider(name)
	return h.factory.Resolve(name, pCfg)
}

// observe records one finished dispatch to metrics and the audit log.
func (h *Handler) observe(c echo.Context, req *core.ChatRequest, start time.Time,
	duration time.Duration, status int, usage *core.Usage, stream bool, err error) {

	h.metrics.ObserveRequest(req.Provider, req.Model, status, duration)

	entry := &auditlog.LogEntry{
		ID:         uuid.NewString(),
		Timestamp:  start.UTC(),
		DurationNs: duration.Nanoseconds(),
		Provider:   req.Provider,
		Model:      req.Model,
		StatusCode: status,
		RequestID:  core.GetRequestID(c.Request().Context()),
		ClientIP:   c.RealIP(),
		Path:       c.Path(),
		Stream:     stream,
	}
	if usage != nil {
		entry.PromptTokens = usage.PromptTokens
		entry.CompletionTokens = usage.CompletionTokens
		entry.TotalTokens = usage.TotalTokens
	}
	var gwErr *core.Error
	if errors.As(err, &gwErr) {
		entry.ErrorKind = string(gwErr.Kind)
	} else if err != nil {
		entry.ErrorKind = string(core.KindInternal)
	}
	h.audit.Write(entry)
}

// handleError converts any error into the wire envelope. Internal error
// detail is hidden in production.
func (h *Handler) handleError(c echo.Context, err error) error {
	var gwErr *core.Error
	if !errors.As(err, &gwErr) {
		gwErr = core.NewInternalError("unexpected error", err)
	}

	message := gwErr.Message
	if gwErr.Kind == core.KindInternal {
		slog.Error("internal error",
			"error", err,
			"request_id", core.GetRequestID(c.Request().Context()),
		)
		if h.cfg.Environment == "production" {
			message = "an internal error occurred"
		}
	}

	return c.JSON(gwErr.HTTPStatusCode(), errorEnvelope{
		Error:       string(gwErr.Kind),
		Message:     message,
		Details:     gwErr.Details,
		Provider:    gwErr.Provider,
		UserMessage: gwErr.UserMessage,
		Timestamp:   time.Now().UTC(),
	})
}

// errorStatus extracts the HTTP status an error will render with.
func errorStatus(err error) int {
	var gwErr *core.Error
	if errors.As(err, &gwErr) {
		return gwErr.HTTPStatusCode()
	}
	return http.StatusInternalServerError
}
