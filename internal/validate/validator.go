// Package validate turns raw request bodies into fully-typed chat requests
// with defaults applied, or a complete list of field violations.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"modelgate/config"
	"modelgate/internal/core"
)

const (
	maxPromptChars = 10000
	maxStopStrings = 4
)

// RawChatRequest is the wire shape of a chat request before validation.
// Pointer fields distinguish absent values from zero values; unknown
// top-level fields are stripped by the decode, not rejected.
type RawChatRequest struct {
	Prompt     string         `json:"prompt"`
	Model      string         `json:"model"`
	Provider   string         `json:"provider"`
	Parameters *RawParameters `json:"parameters"`
}

// RawParameters mirrors core.Parameters with optional fields.
type RawParameters struct {
	Temperature      *float64 `json:"temperature"`
	MaxTokens        *int     `json:"max_tokens"`
	TopP             *float64 `json:"top_p"`
	FrequencyPenalty *float64 `json:"frequency_penalty"`
	PresencePenalty  *float64 `json:"presence_penalty"`
	Stop             []string `json:"stop"`
	Stream           *bool    `json:"stream"`
}

// Validate parses and validates a raw JSON body, producing a ChatRequest
// with process-wide defaults applied. Every field violation is collected
// in one pass so a client can fix all problems from one response. The
// (model, provider) compatibility check runs only after the base schema
// passes, as a table lookup; no adapter is ever consulted.
func Validate(body []byte, defaults config.Defaults) (*core.ChatRequest, error) {
	var raw RawChatRequest
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, core.NewValidationError([]core.FieldViolation{{
			Field:   "body",
			Message: "request body is not valid JSON: " + err.Error(),
		}})
	}
	return ValidateRaw(&raw, defaults)
}

// ValidateRaw validates an already-decoded request. Split out so route
// handlers that bind through the framework can reuse the same pass.
func ValidateRaw(raw *RawChatRequest, defaults config.Defaults) (*core.ChatRequest, error) {
	violations := checkSchema(raw)
	if len(violations) > 0 {
		return nil, core.NewValidationError(violations)
	}

	if !Compatible(raw.Provider, raw.Model) {
		return nil, core.NewCompatibilityError(raw.Model, raw.Provider)
	}

	return buildRequest(raw, defaults), nil
}

// checkSchema runs the base schema pass and returns every violation found,
// never failing fast on the first.
func checkSchema(raw *RawChatRequest) []core.FieldViolation {
	var violations []core.FieldViolation

	add := func(field, message string, value interface{}) {
		violations = append(violations, core.FieldViolation{
			Field:   field,
			Message: message,
			Value:   value,
		})
	}

	switch promptLen := utf8.RuneCountInString(raw.Prompt); {
	case strings.TrimSpace(raw.Prompt) == "":
		add("prompt", "prompt is required and must be non-empty", raw.Prompt)
	case promptLen > maxPromptChars:
		add("prompt", fmt.Sprintf("prompt must be at most %d characters, got %d", maxPromptChars, promptLen), nil)
	}

	if raw.Provider == "" {
		add("provider", "provider is required", raw.Provider)
	} else if !KnownProvider(raw.Provider) {
		add("provider", fmt.Sprintf("provider must be one of: %s", strings.Join(Providers(), ", ")), raw.Provider)
	}

	if raw.Model == "" {
		add("model", "model is required", raw.Model)
	}

	if p := raw.Parameters; p != nil {
		if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
			add("parameters.temperature", "temperature must be between 0 and 2", *p.Temperature)
		}
		if p.MaxTokens != nil && (*p.MaxTokens < 1 || *p.MaxTokens > 8000) {
			add("parameters.max_tokens", "max_tokens must be between 1 and 8000", *p.MaxTokens)
		}
		if p.TopP != nil && (*p.TopP < 0 || *p.TopP > 1) {
			add("parameters.top_p", "top_p must be between 0 and 1", *p.TopP)
		}
		if p.FrequencyPenalty != nil && (*p.FrequencyPenalty < -2 || *p.FrequencyPenalty > 2) {
			add("parameters.frequency_penalty", "frequency_penalty must be between -2 and 2", *p.FrequencyPenalty)
		}
		if p.PresencePenalty != nil && (*p.PresencePenalty < -2 || *p.PresencePenalty > 2) {
			add("parameters.presence_penalty", "presence_penalty must be between -2 and 2", *p.PresencePenalty)
		}
		if len(p.Stop) > maxStopStrings {
			add("parameters.stop", fmt.Sprintf("stop accepts at most %d strings, got %d", maxStopStrings, len(p.Stop)), len(p.Stop))
		}
	}

	return violations
}

// buildRequest assembles the immutable ChatRequest, filling omitted
// parameters from the process-wide defaults.
func buildRequest(raw *RawChatRequest, defaults config.Defaults) *core.ChatRequest {
	params := core.Parameters{
		Temperature:      defaults.Temperature,
		MaxTokens:        defaults.MaxTokens,
		TopP:             defaults.TopP,
		FrequencyPenalty: defaults.FrequencyPenalty,
		PresencePenalty:  defaults.PresencePenalty,
	}

	if p := raw.Parameters; p != nil {
		if p.Temperature != nil {
			params.Temperature = *p.Temperature
		}
		if p.MaxTokens != nil {
			params.MaxTokens = *p.MaxTokens
		}
		if p.TopP != nil {
			params.TopP = *p.TopP
		}
		if p.FrequencyPenalty != nil {
			params.FrequencyPenalty = *p.FrequencyPenalty
		}
		if p.PresencePenalty != nil {
			params.PresencePenalty = *p.PresencePenalty
		}
		if len(p.Stop) > 0 {
			params.Stop = append([]string(nil), p.Stop...)
		}
		if p.Stream != nil {
			params.Stream = *p.Stream
		}
	}

	return &core.ChatRequest{
		Prompt:     raw.Prompt,
		Model:      raw.Model,
		Provider:   raw.Provider,
		Parameters: params,
	}
}
