package adapters

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelgate/config"
	"modelgate/internal/core"
)

type stubAdapter struct {
	apiKey  string
	baseURL string
}

func (s *stubAdapter) GenerateCompletion(context.Context, *core.ChatRequest) (*core.NormalizedResponse, error) {
	return nil, nil
}

func (s *stubAdapter) GenerateStreamingCompletion(context.Context, *core.ChatRequest) (<-chan core.StreamChunk, error) {
	return nil, nil
}

func (s *stubAdapter) SetBaseURL(url string) {
	s.baseURL = url
}

func stubRegistration(name string) Registration {
	return Registration{
		Type: name,
		New: func(apiKey string, _ Options) core.Adapter {
			return &stubAdapter{apiKey: apiKey}
		},
	}
}

func TestFactory_Resolve(t *testing.T) {
	factory := NewFactory(Options{}, stubRegistration("openai"))

	adapter, err := factory.Resolve("openai", config.ProviderConfig{APIKey: "sk-test"})
	require.NoError(t, err)

	stub, ok := adapter.(*stubAdapter)
	require.True(t, ok)
	assert.Equal(t, "sk-test", stub.apiKey)
}

func TestFactory_ResolveUnknownProvider(t *testing.T) {
	factory := NewFactory(Options{}, stubRegistration("openai"))

	_, err := factory.Resolve("mistral", config.ProviderConfig{APIKey: "k"})
	require.Error(t, err)

	var gwErr *core.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, core.KindConfiguration, gwErr.Kind)
	assert.Equal(t, http.StatusNotFound, gwErr.HTTPStatusCode())
	assert.Contains(t, gwErr.Message, "mistral")
}

func TestFactory_ResolveMissingCredential(t *testing.T) {
	factory := NewFactory(Options{}, stubRegistration("anthropic"))

	_, err := factory.Resolve("anthropic", config.ProviderConfig{})
	require.Error(t, err)

	var gwErr *core.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, core.KindConfiguration, gwErr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, gwErr.HTTPStatusCode())
	assert.Equal(t, "anthropic", gwErr.Provider)
}

func TestFactory_ResolveAppliesBaseURL(t *testing.T) {
	factory := NewFactory(Options{}, stubRegistration("openai"))

	adapter, err := factory.Resolve("openai", config.ProviderConfig{
		APIKey:  "k",
		BaseURL: "http://localhost:9999/v1",
	})
	require.NoError(t, err)

	stub := adapter.(*stubAdapter)
	assert.Equal(t, "http://localhost:9999/v1", stub.baseURL)
}

func TestFactory_RegisteredSorted(t *testing.T) {
	factory := NewFactory(Options{},
		stubRegistration("openai"),
		stubRegistration("google"),
		stubRegistration("anthropic"),
		stubRegistration("groq"),
	)

	assert.Equal(t, []string{"anthropic", "google", "groq", "openai"}, factory.Registered())
}

func TestFactory_LaterRegistrationWins(t *testing.T) {
	factory := NewFactory(Options{}, stubRegistration("openai"))
	factory.Register(Registration{
		Type: "openai",
		New: func(apiKey string, _ Options) core.Adapter {
			return &stubAdapter{apiKey: "replaced"}
		},
	})

	adapter, err := factory.Resolve("openai", config.ProviderConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "replaced", adapter.(*stubAdapter).apiKey)
}
