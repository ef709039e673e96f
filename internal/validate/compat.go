package validate

import "sort"

// modelCatalog is the fixed (provider -> model set) compatibility table.
// Membership here is a static contract, not a live capability probe; a
// pair outside the table is a client error, never a runtime fault.
var modelCatalog = map[string][]string{
	"openai": {
		"gpt-4",
		"gpt-4-turbo",
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-3.5-turbo",
	},
	"anthropic": {
		"claude-3-5-sonnet-20241022",
		"claude-3-5-haiku-20241022",
		"claude-3-opus-20240229",
		"claude-3-sonnet-20240229",
		"claude-3-haiku-20240307",
	},
	"groq": {
		"llama-3.1-70b-versatile",
		"llama-3.1-8b-instant",
		"llama3-70b-8192",
		"mixtral-8x7b-32768",
		"gemma2-9b-it",
	},
	"google": {
		"gemini-1.5-pro",
		"gemini-1.5-flash",
		"gemini-1.0-pro",
	},
}

// compatIndex is the O(1) lookup form of modelCatalog.
var compatIndex = func() map[string]map[string]struct{} {
	idx := make(map[string]map[string]struct{}, len(modelCatalog))
	for provider, models := range modelCatalog {
		set := make(map[string]struct{}, len(models))
		for _, m := range models {
			set[m] = struct{}{}
		}
		idx[provider] = set
	}
	return idx
}()

// KnownProvider reports whether name belongs to the fixed provider set.
func KnownProvider(name string) bool {
	_, ok := compatIndex[name]
	return ok
}

// Compatible reports whether the (model, provider) pair is in the table.
func Compatible(provider, model string) bool {
	set, ok := compatIndex[provider]
	if !ok {
		return false
	}
	_, ok = set[model]
	return ok
}

// Models returns the declared model set of the provider, sorted for
// consistent ordering across calls. Returns nil for unknown providers.
func Models(provider string) []string {
	models, ok := modelCatalog[provider]
	if !ok {
		return nil
	}
	out := make([]string, len(models))
	copy(out, models)
	sort.Strings(out)
	return out
}

// Providers returns the fixed provider set, sorted.
func Providers() []string {
	names := make([]string, 0, len(modelCatalog))
	for name := range modelCatalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
