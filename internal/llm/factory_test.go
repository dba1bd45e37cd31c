package llm

import (
	"testing"

	"github.com/stretchr/testify/require"

	agenterrors "github.com/loomworks/mcpagent/internal/errors"
)

func TestNew(t *testing.T) {
	t.Run("openrouter and mistral share the openai dialect", func(t *testing.T) {
		for _, provider := range []string{ProviderOpenRouter, ProviderMistral} {
			client, err := New(testLogger(), Config{
				Provider: provider,
				APIKey:   "sk-test",
				Model:    "some-model",
			})
			require.NoError(t, err)
			require.IsType(t, &OpenAIClient{}, client)
		}
	})

	t.Run("gemini", func(t *testing.T) {
		client, err := New(testLogger(), Config{
			Provider: ProviderGemini,
			APIKey:   "g-test",
			Model:    "gemini-2.0-flash",
		})
		require.NoError(t, err)
		require.IsType(t, &GeminiClient{}, client)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(testLogger(), Config{Provider: "cohere", APIKey: "k", Model: "m"})

		var cfgErr *agenterrors.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("missing api key", func(t *testing.T) {
		_, err := New(testLogger(), Config{Provider: ProviderMistral, Model: "m"})

		var cfgErr *agenterrors.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("missing model", func(t *testing.T) {
		_, err := New(testLogger(), Config{Provider: ProviderMistral, APIKey: "k"})

		var cfgErr *agenterrors.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})
}
