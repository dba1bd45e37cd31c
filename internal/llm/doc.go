// Package llm abstracts the text-generation endpoints the tool loop talks
// to. Two wire dialects are implemented: the OpenAI-compatible chat
// completions shape, which serves both OpenRouter and Mistral, and the
// Gemini generateContent shape. Providers are selected by name through the
// factory.
package llm
