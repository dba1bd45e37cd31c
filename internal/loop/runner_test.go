package loop

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	agenterrors "github.com/loomworks/mcpagent/internal/errors"
	"github.com/loomworks/mcpagent/internal/llm"
	"github.com/loomworks/mcpagent/internal/mcpclient"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedModel returns its replies in order, then fails.
type scriptedModel struct {
	replies []*llm.Reply
	calls   int

	// transcripts captures the transcript seen by each model call.
	transcripts [][]llm.Message
}

func (m *scriptedModel) Complete(_ context.Context, messages []llm.Message, _ []*mcp.Tool) (*llm.Reply, error) {
	m.transcripts = append(m.transcripts, append([]llm.Message(nil), messages...))

	if m.calls >= len(m.replies) {
		return nil, errors.New("script exhausted")
	}

	reply := m.replies[m.calls]
	m.calls++

	return reply, nil
}

// recordingTools records invocations and answers from a name-keyed script.
type recordingTools struct {
	results map[string]*mcpclient.ToolResult
	errs    map[string]error

	invocations []invocation
}

type invocation struct {
	name string
	args map[string]any
}

func textResult(text string) *mcpclient.ToolResult {
	raw := json.RawMessage(`{"content":[{"type":"text","text":` + mustQuote(text) + `}]}`)

	return &mcpclient.ToolResult{
		Content: []mcpclient.ContentBlock{{Type: "text", Text: text}},
		Raw:     raw,
	}
}

func mustQuote(s string) string {
	quoted, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}

	return string(quoted)
}

func (r *recordingTools) CallTool(_ context.Context, name string, args map[string]any) (*mcpclient.ToolResult, error) {
	r.invocations = append(r.invocations, invocation{name: name, args: args})

	if err, ok := r.errs[name]; ok {
		return nil, err
	}

	if result, ok := r.results[name]; ok {
		return result, nil
	}

	return textResult("ok"), nil
}

func toolCall(id, name, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Arguments: args}
}

func TestRunner_PlainReplyTerminatesImmediately(t *testing.T) {
	model := &scriptedModel{replies: []*llm.Reply{{Text: "The roadmap has 3 items."}}}
	tools := &recordingTools{}

	runner := NewRunner(testLogger(), model, tools, 0, 0)

	outcome, err := runner.Run(context.Background(), []llm.Message{llm.UserMessage("summarize")}, nil)
	require.NoError(t, err)
	require.Equal(t, "The roadmap has 3 items.", outcome.Answer)

	// Exactly one model call, zero tool calls.
	require.Equal(t, 1, outcome.ModelCalls)
	require.Equal(t, 0, outcome.ToolCalls)
	require.Empty(t, tools.invocations)

	// Transcript: user turn plus the assistant answer.
	require.Len(t, outcome.Transcript, 2)
	require.Equal(t, llm.RoleAssistant, outcome.Transcript[1].Role)
}

func TestRunner_AllInvocationsExecuteBeforeNextModelCall(t *testing.T) {
	model := &scriptedModel{replies: []*llm.Reply{
		{ToolCalls: []llm.ToolCall{
			toolCall("c1", "search", `{"query":"a"}`),
			toolCall("c2", "fetch", `{"id":"b"}`),
			toolCall("c3", "search", `{"query":"c"}`),
		}},
		{Text: "done"},
	}}
	tools := &recordingTools{}

	runner := NewRunner(testLogger(), model, tools, 0, 0)

	outcome, err := runner.Run(context.Background(), []llm.Message{llm.UserMessage("go")}, nil)
	require.NoError(t, err)
	require.Equal(t, "done", outcome.Answer)
	require.Equal(t, 2, outcome.ModelCalls)
	require.Equal(t, 3, outcome.ToolCalls)

	// All three executed, in request order.
	require.Len(t, tools.invocations, 3)
	require.Equal(t, "search", tools.invocations[0].name)
	require.Equal(t, "fetch", tools.invocations[1].name)
	require.Equal(t, "a", tools.invocations[0].args["query"])

	// The second model call saw all three result entries.
	second := model.transcripts[1]
	require.Len(t, second, 5) // user, assistant, 3 tool results
	require.Equal(t, "c1", second[2].ToolCallID)
	require.Equal(t, "c2", second[3].ToolCallID)
	require.Equal(t, "c3", second[4].ToolCallID)
}

func TestRunner_ExhaustsAtCeiling(t *testing.T) {
	// Every reply requests another tool call; the loop must stop exactly
	// at the ceiling, never looping forever.
	replies := make([]*llm.Reply, 20)
	for i := range replies {
		replies[i] = &llm.Reply{ToolCalls: []llm.ToolCall{toolCall("c", "search", "{}")}}
	}

	model := &scriptedModel{replies: replies}
	tools := &recordingTools{}

	runner := NewRunner(testLogger(), model, tools, 5, 0)

	_, err := runner.Run(context.Background(), []llm.Message{llm.UserMessage("go")}, nil)
	require.ErrorIs(t, err, agenterrors.ErrTurnBudgetExceeded)
	require.Equal(t, 5, model.calls)
	require.Len(t, tools.invocations, 5)
}

func TestRunner_MalformedArgumentsBecomeEmptySet(t *testing.T) {
	model := &scriptedModel{replies: []*llm.Reply{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "search", `"{not json`)}},
		{Text: "done"},
	}}
	tools := &recordingTools{}

	runner := NewRunner(testLogger(), model, tools, 0, 0)

	_, err := runner.Run(context.Background(), []llm.Message{llm.UserMessage("go")}, nil)
	require.NoError(t, err)

	// The invocation still happened, with empty arguments.
	require.Len(t, tools.invocations, 1)
	require.NotNil(t, tools.invocations[0].args)
	require.Empty(t, tools.invocations[0].args)
}

func TestRunner_FailedInvocationBecomesErrorMarker(t *testing.T) {
	model := &scriptedModel{replies: []*llm.Reply{
		{ToolCalls: []llm.ToolCall{
			toolCall("c1", "broken", "{}"),
			toolCall("c2", "search", "{}"),
		}},
		{Text: "recovered"},
	}}
	tools := &recordingTools{
		errs: map[string]error{"broken": errors.New("connection reset")},
	}

	runner := NewRunner(testLogger(), model, tools, 0, 0)

	outcome, err := runner.Run(context.Background(), []llm.Message{llm.UserMessage("go")}, nil)
	require.NoError(t, err)
	require.Equal(t, "recovered", outcome.Answer)

	// The failure did not stop the remaining invocation.
	require.Len(t, tools.invocations, 2)

	// The marker carries the failed invocation's back-reference.
	marker := outcome.Transcript[2]
	require.Equal(t, llm.RoleTool, marker.Role)
	require.Equal(t, "c1", marker.ToolCallID)
	require.Contains(t, marker.Content, "broken")
	require.Contains(t, marker.Content, "connection reset")
}

func TestRunner_TruncatesLongResults(t *testing.T) {
	long := strings.Repeat("x", 10000)

	model := &scriptedModel{replies: []*llm.Reply{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "search", "{}")}},
		{Text: "done"},
	}}
	tools := &recordingTools{
		results: map[string]*mcpclient.ToolResult{"search": textResult(long)},
	}

	runner := NewRunner(testLogger(), model, tools, 0, 100)

	outcome, err := runner.Run(context.Background(), []llm.Message{llm.UserMessage("go")}, nil)
	require.NoError(t, err)

	entry := outcome.Transcript[2]
	require.Less(t, len(entry.Content), 200)
	require.Contains(t, entry.Content, "[truncated]")
}

func TestTruncate_RespectsUTF8Boundaries(t *testing.T) {
	s := strings.Repeat("é", 100) // 2 bytes each

	out := truncate(s, 101)

	// Must not split the rune at byte 101.
	require.True(t, strings.HasSuffix(out, "…[truncated]"))
	require.True(t, strings.HasPrefix(out, "é"))
	require.Equal(t, 100+len("…[truncated]"), len(out))
}
