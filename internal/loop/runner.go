package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/loomworks/mcpagent/internal/errors"
	"github.com/loomworks/mcpagent/internal/llm"
	"github.com/loomworks/mcpagent/internal/mcpclient"
)

const (
	// DefaultMaxTurns bounds how many model round-trips one query may take.
	DefaultMaxTurns = 8

	// DefaultResultLimit bounds how much of a tool result enters the
	// transcript, keeping transcript growth in check.
	DefaultResultLimit = 4096
)

// ToolCaller executes one named tool. Satisfied by *mcpclient.Client.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcpclient.ToolResult, error)
}

// Runner mediates between a text-generation client and a tool executor
// until a final answer is produced or the turn budget is exhausted.
//
// Invocations within a turn run sequentially, in the order the model
// requested them, so transcript ordering is deterministic.
type Runner struct {
	log         *slog.Logger
	model       llm.Client
	tools       ToolCaller
	maxTurns    int
	resultLimit int
}

// NewRunner creates a runner. Non-positive limits fall back to the defaults.
func NewRunner(log *slog.Logger, model llm.Client, tools ToolCaller, maxTurns, resultLimit int) *Runner {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	if resultLimit <= 0 {
		resultLimit = DefaultResultLimit
	}

	return &Runner{
		log:         log.With("component", "loop"),
		model:       model,
		tools:       tools,
		maxTurns:    maxTurns,
		resultLimit: resultLimit,
	}
}

// Outcome is the result of one query through the loop.
type Outcome struct {
	// Answer is the model's final plain-text reply.
	Answer string

	// Transcript is the input transcript plus every turn this query added.
	Transcript []llm.Message

	// ModelCalls and ToolCalls count the outbound calls made.
	ModelCalls int
	ToolCalls  int
}

// Run executes one query. The transcript must already end with the user's
// question; the catalog is the tool set offered to the model.
//
// Each iteration makes exactly one model call. A reply without tool
// invocations ends the loop with its text as the answer. Otherwise every
// requested invocation is executed and answered in the transcript before
// the next model call; partial execution never happens. Hitting the turn
// ceiling fails the query with ErrTurnBudgetExceeded; the error is fatal
// for this query only, the session stays usable.
func (r *Runner) Run(ctx context.Context, transcript []llm.Message, catalog []*mcp.Tool) (*Outcome, error) {
	outcome := &Outcome{Transcript: transcript}

	for turn := range r.maxTurns {
		reply, err := r.model.Complete(ctx, outcome.Transcript, catalog)
		if err != nil {
			return nil, fmt.Errorf("model call: %w", err)
		}

		outcome.ModelCalls++
		outcome.Transcript = append(outcome.Transcript, llm.AssistantMessage(reply))

		if len(reply.ToolCalls) == 0 {
			r.log.Debug("Final answer produced", "turns", turn+1, "tool_calls", outcome.ToolCalls)

			outcome.Answer = reply.Text

			return outcome, nil
		}

		r.log.Debug("Model requested tools", "turn", turn+1, "count", len(reply.ToolCalls))

		for _, call := range reply.ToolCalls {
			outcome.ToolCalls++
			outcome.Transcript = append(
				outcome.Transcript,
				llm.ToolResultMessage(call, r.execute(ctx, call)),
			)
		}
	}

	r.log.Warn("Turn budget exhausted without a final answer", "max_turns", r.maxTurns)

	return nil, fmt.Errorf("no final answer after %d turns: %w", r.maxTurns, errors.ErrTurnBudgetExceeded)
}

// execute runs one tool invocation and returns the transcript text for it.
// Failures never escape: they become an error marker the model can react
// to, so remaining invocations in the turn still run.
func (r *Runner) execute(ctx context.Context, call llm.ToolCall) string {
	args := parseArguments(r.log, call)

	result, err := r.tools.CallTool(ctx, call.Name, args)
	if err != nil {
		r.log.Warn("Tool invocation failed", "tool", call.Name, "error", err)

		return fmt.Sprintf("error calling %s: %v", call.Name, err)
	}

	text := result.FirstText()

	if norm := mcpclient.Normalize(json.RawMessage(text)); norm.Recognized() {
		r.log.Debug("Tool returned item list", "tool", call.Name, "items", len(norm.Items))
	}

	return truncate(text, r.resultLimit)
}

// parseArguments decodes the model-emitted argument JSON. Malformed
// arguments are recovered by substituting an empty set, never by aborting
// the turn.
func parseArguments(log *slog.Logger, call llm.ToolCall) map[string]any {
	if call.Arguments == "" {
		return map[string]any{}
	}

	var args map[string]any

	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		log.Warn("Malformed tool arguments, substituting empty set", "tool", call.Name, "error", err)

		return map[string]any{}
	}

	if args == nil {
		return map[string]any{}
	}

	return args
}

// truncate bounds s to limit bytes without splitting a UTF-8 sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut] + "…[truncated]"
}
