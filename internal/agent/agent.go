// Package agent drives an LLM through a bounded tool-call loop.
//
// The protocol is textual: the model is told about the registered tools and
// instructed to reply with a single JSON object {"tool": ..., "params": ...}
// to invoke one, or with plain text to finish. Each tool result is appended
// to the transcript and the model is asked again, up to a turn budget.
// There is no reflection and no dynamic tool discovery; the registry is the
// whole capability set.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/jxucoder/gitpilot/internal/llm"
	"github.com/jxucoder/gitpilot/internal/tools"
)

// DefaultMaxTurns bounds the tool-call loop when the caller passes 0.
const DefaultMaxTurns = 8

type toolCall struct {
	Tool   string            `json:"tool"`
	Params map[string]string `json:"params"`
}

// Run executes one agent conversation: system + user prompts, with the
// registry's tools available. It returns the model's final free-text answer.
func Run(ctx context.Context, client llm.Client, reg *tools.Registry, system, user string, maxTurns int) (string, error) {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	system = system + "\n\n" + toolProtocol(reg)

	var transcript strings.Builder
	transcript.WriteString(user)

	for turn := 0; turn < maxTurns; turn++ {
		response, err := client.Complete(ctx, system, transcript.String())
		if err != nil {
			return "", fmt.Errorf("agent turn %d: %w", turn+1, err)
		}

		call, ok := parseToolCall(response)
		if !ok {
			return response, nil
		}

		log.WithFields(log.Fields{"tool": call.Tool, "turn": turn + 1}).Debug("agent tool call")
		result := reg.Invoke(ctx, call.Tool, call.Params)
		fmt.Fprintf(&transcript, "\n\n[Tool call: %s]\n[Tool result]\n%s", call.Tool, result)
	}

	// Turn budget exhausted: demand a final answer with no more tool calls.
	transcript.WriteString("\n\nYou have used all available tool calls. Provide your final answer now as plain text. Do not request any more tools.")
	response, err := client.Complete(ctx, system, transcript.String())
	if err != nil {
		return "", fmt.Errorf("agent final turn: %w", err)
	}
	return response, nil
}

// parseToolCall reports whether the response is a tool invocation. The
// response may wrap the JSON object in markdown fences.
func parseToolCall(response string) (*toolCall, bool) {
	s := strings.TrimSpace(response)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}

	var call toolCall
	if err := json.Unmarshal([]byte(s), &call); err != nil || call.Tool == "" {
		return nil, false
	}
	return &call, true
}

// toolProtocol renders the tool catalog and invocation rules appended to
// every agent system prompt.
func toolProtocol(reg *tools.Registry) string {
	var b strings.Builder
	b.WriteString("You have access to the following read-only repository tools:\n")
	for _, t := range reg.Tools() {
		if len(t.Params) > 0 {
			fmt.Fprintf(&b, "- %s(%s): %s\n", t.Name, strings.Join(t.Params, ", "), t.Description)
		} else {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		}
	}
	b.WriteString(`
To call a tool, respond with ONLY a single JSON object and nothing else:
{"tool": "tool_name", "params": {"param": "value"}}

Omit "params" for tools that take none. One tool call per response.
When you have everything you need, respond with your final answer as plain
text (not JSON).`)
	return b.String()
}
