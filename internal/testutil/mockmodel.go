package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockModel answers with scripted replies keyed by substrings of the last
// user message. Replies are checked in registration order; the first match
// wins, and the fallback applies when nothing matches. Every invocation is
// recorded so tests can assert on what the model actually saw, including
// the system prompt.
type MockModel struct {
	mu       sync.Mutex
	rules    []modelRule
	fallback string
	calls    []ModelCall
}

type modelRule struct {
	match string
	reply string
	tool  *ai.ToolRequest
}

// ModelCall is one recorded model invocation.
type ModelCall struct {
	System   string // concatenated system message text
	UserText string // last user message text
	Reply    string
}

func NewMockModel(fallback string) *MockModel {
	return &MockModel{fallback: fallback}
}

// Reply registers a reply for user messages containing match
// (case-insensitive).
func (m *MockModel) Reply(match, reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, modelRule{match: strings.ToLower(match), reply: reply})
}

// ReplyWithTool registers a reply that first requests the given tool call.
// On the follow-up turn, after the tool response arrives, the reply text is
// returned without requesting the tool again.
func (m *MockModel) ReplyWithTool(match string, tool *ai.ToolRequest, reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, modelRule{match: strings.ToLower(match), reply: reply, tool: tool})
}

// Calls returns a copy of all recorded invocations.
func (m *MockModel) Calls() []ModelCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ModelCall(nil), m.calls...)
}

// Register defines the mock as a Genkit model named "mock/chat" and
// returns its reference.
func (m *MockModel) Register(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, "mock/chat", &ai.ModelOptions{
		Label: "Mock Chat Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			Tools:      true,
			SystemRole: true,
		},
	}, m.generate)
}

func (m *MockModel) generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	var system, userText string
	sawToolResponse := false
	for _, msg := range req.Messages {
		switch msg.Role {
		case ai.RoleSystem:
			system += msg.Text()
		case ai.RoleUser:
			userText = msg.Text()
		case ai.RoleTool:
			sawToolResponse = true
		}
	}

	m.mu.Lock()
	var matched *modelRule
	lower := strings.ToLower(userText)
	for i := range m.rules {
		if strings.Contains(lower, m.rules[i].match) {
			matched = &m.rules[i]
			break
		}
	}
	reply := m.fallback
	if matched != nil {
		reply = matched.reply
	}
	m.calls = append(m.calls, ModelCall{System: system, UserText: userText, Reply: reply})
	m.mu.Unlock()

	if matched != nil && matched.tool != nil && !sawToolResponse {
		return &ai.ModelResponse{
			Request: req,
			Message: &ai.Message{
				Role:    ai.RoleModel,
				Content: []*ai.Part{{Kind: ai.PartToolRequest, ToolRequest: matched.tool}},
			},
		}, nil
	}

	if cb != nil {
		// Split the reply in two so stream consumers see multiple chunks.
		half := len(reply) / 2
		for _, piece := range []string{reply[:half], reply[half:]} {
			if piece == "" {
				continue
			}
			if err := cb(ctx, &ai.ModelResponseChunk{
				Content: []*ai.Part{ai.NewTextPart(piece)},
			}); err != nil {
				return nil, err
			}
		}
	}

	return &ai.ModelResponse{
		Request: req,
		Message: &ai.Message{
			Role:    ai.RoleModel,
			Content: []*ai.Part{ai.NewTextPart(reply)},
		},
	}, nil
}
