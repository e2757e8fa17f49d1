// Package engine orchestrates one chat turn: grounding retrieval, prompt
// assembly, model invocation, and span accounting around the whole exchange.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/relaydesk/relaydesk/internal/log"
	"github.com/relaydesk/relaydesk/internal/prompt"
	"github.com/relaydesk/relaydesk/internal/provider"
	"github.com/relaydesk/relaydesk/internal/retrieval"
	"github.com/relaydesk/relaydesk/internal/sessionspan"
	"github.com/relaydesk/relaydesk/internal/telemetry"
	"github.com/relaydesk/relaydesk/internal/tenant"
)

// ErrConfiguration marks tenant misconfiguration (missing credential,
// unknown provider). Callers map it to a client error instead of retrying.
var ErrConfiguration = errors.New("tenant model configuration invalid")

// ErrProvider marks a transient upstream model failure. The turn is not
// retried here; callers surface a generic stream error.
var ErrProvider = errors.New("model provider request failed")

// RetrievalMode selects how knowledge reaches the model.
type RetrievalMode string

const (
	// ModeInline searches once up front and injects results into the
	// system prompt.
	ModeInline RetrievalMode = "inline"
	// ModeTool exposes search as a tool the model calls mid-generation.
	ModeTool RetrievalMode = "tool"
)

// SearchToolName is the tool exposed to the model in ModeTool.
const SearchToolName = "search_knowledge_base"

// DefaultSpanName names turn spans unless the request overrides it.
// Downstream consumers filter turn listings on this name.
const DefaultSpanName = "chat-turn"

// DefaultMaxToolTurns bounds the model/tool round trips in ModeTool.
const DefaultMaxToolTurns = 5

// Resolver turns a tenant's configuration into a generation handle.
type Resolver interface {
	Resolve(ctx context.Context, t *tenant.Tenant) (*provider.Handle, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, t *tenant.Tenant) (*provider.Handle, error)

func (f ResolverFunc) Resolve(ctx context.Context, t *tenant.Tenant) (*provider.Handle, error) {
	return f(ctx, t)
}

// Retriever searches a tenant's knowledge base.
type Retriever interface {
	Retrieve(ctx context.Context, t *tenant.Tenant, query string) retrieval.Result
}

// Config tunes the orchestrator. Zero values take the defaults.
type Config struct {
	Mode         RetrievalMode
	MaxToolTurns int
	SessionTTL   time.Duration
}

// Request is one chat turn for a resolved tenant. SessionID may be empty;
// a fallback ID is generated so the turn still gets span continuity.
// SpanName overrides the turn span's name; empty takes DefaultSpanName.
type Request struct {
	Tenant    *tenant.Tenant
	SessionID string
	SpanName  string
	Messages  []tenant.Message
}

// Turn is the completed result of a chat turn.
type Turn struct {
	Text      string
	SessionID string
	UserText  string
	Retrieved retrieval.Result
}

// StreamChunk receives incremental response text during StreamTurn.
type StreamChunk func(text string) error

// Orchestrator runs chat turns. All dependencies are injected; the
// orchestrator itself holds no per-tenant state.
type Orchestrator struct {
	resolver  Resolver
	retriever Retriever
	tracer    telemetry.Tracer
	sessions  sessionspan.Cache
	cfg       Config
	logger    log.Logger
	now       func() time.Time
}

func New(resolver Resolver, retriever Retriever, tracer telemetry.Tracer, sessions sessionspan.Cache, cfg Config, logger log.Logger) *Orchestrator {
	if cfg.Mode == "" {
		cfg.Mode = ModeInline
	}
	if cfg.MaxToolTurns <= 0 {
		cfg.MaxToolTurns = DefaultMaxToolTurns
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = sessionspan.DefaultTTL
	}
	return &Orchestrator{
		resolver:  resolver,
		retriever: retriever,
		tracer:    tracer,
		sessions:  sessions,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// CompleteTurn runs a turn and returns the full response at once.
func (o *Orchestrator) CompleteTurn(ctx context.Context, req Request) (*Turn, error) {
	return o.executeTurn(ctx, req, nil)
}

// StreamTurn runs a turn, delivering response text incrementally through
// onChunk. The returned Turn carries the complete text.
func (o *Orchestrator) StreamTurn(ctx context.Context, req Request, onChunk StreamChunk) (*Turn, error) {
	return o.executeTurn(ctx, req, onChunk)
}

func (o *Orchestrator) executeTurn(ctx context.Context, req Request, onChunk StreamChunk) (*Turn, error) {
	t := req.Tenant
	// Empty for assistant-initiated conversations; retrieval short-circuits
	// on an empty query and the model answers from history alone.
	userText := tenant.LastUserText(req.Messages)

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("session-%s-%d", t.ID, o.now().Unix())
	}

	spanName := req.SpanName
	if spanName == "" {
		spanName = DefaultSpanName
	}

	// Later turns of the same session attach under its root span.
	parent, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		o.logger.Warn("session span lookup failed", "session_id", sessionID, "error", err)
		parent = ""
	}
	if parent != "" {
		ctx = o.tracer.WithParent(ctx, parent)
	}

	ctx, span := o.tracer.StartSpan(ctx, spanName, telemetry.Event{
		Input: userText,
		Metadata: map[string]any{
			"session_id":     sessionID,
			"tenant_id":      t.ID,
			"tenant_slug":    t.Slug,
			"model_provider": string(t.Provider),
			"model_name":     t.ModelName,
		},
	})
	defer span.End()

	// The cached handle is the session's root span: the first turn stores
	// its own span, later turns only refresh the TTL on the same handle so
	// every turn of the session groups under one parent.
	root := parent
	if root == "" {
		root = span.Export()
	}
	if err := o.sessions.Set(ctx, sessionID, root, o.cfg.SessionTTL); err != nil {
		o.logger.Warn("session span store failed", "session_id", sessionID, "error", err)
	}

	handle, err := o.resolver.Resolve(ctx, t)
	if err != nil {
		if errors.Is(err, provider.ErrMissingAPIKey) || errors.Is(err, provider.ErrUnknownProvider) {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		return nil, fmt.Errorf("resolving model: %w", err)
	}

	opts := []ai.GenerateOption{
		ai.WithModelName(handle.ModelName),
		ai.WithMessages(toModelMessages(req.Messages)...),
		ai.WithConfig(&ai.GenerationCommonConfig{Temperature: float64(t.Temperature)}),
	}

	var retrieved retrieval.Result
	switch o.cfg.Mode {
	case ModeTool:
		tool := o.defineSearchTool(handle.Genkit, t)
		opts = append(opts,
			ai.WithSystem(prompt.BuildWithTool(t.Instructions, SearchToolName, t.WelcomeMessage)),
			ai.WithTools(tool),
			ai.WithMaxTurns(o.cfg.MaxToolTurns),
		)
	default:
		retrieved = o.retriever.Retrieve(ctx, t, userText)
		opts = append(opts,
			ai.WithSystem(prompt.Build(t.Instructions, retrieved.PromptText(), t.WelcomeMessage)),
		)
	}

	if onChunk != nil {
		opts = append(opts, ai.WithStreaming(func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			return onChunk(chunk.Text())
		}))
	}

	resp, err := genkit.Generate(ctx, handle.Genkit, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}

	text := resp.Text()
	span.Log(telemetry.Event{Output: text})

	return &Turn{Text: text, SessionID: sessionID, UserText: userText, Retrieved: retrieved}, nil
}

type searchInput struct {
	Query string `json:"query" jsonschema_description:"What to look up in the knowledge base"`
}

// defineSearchTool binds the retriever to the tenant's knowledge base on
// the turn's own Genkit instance. Tool errors surface to the model as an
// empty result, mirroring inline retrieval's degraded behavior.
func (o *Orchestrator) defineSearchTool(g *genkit.Genkit, t *tenant.Tenant) ai.ToolRef {
	return genkit.DefineTool(g, SearchToolName,
		"Search the knowledge base for information relevant to the user's question.",
		func(tc *ai.ToolContext, input searchInput) (string, error) {
			res := o.retriever.Retrieve(tc.Context, t, input.Query)
			if res.Empty() {
				return "No relevant information found.", nil
			}
			return res.PromptText(), nil
		})
}

func toModelMessages(msgs []tenant.Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case tenant.RoleUser:
			out = append(out, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		case tenant.RoleAssistant:
			out = append(out, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		case tenant.RoleSystem:
			out = append(out, ai.NewSystemMessage(ai.NewTextPart(m.Content)))
		}
	}
	return out
}
