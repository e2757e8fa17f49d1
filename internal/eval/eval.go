// Package eval replays conversation datasets through the chat engine to
// measure response quality offline.
package eval

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relaydesk/relaydesk/internal/engine"
	"github.com/relaydesk/relaydesk/internal/log"
	"github.com/relaydesk/relaydesk/internal/tenant"
)

// DefaultConcurrency bounds parallel examples per run.
const DefaultConcurrency = 10

// Example is one dataset entry: a conversation history ending with the user
// message under evaluation. ExpectContains, when set, asserts a substring of
// the response (case-insensitive).
type Example struct {
	Name           string
	SessionID      string
	Messages       []tenant.Message
	ExpectContains string
}

// Outcome records one example's result. Err is set when the turn itself
// failed; Passed reflects the ExpectContains assertion.
type Outcome struct {
	Name     string
	Output   string
	Err      error
	Passed   bool
	Duration time.Duration
}

// Report summarizes a run. Outcomes keep dataset order.
type Report struct {
	Outcomes []Outcome
	Passed   int
	Failed   int
	Errored  int
}

// TurnRunner is the engine surface the runner needs.
type TurnRunner interface {
	CompleteTurn(ctx context.Context, req engine.Request) (*engine.Turn, error)
}

// Runner executes a dataset against one tenant's configuration.
type Runner struct {
	engine      TurnRunner
	concurrency int
	logger      log.Logger
}

func NewRunner(eng TurnRunner, concurrency int, logger log.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Runner{engine: eng, concurrency: concurrency, logger: logger}
}

// Run evaluates every example. One example's failure never stops the rest;
// it is recorded in its Outcome and the run continues.
func (r *Runner) Run(ctx context.Context, t *tenant.Tenant, examples []Example) Report {
	outcomes := make([]Outcome, len(examples))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, ex := range examples {
		g.Go(func() error {
			outcomes[i] = r.runOne(ctx, t, ex)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Outcomes: outcomes}
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			report.Errored++
		case o.Passed:
			report.Passed++
		default:
			report.Failed++
		}
	}

	r.logger.Info("evaluation run finished",
		"examples", len(examples),
		"passed", report.Passed,
		"failed", report.Failed,
		"errored", report.Errored)
	return report
}

func (r *Runner) runOne(ctx context.Context, t *tenant.Tenant, ex Example) Outcome {
	start := time.Now()
	// A distinct span name keeps evaluation turns out of production
	// turn listings, which filter on the default name.
	turn, err := r.engine.CompleteTurn(ctx, engine.Request{
		Tenant:    t,
		SessionID: ex.SessionID,
		SpanName:  "eval-turn",
		Messages:  ex.Messages,
	})
	out := Outcome{Name: ex.Name, Duration: time.Since(start)}
	if err != nil {
		r.logger.Warn("example errored", "example", ex.Name, "error", err)
		out.Err = err
		return out
	}

	out.Output = turn.Text
	out.Passed = ex.ExpectContains == "" ||
		strings.Contains(strings.ToLower(turn.Text), strings.ToLower(ex.ExpectContains))
	return out
}
