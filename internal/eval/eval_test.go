package eval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/relaydesk/relaydesk/internal/engine"
	"github.com/relaydesk/relaydesk/internal/log"
	"github.com/relaydesk/relaydesk/internal/tenant"
)

type scriptedRunner struct {
	mu       sync.Mutex
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	fail     map[string]error // keyed by last user text
	reply    func(userText string) string
}

func (s *scriptedRunner) CompleteTurn(_ context.Context, req engine.Request) (*engine.Turn, error) {
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		max := s.maxSeen.Load()
		if cur <= max || s.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}

	userText := tenant.LastUserText(req.Messages)
	s.mu.Lock()
	err := s.fail[userText]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	reply := "ok"
	if s.reply != nil {
		reply = s.reply(userText)
	}
	return &engine.Turn{Text: reply, SessionID: req.SessionID}, nil
}

func userTurn(name, text string) Example {
	return Example{
		Name:     name,
		Messages: []tenant.Message{{Role: tenant.RoleUser, Content: text}},
	}
}

func TestRunAllPass(t *testing.T) {
	runner := NewRunner(&scriptedRunner{reply: func(q string) string {
		return "answer about " + q
	}}, 0, log.NewNop())

	examples := []Example{
		{Name: "a", Messages: []tenant.Message{{Role: tenant.RoleUser, Content: "refunds"}}, ExpectContains: "REFUNDS"},
		userTurn("b", "shipping"),
	}
	report := runner.Run(context.Background(), &tenant.Tenant{ID: "t"}, examples)

	if report.Passed != 2 || report.Failed != 0 || report.Errored != 0 {
		t.Fatalf("report = %+v", report)
	}
	if report.Outcomes[0].Name != "a" || report.Outcomes[1].Name != "b" {
		t.Error("outcomes must keep dataset order")
	}
}

func TestRunFailureDoesNotStopOthers(t *testing.T) {
	sr := &scriptedRunner{fail: map[string]error{"broken": errors.New("model exploded")}}
	runner := NewRunner(sr, 0, log.NewNop())

	report := runner.Run(context.Background(), &tenant.Tenant{ID: "t"}, []Example{
		userTurn("ok-1", "fine"),
		userTurn("bad", "broken"),
		userTurn("ok-2", "also fine"),
	})

	if report.Errored != 1 {
		t.Errorf("Errored = %d, want 1", report.Errored)
	}
	if report.Passed != 2 {
		t.Errorf("Passed = %d, want 2 (run must continue past a failure)", report.Passed)
	}
	if report.Outcomes[1].Err == nil {
		t.Error("failed example must carry its error")
	}
	if report.Outcomes[2].Err != nil || report.Outcomes[2].Output == "" {
		t.Error("example after the failure must still have run")
	}
}

func TestRunAssertionFailure(t *testing.T) {
	runner := NewRunner(&scriptedRunner{reply: func(string) string { return "unrelated" }}, 0, log.NewNop())

	report := runner.Run(context.Background(), &tenant.Tenant{ID: "t"}, []Example{
		{Name: "x", Messages: []tenant.Message{{Role: tenant.RoleUser, Content: "q"}}, ExpectContains: "expected phrase"},
	})
	if report.Failed != 1 || report.Errored != 0 {
		t.Fatalf("report = %+v", report)
	}
	if report.Outcomes[0].Err != nil {
		t.Error("assertion failure is not an error")
	}
}

func TestRunBoundedConcurrency(t *testing.T) {
	sr := &scriptedRunner{}
	runner := NewRunner(sr, 4, log.NewNop())

	examples := make([]Example, 40)
	for i := range examples {
		examples[i] = userTurn(strings.Repeat("x", i+1), "q")
	}
	runner.Run(context.Background(), &tenant.Tenant{ID: "t"}, examples)

	if got := sr.maxSeen.Load(); got > 4 {
		t.Errorf("observed %d concurrent turns, limit is 4", got)
	}
}
