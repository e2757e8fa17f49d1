package prompt

import (
	"strings"
	"testing"
)

func TestBuildWithContext(t *testing.T) {
	got := Build("You are Acme's support assistant.", "Refunds take 5 days.", "Hi! How can I help?")

	if !strings.HasPrefix(got, "You are Acme's support assistant.") {
		t.Errorf("prompt does not start with instructions: %q", got)
	}
	if !strings.Contains(got, "## Relevant Context from Knowledge Base") {
		t.Error("missing context section")
	}
	if !strings.Contains(got, "Refunds take 5 days.") {
		t.Error("missing retrieved context text")
	}
	if !strings.Contains(got, `Your welcome message is: "Hi! How can I help?"`) {
		t.Errorf("welcome message not restated verbatim: %q", got)
	}
	if strings.Index(got, "## Relevant Context") > strings.Index(got, "## Guidelines") {
		t.Error("guidelines must come after the context section")
	}
}

func TestBuildEmptyContextOmitsSection(t *testing.T) {
	got := Build("Instructions.", "", "Welcome!")

	if strings.Contains(got, "Relevant Context") {
		t.Errorf("context section present despite empty context: %q", got)
	}
	if !strings.Contains(got, "## Guidelines") {
		t.Error("guidelines section always required")
	}
}

func TestBuildDeterministic(t *testing.T) {
	a := Build("inst", "ctx", "wm")
	b := Build("inst", "ctx", "wm")
	if a != b {
		t.Error("identical inputs must produce byte-identical prompts")
	}
}

func TestBuildWithTool(t *testing.T) {
	got := BuildWithTool("Instructions.", "searchKnowledgeBase", "Hello!")

	if !strings.Contains(got, `"searchKnowledgeBase"`) {
		t.Errorf("tool name not mentioned: %q", got)
	}
	if !strings.Contains(got, "cite their titles") {
		t.Error("tool section must ask for source citations")
	}
	if strings.Contains(got, "Relevant Context from Knowledge Base") {
		t.Error("tool mode must not include the inline context section")
	}
	if !strings.Contains(got, `Your welcome message is: "Hello!"`) {
		t.Error("welcome message not restated")
	}
}
