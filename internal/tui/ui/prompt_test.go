package ui

import "testing"

func TestPromptHistoryRecall(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	p.Activate(PromptCommand, "")

	for _, cmd := range []string{"rooms", "more", "more", "", "room lobby"} {
		p.remember(cmd)
	}
	if len(p.history) != 3 {
		t.Fatalf("history = %v, want 3 entries without blanks or repeats", p.history)
	}

	want := []string{"room lobby", "more", "rooms", "rooms"}
	for i, w := range want {
		if got := p.recall(-1); got != w {
			t.Errorf("recall step %d = %q, want %q", i, got, w)
		}
	}
	if got := p.recall(1); got != "more" {
		t.Errorf("forward recall = %q, want more", got)
	}
	p.recall(1)
	if got := p.recall(1); got != "" {
		t.Errorf("recall past the newest = %q, want empty", got)
	}
}

func TestPromptActivateResetsCursor(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	p.remember("help")
	p.recall(-1)

	p.Activate(PromptTranslate, "42 ")
	if p.Mode() != PromptTranslate {
		t.Errorf("mode = %v, want PromptTranslate", p.Mode())
	}
	if p.GetText() != "42 " {
		t.Errorf("text = %q, want the prefilled id", p.GetText())
	}
	if p.cursor != len(p.history) {
		t.Errorf("cursor = %d, want %d", p.cursor, len(p.history))
	}
}
