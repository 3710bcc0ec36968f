package llm

import (
	"strings"
	"testing"
)

func TestBuildMessages(t *testing.T) {
	msgs := BuildMessages("What is a widget?", "[Source 1: page=1]\nWidgets are small.\n")
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}

	sys := msgs[0].OfSystem
	if sys == nil {
		t.Fatal("first message must be system")
	}
	if !strings.Contains(sys.Content.OfString.Value, "[Source N]") {
		t.Error("system prompt must instruct source citation")
	}

	user := msgs[1].OfUser
	if user == nil {
		t.Fatal("second message must be user")
	}
	content := user.Content.OfString.Value
	if !strings.Contains(content, "Question: What is a widget?") {
		t.Errorf("question missing from user message: %q", content)
	}
	if !strings.Contains(content, "Widgets are small.") {
		t.Error("context missing from user message")
	}
}

func TestGenParams_Defaults(t *testing.T) {
	p := GenParams{}.withDefaults()
	if p.MaxTokens != DefaultMaxTokens || p.Temperature != DefaultTemperature {
		t.Errorf("got %+v", p)
	}

	p = GenParams{MaxTokens: 64, Temperature: 0.1}.withDefaults()
	if p.MaxTokens != 64 || p.Temperature != 0.1 {
		t.Errorf("explicit params must pass through: %+v", p)
	}
}
