package evaluation

import (
	"errors"
	"strings"
	"testing"

	"github.com/knowledgebench/bench/engine/domain"
)

const goodLine = `{"id":"q1","question":"What is a widget?","expected_answer":"A small part.","expected_sources":[{"document_id":"d1","source_ref":"page=1"}]}`

func TestParseGoldenSet(t *testing.T) {
	input := goodLine + "\n\n" + strings.ReplaceAll(goodLine, "q1", "q2") + "\n"
	items, err := ParseGoldenSet(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items", len(items))
	}
	if items[0].ID != "q1" || items[1].ID != "q2" {
		t.Errorf("ids: %s, %s", items[0].ID, items[1].ID)
	}
	if items[0].ExpectedSources[0] != (domain.SourceKey{DocumentID: "d1", SourceRef: "page=1"}) {
		t.Errorf("sources: %+v", items[0].ExpectedSources)
	}
}

func TestParseGoldenSet_MalformedLineFails(t *testing.T) {
	input := goodLine + "\n{not json\n"
	_, err := ParseGoldenSet(strings.NewReader(input))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("got %v, want line-numbered parse error", err)
	}
}

func TestParseGoldenSet_InvalidItemFails(t *testing.T) {
	input := `{"id":"q1","question":"","expected_answer":"a","expected_sources":[{"document_id":"d","source_ref":"r"}]}`
	_, err := ParseGoldenSet(strings.NewReader(input))
	if !errors.Is(err, domain.ErrInvalidEvalItem) {
		t.Errorf("got %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Errorf("error must carry the line number: %v", err)
	}
}

func TestParseGoldenSet_Empty(t *testing.T) {
	items, err := ParseGoldenSet(strings.NewReader("\n\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("got %d items", len(items))
	}
}
