package evaluation

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knowledgebench/bench/engine/domain"
)

// LoadGoldenSet reads a JSONL golden set. Blank lines are skipped; any
// malformed or invalid line fails the whole load with its line number, so a
// bad dataset never silently shrinks.
func LoadGoldenSet(path string) ([]domain.EvaluationItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("evaluation: open golden set: %w", err)
	}
	defer f.Close()
	return ParseGoldenSet(f)
}

// ParseGoldenSet reads JSONL items from r. See LoadGoldenSet.
func ParseGoldenSet(r io.Reader) ([]domain.EvaluationItem, error) {
	var items []domain.EvaluationItem
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var item domain.EvaluationItem
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			return nil, fmt.Errorf("evaluation: golden set line %d: %w", lineNo, err)
		}
		if err := domain.ValidateEvaluationItem(item); err != nil {
			return nil, fmt.Errorf("evaluation: golden set line %d: %w", lineNo, err)
		}
		items = append(items, item)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("evaluation: read golden set: %w", err)
	}
	return items, nil
}
