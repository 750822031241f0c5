package batch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/extract"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/phi"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/strategy"
)

type memStore struct {
	mu    sync.Mutex
	saved []*pipeline.Result
}

func (m *memStore) Save(_ context.Context, res *pipeline.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, res)
	return nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newRunner(out *bytes.Buffer, st ResultStore, agg *analytics.Aggregator) *Runner {
	registry := extract.NewRegistry()
	registry.Register(extract.TextExtractor{}, ".txt")
	p := pipeline.New(pipeline.Options{
		Detector:   phi.NewPatternDetector(),
		Strategies: []strategy.Strategy{strategy.NewNaive(2), strategy.MustClassical(2)},
		Workers:    2,
	})
	opts := Options{Registry: registry, Pipeline: p, Store: st, Redact: true, Out: out}
	if agg != nil {
		opts.Events = agg
	}
	return New(opts)
}

func readRecords(t *testing.T, out *bytes.Buffer) map[string]Record {
	t.Helper()
	records := make(map[string]Record)
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("decode %q: %v", sc.Text(), err)
		}
		records[filepath.Base(rec.Source)] = rec
	}
	return records
}

func TestRunProcessesDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "Call 555-123-4567 about the results. The patient is stable today.")
	writeFile(t, dir, "b.txt", "MRN 1234567 admitted with pneumonia. Antibiotics were started promptly.")
	writeFile(t, dir, "empty.txt", "   ")
	writeFile(t, dir, "notes.csv", "ignored")

	var out bytes.Buffer
	st := &memStore{}
	agg := analytics.NewAggregator()
	sum, err := newRunner(&out, st, agg).Run(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := Summary{Files: 3, Processed: 2, Failed: 1}
	if sum != want {
		t.Errorf("summary = %+v, want %+v", sum, want)
	}

	records := readRecords(t, &out)
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	a := records["a.txt"].Result
	if a == nil || strings.Contains(a.RedactedText, "555-123-4567") || !strings.Contains(a.RedactedText, "[PHONE]") {
		t.Errorf("a.txt not redacted: %+v", a)
	}
	if a.OriginalText != "" {
		t.Error("record carries the original text")
	}
	if records["empty.txt"].Error == "" {
		t.Error("empty file should be reported")
	}
	if len(st.saved) != 2 {
		t.Errorf("stored %d results, want 2", len(st.saved))
	}
	if got := agg.Stats().ByOrigin[analytics.OriginBatch]; got != 3 {
		t.Errorf("batch events = %d, want 3", got)
	}
}

func TestRunSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "note.txt", "Seen on 03/14/2024 for follow-up. Wound is healing well.")

	var out bytes.Buffer
	sum, err := newRunner(&out, nil, nil).Run(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Processed != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	rec := readRecords(t, &out)["note.txt"]
	if !strings.Contains(rec.Result.RedactedText, "[DATE]") {
		t.Errorf("date not redacted: %q", rec.Result.RedactedText)
	}
}

func TestRunMissingPath(t *testing.T) {
	var out bytes.Buffer
	if _, err := newRunner(&out, nil, nil).Run(context.Background(), []string{"/does/not/exist"}); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "watched.txt", "Reach the patient at jane@example.org. Discharge is planned.")

	var out bytes.Buffer
	newRunner(&out, nil, nil).ProcessFile(context.Background(), path)
	rec := readRecords(t, &out)["watched.txt"]
	if rec.Result == nil || !strings.Contains(rec.Result.RedactedText, "[EMAIL]") {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestProcessFileReportsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "blank.txt", " \n\t ")

	var out bytes.Buffer
	st := &memStore{}
	agg := analytics.NewAggregator()
	newRunner(&out, st, agg).ProcessFile(context.Background(), path)

	rec, ok := readRecords(t, &out)["blank.txt"]
	if !ok {
		t.Fatal("no record written for blank file")
	}
	if rec.Result != nil || !strings.Contains(rec.Error, "no text extracted") {
		t.Errorf("unexpected record: %+v", rec)
	}
	if len(st.saved) != 0 {
		t.Errorf("stored %d results, want 0", len(st.saved))
	}
	if got := agg.Stats().FailedDocuments; got != 1 {
		t.Errorf("failed documents = %d, want 1", got)
	}
}
