package store

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/phi"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/pipeline"
)

func TestListQuery(t *testing.T) {
	yes := true
	tests := []struct {
		name     string
		filter   Filter
		wantSQL  string
		wantArgs int
	}{
		{
			name:    "defaults",
			filter:  Filter{},
			wantSQL: "SELECT id, source, redacted, redacted_text, entity_count, entities_by_type, summaries, key_points, degraded, processed_at FROM processed_documents ORDER BY processed_at DESC, id LIMIT 20 OFFSET 0",
		},
		{
			name:     "redacted only",
			filter:   Filter{Limit: 5, Offset: 10, Redacted: &yes},
			wantSQL:  "SELECT id, source, redacted, redacted_text, entity_count, entities_by_type, summaries, key_points, degraded, processed_at FROM processed_documents WHERE redacted = $1 ORDER BY processed_at DESC, id LIMIT 5 OFFSET 10",
			wantArgs: 1,
		},
		{
			name:    "limit capped",
			filter:  Filter{Limit: 1000, Offset: -3},
			wantSQL: "SELECT id, source, redacted, redacted_text, entity_count, entities_by_type, summaries, key_points, degraded, processed_at FROM processed_documents ORDER BY processed_at DESC, id LIMIT 100 OFFSET 0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := listQuery(tt.filter)
			if err != nil {
				t.Fatalf("listQuery: %v", err)
			}
			if query != tt.wantSQL {
				t.Errorf("got  %s\nwant %s", query, tt.wantSQL)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("args = %v", args)
			}
		})
	}
}

func TestSaveQueryDropsPHI(t *testing.T) {
	res := &pipeline.Result{
		DocumentID:   "doc-1",
		OriginalText: "John Smith, SSN 123-45-6789",
		Redacted:     false,
		Summaries:    map[string]pipeline.SummaryResult{"naive": {Text: "John Smith"}},
		ProcessedAt:  time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	query, args, err := saveQuery(res.WithoutPHI())
	if err != nil {
		t.Fatalf("saveQuery: %v", err)
	}
	if !strings.HasPrefix(query, "INSERT INTO processed_documents (id,source,redacted") {
		t.Errorf("unexpected query: %s", query)
	}
	if !strings.Contains(query, "ON CONFLICT (id) DO UPDATE") {
		t.Error("save must upsert")
	}
	if !strings.Contains(query, "$10") {
		t.Error("expected dollar placeholders")
	}
	for _, a := range args {
		if s, ok := a.(string); ok && strings.Contains(s, "Smith") {
			t.Errorf("PHI reached the database: %q", s)
		}
	}
}

func TestSaveQueryEncodesJSON(t *testing.T) {
	res := &pipeline.Result{
		DocumentID:     "doc-2",
		Redacted:       true,
		RedactedText:   "[PERSON] seen",
		EntityCount:    1,
		EntitiesByType: map[phi.Type]int{phi.Person: 1},
		Summaries:      map[string]pipeline.SummaryResult{"naive": {Strategy: "naive", Text: "[PERSON] seen"}},
	}
	_, args, err := saveQuery(res)
	if err != nil {
		t.Fatalf("saveQuery: %v", err)
	}
	var counts map[string]int
	if err := json.Unmarshal([]byte(args[5].(string)), &counts); err != nil {
		t.Fatalf("entity counts not JSON: %v", err)
	}
	if counts["PERSON"] != 1 {
		t.Errorf("counts = %v", counts)
	}
	if args[7].(string) != "[]" {
		t.Errorf("nil key points should encode as [], got %v", args[7])
	}
	if args[9].(time.Time).IsZero() {
		t.Error("processed_at must be set")
	}
}

type fakeRow struct{ values []any }

func (r fakeRow) Scan(dest ...any) error {
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *bool:
			*p = r.values[i].(bool)
		case *int:
			*p = r.values[i].(int)
		case *[]byte:
			*p = []byte(r.values[i].(string))
		case *time.Time:
			*p = r.values[i].(time.Time)
		}
	}
	return nil
}

func TestScanResult(t *testing.T) {
	at := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	row := fakeRow{values: []any{
		"doc-3", "ward/a.txt", true, "[PERSON] seen", 1,
		`{"PERSON":1}`, `{"naive":{"strategy":"naive","text":"[PERSON] seen"}}`, `["[PERSON] seen"]`, false, at,
	}}
	res, err := scanResult(row)
	if err != nil {
		t.Fatalf("scanResult: %v", err)
	}
	if res.DocumentID != "doc-3" || res.EntitiesByType[phi.Person] != 1 || res.Summaries["naive"].Text != "[PERSON] seen" {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(res.KeyPoints) != 1 || !res.ProcessedAt.Equal(at) {
		t.Errorf("unexpected result: %+v", res)
	}
}
