package scoring

import (
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/document"
)

const scenario = "Dr. Smith saw the patient. Blood pressure was 140/90. The patient was prescribed medication. Follow-up in two weeks. No other symptoms were noted today."

func TestClassicalWeightsSumToOne(t *testing.T) {
	if ClassicalWeights.Sum() != 1.0 {
		t.Fatalf("classical weights sum to %v", ClassicalWeights.Sum())
	}
	if err := ClassicalWeights.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := (Weights{Relevance: 0.5, Position: 0.5, Keyword: 0.5}).Validate(); err == nil {
		t.Error("expected weights summing to 1.5 to be rejected")
	}
}

func TestPositionBuckets(t *testing.T) {
	sentences := make([]document.Sentence, 10)
	got := Position(sentences)
	want := []float64{1.0, 0.6, 0.6, 0.3, 0.3, 0.3, 0.3, 0.2, 0.2, 0.8}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPositionBonus(t *testing.T) {
	tests := []struct {
		i, n int
		want float64
	}{
		{0, 10, 1.5},
		{9, 10, 1.0},
		{2, 10, 0.5},
		{3, 10, 0},
		{5, 10, 0},
	}
	for _, tt := range tests {
		if got := PositionBonus(tt.i, tt.n); got != tt.want {
			t.Errorf("PositionBonus(%d, %d) = %v, want %v", tt.i, tt.n, got, tt.want)
		}
	}
}

func TestLengthBands(t *testing.T) {
	tests := []struct {
		words    int
		classic  float64
		additive float64
	}{
		{3, 0.2, 0},
		{5, 0.7, 0},
		{9, 0.7, 0},
		{10, 1.0, 0.5},
		{25, 1.0, 0.5},
		{26, 0.5, -0.5},
		{35, 0.5, -0.5},
		{36, 0.2, -0.5},
	}
	for _, tt := range tests {
		got := Length([]document.Sentence{{WordCount: tt.words}})[0]
		if got != tt.classic {
			t.Errorf("Length(%d words) = %v, want %v", tt.words, got, tt.classic)
		}
		if got := LengthBonus(tt.words); got != tt.additive {
			t.Errorf("LengthBonus(%d) = %v, want %v", tt.words, got, tt.additive)
		}
	}
}

func TestKeywordCountsDistinctTerms(t *testing.T) {
	if got := KeywordBonus("The PATIENT asked the patient's doctor about medication", ClinicalKeywords); got != 6 {
		t.Errorf("KeywordBonus = %v, want 6", got)
	}
	if got := KeywordBonus("Blood Pressure stable", ClinicalKeywords); got != 2 {
		t.Errorf("multi-word keyword: got %v, want 2", got)
	}
	if HasKeyword("nothing relevant here", ClinicalKeywords) {
		t.Error("unexpected keyword match")
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize([]float64{2, 4, 1})
	want := []float64{0.5, 1, 0.25}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("normalize[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	zeros := Normalize([]float64{0, 0})
	if zeros[0] != 0 || zeros[1] != 0 {
		t.Errorf("all-zero vector must stay zero, got %v", zeros)
	}
}

func TestAdditiveScenario(t *testing.T) {
	sentences := document.Segment(scenario, document.Informative)
	got := Additive(sentences, ClinicalKeywords)
	want := []float64{3.5, 2.5, 4, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %d scores, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("importance[%d] (%q) = %v, want %v", i, sentences[i].Text, got[i], want[i])
		}
	}
}

func TestRelevanceBounds(t *testing.T) {
	texts := []string{
		"Patient reports chest pain radiating to the left arm",
		"Chest pain began two days ago after exercise",
		"ECG shows sinus rhythm without acute changes",
		"Troponin levels were normal on admission",
		"Chest pain resolved after nitroglycerin",
		"Discharged with outpatient stress test scheduled",
	}
	scores := Relevance(texts, DefaultTermWeighting())
	max := 0.0
	for i, s := range scores {
		if s < 0 || s > 1 {
			t.Errorf("relevance[%d] = %v out of [0,1]", i, s)
		}
		max = math.Max(max, s)
	}
	if max != 1 {
		t.Errorf("max relevance = %v, want 1", max)
	}
	if scores[2] != 0 {
		t.Errorf("sentence without shared terms should score 0, got %v", scores[2])
	}
}

func TestRelevanceScores(t *testing.T) {
	texts := []string{
		"Chest pain started two days ago at rest",
		"Chest pain returned without warning last night",
		"Patient denies shortness of breath",
		"Shortness of breath and chest pain worsen on exertion",
		"Discharged home with follow-up in clinic",
	}
	// Surviving vocabulary: chest, pain, "chest pain" (df 3) and shortness,
	// breath, "shortness breath" (df 2). The fourth sentence carries both
	// groups; the others carry one group with equal weights.
	a := math.Log(6.0/4.0) + 1
	b := math.Log(6.0/3.0) + 1
	single := math.Sqrt(a*a+b*b) / (a + b)
	want := []float64{single, single, single, 1, 0}

	got := Relevance(texts, DefaultTermWeighting())
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("relevance[%d] = %.12f, want %.12f", i, got[i], want[i])
		}
	}
	if math.Abs(single-0.710147759108) > 1e-9 {
		t.Errorf("single-group score = %.12f", single)
	}
}

func TestTokenizeDropsEnglishStopWords(t *testing.T) {
	got := tokenize("Follow-up in two weeks without back pain, first seen since last visit and found well")
	want := []string{"follow", "weeks", "pain", "seen", "visit"}
	if len(got) != len(want) {
		t.Fatalf("tokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
	if len(stopWords) != 318 {
		t.Errorf("stop list has %d words, want 318", len(stopWords))
	}
}

func TestRelevanceNoSurvivingTerms(t *testing.T) {
	texts := []string{"alpha beta", "gamma delta", "epsilon zeta"}
	for i, s := range Relevance(texts, DefaultTermWeighting()) {
		if s != 0 {
			t.Errorf("relevance[%d] = %v, want 0", i, s)
		}
	}
}

func TestRelevanceCapsVocabulary(t *testing.T) {
	stats := map[string]*termStat{
		"a": {term: "a", df: 2, tf: 5},
		"b": {term: "b", df: 2, tf: 3},
		"c": {term: "c", df: 2, tf: 3},
		"d": {term: "d", df: 1, tf: 9},
	}
	got := pruneVocabulary(stats, 10, TermWeighting{MaxTerms: 2, MinDocs: 2, MaxDocRatio: 0.8})
	if len(got) != 2 || got[0].term != "a" || got[1].term != "b" {
		t.Errorf("unexpected vocabulary: %+v %+v", got[0], got[1])
	}
}

func TestTokenizeBigrams(t *testing.T) {
	got := terms(tokenize("The blood pressure was high"))
	want := []string{"blood", "pressure", "high", "blood pressure", "pressure high"}
	if len(got) != len(want) {
		t.Fatalf("terms = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("term %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClassicalVectorsNormalized(t *testing.T) {
	sentences := document.Segment(scenario, document.Informative)
	for i, v := range ClassicalVectors(sentences, ClinicalKeywords, DefaultTermWeighting()) {
		for name, x := range map[string]float64{"relevance": v.Relevance, "position": v.Position, "keyword": v.Keyword, "length": v.Length} {
			if x < 0 || x > 1 {
				t.Errorf("sentence %d %s = %v out of [0,1]", i, name, x)
			}
		}
	}
}

func BenchmarkRelevance(b *testing.B) {
	texts := document.New(scenario+" "+scenario+" "+scenario, document.Informative).Texts()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Relevance(texts, DefaultTermWeighting())
	}
}
