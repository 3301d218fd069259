package ollama

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

// entailServer answers /api/generate with a score chosen by the hypothesis
// found in the prompt.
func entailServer(t *testing.T, scores map[string]float64, prompts *[]string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if payload["format"] != "json" {
			t.Errorf("expected json format, got %v", payload["format"])
		}
		prompt, _ := payload["prompt"].(string)
		mu.Lock()
		if prompts != nil {
			*prompts = append(*prompts, prompt)
		}
		mu.Unlock()

		score := 0.0
		for needle, s := range scores {
			if strings.Contains(prompt, needle) {
				score = s
			}
		}
		resp, _ := json.Marshal(map[string]string{"response": `{"score": ` + formatFloat(score) + `}`})
		_, _ = w.Write(resp)
	}))
}

func formatFloat(v float64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestZeroShotNormalizesScoresAcrossLabels(t *testing.T) {
	var prompts []string
	server := entailServer(t, map[string]float64{
		"bank transactions": 0.9,
		"requesting payment": 0.1,
	}, &prompts)
	defer server.Close()

	classifier := NewZeroShotClassifier(New(server.URL, "llama3", 0), nil, ZeroShotOptions{})
	signal, err := classifier.Classify(context.Background(), "Opening balance 1,000.00 Closing balance 1,250.00")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if signal.Source != domain.SourceSemantic || signal.Label != domain.LabelBankStatement {
		t.Fatalf("unexpected signal %+v", signal)
	}
	if math.Abs(signal.Confidence-0.9) > 1e-9 {
		t.Fatalf("expected normalized confidence 0.9, got %v", signal.Confidence)
	}
	if len(prompts) != 3 {
		t.Fatalf("expected one request per label, got %d", len(prompts))
	}
	found := false
	for _, p := range prompts {
		if strings.Contains(p, "This text is from a document showing bank transactions and balance.") {
			found = true
		}
	}
	if !found {
		t.Fatalf("hypothesis template not applied: %v", prompts)
	}
}

func TestZeroShotTruncatesPremise(t *testing.T) {
	var prompts []string
	server := entailServer(t, map[string]float64{"requesting payment": 1}, &prompts)
	defer server.Close()

	classifier := NewZeroShotClassifier(New(server.URL, "llama3", 0), nil, ZeroShotOptions{
		Candidates:  []Candidate{{Label: domain.LabelInvoice}},
		PrefixRunes: 5,
	})
	signal, err := classifier.Classify(context.Background(), "abcdefghij")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !strings.HasSuffix(prompts[0], "Premise:\nabcde") {
		t.Fatalf("premise not truncated: %q", prompts[0])
	}
	if !strings.Contains(prompts[0], "This text is from invoice.") {
		t.Fatalf("label name should stand in for missing description: %q", prompts[0])
	}
	if signal.Label != domain.LabelUnknown || signal.Confidence != 0 {
		t.Fatalf("zero scores must yield unknown, got %+v", signal)
	}
}

func TestZeroShotEmptyTextSkipsInference(t *testing.T) {
	classifier := NewZeroShotClassifier(New("http://127.0.0.1:1", "llama3", 0), nil, ZeroShotOptions{})
	signal, err := classifier.Classify(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if signal != domain.UnknownSignal(domain.SourceSemantic) {
		t.Fatalf("unexpected signal %+v", signal)
	}
}

func TestZeroShotIncludesHTTPBodyInError(t *testing.T) {
	calls := 0
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	classifier := NewZeroShotClassifier(New(server.URL, "llama3", 0), nil, ZeroShotOptions{
		Candidates: []Candidate{{Label: domain.LabelInvoice}},
	})
	_, err := classifier.Classify(context.Background(), "total due")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error kind, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("inference must not be retried, got %d calls", calls)
	}
}

func TestZeroShotMissingModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'llama3' not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	classifier := NewZeroShotClassifier(New(server.URL, "llama3", 0), nil, ZeroShotOptions{})
	_, err := classifier.Classify(context.Background(), "total due")
	if !domain.IsKind(err, domain.ErrModelNotLoaded) {
		t.Fatalf("expected model not loaded, got %v", err)
	}
}

func TestZeroShotRejectsMalformedScore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"I think it is an invoice"}`))
	}))
	defer server.Close()

	classifier := NewZeroShotClassifier(New(server.URL, "llama3", 0), nil, ZeroShotOptions{})
	_, err := classifier.Classify(context.Background(), "total due")
	if err == nil || !strings.Contains(err.Error(), "parse entailment json") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestParseScoreClamps(t *testing.T) {
	got, err := parseScore("Sure! {\"score\": 1.7}")
	if err != nil {
		t.Fatalf("parseScore() error = %v", err)
	}
	if got != 1 {
		t.Fatalf("expected clamp to 1, got %v", got)
	}
	if _, err := parseScore(`{"label":"invoice"}`); err == nil {
		t.Fatalf("expected missing score error")
	}
}

func TestNormalizeScores(t *testing.T) {
	idx, conf := normalizeScores([]float64{0.2, 0.6, 0.2})
	if idx != 1 || math.Abs(conf-0.6) > 1e-9 {
		t.Fatalf("unexpected result %d %v", idx, conf)
	}
	if idx, _ := normalizeScores([]float64{0, math.NaN()}); idx != -1 {
		t.Fatalf("expected -1 for empty scores, got %d", idx)
	}
}
