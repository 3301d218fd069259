package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/infrastructure/resilience"
	"golang.org/x/sync/errgroup"
)

const (
	OperationEntail      = "ollama.entail"
	DefaultPrefixRunes   = 1024
	defaultParallelism   = 3
	defaultClientTimeout = 120 * time.Second
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func New(baseURL, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":   c.model,
		"prompt":  prompt,
		"stream":  false,
		"format":  "json",
		"options": map[string]any{"temperature": 0},
	}
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

// Candidate is one label offered to the zero-shot classifier. Description is
// substituted into the hypothesis template; the label name is used when empty.
type Candidate struct {
	Label       domain.Label
	Description string
}

func DefaultCandidates() []Candidate {
	return []Candidate{
		{Label: domain.LabelDriversLicense, Description: "an identification document with personal details"},
		{Label: domain.LabelBankStatement, Description: "a document showing bank transactions and balance"},
		{Label: domain.LabelInvoice, Description: "a document requesting payment for goods or services"},
	}
}

type ZeroShotOptions struct {
	Candidates         []Candidate
	HypothesisTemplate string
	PrefixRunes        int
	Parallelism        int
}

// ZeroShotClassifier scores every candidate label as an entailment hypothesis
// against the document prefix and normalizes the scores across labels.
type ZeroShotClassifier struct {
	client      *Client
	executor    *resilience.Executor
	candidates  []Candidate
	template    string
	prefixRunes int
	parallelism int
}

func NewZeroShotClassifier(client *Client, executor *resilience.Executor, opts ZeroShotOptions) *ZeroShotClassifier {
	if len(opts.Candidates) == 0 {
		opts.Candidates = DefaultCandidates()
	}
	if strings.TrimSpace(opts.HypothesisTemplate) == "" {
		opts.HypothesisTemplate = DefaultHypothesisTemplate
	}
	if opts.PrefixRunes <= 0 {
		opts.PrefixRunes = DefaultPrefixRunes
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = defaultParallelism
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig(),
			resilience.WithPolicy(OperationEntail, resilience.SingleAttempt()))
	}
	return &ZeroShotClassifier{
		client:      client,
		executor:    executor,
		candidates:  opts.Candidates,
		template:    opts.HypothesisTemplate,
		prefixRunes: opts.PrefixRunes,
		parallelism: opts.Parallelism,
	}
}

func (z *ZeroShotClassifier) Source() domain.SignalSource {
	return domain.SourceSemantic
}

func (z *ZeroShotClassifier) Classify(ctx context.Context, text string) (domain.Signal, error) {
	premise := strings.TrimSpace(truncateRunes(text, z.prefixRunes))
	if premise == "" {
		return domain.UnknownSignal(domain.SourceSemantic), nil
	}

	scores := make([]float64, len(z.candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(z.parallelism)
	for i, candidate := range z.candidates {
		g.Go(func() error {
			score, err := z.entail(gctx, premise, candidate)
			if err != nil {
				return err
			}
			scores[i] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.UnknownSignal(domain.SourceSemantic), err
	}

	best, confidence := normalizeScores(scores)
	if best < 0 {
		return domain.UnknownSignal(domain.SourceSemantic), nil
	}
	return domain.Signal{
		Source:     domain.SourceSemantic,
		Label:      z.candidates[best].Label,
		Confidence: confidence,
	}.Normalized(), nil
}

func (z *ZeroShotClassifier) entail(ctx context.Context, premise string, candidate Candidate) (float64, error) {
	description := strings.TrimSpace(candidate.Description)
	if description == "" {
		description = strings.ReplaceAll(string(candidate.Label), "_", " ")
	}
	prompt := buildEntailmentPrompt(premise, hypothesis(z.template, description))

	var score float64
	err := z.executor.Execute(ctx, OperationEntail, func(callCtx context.Context) error {
		raw, err := z.client.generateJSON(callCtx, prompt)
		if err != nil {
			return err
		}
		parsed, err := parseScore(raw)
		if err != nil {
			return err
		}
		score = parsed
		return nil
	}, classifyOllamaError)
	if err != nil {
		return 0, wrapTemporaryIfNeeded(OperationEntail, err)
	}
	return score, nil
}

func parseScore(raw string) (float64, error) {
	var payload struct {
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return 0, fmt.Errorf("parse entailment json: %w", err)
	}
	if payload.Score == nil {
		return 0, fmt.Errorf("parse entailment json: missing score")
	}
	return domain.ClampConfidence(*payload.Score), nil
}

// normalizeScores returns the index of the highest score and its share of the
// total. A zero total yields -1.
func normalizeScores(scores []float64) (int, float64) {
	total := 0.0
	best := -1
	for i, s := range scores {
		if math.IsNaN(s) || s <= 0 {
			continue
		}
		total += s
		if best < 0 || s > scores[best] {
			best = i
		}
	}
	if best < 0 || total == 0 {
		return -1, 0
	}
	return best, scores[best] / total
}
