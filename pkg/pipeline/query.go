package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/internal/types"
	"github.com/xhad/docqa/pkg/assembler"
	"github.com/xhad/docqa/pkg/gate"
	"github.com/xhad/docqa/pkg/rerank"
)

// Outcome is the terminal state of one query.
type Outcome int

const (
	OutcomeAnswered Outcome = iota
	OutcomeNoResults
	OutcomeUnanswerable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAnswered:
		return "answered"
	case OutcomeNoResults:
		return "no_results"
	case OutcomeUnanswerable:
		return "unanswerable"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

const (
	// ShortQuestionTopN is how many ranked candidates a topic-style lookup keeps.
	ShortQuestionTopN = 5
	// QuestionTopN is how many ranked candidates a factual question keeps.
	QuestionTopN = 3
)

var ErrEmptyQuestion = errors.New("question is required")

type QuerierConfig struct {
	DefaultTopK        int
	MaxTopK            int
	DefaultMaxDistance float64
	MaxContextTokens   int
	HistoryLimit       int
	Logger             *slog.Logger
}

func (c *QuerierConfig) applyDefaults() {
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = 5
	}
	if c.MaxTopK <= 0 {
		c.MaxTopK = 50
	}
	if c.DefaultMaxDistance <= 0 {
		c.DefaultMaxDistance = 1.5
	}
	if c.MaxContextTokens <= 0 {
		c.MaxContextTokens = assembler.DefaultMaxTokens
	}
	if c.HistoryLimit < 0 {
		c.HistoryLimit = 0
	} else if c.HistoryLimit == 0 {
		c.HistoryLimit = 10
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// QueryRequest is one question. MinDistance keeps its wire name but is the
// largest distance a candidate may have.
type QueryRequest struct {
	Question    string   `json:"question"`
	SessionID   string   `json:"session_id"`
	TopK        *int     `json:"top_k,omitempty"`
	MinDistance *float64 `json:"min_distance,omitempty"`
}

// Plan is everything decided before generation.
type Plan struct {
	Outcome  Outcome
	Ranked   []models.ScoredCandidate
	Selected []models.ScoredCandidate
	Passages []string
	Context  string
}

// Top is the highest scored candidate. Only valid when Outcome is answered.
func (p Plan) Top() models.ScoredCandidate {
	return p.Selected[0]
}

type QueryResult struct {
	Question string            `json:"question"`
	Answer   string            `json:"answer"`
	Sources  []models.Citation `json:"sources"`
	Outcome  Outcome           `json:"-"`
	Plan     Plan              `json:"-"`
}

// Querier runs retrieve, rerank, gate, assemble and generate once per request.
// Sessions may be nil.
type Querier struct {
	retriever types.Retriever
	generator types.Generator
	sessions  types.SessionStore
	config    QuerierConfig
}

func NewQuerier(retriever types.Retriever, generator types.Generator, sessions types.SessionStore, config QuerierConfig) *Querier {
	config.applyDefaults()
	return &Querier{
		retriever: retriever,
		generator: generator,
		sessions:  sessions,
		config:    config,
	}
}

func (q *Querier) params(req QueryRequest) (int, float64) {
	topK := q.config.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	if topK < 1 {
		topK = 1
	} else if topK > q.config.MaxTopK {
		topK = q.config.MaxTopK
	}

	maxDistance := q.config.DefaultMaxDistance
	if req.MinDistance != nil && *req.MinDistance >= 0 {
		maxDistance = *req.MinDistance
	}
	return topK, maxDistance
}

// Prepare retrieves and ranks candidates for question and decides whether it
// can be answered, without calling the generator.
func (q *Querier) Prepare(ctx context.Context, question string, topK int, maxDistance float64) (Plan, error) {
	found, err := q.retriever.Search(ctx, question, topK, maxDistance)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to retrieve candidates: %w", err)
	}

	candidates := q.validCandidates(found, maxDistance)
	if len(candidates) == 0 {
		return Plan{Outcome: OutcomeNoResults}, nil
	}

	ranked := rerank.Rerank(candidates, question)

	n := QuestionTopN
	if gate.IsShortQuestion(question) {
		n = ShortQuestionTopN
	}
	selected := ranked
	if len(selected) > n {
		selected = selected[:n]
	}

	texts := make([]string, len(selected))
	for i, c := range selected {
		texts[i] = c.Text
	}

	if !gate.IsAnswerable(texts, question) {
		return Plan{Outcome: OutcomeUnanswerable, Ranked: ranked, Selected: selected}, nil
	}

	passages := assembler.Admit(texts, q.config.MaxContextTokens)
	if len(passages) == 0 {
		q.config.Logger.WarnContext(ctx, "context_empty",
			slog.Int("top_passage_tokens", assembler.EstimateTokens(texts[0])),
			slog.Int("max_context_tokens", q.config.MaxContextTokens))
	}
	return Plan{
		Outcome:  OutcomeAnswered,
		Ranked:   ranked,
		Selected: selected,
		Passages: passages,
		Context:  strings.Join(passages, assembler.Separator),
	}, nil
}

// validCandidates drops candidates that break the retriever contract.
func (q *Querier) validCandidates(found []models.Candidate, maxDistance float64) []models.Candidate {
	valid := make([]models.Candidate, 0, len(found))
	for _, c := range found {
		if math.IsNaN(c.Distance) || c.Distance < 0 || c.Distance > maxDistance || c.Metadata.Source == "" {
			continue
		}
		valid = append(valid, c)
	}
	if dropped := len(found) - len(valid); dropped > 0 {
		q.config.Logger.Warn("retriever_contract_violation", slog.Int("dropped", dropped), slog.Int("received", len(found)))
	}
	return valid
}

// Query answers req. Errors are limited to invalid requests and retrieval
// failures; empty retrieval and rejected questions are outcomes.
func (q *Querier) Query(ctx context.Context, req QueryRequest) (QueryResult, error) {
	return q.run(ctx, req, nil)
}

// Stream is Query with generated tokens forwarded to onToken. Fixed answers
// are sent as a single token.
func (q *Querier) Stream(ctx context.Context, req QueryRequest, onToken func(string)) (QueryResult, error) {
	return q.run(ctx, req, onToken)
}

func (q *Querier) run(ctx context.Context, req QueryRequest, onToken func(string)) (QueryResult, error) {
	start := time.Now()

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return QueryResult{}, ErrEmptyQuestion
	}
	topK, maxDistance := q.params(req)

	history := q.history(ctx, req.SessionID)
	q.record(ctx, req.SessionID, models.RoleUser, question)

	plan, err := q.Prepare(ctx, question, topK, maxDistance)
	if err != nil {
		return QueryResult{}, err
	}

	result := QueryResult{
		Question: question,
		Sources:  []models.Citation{},
		Outcome:  plan.Outcome,
		Plan:     plan,
	}

	switch plan.Outcome {
	case OutcomeNoResults:
		result.Answer = models.NoResultsAnswer
	case OutcomeUnanswerable:
		result.Answer = models.NotAvailableAnswer
	default:
		result.Answer = q.generate(ctx, question, plan.Passages, history, onToken)
		result.Sources = []models.Citation{plan.Top().Citation()}
	}
	if plan.Outcome != OutcomeAnswered && onToken != nil {
		onToken(result.Answer)
	}

	q.record(ctx, req.SessionID, models.RoleAssistant, result.Answer)

	q.config.Logger.Info("query_completed",
		slog.String("outcome", plan.Outcome.String()),
		slog.Int("top_k", topK),
		slog.Float64("max_distance", maxDistance),
		slog.Int("ranked", len(plan.Ranked)),
		slog.Int("selected", len(plan.Selected)),
		slog.Int("passages", len(plan.Passages)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return result, nil
}

func (q *Querier) generate(ctx context.Context, question string, passages []string, history []models.Message, onToken func(string)) string {
	if onToken != nil {
		if sg, ok := q.generator.(types.StreamGenerator); ok {
			return sg.GenerateStream(ctx, question, passages, history, onToken)
		}
		answer := q.generator.Generate(ctx, question, passages, history)
		onToken(answer)
		return answer
	}
	return q.generator.Generate(ctx, question, passages, history)
}

func (q *Querier) history(ctx context.Context, sessionID string) []models.Message {
	if q.sessions == nil || sessionID == "" {
		return nil
	}
	messages, err := q.sessions.History(ctx, sessionID, q.config.HistoryLimit)
	if err != nil {
		q.config.Logger.Warn("session_history_failed", slog.String("session_id", sessionID), slog.String("error", err.Error()))
		return nil
	}
	return messages
}

func (q *Querier) record(ctx context.Context, sessionID, role, content string) {
	if q.sessions == nil || sessionID == "" {
		return
	}
	if err := q.sessions.Append(ctx, sessionID, role, content); err != nil {
		q.config.Logger.Warn("session_append_failed", slog.String("session_id", sessionID), slog.String("role", role), slog.String("error", err.Error()))
	}
}

// History exposes the transcript of a session, oldest first.
func (q *Querier) History(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	if q.sessions == nil {
		return []models.Message{}, nil
	}
	return q.sessions.History(ctx, sessionID, limit)
}
