package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/pkg/pipeline"
	"github.com/xhad/docqa/pkg/processor"
	"github.com/xhad/docqa/pkg/session"
	"github.com/xhad/docqa/pkg/store"
)

type fakeRetriever struct {
	candidates []models.Candidate
	err        error
	topK       int
	maxDist    float64
}

func (f *fakeRetriever) Search(_ context.Context, _ string, topK int, maxDistance float64) ([]models.Candidate, error) {
	f.topK = topK
	f.maxDist = maxDistance
	return f.candidates, f.err
}

type fakeGenerator struct {
	answer   string
	calls    int
	passages []string
	history  []models.Message
}

func (f *fakeGenerator) Generate(_ context.Context, _ string, passages []string, history []models.Message) string {
	f.calls++
	f.passages = passages
	f.history = history
	return f.answer
}

type streamGenerator struct {
	fakeGenerator
	tokens []string
}

func (s *streamGenerator) GenerateStream(_ context.Context, _ string, passages []string, _ []models.Message, onToken func(string)) string {
	s.calls++
	s.passages = passages
	for _, tok := range s.tokens {
		onToken(tok)
	}
	return strings.Join(s.tokens, "")
}

type failingSessions struct{}

func (failingSessions) Append(context.Context, string, string, string) error {
	return errors.New("redis down")
}

func (failingSessions) History(context.Context, string, int) ([]models.Message, error) {
	return nil, errors.New("redis down")
}

func candidate(text, source string, page, chunk int, distance float64) models.Candidate {
	return models.Candidate{
		Text:     text,
		Metadata: models.Metadata{Source: source, Page: page, ChunkID: chunk},
		Distance: distance,
	}
}

func newSessions(t *testing.T) *session.RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return session.NewRedisStoreWithClient(client, session.RedisStoreConfig{})
}

func TestQuerier_NoResults(t *testing.T) {
	gen := &fakeGenerator{answer: "unused"}
	q := pipeline.NewQuerier(&fakeRetriever{}, gen, nil, pipeline.QuerierConfig{})

	res, err := q.Query(context.Background(), pipeline.QueryRequest{Question: "What is the leave policy?"})
	require.NoError(t, err)

	assert.Equal(t, pipeline.OutcomeNoResults, res.Outcome)
	assert.Equal(t, "No relevant information found in the documents.", res.Answer)
	assert.Empty(t, res.Sources)
	assert.NotNil(t, res.Sources)
	assert.Zero(t, gen.calls)
}

func TestQuerier_GateRejects(t *testing.T) {
	retriever := &fakeRetriever{candidates: []models.Candidate{
		candidate("Our office opens at nine every weekday.", "hours.pdf", 1, 0, 0.2),
		candidate("Parking is available behind our building.", "hours.pdf", 2, 1, 0.4),
	}}
	gen := &fakeGenerator{answer: "unused"}
	q := pipeline.NewQuerier(retriever, gen, nil, pipeline.QuerierConfig{})

	res, err := q.Query(context.Background(), pipeline.QueryRequest{Question: "What is the refund policy for enterprise customers"})
	require.NoError(t, err)

	assert.Equal(t, pipeline.OutcomeUnanswerable, res.Outcome)
	assert.Equal(t, models.NotAvailableAnswer, res.Answer)
	assert.Empty(t, res.Sources)
	assert.Zero(t, gen.calls)
}

func TestQuerier_Answered(t *testing.T) {
	retriever := &fakeRetriever{candidates: []models.Candidate{
		candidate("General terms apply to all purchases.", "terms.pdf", 1, 0, 0.1),
		candidate("Refund Policy: refunds are issued within 30 days of purchase.", "terms.pdf", 4, 7, 0.5),
		candidate("Shipping takes five days.", "terms.pdf", 2, 3, 0.3),
		candidate("Contact support for help.", "terms.pdf", 6, 9, 0.6),
	}}
	gen := &fakeGenerator{answer: "Refunds are issued within 30 days."}
	q := pipeline.NewQuerier(retriever, gen, nil, pipeline.QuerierConfig{})

	res, err := q.Query(context.Background(), pipeline.QueryRequest{Question: "  What is the refund policy  "})
	require.NoError(t, err)

	assert.Equal(t, pipeline.OutcomeAnswered, res.Outcome)
	assert.Equal(t, "What is the refund policy", res.Question)
	assert.Equal(t, "Refunds are issued within 30 days.", res.Answer)
	assert.Equal(t, []models.Citation{{Source: "terms.pdf", Page: 4, ChunkID: 7, Distance: 0.5}}, res.Sources)

	// Five tokens is a full question: three passages reach the generator.
	require.Len(t, gen.passages, 3)
	assert.Contains(t, gen.passages[0], "Refund Policy")
	assert.Len(t, res.Plan.Selected, 3)
	assert.Len(t, res.Plan.Ranked, 4)
	assert.Equal(t, strings.Join(gen.passages, "\n\n"), res.Plan.Context)
}

func TestQuerier_ShortQuestionKeepsFive(t *testing.T) {
	var candidates []models.Candidate
	for i := 0; i < 7; i++ {
		candidates = append(candidates, candidate(fmt.Sprintf("vacation rules part %d", i), "hr.txt", 1, i, 0.1*float64(i)))
	}
	gen := &fakeGenerator{answer: "ok"}
	q := pipeline.NewQuerier(&fakeRetriever{candidates: candidates}, gen, nil, pipeline.QuerierConfig{})

	res, err := q.Query(context.Background(), pipeline.QueryRequest{Question: "vacation rules"})
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeAnswered, res.Outcome)
	assert.Len(t, res.Plan.Selected, 5)
	assert.Len(t, gen.passages, 5)
}

func TestQuerier_Params(t *testing.T) {
	retriever := &fakeRetriever{}
	q := pipeline.NewQuerier(retriever, &fakeGenerator{}, nil, pipeline.QuerierConfig{})
	ctx := context.Background()

	_, err := q.Query(ctx, pipeline.QueryRequest{Question: "anything"})
	require.NoError(t, err)
	assert.Equal(t, 5, retriever.topK)
	assert.Equal(t, 1.5, retriever.maxDist)

	big, zero, dist := 500, 0, 0.4
	_, err = q.Query(ctx, pipeline.QueryRequest{Question: "anything", TopK: &big, MinDistance: &dist})
	require.NoError(t, err)
	assert.Equal(t, 50, retriever.topK)
	assert.Equal(t, 0.4, retriever.maxDist)

	_, err = q.Query(ctx, pipeline.QueryRequest{Question: "anything", TopK: &zero})
	require.NoError(t, err)
	assert.Equal(t, 1, retriever.topK)
}

func TestQuerier_EmptyQuestion(t *testing.T) {
	q := pipeline.NewQuerier(&fakeRetriever{}, &fakeGenerator{}, nil, pipeline.QuerierConfig{})
	_, err := q.Query(context.Background(), pipeline.QueryRequest{Question: " \t "})
	assert.ErrorIs(t, err, pipeline.ErrEmptyQuestion)
}

func TestQuerier_RetrievalError(t *testing.T) {
	boom := errors.New("index unavailable")
	q := pipeline.NewQuerier(&fakeRetriever{err: boom}, &fakeGenerator{}, nil, pipeline.QuerierConfig{})
	_, err := q.Query(context.Background(), pipeline.QueryRequest{Question: "anything"})
	assert.ErrorIs(t, err, boom)
}

func TestQuerier_DropsContractViolations(t *testing.T) {
	retriever := &fakeRetriever{candidates: []models.Candidate{
		candidate("refund text", "", 1, 0, 0.1),
		candidate("refund text", "a.pdf", 1, 0, -0.5),
		candidate("refund text", "a.pdf", 1, 0, 1.9),
	}}
	q := pipeline.NewQuerier(retriever, &fakeGenerator{}, nil, pipeline.QuerierConfig{})

	res, err := q.Query(context.Background(), pipeline.QueryRequest{Question: "refund"})
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeNoResults, res.Outcome)
}

func TestQuerier_TopPassageOverBudget(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	retriever := &fakeRetriever{candidates: []models.Candidate{
		candidate("Refund policy: "+strings.Repeat("refund ", 40), "terms.pdf", 1, 0, 0.2),
	}}
	gen := &fakeGenerator{answer: "Thirty days."}
	q := pipeline.NewQuerier(retriever, gen, nil, pipeline.QuerierConfig{MaxContextTokens: 10, Logger: log})

	res, err := q.Query(context.Background(), pipeline.QueryRequest{Question: "refund policy"})
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeAnswered, res.Outcome)
	assert.Empty(t, res.Plan.Passages)
	assert.Empty(t, gen.passages)
	require.Len(t, res.Sources, 1)
	assert.Contains(t, buf.String(), `"msg":"context_empty"`)
	assert.Contains(t, buf.String(), `"max_context_tokens":10`)
}

func TestQuerier_Sessions(t *testing.T) {
	sessions := newSessions(t)
	retriever := &fakeRetriever{candidates: []models.Candidate{
		candidate("Refund policy: 30 days.", "terms.pdf", 1, 0, 0.2),
	}}
	gen := &fakeGenerator{answer: "Thirty days."}
	q := pipeline.NewQuerier(retriever, gen, sessions, pipeline.QuerierConfig{})
	ctx := context.Background()

	_, err := q.Query(ctx, pipeline.QueryRequest{Question: "refund policy", SessionID: "s1"})
	require.NoError(t, err)
	assert.Empty(t, gen.history)

	_, err = q.Query(ctx, pipeline.QueryRequest{Question: "refund policy again", SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, []models.Message{
		{Role: models.RoleUser, Content: "refund policy"},
		{Role: models.RoleAssistant, Content: "Thirty days."},
	}, gen.history)

	history, err := q.History(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Len(t, history, 4)
	assert.Equal(t, "refund policy again", history[2].Content)
}

func TestQuerier_SentinelsAreRecorded(t *testing.T) {
	sessions := newSessions(t)
	q := pipeline.NewQuerier(&fakeRetriever{}, &fakeGenerator{}, sessions, pipeline.QuerierConfig{})
	ctx := context.Background()

	_, err := q.Query(ctx, pipeline.QueryRequest{Question: "anything", SessionID: "s2"})
	require.NoError(t, err)

	history, err := q.History(ctx, "s2", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.NoResultsAnswer, history[1].Content)
}

func TestQuerier_SessionFailuresDoNotFailQuery(t *testing.T) {
	retriever := &fakeRetriever{candidates: []models.Candidate{
		candidate("Refund policy: 30 days.", "terms.pdf", 1, 0, 0.2),
	}}
	q := pipeline.NewQuerier(retriever, &fakeGenerator{answer: "ok"}, failingSessions{}, pipeline.QuerierConfig{})

	res, err := q.Query(context.Background(), pipeline.QueryRequest{Question: "refund policy", SessionID: "s3"})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Answer)
}

func TestQuerier_Stream(t *testing.T) {
	retriever := &fakeRetriever{candidates: []models.Candidate{
		candidate("Refund policy: 30 days.", "terms.pdf", 1, 0, 0.2),
	}}
	gen := &streamGenerator{tokens: []string{"Thirty", " days."}}
	q := pipeline.NewQuerier(retriever, gen, nil, pipeline.QuerierConfig{})

	var got []string
	res, err := q.Stream(context.Background(), pipeline.QueryRequest{Question: "refund policy"}, func(tok string) {
		got = append(got, tok)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Thirty", " days."}, got)
	assert.Equal(t, "Thirty days.", res.Answer)
}

func TestQuerier_StreamSentinel(t *testing.T) {
	q := pipeline.NewQuerier(&fakeRetriever{}, &streamGenerator{}, nil, pipeline.QuerierConfig{})

	var got []string
	_, err := q.Stream(context.Background(), pipeline.QueryRequest{Question: "anything"}, func(tok string) {
		got = append(got, tok)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{models.NoResultsAnswer}, got)
}

// lengthEmbedder maps text to a small non-zero vector so every chunk can be
// found with a wide distance cutoff.
type lengthEmbedder struct{}

func (lengthEmbedder) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{1, float32(len(t)%7) + 1}
	}
	return out, nil
}

func words(prefix string, n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(w, " ")
}

func newIngester(t *testing.T, dir string) (*pipeline.Ingester, *store.MemoryStore) {
	t.Helper()
	proc, err := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 500, ChunkOverlap: 50})
	require.NoError(t, err)
	idx := store.NewMemoryStore(lengthEmbedder{})
	return pipeline.NewIngester(proc, idx, pipeline.IngesterConfig{ExtractedDir: dir}), idx
}

func TestIngester_TwoPageDocument(t *testing.T) {
	ingester, idx := newIngester(t, "")

	doc := models.Document{
		Name:   "handbook.pdf",
		Source: "handbook.pdf",
		Pages: []models.Page{
			{Number: 1, Text: words("a", 1000)},
			{Number: 2, Text: words("b", 1000)},
		},
	}

	res, err := ingester.IngestDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, pipeline.IngestResult{
		Filename:            "handbook.pdf",
		ChunksIndexed:       6,
		Status:              "indexed",
		CharactersExtracted: len(doc.Pages[0].Text) + len(doc.Pages[1].Text),
		Pages:               2,
	}, res)
	assert.Equal(t, 6, idx.Len())

	found, err := idx.Search(context.Background(), "a1", 50, 2)
	require.NoError(t, err)
	perPage := map[int]int{}
	for _, c := range found {
		perPage[c.Metadata.Page]++
		if c.Metadata.Page == 1 {
			assert.True(t, strings.HasPrefix(c.Text, "a"))
		} else {
			assert.True(t, strings.HasPrefix(c.Text, "b"))
		}
	}
	assert.Equal(t, map[int]int{1: 3, 2: 3}, perPage)
}

func TestIngester_Ingest(t *testing.T) {
	dir := t.TempDir()
	ingester, idx := newIngester(t, dir)

	res, err := ingester.Ingest(context.Background(), "notes.txt", strings.NewReader("first page\fsecond page"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.ChunksIndexed)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 2, idx.Len())

	saved, err := os.ReadFile(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first page\fsecond page", string(saved))
}

func TestIngester_Errors(t *testing.T) {
	ingester, _ := newIngester(t, "")
	ctx := context.Background()

	_, err := ingester.Ingest(ctx, "slides.pptx", strings.NewReader("x"))
	assert.ErrorIs(t, err, pipeline.ErrUnsupportedType)

	_, err = ingester.Ingest(ctx, "blank.txt", strings.NewReader("  \n "))
	assert.ErrorIs(t, err, pipeline.ErrNoText)

	_, err = ingester.IngestDocument(ctx, models.Document{Source: "x", Pages: []models.Page{{Number: 1, Text: " "}}})
	assert.ErrorIs(t, err, pipeline.ErrNoText)
}

func TestIngestThenQuery(t *testing.T) {
	ingester, idx := newIngester(t, "")
	ctx := context.Background()

	_, err := ingester.Ingest(ctx, "policy.txt", strings.NewReader("Refund policy: refunds are issued within 30 days."))
	require.NoError(t, err)

	gen := &fakeGenerator{answer: "Within 30 days."}
	q := pipeline.NewQuerier(idx, gen, nil, pipeline.QuerierConfig{MaxContextTokens: 100})

	res, err := q.Query(ctx, pipeline.QueryRequest{Question: "refund policy"})
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeAnswered, res.Outcome)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "policy.txt", res.Sources[0].Source)
	assert.Equal(t, 1, res.Sources[0].Page)
	assert.Equal(t, 0, res.Sources[0].ChunkID)
}
