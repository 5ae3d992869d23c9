package store

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/internal/types"
)

// MemoryStore is an in-process index using brute-force cosine distance.
type MemoryStore struct {
	mu       sync.RWMutex
	embedder types.Embedder
	records  []models.Record
}

func NewMemoryStore(embedder types.Embedder) *MemoryStore {
	return &MemoryStore{embedder: embedder}
}

// Index replaces every record of source with the embedded chunks.
func (s *MemoryStore) Index(ctx context.Context, chunks []models.Chunk, source string) (int, error) {
	records, err := buildRecords(ctx, s.embedder, chunks, source, 0)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0:0]
	for _, r := range s.records {
		if r.Source != source {
			kept = append(kept, r)
		}
	}
	s.records = append(kept, records...)

	return len(records), nil
}

func (s *MemoryStore) Search(ctx context.Context, query string, topK int, maxDistance float64) ([]models.Candidate, error) {
	vector, err := embedQuery(ctx, s.embedder, query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := []models.Candidate{}
	for _, r := range s.records {
		d := cosineDistance(vector, r.Embedding)
		if d > maxDistance {
			continue
		}
		candidates = append(candidates, models.Candidate{
			Text:     r.Text,
			Metadata: models.Metadata{Source: r.Source, Page: r.Page, ChunkID: r.ChunkID},
			Distance: d,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
	if topK >= 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}

	return candidates, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// cosineDistance is 1 - cosine similarity, in [0, 2]. Zero vectors are
// treated as orthogonal to everything.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}

	d := 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	if d < 0 {
		return 0
	}
	return d
}
