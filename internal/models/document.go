package models

// UnknownPage marks text whose page number could not be determined.
const UnknownPage = -1

// Page is the text extracted from one page of a source document.
type Page struct {
	Number int
	Text   string
}

// Document is the extraction result for one uploaded or crawled file.
type Document struct {
	Name   string
	Source string
	Pages  []Page
}

// Chunk is an overlapping word window cut from a single page.
type Chunk struct {
	Text       string
	SourcePage int
}

// Record is what the index keeps for every chunk.
type Record struct {
	ChunkID   int
	Source    string
	Page      int
	ChunkSize int
	Text      string
	Embedding []float32
}

type Metadata struct {
	Source  string `json:"source"`
	Page    int    `json:"page"`
	ChunkID int    `json:"chunk_id"`
}

// Candidate is a chunk returned by similarity search for one query.
// Distance is a non-negative dissimilarity, 0 meaning identical.
type Candidate struct {
	Text     string
	Metadata Metadata
	Distance float64
}

// ScoredCandidate is a Candidate after reranking. Higher Score is better.
type ScoredCandidate struct {
	Candidate
	Score float64
}

// Citation attributes an answer to the chunk it was grounded on.
type Citation struct {
	Source   string  `json:"source"`
	Page     int     `json:"page"`
	ChunkID  int     `json:"chunk_id"`
	Distance float64 `json:"distance"`
}

func (c Candidate) Citation() Citation {
	return Citation{
		Source:   c.Metadata.Source,
		Page:     c.Metadata.Page,
		ChunkID:  c.Metadata.ChunkID,
		Distance: c.Distance,
	}
}
