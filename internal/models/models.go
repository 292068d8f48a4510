package models

// Document is a raw text document produced by a loader. It is
// immutable once created and discarded after chunking.
type Document struct {
	Path     string
	Content  string
	Metadata map[string]interface{}
}

// Chunk is a bounded slice of a document's text, the retrieval unit.
// Metadata is inherited from the source document and augmented with
// the chunk position.
type Chunk struct {
	Text     string
	Metadata map[string]interface{}
}

// VectorEntry is one persisted index record: a chunk together with its
// embedding. Entries are never mutated; they are removed only by a
// full index reset.
type VectorEntry struct {
	ID        string
	Embedding []float32
	Content   string
	Metadata  map[string]interface{}
}

// SourceReference points a caller back at the chunk an answer was
// grounded on.
type SourceReference struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// QueryResult is the typed outcome of one query. Exactly one of the
// three shapes applies: a plain answer, an answer with sources, or a
// terminal failure whose explanation is carried in Answer.
type QueryResult struct {
	Answer  string
	Sources []SourceReference
	Failure bool
}

// HasSources reports whether the result carries source attributions.
func (r QueryResult) HasSources() bool {
	return len(r.Sources) > 0
}

// LoadStatus is a snapshot of an ingestion job, shaped for an external
// poller.
type LoadStatus struct {
	IsLoading bool   `json:"is_loading"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Message   string `json:"message"`
}
