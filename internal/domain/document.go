package domain

// Metadata keys present on every document produced by ingestion.
const (
	MetaSource   = "source"
	MetaType     = "type"
	MetaFilename = "filename"
)

// Document is one retrievable unit of corpus text. After chunking, each
// chunk is itself a Document carrying its source document's metadata.
// Metadata values are always plain strings so the storage layer never sees
// nested structures.
type Document struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// Source returns the origin path recorded at ingestion time.
func (d Document) Source() string {
	return d.Metadata[MetaSource]
}

// Filename returns the base filename recorded at ingestion time.
func (d Document) Filename() string {
	return d.Metadata[MetaFilename]
}

// CloneMetadata returns a copy of the document's metadata map.
func (d Document) CloneMetadata() map[string]string {
	out := make(map[string]string, len(d.Metadata))
	for k, v := range d.Metadata {
		out[k] = v
	}
	return out
}

// RetrievalResult pairs a document with its relevance score for one query.
// Results are transient; they are never persisted.
type RetrievalResult struct {
	ID       string   `json:"id"`
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}
