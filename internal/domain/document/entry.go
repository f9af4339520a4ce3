package document

// FieldText is the stored attribute holding the weighted text an entry was
// embedded from.
const FieldText = "text"

// Entry is what the vector index stores per record: the weighted text, its
// embedding and the metadata snapshot used for filtering.
type Entry struct {
	ID       string
	Text     string
	Vector   []float32
	Metadata Metadata
}
