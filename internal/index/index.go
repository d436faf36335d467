package index

// DocumentIndex defines the interface for document indexing operations.
// Consumers depend on this interface rather than the concrete *DB type.
type DocumentIndex interface {
	UpsertDocument(d DocumentRow, body string, questIDs []string) error
	DeleteDocument(path string) error
	GetChecksum(path string) (string, error)
	GetDocument(path string) (*DocumentRow, error)
	ListDocuments(limit, offset int, questID, sort string) ([]DocumentRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Embedders(questID string) ([]string, error)
	QuestCounts() (map[string]int, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

var _ DocumentIndex = (*DB)(nil)
