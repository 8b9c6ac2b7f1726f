package storage

import "fmt"

// NewStore builds the persistence backend holding run records, trajectory
// ensembles, and their summaries. An empty kind selects the build default:
// sqlite when the binary was built with the sqlite tag, in-memory otherwise.
// sqlitePath is consulted only by the sqlite backend.
func NewStore(kind, sqlitePath string) (Store, error) {
	if kind == "" {
		kind = DefaultStoreKind()
	}
	switch kind {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unknown store kind %q (want memory or sqlite)", kind)
	}
}

// CloseIfSupported releases whatever the backend holds open. The memory
// store holds nothing and passes through untouched.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
