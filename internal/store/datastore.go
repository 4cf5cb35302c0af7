package store

// DataStore is the interface for analysis-phase data access. Both Store
// (direct SQLite) and BatchedStore (in-memory buffering for parallel
// indexing) implement this interface.
type DataStore interface {
	// Analysis inserts — each returns the assigned ID.
	InsertFunction(f *Function) (int64, error)
	InsertClosure(c *Closure) (int64, error)
	InsertClosureScope(cs *ClosureScope) (int64, error)
	InsertReference(r *Reference) (int64, error)
	InsertFreeVariable(v *FreeVariable) (int64, error)
	InsertVariableSource(v *VariableSource) (int64, error)

	// Queries needed while a batch is still in flight.
	ClosuresByDocument(documentID int64) ([]Closure, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
