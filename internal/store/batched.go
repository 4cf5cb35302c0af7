package store

import "sync"

// BatchedStore buffers analysis inserts in memory using fake (negative)
// IDs. It implements DataStore so the indexing pipeline can write to it
// without knowing whether it is hitting SQLite or an in-memory buffer.
//
// Thread safety: the mutex protects fake ID allocation and slice
// appends. Each worker in the parallel pipeline owns its own
// BatchedStore, so contention is not expected, but the lock keeps the
// type safe either way.
type BatchedStore struct {
	store *Store // for read passthrough
	mu    sync.Mutex

	// Buffered analysis data.
	Functions       []Function
	Closures        []Closure
	ClosureScopes   []ClosureScope
	References      []Reference
	FreeVariables   []FreeVariable
	VariableSources []VariableSource

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates a BatchedStore backed by the given Store for
// read queries.
func NewBatchedStore(s *Store) *BatchedStore {
	return &BatchedStore{
		store:      s,
		nextFakeID: -1,
	}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertFunction(f *Function) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	f.ID = fakeID
	b.Functions = append(b.Functions, *f)
	return fakeID, nil
}

func (b *BatchedStore) InsertClosure(c *Closure) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	c.ID = fakeID
	b.Closures = append(b.Closures, *c)
	return fakeID, nil
}

func (b *BatchedStore) InsertClosureScope(cs *ClosureScope) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	cs.ID = fakeID
	b.ClosureScopes = append(b.ClosureScopes, *cs)
	return fakeID, nil
}

func (b *BatchedStore) InsertReference(r *Reference) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	r.ID = fakeID
	b.References = append(b.References, *r)
	return fakeID, nil
}

func (b *BatchedStore) InsertFreeVariable(v *FreeVariable) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	v.ID = fakeID
	b.FreeVariables = append(b.FreeVariables, *v)
	return fakeID, nil
}

func (b *BatchedStore) InsertVariableSource(v *VariableSource) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	v.ID = fakeID
	b.VariableSources = append(b.VariableSources, *v)
	return fakeID, nil
}

// ClosuresByDocument passes through to the underlying Store, merging
// any buffered (not yet committed) closures for the document.
func (b *BatchedStore) ClosuresByDocument(documentID int64) ([]Closure, error) {
	dbClosures, err := b.store.ClosuresByDocument(documentID)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Closures {
		if b.Closures[i].DocumentID == documentID {
			dbClosures = append(dbClosures, b.Closures[i])
		}
	}
	return dbClosures, nil
}
