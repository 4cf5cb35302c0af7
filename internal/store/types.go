package store

import "time"

// Analysis domain types

type Document struct {
	ID        int64
	Path      string
	Module    string
	Hash      string
	IndexedAt time.Time
}

type Function struct {
	ID         int64
	DocumentID int64
	Name       string
	Arity      int
	Kind       string
	Line       int
}

type Closure struct {
	ID                       int64
	DocumentID               int64
	FunctionID               *int64
	Line                     int
	Col                      int
	Arity                    int
	ClauseCount              int
	BoundNames               []string
	ReferencedNames          []string
	HasCaptures              bool
	TotalCaptureCount        int
	CaptureDepth             int
	CrossesFunctionBoundary  bool
	CapturesModuleAttributes bool
}

// ClosureScope is one level of a closure's enclosing scope chain,
// outermost at level 0. ParentLevel is -1 at the outermost level.
type ClosureScope struct {
	ID          int64
	ClosureID   int64
	Level       int
	Kind        string
	Name        string
	Names       []string
	ParentLevel int
}

type Reference struct {
	ID        int64
	ClosureID int64
	Name      string
	Line      int
	Col       int
}

// Location is a line/col pair serialized into JSON text columns.
type Location struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

type FreeVariable struct {
	ID             int64
	ClosureID      int64
	Name           string
	ReferenceCount int
	Locations      []Location
}

type VariableSource struct {
	ID         int64
	ClosureID  int64
	Name       string
	ScopeLevel int
	ScopeKind  string
	ScopeName  string
	Depth      int
}

// Fact domain types

// Fact is one emitted knowledge-graph triple. DocumentID links the
// fact to the document it was derived from so re-indexing can retire
// it; document-less facts survive re-indexing.
type Fact struct {
	ID         int64
	DocumentID *int64
	Subject    string
	Predicate  string
	Object     string
}
