package main

// CLIResult is the top-level JSON envelope for all query commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIClosure is a JSON-friendly closure representation.
type CLIClosure struct {
	ID                       int64    `json:"id"`
	Module                   string   `json:"module"`
	Path                     string   `json:"path,omitempty"`
	Function                 string   `json:"function,omitempty"`
	Line                     int      `json:"line"`
	Col                      int      `json:"col"`
	Arity                    int      `json:"arity"`
	ClauseCount              int      `json:"clause_count"`
	BoundNames               []string `json:"bound_names,omitempty"`
	ReferencedNames          []string `json:"referenced_names,omitempty"`
	HasCaptures              bool     `json:"has_captures"`
	CaptureCount             int      `json:"capture_count"`
	CaptureDepth             int      `json:"capture_depth"`
	CrossesFunctionBoundary  bool     `json:"crosses_function_boundary,omitempty"`
	CapturesModuleAttributes bool     `json:"captures_module_attributes,omitempty"`
}

// CLILocation is a line/col occurrence of a captured variable.
type CLILocation struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// CLIFreeVariable is a JSON-friendly free variable representation.
type CLIFreeVariable struct {
	ClosureID      int64         `json:"closure_id"`
	Name           string        `json:"name"`
	ReferenceCount int           `json:"reference_count"`
	Locations      []CLILocation `json:"locations,omitempty"`
}

// CLIReference is one source occurrence of a captured variable.
type CLIReference struct {
	Name string `json:"name"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
}

// CLIScopeLevel is one level of a closure's scope chain, outermost first.
type CLIScopeLevel struct {
	Level       int      `json:"level"`
	Kind        string   `json:"kind"`
	Name        string   `json:"name,omitempty"`
	Names       []string `json:"names,omitempty"`
	ParentLevel int      `json:"parent_level"`
}

// CLIVariableSource records which scope level provides a captured variable.
type CLIVariableSource struct {
	Name       string `json:"name"`
	ScopeLevel int    `json:"scope_level"`
	ScopeKind  string `json:"scope_kind"`
	ScopeName  string `json:"scope_name,omitempty"`
	Depth      int    `json:"depth"`
}

// CLIClosureDetail bundles a closure with its full capture analysis.
type CLIClosureDetail struct {
	Closure       CLIClosure          `json:"closure"`
	FreeVariables []CLIFreeVariable   `json:"free_variables"`
	References    []CLIReference      `json:"references"`
	Scopes        []CLIScopeLevel     `json:"scopes"`
	Sources       []CLIVariableSource `json:"sources"`
}

// CLICaptureSite is one occurrence of a variable being captured, with the
// capturing closure's context.
type CLICaptureSite struct {
	ClosureID int64  `json:"closure_id"`
	Module    string `json:"module"`
	Path      string `json:"path,omitempty"`
	Name      string `json:"name"`
	Line      int    `json:"line"`
	Col       int    `json:"col"`
}

// CLICapturedName aggregates capture counts for one variable name.
type CLICapturedName struct {
	Name            string `json:"name"`
	ClosureCount    int    `json:"closure_count"`
	TotalReferences int    `json:"total_references"`
}

// CLIDocument is a JSON-friendly document representation.
type CLIDocument struct {
	ID     int64  `json:"id"`
	Path   string `json:"path"`
	Module string `json:"module"`
}

// CLIFunction is a JSON-friendly function representation.
type CLIFunction struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Arity int    `json:"arity"`
	Kind  string `json:"kind"`
	Line  int    `json:"line"`
}

// CLIFact is a JSON-friendly fact triple.
type CLIFact struct {
	ID         int64  `json:"id"`
	Subject    string `json:"subject"`
	Predicate  string `json:"predicate"`
	Object     string `json:"object"`
	DocumentID *int64 `json:"document_id,omitempty"`
}

// CLIFactGraph is a JSON-friendly fact neighborhood.
type CLIFactGraph struct {
	Root  string             `json:"root"`
	Nodes []CLIFactGraphNode `json:"nodes"`
	Edges []CLIFact          `json:"edges"`
	Depth int                `json:"depth"`
}

// CLIFactGraphNode is an entity in the fact graph with its BFS depth.
type CLIFactGraphNode struct {
	Entity string `json:"entity"`
	Depth  int    `json:"depth"`
}

// CLIModuleSummary is a JSON-friendly per-module digest.
type CLIModuleSummary struct {
	Module            string `json:"module"`
	Path              string `json:"path"`
	Functions         int    `json:"functions"`
	Closures          int    `json:"closures"`
	CapturingClosures int    `json:"capturing_closures"`
	MaxCaptureDepth   int    `json:"max_capture_depth"`
}

// CLIProjectSummary is a JSON-friendly project summary.
type CLIProjectSummary struct {
	Documents         int                `json:"documents"`
	Functions         int                `json:"functions"`
	Closures          int                `json:"closures"`
	CapturingClosures int                `json:"capturing_closures"`
	BoundaryCrossings int                `json:"boundary_crossings"`
	AttributeCaptures int                `json:"attribute_captures"`
	MaxCaptureDepth   int                `json:"max_capture_depth"`
	Facts             int                `json:"facts"`
	Modules           []CLIModuleSummary `json:"modules"`
	MostCaptured      []CLICapturedName  `json:"most_captured"`
}
