// Package expr defines the normalized expression trees that understory
// analyzes. Trees arrive as JSON documents produced by a source-language
// exporter; every construct the analyzer cares about has its own node
// kind, and anything the exporter could not classify decodes as Unknown.
package expr

// Loc is a 1-based source position. A zero Loc means "unknown".
type Loc struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// Node is implemented by every expression-tree node.
type Node interface {
	Loc() Loc
	node()
}

// position is embedded by all node types to carry the source location.
type position struct {
	Pos Loc
}

func (p position) Loc() Loc { return p.Pos }
func (position) node()      {}

// Var is a bare identifier. In expression position it reads a variable;
// in pattern position it binds one (unless it is the wildcard "_").
type Var struct {
	position
	Name string
}

// Pin marks a pattern element as a read of an existing binding rather
// than a fresh binding (the ^x form).
type Pin struct {
	position
	Target Node
}

// Attr is a module-attribute reference (@name). Name holds the bare
// name without the sigil.
type Attr struct {
	position
	Name string
}

// Atom is a literal atom. It never binds and never reads.
type Atom struct {
	position
	Value string
}

// Lit is any other literal (number, string, boolean, nil).
type Lit struct {
	position
	Value any
}

// Call is a local or imported call: name(args...). The name is not a
// variable reference.
type Call struct {
	position
	Name string
	Args []Node
}

// Remote is a qualified call: recv.name(args...). Only the arguments
// are in expression position for capture purposes.
type Remote struct {
	position
	Recv Node
	Name string
	Args []Node
}

// Clause is one head+body of a multi-clause callable: parameter
// patterns, an optional guard, and a body.
type Clause struct {
	Params []Node
	Guard  Node
	Body   Node
	Pos    Loc
}

// Fn is an anonymous function with one or more clauses.
type Fn struct {
	position
	Clauses []*Clause
}

// Arity returns the parameter count of the first clause, or 0 for a
// clauseless fn.
func (f *Fn) Arity() int {
	if len(f.Clauses) == 0 {
		return 0
	}
	return len(f.Clauses[0].Params)
}

// Branch is one arm of a branching construct: a head pattern (or
// condition), an optional guard, and a body.
type Branch struct {
	Pattern Node
	Guard   Node
	Body    Node
	Pos     Loc
}

// Case scrutinizes a subject against pattern branches.
type Case struct {
	position
	Subject  Node
	Branches []*Branch
}

// Cond evaluates branch heads as conditions until one is truthy.
type Cond struct {
	position
	Branches []*Branch
}

// Receive waits for a message matching one of its branches. After, if
// present, carries the timeout expression as its Pattern and the
// timeout body as its Body.
type Receive struct {
	position
	Branches []*Branch
	After    *Branch
}

// Try wraps a body with rescue/catch/else branches and an after block.
type Try struct {
	position
	Body   Node
	Rescue []*Branch
	Catch  []*Branch
	Else   []*Branch
	After  Node
}

// WithClause is one step of a with chain: `pattern <- source` (Op "<-")
// or a plain interstitial match `pattern = source` (Op "=").
type WithClause struct {
	Op      string
	Pattern Node
	Source  Node
	Pos     Loc
}

// With chains generator and match clauses, then runs a body (with an
// optional else for non-matching steps).
type With struct {
	position
	Clauses []*WithClause
	Body    Node
	Else    []*Branch
}

// ForClause is one comprehension clause: a generator (`pattern <-
// source`) when Pattern is non-nil, otherwise a filter expression.
type ForClause struct {
	Pattern Node
	Source  Node
	Filter  Node
	Pos     Loc
}

// For is a comprehension. Into, if present, is the result accumulator
// expression, which is evaluated in the enclosing scope, not under the
// generators' bindings.
type For struct {
	position
	Clauses []*ForClause
	Into    Node
	Body    Node
}

// Match is a direct `pattern = value` expression.
type Match struct {
	position
	Pattern Node
	Value   Node
}

// Block is a statement sequence. Bindings introduced by a Match
// statement are visible to the statements after it.
type Block struct {
	position
	Exprs []Node
}

// List is a list literal, with an optional improper tail ([h | t]).
type List struct {
	position
	Items []Node
	Tail  Node
}

// Tuple is a tuple literal.
type Tuple struct {
	position
	Items []Node
}

// Pair is a two-element association (map entry, keyword pair).
type Pair struct {
	position
	Key   Node
	Value Node
}

// Map is a map literal. Update, if present, is the base of an update
// expression (%{base | entries}).
type Map struct {
	position
	Update  Node
	Entries []*Pair
}

// Struct is a struct literal: a named map.
type Struct struct {
	position
	Name string
	Map  *Map
}

// Segment is one piece of a binary: a value, an optional size
// expression, and type qualifiers.
type Segment struct {
	Value Node
	Size  Node
	Quals []string
}

// Binary is a bitstring/binary literal.
type Binary struct {
	position
	Segments []*Segment
}

// When attaches a guard to a pattern inside a pattern position.
type When struct {
	position
	Pattern Node
	Guard   Node
}

// Unknown is the decoded form of a node kind this package does not
// recognize. It binds nothing and reads nothing.
type Unknown struct {
	position
	Kind string
}

// Attribute is a module attribute declaration site.
type Attribute struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// Function is a named function: one or more clauses under a shared
// name/arity. Kind is the definition keyword ("def", "defp").
type Function struct {
	Name    string
	Arity   int
	Kind    string
	Line    int
	Clauses []*Clause
}

// Document is one exported source file: the module it defines, the
// module attributes declared in it, and its named functions.
type Document struct {
	Path       string
	Module     string
	Attributes []Attribute
	Functions  []*Function
}
