package expr

import (
	"encoding/json"
	"fmt"
	"os"
)

// rawNode is the wire shape of a single expression node. All construct
// fields live side by side; which ones are meaningful depends on Kind.
type rawNode struct {
	Kind     string          `json:"kind"`
	Name     string          `json:"name"`
	Value    json.RawMessage `json:"value"`
	Target   *rawNode        `json:"target"`
	Recv     *rawNode        `json:"recv"`
	Args     []*rawNode      `json:"args"`
	Subject  *rawNode        `json:"subject"`
	Pattern  *rawNode        `json:"pattern"`
	Guard    *rawNode        `json:"guard"`
	Body     *rawNode        `json:"body"`
	After    json.RawMessage `json:"after"`
	Rescue   []*rawBranch    `json:"rescue"`
	Catch    []*rawBranch    `json:"catch"`
	Else     []*rawBranch    `json:"else"`
	Branches []*rawBranch    `json:"branches"`
	Clauses  []*rawClause    `json:"clauses"`
	Into     *rawNode        `json:"into"`
	Key      *rawNode        `json:"key"`
	Update   *rawNode        `json:"update"`
	Entries  []*rawNode      `json:"entries"`
	Map      *rawNode        `json:"map"`
	Segments []*rawSegment   `json:"segments"`
	Items    []*rawNode      `json:"items"`
	Tail     *rawNode        `json:"tail"`
	Exprs    []*rawNode      `json:"exprs"`
	Line     int             `json:"line"`
	Col      int             `json:"col"`
}

type rawBranch struct {
	Pattern *rawNode `json:"pattern"`
	Guard   *rawNode `json:"guard"`
	Body    *rawNode `json:"body"`
	Line    int      `json:"line"`
	Col     int      `json:"col"`
}

type rawClause struct {
	Params  []*rawNode `json:"params"`
	Guard   *rawNode   `json:"guard"`
	Body    *rawNode   `json:"body"`
	Op      string     `json:"op"`
	Pattern *rawNode   `json:"pattern"`
	Source  *rawNode   `json:"source"`
	Filter  *rawNode   `json:"filter"`
	Line    int        `json:"line"`
	Col     int        `json:"col"`
}

type rawSegment struct {
	Value *rawNode `json:"value"`
	Size  *rawNode `json:"size"`
	Quals []string `json:"quals"`
}

// rawAfter is the timeout arm of a receive.
type rawAfter struct {
	Timeout *rawNode `json:"timeout"`
	Body    *rawNode `json:"body"`
	Line    int      `json:"line"`
	Col     int      `json:"col"`
}

type rawFunction struct {
	Name    string       `json:"name"`
	Arity   int          `json:"arity"`
	Kind    string       `json:"kind"`
	Line    int          `json:"line"`
	Clauses []*rawClause `json:"clauses"`
}

type rawDocument struct {
	Path       string         `json:"path"`
	Module     string         `json:"module"`
	Attributes []Attribute    `json:"attributes"`
	Functions  []*rawFunction `json:"functions"`
}

// ParseFile reads and decodes one exported document from disk.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if doc.Path == "" {
		doc.Path = path
	}
	return doc, nil
}

// DecodeDocument decodes an exported document from its JSON form.
// Structurally invalid JSON is an error; node kinds this package does
// not recognize decode as Unknown rather than failing the document.
func DecodeDocument(data []byte) (*Document, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if raw.Module == "" {
		return nil, fmt.Errorf("decode document: missing module name")
	}
	doc := &Document{
		Path:       raw.Path,
		Module:     raw.Module,
		Attributes: raw.Attributes,
	}
	for _, rf := range raw.Functions {
		fn := &Function{
			Name:  rf.Name,
			Arity: rf.Arity,
			Kind:  rf.Kind,
			Line:  rf.Line,
		}
		for _, rc := range rf.Clauses {
			fn.Clauses = append(fn.Clauses, decodeClause(rc))
		}
		doc.Functions = append(doc.Functions, fn)
	}
	return doc, nil
}

func decodeClause(rc *rawClause) *Clause {
	if rc == nil {
		return &Clause{}
	}
	c := &Clause{
		Guard: decodeNode(rc.Guard),
		Body:  decodeNode(rc.Body),
		Pos:   Loc{Line: rc.Line, Col: rc.Col},
	}
	for _, p := range rc.Params {
		c.Params = append(c.Params, decodeNode(p))
	}
	return c
}

func decodeBranch(rb *rawBranch) *Branch {
	if rb == nil {
		return nil
	}
	return &Branch{
		Pattern: decodeNode(rb.Pattern),
		Guard:   decodeNode(rb.Guard),
		Body:    decodeNode(rb.Body),
		Pos:     Loc{Line: rb.Line, Col: rb.Col},
	}
}

func decodeBranches(rbs []*rawBranch) []*Branch {
	var out []*Branch
	for _, rb := range rbs {
		if b := decodeBranch(rb); b != nil {
			out = append(out, b)
		}
	}
	return out
}

func decodeNodes(rns []*rawNode) []Node {
	var out []Node
	for _, rn := range rns {
		out = append(out, decodeNode(rn))
	}
	return out
}

func decodeNode(rn *rawNode) Node {
	if rn == nil {
		return nil
	}
	pos := position{Pos: Loc{Line: rn.Line, Col: rn.Col}}
	switch rn.Kind {
	case "var":
		return &Var{position: pos, Name: rn.Name}
	case "pin":
		return &Pin{position: pos, Target: decodeNode(rn.Target)}
	case "attr":
		return &Attr{position: pos, Name: rn.Name}
	case "atom":
		var v string
		if len(rn.Value) > 0 {
			_ = json.Unmarshal(rn.Value, &v)
		}
		return &Atom{position: pos, Value: v}
	case "lit":
		var v any
		if len(rn.Value) > 0 {
			_ = json.Unmarshal(rn.Value, &v)
		}
		return &Lit{position: pos, Value: v}
	case "call":
		return &Call{position: pos, Name: rn.Name, Args: decodeNodes(rn.Args)}
	case "remote":
		return &Remote{position: pos, Recv: decodeNode(rn.Recv), Name: rn.Name, Args: decodeNodes(rn.Args)}
	case "fn":
		fn := &Fn{position: pos}
		for _, rc := range rn.Clauses {
			fn.Clauses = append(fn.Clauses, decodeClause(rc))
		}
		return fn
	case "case":
		return &Case{position: pos, Subject: decodeNode(rn.Subject), Branches: decodeBranches(rn.Branches)}
	case "cond":
		return &Cond{position: pos, Branches: decodeBranches(rn.Branches)}
	case "receive":
		r := &Receive{position: pos, Branches: decodeBranches(rn.Branches)}
		if len(rn.After) > 0 {
			var ra rawAfter
			if err := json.Unmarshal(rn.After, &ra); err == nil {
				r.After = &Branch{
					Pattern: decodeNode(ra.Timeout),
					Body:    decodeNode(ra.Body),
					Pos:     Loc{Line: ra.Line, Col: ra.Col},
				}
			}
		}
		return r
	case "try":
		t := &Try{
			position: pos,
			Body:     decodeNode(rn.Body),
			Rescue:   decodeBranches(rn.Rescue),
			Catch:    decodeBranches(rn.Catch),
			Else:     decodeBranches(rn.Else),
		}
		if len(rn.After) > 0 {
			var an rawNode
			if err := json.Unmarshal(rn.After, &an); err == nil {
				t.After = decodeNode(&an)
			}
		}
		return t
	case "with":
		w := &With{position: pos, Body: decodeNode(rn.Body), Else: decodeBranches(rn.Else)}
		for _, rc := range rn.Clauses {
			if rc == nil {
				continue
			}
			w.Clauses = append(w.Clauses, &WithClause{
				Op:      rc.Op,
				Pattern: decodeNode(rc.Pattern),
				Source:  decodeNode(rc.Source),
				Pos:     Loc{Line: rc.Line, Col: rc.Col},
			})
		}
		return w
	case "for":
		f := &For{position: pos, Into: decodeNode(rn.Into), Body: decodeNode(rn.Body)}
		for _, rc := range rn.Clauses {
			if rc == nil {
				continue
			}
			f.Clauses = append(f.Clauses, &ForClause{
				Pattern: decodeNode(rc.Pattern),
				Source:  decodeNode(rc.Source),
				Filter:  decodeNode(rc.Filter),
				Pos:     Loc{Line: rc.Line, Col: rc.Col},
			})
		}
		return f
	case "match":
		var val Node
		if len(rn.Value) > 0 {
			var vn rawNode
			if err := json.Unmarshal(rn.Value, &vn); err == nil {
				val = decodeNode(&vn)
			}
		}
		return &Match{position: pos, Pattern: decodeNode(rn.Pattern), Value: val}
	case "block":
		return &Block{position: pos, Exprs: decodeNodes(rn.Exprs)}
	case "list":
		return &List{position: pos, Items: decodeNodes(rn.Items), Tail: decodeNode(rn.Tail)}
	case "tuple":
		return &Tuple{position: pos, Items: decodeNodes(rn.Items)}
	case "pair":
		var val Node
		if len(rn.Value) > 0 {
			var vn rawNode
			if err := json.Unmarshal(rn.Value, &vn); err == nil {
				val = decodeNode(&vn)
			}
		}
		return &Pair{position: pos, Key: decodeNode(rn.Key), Value: val}
	case "map":
		m := &Map{position: pos, Update: decodeNode(rn.Update)}
		for _, re := range rn.Entries {
			if p, ok := decodeNode(re).(*Pair); ok {
				m.Entries = append(m.Entries, p)
			}
		}
		return m
	case "struct":
		s := &Struct{position: pos, Name: rn.Name}
		if m, ok := decodeNode(rn.Map).(*Map); ok {
			s.Map = m
		}
		return s
	case "binary":
		b := &Binary{position: pos}
		for _, rs := range rn.Segments {
			if rs == nil {
				continue
			}
			b.Segments = append(b.Segments, &Segment{
				Value: decodeNode(rs.Value),
				Size:  decodeNode(rs.Size),
				Quals: rs.Quals,
			})
		}
		return b
	case "when":
		return &When{position: pos, Pattern: decodeNode(rn.Pattern), Guard: decodeNode(rn.Guard)}
	default:
		return &Unknown{position: pos, Kind: rn.Kind}
	}
}
