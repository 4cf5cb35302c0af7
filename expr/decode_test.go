package expr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `{
  "path": "lib/my_app/worker.ex",
  "module": "MyApp.Worker",
  "attributes": [{"name": "retry_limit", "line": 2}],
  "functions": [
    {
      "name": "start",
      "arity": 1,
      "kind": "def",
      "line": 4,
      "clauses": [
        {
          "params": [{"kind": "var", "name": "opts", "line": 4, "col": 13}],
          "guard": {"kind": "call", "name": "is_list", "args": [{"kind": "var", "name": "opts"}]},
          "body": {
            "kind": "fn", "line": 5, "col": 5,
            "clauses": [
              {
                "params": [{"kind": "var", "name": "msg"}],
                "body": {"kind": "var", "name": "msg", "line": 6, "col": 7},
                "line": 5, "col": 8
              }
            ]
          },
          "line": 4, "col": 3
        }
      ]
    }
  ]
}`

func TestDecodeDocument_Shape(t *testing.T) {
	t.Parallel()
	doc, err := DecodeDocument([]byte(sampleDoc))
	require.NoError(t, err)

	assert.Equal(t, "lib/my_app/worker.ex", doc.Path)
	assert.Equal(t, "MyApp.Worker", doc.Module)
	require.Len(t, doc.Attributes, 1)
	assert.Equal(t, "retry_limit", doc.Attributes[0].Name)

	require.Len(t, doc.Functions, 1)
	fn := doc.Functions[0]
	assert.Equal(t, "start", fn.Name)
	assert.Equal(t, 1, fn.Arity)
	assert.Equal(t, "def", fn.Kind)
	require.Len(t, fn.Clauses, 1)

	cl := fn.Clauses[0]
	require.Len(t, cl.Params, 1)
	p, ok := cl.Params[0].(*Var)
	require.True(t, ok)
	assert.Equal(t, "opts", p.Name)
	assert.Equal(t, Loc{Line: 4, Col: 13}, p.Loc())

	_, ok = cl.Guard.(*Call)
	assert.True(t, ok)

	inner, ok := cl.Body.(*Fn)
	require.True(t, ok)
	require.Len(t, inner.Clauses, 1)
	assert.Equal(t, Loc{Line: 5, Col: 5}, inner.Loc())
	assert.Equal(t, 1, inner.Arity())
}

func TestDecodeDocument_MissingModule(t *testing.T) {
	t.Parallel()
	_, err := DecodeDocument([]byte(`{"functions": []}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing module")
}

func TestDecodeDocument_InvalidJSON(t *testing.T) {
	t.Parallel()
	_, err := DecodeDocument([]byte(`{not json`))
	require.Error(t, err)
}

func TestDecodeDocument_UnknownKind(t *testing.T) {
	t.Parallel()
	doc, err := DecodeDocument([]byte(`{
	  "module": "M",
	  "functions": [{"name": "f", "arity": 0, "kind": "def", "clauses": [
	    {"params": [], "body": {"kind": "quote", "line": 3, "col": 1}}
	  ]}]
	}`))
	require.NoError(t, err)

	u, ok := doc.Functions[0].Clauses[0].Body.(*Unknown)
	require.True(t, ok)
	assert.Equal(t, "quote", u.Kind)
	assert.Equal(t, Loc{Line: 3, Col: 1}, u.Loc())
}

func TestDecodeNode_BranchConstructs(t *testing.T) {
	t.Parallel()
	doc, err := DecodeDocument([]byte(`{
	  "module": "M",
	  "functions": [{"name": "f", "arity": 0, "kind": "def", "clauses": [
	    {"params": [], "body": {
	      "kind": "case",
	      "subject": {"kind": "var", "name": "subj"},
	      "branches": [
	        {
	          "pattern": {"kind": "tuple", "items": [
	            {"kind": "atom", "value": "ok"},
	            {"kind": "pin", "target": {"kind": "var", "name": "expected"}}
	          ]},
	          "guard": {"kind": "call", "name": "valid", "args": []},
	          "body": {"kind": "atom", "value": "matched"},
	          "line": 7, "col": 5
	        }
	      ]
	    }}
	  ]}]
	}`))
	require.NoError(t, err)

	c, ok := doc.Functions[0].Clauses[0].Body.(*Case)
	require.True(t, ok)
	require.Len(t, c.Branches, 1)

	b := c.Branches[0]
	assert.Equal(t, Loc{Line: 7, Col: 5}, b.Pos)
	tup, ok := b.Pattern.(*Tuple)
	require.True(t, ok)
	require.Len(t, tup.Items, 2)
	pn, ok := tup.Items[1].(*Pin)
	require.True(t, ok)
	tgt, ok := pn.Target.(*Var)
	require.True(t, ok)
	assert.Equal(t, "expected", tgt.Name)
}

func TestDecodeNode_WithAndForClauses(t *testing.T) {
	t.Parallel()
	doc, err := DecodeDocument([]byte(`{
	  "module": "M",
	  "functions": [{"name": "f", "arity": 0, "kind": "def", "clauses": [
	    {"params": [], "body": {"kind": "block", "exprs": [
	      {
	        "kind": "with",
	        "clauses": [
	          {"op": "<-", "pattern": {"kind": "var", "name": "a"}, "source": {"kind": "call", "name": "fetch", "args": []}},
	          {"op": "=", "pattern": {"kind": "var", "name": "b"}, "source": {"kind": "lit", "value": 1}}
	        ],
	        "body": {"kind": "var", "name": "a"},
	        "else": [{"pattern": {"kind": "var", "name": "err"}, "body": {"kind": "var", "name": "err"}}]
	      },
	      {
	        "kind": "for",
	        "clauses": [
	          {"pattern": {"kind": "var", "name": "x"}, "source": {"kind": "var", "name": "xs"}},
	          {"filter": {"kind": "call", "name": "even", "args": [{"kind": "var", "name": "x"}]}}
	        ],
	        "into": {"kind": "map", "entries": []},
	        "body": {"kind": "var", "name": "x"}
	      }
	    ]}}
	  ]}]
	}`))
	require.NoError(t, err)

	blk, ok := doc.Functions[0].Clauses[0].Body.(*Block)
	require.True(t, ok)
	require.Len(t, blk.Exprs, 2)

	w, ok := blk.Exprs[0].(*With)
	require.True(t, ok)
	require.Len(t, w.Clauses, 2)
	assert.Equal(t, "<-", w.Clauses[0].Op)
	assert.Equal(t, "=", w.Clauses[1].Op)
	require.Len(t, w.Else, 1)

	f, ok := blk.Exprs[1].(*For)
	require.True(t, ok)
	require.Len(t, f.Clauses, 2)
	assert.NotNil(t, f.Clauses[0].Pattern)
	assert.Nil(t, f.Clauses[1].Pattern)
	assert.NotNil(t, f.Clauses[1].Filter)
	_, ok = f.Into.(*Map)
	assert.True(t, ok)
}

func TestDecodeNode_ReceiveAfter(t *testing.T) {
	t.Parallel()
	doc, err := DecodeDocument([]byte(`{
	  "module": "M",
	  "functions": [{"name": "f", "arity": 0, "kind": "def", "clauses": [
	    {"params": [], "body": {
	      "kind": "receive",
	      "branches": [{"pattern": {"kind": "var", "name": "msg"}, "body": {"kind": "var", "name": "msg"}}],
	      "after": {"timeout": {"kind": "lit", "value": 5000}, "body": {"kind": "atom", "value": "timeout"}, "line": 9, "col": 3}
	    }}
	  ]}]
	}`))
	require.NoError(t, err)

	r, ok := doc.Functions[0].Clauses[0].Body.(*Receive)
	require.True(t, ok)
	require.Len(t, r.Branches, 1)
	require.NotNil(t, r.After)
	_, ok = r.After.Pattern.(*Lit)
	assert.True(t, ok)
	assert.Equal(t, Loc{Line: 9, Col: 3}, r.After.Pos)
}

func TestDecodeNode_AggregateLiterals(t *testing.T) {
	t.Parallel()
	doc, err := DecodeDocument([]byte(`{
	  "module": "M",
	  "functions": [{"name": "f", "arity": 0, "kind": "def", "clauses": [
	    {"params": [], "body": {"kind": "tuple", "items": [
	      {"kind": "list", "items": [{"kind": "var", "name": "h"}], "tail": {"kind": "var", "name": "t"}},
	      {"kind": "struct", "name": "User", "map": {"kind": "map", "entries": [
	        {"kind": "pair", "key": {"kind": "atom", "value": "name"}, "value": {"kind": "var", "name": "n"}}
	      ]}},
	      {"kind": "binary", "segments": [
	        {"value": {"kind": "var", "name": "len"}, "quals": ["integer"]},
	        {"value": {"kind": "var", "name": "body"}, "size": {"kind": "var", "name": "len"}, "quals": ["binary"]}
	      ]}
	    ]}}
	  ]}]
	}`))
	require.NoError(t, err)

	tup, ok := doc.Functions[0].Clauses[0].Body.(*Tuple)
	require.True(t, ok)
	require.Len(t, tup.Items, 3)

	l, ok := tup.Items[0].(*List)
	require.True(t, ok)
	assert.NotNil(t, l.Tail)

	s, ok := tup.Items[1].(*Struct)
	require.True(t, ok)
	assert.Equal(t, "User", s.Name)
	require.NotNil(t, s.Map)
	require.Len(t, s.Map.Entries, 1)

	b, ok := tup.Items[2].(*Binary)
	require.True(t, ok)
	require.Len(t, b.Segments, 2)
	assert.NotNil(t, b.Segments[1].Size)
	assert.Equal(t, []string{"binary"}, b.Segments[1].Quals)
}

func TestParseFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "worker.ast.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0o644))

	doc, err := ParseFile(path)
	require.NoError(t, err)
	// the document's own path wins over the filesystem path
	assert.Equal(t, "lib/my_app/worker.ex", doc.Path)
}

func TestParseFile_FallsBackToDiskPath(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bare.ast.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"module": "M"}`), 0o644))

	doc, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.Path)
}

func TestParseFile_Missing(t *testing.T) {
	t.Parallel()
	_, err := ParseFile(filepath.Join(t.TempDir(), "nope.ast.json"))
	require.Error(t, err)
}
