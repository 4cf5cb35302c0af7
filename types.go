package understory

import "github.com/jward/understory/internal/store"

// Public type aliases for internal store types used in the QueryBuilder API.
// These are Go type aliases (=), identical to the internal types at compile
// time. External consumers use these names; no conversion is needed.

type Store = store.Store
type Document = store.Document
type Function = store.Function
type Closure = store.Closure
type ClosureScope = store.ClosureScope
type Reference = store.Reference
type FreeVariable = store.FreeVariable
type VariableSource = store.VariableSource
type Fact = store.Fact
type Location = store.Location
