package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/jward/understory"
	"github.com/jward/understory/internal/store"
	"github.com/spf13/cobra"
)

var (
	flagLimit  int
	flagOffset int
	flagSort   string
	flagOrder  string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the capture index",
	Long:  "Run queries against an indexed project. All line and column numbers are 1-based source positions.",
}

func init() {
	queryCmd.PersistentFlags().IntVar(&flagLimit, "limit", 50, "pagination limit (max 500)")
	queryCmd.PersistentFlags().IntVar(&flagOffset, "offset", 0, "pagination offset")
	queryCmd.PersistentFlags().StringVar(&flagSort, "sort", "", "sort field: module|line|arity|capture_count|capture_depth")
	queryCmd.PersistentFlags().StringVar(&flagOrder, "order", "asc", "sort order: asc|desc")

	queryCmd.AddCommand(closureAtCmd)
	queryCmd.AddCommand(closureDetailCmd)
	queryCmd.AddCommand(freeVarsCmd)
	queryCmd.AddCommand(sourcesCmd)
	queryCmd.AddCommand(scopeChainCmd)
	queryCmd.AddCommand(closuresCmd)
	queryCmd.AddCommand(capturingCmd)
	queryCmd.AddCommand(captureSitesCmd)
	queryCmd.AddCommand(searchCmd)
	queryCmd.AddCommand(documentsCmd)
	queryCmd.AddCommand(functionsCmd)
	queryCmd.AddCommand(modulesCmd)
	queryCmd.AddCommand(summaryCmd)
	queryCmd.AddCommand(factsCmd)
	queryCmd.AddCommand(factsAboutCmd)
	queryCmd.AddCommand(neighborhoodCmd)
	queryCmd.AddCommand(mostCapturedCmd)
}

// --- Helpers ---

// openStore opens the Store from the --db flag path (or default).
func openStore() (*store.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	repoRoot := findRepoRoot(cwd)
	dbPath := resolveDBPath(repoRoot)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'understory index' first)", dbPath)
	}

	return store.NewStore(dbPath)
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// resolveClosureID resolves a closure ID from either a positional argument
// or the --closure flag.
func resolveClosureID(cmd *cobra.Command, args []string) (int64, error) {
	closureFlag, _ := cmd.Flags().GetInt64("closure")
	if closureFlag != 0 {
		return closureFlag, nil
	}

	if len(args) < 1 {
		return 0, fmt.Errorf("requires a <closure-id> argument or --closure flag")
	}
	id, err := parseIntArg(args[0], "closure ID")
	if err != nil {
		return 0, err
	}
	return int64(id), nil
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// buildPagination creates a Pagination from CLI flags.
func buildPagination() understory.Pagination {
	return understory.Pagination{
		Limit:  flagLimit,
		Offset: flagOffset,
	}
}

// buildSort creates a Sort from CLI flags.
func buildSort() understory.Sort {
	var field understory.SortField
	switch flagSort {
	case "line":
		field = understory.SortByLine
	case "arity":
		field = understory.SortByArity
	case "capture_count":
		field = understory.SortByCaptureCount
	case "capture_depth":
		field = understory.SortByCaptureDepth
	default:
		field = understory.SortByModule
	}

	var order understory.SortOrder
	switch flagOrder {
	case "desc":
		order = understory.Desc
	default:
		order = understory.Asc
	}

	return understory.Sort{Field: field, Order: order}
}

// paginateSlice applies the --offset and --limit flags to an already-built
// slice, returning the page and the total length.
func paginateSlice[T any](items []T) ([]T, int) {
	total := len(items)
	offset := flagOffset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	limit := flagLimit
	if limit <= 0 {
		limit = 50
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return items[offset:end], total
}

// --- Converters ---

// closureResultToCLI converts an understory.ClosureResult to a CLIClosure.
func closureResultToCLI(cr understory.ClosureResult) CLIClosure {
	return CLIClosure{
		ID:                       cr.ID,
		Module:                   cr.Module,
		Path:                     cr.DocumentPath,
		Function:                 cr.FunctionName,
		Line:                     cr.Line,
		Col:                      cr.Col,
		Arity:                    cr.Arity,
		ClauseCount:              cr.ClauseCount,
		BoundNames:               cr.BoundNames,
		ReferencedNames:          cr.ReferencedNames,
		HasCaptures:              cr.HasCaptures,
		CaptureCount:             cr.TotalCaptureCount,
		CaptureDepth:             cr.CaptureDepth,
		CrossesFunctionBoundary:  cr.CrossesFunctionBoundary,
		CapturesModuleAttributes: cr.CapturesModuleAttributes,
	}
}

// freeVariableToCLI converts a store.FreeVariable to a CLIFreeVariable.
func freeVariableToCLI(fv store.FreeVariable) CLIFreeVariable {
	locs := make([]CLILocation, len(fv.Locations))
	for i, loc := range fv.Locations {
		locs[i] = CLILocation{Line: loc.Line, Col: loc.Col}
	}
	return CLIFreeVariable{
		ClosureID:      fv.ClosureID,
		Name:           fv.Name,
		ReferenceCount: fv.ReferenceCount,
		Locations:      locs,
	}
}

// scopeToCLI converts a store.ClosureScope to a CLIScopeLevel.
func scopeToCLI(sc store.ClosureScope) CLIScopeLevel {
	return CLIScopeLevel{
		Level:       sc.Level,
		Kind:        sc.Kind,
		Name:        sc.Name,
		Names:       sc.Names,
		ParentLevel: sc.ParentLevel,
	}
}

// sourceToCLI converts a store.VariableSource to a CLIVariableSource.
func sourceToCLI(src store.VariableSource) CLIVariableSource {
	return CLIVariableSource{
		Name:       src.Name,
		ScopeLevel: src.ScopeLevel,
		ScopeKind:  src.ScopeKind,
		ScopeName:  src.ScopeName,
		Depth:      src.Depth,
	}
}

// factToCLI converts a store.Fact to a CLIFact.
func factToCLI(f store.Fact) CLIFact {
	return CLIFact{
		ID:         f.ID,
		Subject:    f.Subject,
		Predicate:  f.Predicate,
		Object:     f.Object,
		DocumentID: f.DocumentID,
	}
}

// closureDetailToCLI converts an understory.ClosureDetail to a CLIClosureDetail.
func closureDetailToCLI(d *understory.ClosureDetail) CLIClosureDetail {
	fvs := make([]CLIFreeVariable, len(d.FreeVariables))
	for i, fv := range d.FreeVariables {
		fvs[i] = freeVariableToCLI(fv)
	}
	refs := make([]CLIReference, len(d.References))
	for i, r := range d.References {
		refs[i] = CLIReference{Name: r.Name, Line: r.Line, Col: r.Col}
	}
	scopes := make([]CLIScopeLevel, len(d.Scopes))
	for i, sc := range d.Scopes {
		scopes[i] = scopeToCLI(sc)
	}
	sources := make([]CLIVariableSource, len(d.Sources))
	for i, src := range d.Sources {
		sources[i] = sourceToCLI(src)
	}
	return CLIClosureDetail{
		Closure:       closureResultToCLI(d.Closure),
		FreeVariables: fvs,
		References:    refs,
		Scopes:        scopes,
		Sources:       sources,
	}
}

// --- Position-Based Commands ---

var closureAtCmd = &cobra.Command{
	Use:   "closure-at <module> <line> <col>",
	Short: "Find the closure at a source position",
	Long:  "Returns the innermost closure on the given line whose head starts at or before the column, with its full capture analysis.",
	Args:  cobra.ExactArgs(3),
	RunE:  runClosureAt,
}

func runClosureAt(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("closure-at", err)
	}
	defer s.Close()

	module := args[0]
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return outputError("closure-at", err)
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return outputError("closure-at", err)
	}

	qb := understory.NewQueryBuilder(s)
	detail, err := qb.ClosureAt(module, line, col)
	if err != nil {
		return outputError("closure-at", err)
	}

	if detail == nil {
		return outputResult(CLIResult{
			Command: "closure-at",
			Results: nil,
		})
	}

	one := 1
	return outputResult(CLIResult{
		Command:    "closure-at",
		Results:    closureDetailToCLI(detail),
		TotalCount: &one,
	})
}

// --- Closure ID Commands ---

var closureDetailCmd = &cobra.Command{
	Use:   "closure-detail [<closure-id>]",
	Short: "Show a closure's full capture analysis",
	Long:  "Accepts either a <closure-id> positional argument or --closure <id>.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClosureDetail,
}

func init() {
	closureDetailCmd.Flags().Int64("closure", 0, "closure ID to query")
}

func runClosureDetail(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("closure-detail", err)
	}
	defer s.Close()

	id, err := resolveClosureID(cmd, args)
	if err != nil {
		return outputError("closure-detail", err)
	}

	qb := understory.NewQueryBuilder(s)
	detail, err := qb.ClosureDetail(id)
	if err != nil {
		return outputError("closure-detail", err)
	}

	if detail == nil {
		return outputResult(CLIResult{
			Command: "closure-detail",
			Results: nil,
		})
	}

	one := 1
	return outputResult(CLIResult{
		Command:    "closure-detail",
		Results:    closureDetailToCLI(detail),
		TotalCount: &one,
	})
}

var freeVarsCmd = &cobra.Command{
	Use:   "free-vars [<closure-id>]",
	Short: "List the variables a closure captures",
	Long:  "Accepts either a <closure-id> positional argument or --closure <id>.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runFreeVars,
}

func init() {
	freeVarsCmd.Flags().Int64("closure", 0, "closure ID to query")
}

func runFreeVars(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("free-vars", err)
	}
	defer s.Close()

	id, err := resolveClosureID(cmd, args)
	if err != nil {
		return outputError("free-vars", err)
	}

	qb := understory.NewQueryBuilder(s)
	fvs, err := qb.CapturesOf(id)
	if err != nil {
		return outputError("free-vars", err)
	}

	cliFvs := make([]CLIFreeVariable, len(fvs))
	for i, fv := range fvs {
		cliFvs[i] = freeVariableToCLI(fv)
	}

	count := len(cliFvs)
	return outputResult(CLIResult{
		Command:    "free-vars",
		Results:    cliFvs,
		TotalCount: &count,
	})
}

var sourcesCmd = &cobra.Command{
	Use:   "sources [<closure-id>]",
	Short: "Show which scope provides each captured variable",
	Long:  "Accepts either a <closure-id> positional argument or --closure <id>.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSources,
}

func init() {
	sourcesCmd.Flags().Int64("closure", 0, "closure ID to query")
}

func runSources(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("sources", err)
	}
	defer s.Close()

	id, err := resolveClosureID(cmd, args)
	if err != nil {
		return outputError("sources", err)
	}

	qb := understory.NewQueryBuilder(s)
	sources, err := qb.SourcesOf(id)
	if err != nil {
		return outputError("sources", err)
	}

	cliSources := make([]CLIVariableSource, len(sources))
	for i, src := range sources {
		cliSources[i] = sourceToCLI(src)
	}

	count := len(cliSources)
	return outputResult(CLIResult{
		Command:    "sources",
		Results:    cliSources,
		TotalCount: &count,
	})
}

var scopeChainCmd = &cobra.Command{
	Use:   "scope-chain [<closure-id>]",
	Short: "Show a closure's enclosing scope chain",
	Long:  "Lists the closure's lexical scopes outermost first. Accepts either a <closure-id> positional argument or --closure <id>.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScopeChain,
}

func init() {
	scopeChainCmd.Flags().Int64("closure", 0, "closure ID to query")
}

func runScopeChain(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("scope-chain", err)
	}
	defer s.Close()

	id, err := resolveClosureID(cmd, args)
	if err != nil {
		return outputError("scope-chain", err)
	}

	qb := understory.NewQueryBuilder(s)
	scopes, err := qb.ScopeChainOf(id)
	if err != nil {
		return outputError("scope-chain", err)
	}

	cliScopes := make([]CLIScopeLevel, len(scopes))
	for i, sc := range scopes {
		cliScopes[i] = scopeToCLI(sc)
	}

	count := len(cliScopes)
	return outputResult(CLIResult{
		Command:    "scope-chain",
		Results:    cliScopes,
		TotalCount: &count,
	})
}
