package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// formatClosuresText formats CLIClosure results as aligned columns.
func formatClosuresText(w io.Writer, closures []CLIClosure) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMODULE\tFUNCTION\tLINE\tCOL\tCAPTURES\tDEPTH")
	for _, c := range closures {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%d\n",
			c.ID, c.Module, c.Function, c.Line, c.Col, c.CaptureCount, c.CaptureDepth)
	}
	tw.Flush()
}

// formatFreeVariablesText formats CLIFreeVariable results as aligned columns.
func formatFreeVariablesText(w io.Writer, fvs []CLIFreeVariable) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tREFS\tLOCATIONS")
	for _, fv := range fvs {
		locs := make([]string, len(fv.Locations))
		for i, loc := range fv.Locations {
			locs[i] = fmt.Sprintf("%d:%d", loc.Line, loc.Col)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", fv.Name, fv.ReferenceCount, strings.Join(locs, " "))
	}
	tw.Flush()
}

// formatScopeChainText formats CLIScopeLevel results, outermost first.
func formatScopeChainText(w io.Writer, scopes []CLIScopeLevel) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LEVEL\tKIND\tNAME\tBINDS")
	for _, sc := range scopes {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n",
			sc.Level, sc.Kind, sc.Name, strings.Join(sc.Names, " "))
	}
	tw.Flush()
}

// formatSourcesText formats CLIVariableSource results as aligned columns.
func formatSourcesText(w io.Writer, sources []CLIVariableSource) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSCOPE\tKIND\tDEPTH")
	for _, src := range sources {
		fmt.Fprintf(tw, "%s\t%d (%s)\t%s\t%d\n",
			src.Name, src.ScopeLevel, src.ScopeName, src.ScopeKind, src.Depth)
	}
	tw.Flush()
}

// formatCaptureSitesText formats CLICaptureSite results as "path:line:col" lines.
func formatCaptureSitesText(w io.Writer, sites []CLICaptureSite) {
	for _, site := range sites {
		fmt.Fprintf(w, "%s:%d:%d\t%s\t(closure #%d)\n",
			site.Path, site.Line, site.Col, site.Name, site.ClosureID)
	}
}

// formatCapturedNamesText formats CLICapturedName results as aligned columns.
func formatCapturedNamesText(w io.Writer, names []CLICapturedName) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCLOSURES\tREFS")
	for _, n := range names {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", n.Name, n.ClosureCount, n.TotalReferences)
	}
	tw.Flush()
}

// formatDocumentsText formats CLIDocument results as aligned columns.
func formatDocumentsText(w io.Writer, docs []CLIDocument) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMODULE\tPATH")
	for _, d := range docs {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", d.ID, d.Module, d.Path)
	}
	tw.Flush()
}

// formatFunctionsText formats CLIFunction results as aligned columns.
func formatFunctionsText(w io.Writer, fns []CLIFunction) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tLINE")
	for _, fn := range fns {
		fmt.Fprintf(tw, "%d\t%s/%d\t%s\t%d\n", fn.ID, fn.Name, fn.Arity, fn.Kind, fn.Line)
	}
	tw.Flush()
}

// formatFactsText formats CLIFact results as "subject predicate object" lines.
func formatFactsText(w io.Writer, facts []CLIFact) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBJECT\tPREDICATE\tOBJECT")
	for _, f := range facts {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Subject, f.Predicate, f.Object)
	}
	tw.Flush()
}

// formatClosureDetailText formats a CLIClosureDetail as readable sections.
func formatClosureDetailText(w io.Writer, detail CLIClosureDetail) {
	c := detail.Closure
	where := c.Module
	if c.Function != "" {
		where = fmt.Sprintf("%s.%s", c.Module, c.Function)
	}
	fmt.Fprintf(w, "Closure #%d in %s at %s:%d:%d\n", c.ID, where, c.Path, c.Line, c.Col)
	fmt.Fprintf(w, "Arity: %d, clauses: %d\n", c.Arity, c.ClauseCount)
	if len(c.BoundNames) > 0 {
		fmt.Fprintf(w, "Binds: %s\n", strings.Join(c.BoundNames, " "))
	}
	fmt.Fprintln(w)

	if len(detail.FreeVariables) > 0 {
		fmt.Fprintln(w, "Captured Variables:")
		formatFreeVariablesText(w, detail.FreeVariables)
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "No captures.")
	}

	if len(detail.Sources) > 0 {
		fmt.Fprintln(w, "Capture Sources:")
		formatSourcesText(w, detail.Sources)
		fmt.Fprintln(w)
	}

	if len(detail.Scopes) > 0 {
		fmt.Fprintln(w, "Scope Chain (outermost first):")
		formatScopeChainText(w, detail.Scopes)
	}
}

// formatFactGraphText formats a CLIFactGraph as a node list plus edge list.
func formatFactGraphText(w io.Writer, graph CLIFactGraph) {
	fmt.Fprintf(w, "Neighborhood of %s (depth %d)\n", graph.Root, graph.Depth)
	fmt.Fprintln(w)

	if len(graph.Nodes) > 0 {
		fmt.Fprintln(w, "Entities:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, n := range graph.Nodes {
			fmt.Fprintf(tw, "  %d\t%s\n", n.Depth, n.Entity)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}

	if len(graph.Edges) > 0 {
		fmt.Fprintln(w, "Facts:")
		formatFactsText(w, graph.Edges)
	}
}

// formatModuleSummariesText formats CLIModuleSummary results as aligned columns.
func formatModuleSummariesText(w io.Writer, mods []CLIModuleSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODULE\tFUNCTIONS\tCLOSURES\tCAPTURING\tMAX DEPTH")
	for _, m := range mods {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n",
			m.Module, m.Functions, m.Closures, m.CapturingClosures, m.MaxCaptureDepth)
	}
	tw.Flush()
}

// formatSummaryText formats CLIProjectSummary as readable text.
func formatSummaryText(w io.Writer, summary CLIProjectSummary) {
	fmt.Fprintln(w, "Project Summary")
	fmt.Fprintln(w, "===============")
	fmt.Fprintf(w, "Documents: %d\n", summary.Documents)
	fmt.Fprintf(w, "Functions: %d\n", summary.Functions)
	fmt.Fprintf(w, "Closures: %d (%d capturing)\n", summary.Closures, summary.CapturingClosures)
	fmt.Fprintf(w, "Boundary crossings: %d, attribute captures: %d\n",
		summary.BoundaryCrossings, summary.AttributeCaptures)
	fmt.Fprintf(w, "Max capture depth: %d\n", summary.MaxCaptureDepth)
	fmt.Fprintf(w, "Facts: %d\n", summary.Facts)
	fmt.Fprintln(w)

	if len(summary.Modules) > 0 {
		fmt.Fprintln(w, "Modules:")
		formatModuleSummariesText(w, summary.Modules)
		fmt.Fprintln(w)
	}

	if len(summary.MostCaptured) > 0 {
		fmt.Fprintln(w, "Most Captured Variables:")
		formatCapturedNamesText(w, summary.MostCaptured)
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type. It writes to os.Stdout.
func outputResultText(result CLIResult) error {
	w := io.Writer(os.Stdout)

	switch v := result.Results.(type) {
	case []CLIClosure:
		formatClosuresText(w, v)
	case CLIClosureDetail:
		formatClosureDetailText(w, v)
	case []CLIFreeVariable:
		formatFreeVariablesText(w, v)
	case []CLIVariableSource:
		formatSourcesText(w, v)
	case []CLIScopeLevel:
		formatScopeChainText(w, v)
	case []CLICaptureSite:
		formatCaptureSitesText(w, v)
	case []CLICapturedName:
		formatCapturedNamesText(w, v)
	case []CLIDocument:
		formatDocumentsText(w, v)
	case []CLIFunction:
		formatFunctionsText(w, v)
	case []CLIFact:
		formatFactsText(w, v)
	case CLIFactGraph:
		formatFactGraphText(w, v)
	case []CLIModuleSummary:
		formatModuleSummariesText(w, v)
	case CLIProjectSummary:
		formatSummaryText(w, v)
	case nil:
		// No output for nil results (e.g., closure-at with no match).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	// Pagination footer.
	if result.TotalCount != nil {
		count := *result.TotalCount
		shown := resultLen(result.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}

	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLIClosure:
		return len(r)
	case []CLIFreeVariable:
		return len(r)
	case []CLIVariableSource:
		return len(r)
	case []CLIScopeLevel:
		return len(r)
	case []CLICaptureSite:
		return len(r)
	case []CLICapturedName:
		return len(r)
	case []CLIDocument:
		return len(r)
	case []CLIFunction:
		return len(r)
	case []CLIFact:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
