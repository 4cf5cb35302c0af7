package main

import (
	"github.com/jward/understory"
	"github.com/spf13/cobra"
)

// --- Discovery / Search Commands ---

var (
	flagModule     string
	flagPathPrefix string
	flagFunction   string
	flagCaptures   string
)

var closuresCmd = &cobra.Command{
	Use:   "closures",
	Short: "List closures with optional filters",
	RunE:  runClosures,
}

func init() {
	closuresCmd.Flags().StringVar(&flagModule, "module", "", "filter by module (e.g. MyApp.Worker)")
	closuresCmd.Flags().StringVar(&flagPathPrefix, "path-prefix", "", "filter by document path prefix")
	closuresCmd.Flags().StringVar(&flagFunction, "function", "", "filter by enclosing function name")
	closuresCmd.Flags().StringVar(&flagCaptures, "captures", "", "only closures that capture this variable name")
	closuresCmd.Flags().Bool("has-captures", false, "filter by whether the closure captures anything")
	closuresCmd.Flags().Bool("crosses-boundary", false, "filter by function-boundary crossing")
	closuresCmd.Flags().Bool("captures-attributes", false, "filter by module attribute capture")
	closuresCmd.Flags().Int("min-depth", 0, "minimum capture depth")
}

func runClosures(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("closures", err)
	}
	defer s.Close()

	filter := understory.ClosureFilter{}
	if flagModule != "" {
		filter.Module = &flagModule
	}
	if flagPathPrefix != "" {
		filter.PathPrefix = &flagPathPrefix
	}
	if flagFunction != "" {
		filter.FunctionName = &flagFunction
	}
	if flagCaptures != "" {
		filter.CapturesName = &flagCaptures
	}
	if cmd.Flags().Changed("has-captures") {
		v, _ := cmd.Flags().GetBool("has-captures")
		filter.HasCaptures = &v
	}
	if cmd.Flags().Changed("crosses-boundary") {
		v, _ := cmd.Flags().GetBool("crosses-boundary")
		filter.CrossesFunctionBoundary = &v
	}
	if cmd.Flags().Changed("captures-attributes") {
		v, _ := cmd.Flags().GetBool("captures-attributes")
		filter.CapturesModuleAttributes = &v
	}
	if cmd.Flags().Changed("min-depth") {
		v, _ := cmd.Flags().GetInt("min-depth")
		filter.MinCaptureDepth = intPtr(v)
	}

	qb := understory.NewQueryBuilder(s)
	result, err := qb.Closures(filter, buildSort(), buildPagination())
	if err != nil {
		return outputError("closures", err)
	}

	cliClosures := make([]CLIClosure, len(result.Items))
	for i, cr := range result.Items {
		cliClosures[i] = closureResultToCLI(cr)
	}

	return outputResult(CLIResult{
		Command:    "closures",
		Results:    cliClosures,
		TotalCount: &result.TotalCount,
	})
}

var capturingCmd = &cobra.Command{
	Use:   "capturing <name>",
	Short: "List closures that capture a variable name",
	Args:  cobra.ExactArgs(1),
	RunE:  runCapturing,
}

func runCapturing(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("capturing", err)
	}
	defer s.Close()

	qb := understory.NewQueryBuilder(s)
	closures, err := qb.CapturingClosures(args[0])
	if err != nil {
		return outputError("capturing", err)
	}

	cliClosures := make([]CLIClosure, len(closures))
	for i, cr := range closures {
		cliClosures[i] = closureResultToCLI(cr)
	}

	paged, total := paginateSlice(cliClosures)
	return outputResult(CLIResult{
		Command:    "capturing",
		Results:    paged,
		TotalCount: &total,
	})
}

var captureSitesCmd = &cobra.Command{
	Use:   "capture-sites <name>",
	Short: "List every source position where a variable is captured",
	Args:  cobra.ExactArgs(1),
	RunE:  runCaptureSites,
}

func runCaptureSites(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("capture-sites", err)
	}
	defer s.Close()

	qb := understory.NewQueryBuilder(s)
	sites, err := qb.CaptureSites(args[0])
	if err != nil {
		return outputError("capture-sites", err)
	}

	cliSites := make([]CLICaptureSite, len(sites))
	for i, site := range sites {
		cliSites[i] = CLICaptureSite{
			ClosureID: site.ClosureID,
			Module:    site.Module,
			Path:      site.Path,
			Name:      site.Name,
			Line:      site.Line,
			Col:       site.Col,
		}
	}

	paged, total := paginateSlice(cliSites)
	return outputResult(CLIResult{
		Command:    "capture-sites",
		Results:    paged,
		TotalCount: &total,
	})
}

var searchCmd = &cobra.Command{
	Use:   "search <pattern>",
	Short: "Search captured variable names by glob pattern",
	Long:  "Search for captured variable names matching a glob pattern. Use * as wildcard (e.g. 'user_*').",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("search", err)
	}
	defer s.Close()

	qb := understory.NewQueryBuilder(s)
	result, err := qb.SearchCapturedNames(args[0], buildPagination())
	if err != nil {
		return outputError("search", err)
	}

	cliNames := make([]CLICapturedName, len(result.Items))
	for i, n := range result.Items {
		cliNames[i] = CLICapturedName{
			Name:            n.Name,
			ClosureCount:    n.ClosureCount,
			TotalReferences: n.TotalReferences,
		}
	}

	return outputResult(CLIResult{
		Command:    "search",
		Results:    cliNames,
		TotalCount: &result.TotalCount,
	})
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List indexed documents",
	RunE:  runDocuments,
}

func runDocuments(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("documents", err)
	}
	defer s.Close()

	docs, err := s.Documents()
	if err != nil {
		return outputError("documents", err)
	}

	cliDocs := make([]CLIDocument, len(docs))
	for i, d := range docs {
		cliDocs[i] = CLIDocument{
			ID:     d.ID,
			Path:   d.Path,
			Module: d.Module,
		}
	}

	paged, total := paginateSlice(cliDocs)
	return outputResult(CLIResult{
		Command:    "documents",
		Results:    paged,
		TotalCount: &total,
	})
}

var functionsCmd = &cobra.Command{
	Use:   "functions <module>",
	Short: "List the named functions of a module",
	Args:  cobra.ExactArgs(1),
	RunE:  runFunctions,
}

func runFunctions(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("functions", err)
	}
	defer s.Close()

	qb := understory.NewQueryBuilder(s)
	fns, err := qb.FunctionsIn(args[0])
	if err != nil {
		return outputError("functions", err)
	}

	cliFns := make([]CLIFunction, len(fns))
	for i, fn := range fns {
		cliFns[i] = CLIFunction{
			ID:    fn.ID,
			Name:  fn.Name,
			Arity: fn.Arity,
			Kind:  fn.Kind,
			Line:  fn.Line,
		}
	}

	paged, total := paginateSlice(cliFns)
	return outputResult(CLIResult{
		Command:    "functions",
		Results:    paged,
		TotalCount: &total,
	})
}

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "Show per-module capture statistics",
	RunE:  runModules,
}

func runModules(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("modules", err)
	}
	defer s.Close()

	qb := understory.NewQueryBuilder(s)
	mods, err := qb.ModuleSummaries()
	if err != nil {
		return outputError("modules", err)
	}

	cliMods := make([]CLIModuleSummary, len(mods))
	for i, m := range mods {
		cliMods[i] = moduleSummaryToCLI(m)
	}

	paged, total := paginateSlice(cliMods)
	return outputResult(CLIResult{
		Command:    "modules",
		Results:    paged,
		TotalCount: &total,
	})
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show project-level capture statistics",
	RunE:  runSummary,
}

func init() {
	summaryCmd.Flags().Int("top", 5, "number of most-captured names to include")
}

func runSummary(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("summary", err)
	}
	defer s.Close()

	top, _ := cmd.Flags().GetInt("top")

	qb := understory.NewQueryBuilder(s)
	summary, err := qb.ProjectSummary(top)
	if err != nil {
		return outputError("summary", err)
	}

	cliSummary := CLIProjectSummary{
		Documents:         summary.Documents,
		Functions:         summary.Functions,
		Closures:          summary.Closures,
		CapturingClosures: summary.CapturingClosures,
		BoundaryCrossings: summary.BoundaryCrossings,
		AttributeCaptures: summary.AttributeCaptures,
		MaxCaptureDepth:   summary.MaxCaptureDepth,
		Facts:             summary.Facts,
	}

	cliSummary.Modules = make([]CLIModuleSummary, len(summary.Modules))
	for i, m := range summary.Modules {
		cliSummary.Modules[i] = moduleSummaryToCLI(m)
	}

	cliSummary.MostCaptured = make([]CLICapturedName, len(summary.MostCaptured))
	for i, n := range summary.MostCaptured {
		cliSummary.MostCaptured[i] = CLICapturedName{
			Name:            n.Name,
			ClosureCount:    n.ClosureCount,
			TotalReferences: n.TotalReferences,
		}
	}

	return outputResult(CLIResult{
		Command: "summary",
		Results: cliSummary,
	})
}

// moduleSummaryToCLI converts an understory.ModuleSummary to a CLIModuleSummary.
func moduleSummaryToCLI(m understory.ModuleSummary) CLIModuleSummary {
	return CLIModuleSummary{
		Module:            m.Module,
		Path:              m.Path,
		Functions:         m.Functions,
		Closures:          m.Closures,
		CapturingClosures: m.CapturingClosures,
		MaxCaptureDepth:   m.MaxCaptureDepth,
	}
}

// intPtr returns a pointer to an int value.
func intPtr(i int) *int { return &i }
