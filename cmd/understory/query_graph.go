package main

import (
	"strconv"

	"github.com/jward/understory"
	"github.com/spf13/cobra"
)

// --- Fact Graph Commands ---

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "List emitted facts with optional filters",
	RunE:  runFacts,
}

var factsAboutCmd = &cobra.Command{
	Use:   "facts-about <entity>",
	Short: "List facts where an entity is subject or object",
	Args:  cobra.ExactArgs(1),
	RunE:  runFactsAbout,
}

var neighborhoodCmd = &cobra.Command{
	Use:   "neighborhood <entity>",
	Short: "Show the fact graph around an entity",
	Long:  "Returns entities reachable from the given one within --max-depth hops, following facts in both directions.",
	Args:  cobra.ExactArgs(1),
	RunE:  runNeighborhood,
}

var mostCapturedCmd = &cobra.Command{
	Use:   "most-captured",
	Short: "Show the most-captured variable names",
	Args:  cobra.NoArgs,
	RunE:  runMostCaptured,
}

func init() {
	factsCmd.Flags().String("subject", "", "filter by subject")
	factsCmd.Flags().String("predicate", "", "filter by predicate")
	factsCmd.Flags().String("object", "", "filter by object")
	factsCmd.Flags().String("document", "", "filter by source document ID")

	neighborhoodCmd.Flags().Int("max-depth", 3, "maximum traversal depth (0-100)")

	mostCapturedCmd.Flags().Int("top", 10, "number of names to return")
}

func runFacts(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("facts", err)
	}
	defer s.Close()

	filter := understory.FactFilter{}
	if cmd.Flags().Changed("subject") {
		v, _ := cmd.Flags().GetString("subject")
		filter.Subject = &v
	}
	if cmd.Flags().Changed("predicate") {
		v, _ := cmd.Flags().GetString("predicate")
		filter.Predicate = &v
	}
	if cmd.Flags().Changed("object") {
		v, _ := cmd.Flags().GetString("object")
		filter.Object = &v
	}
	if cmd.Flags().Changed("document") {
		v, _ := cmd.Flags().GetString("document")
		id, parseErr := strconv.ParseInt(v, 10, 64)
		if parseErr != nil {
			return outputError("facts", parseErr)
		}
		filter.DocumentID = &id
	}

	qb := understory.NewQueryBuilder(s)
	result, err := qb.FactsMatching(filter, buildPagination())
	if err != nil {
		return outputError("facts", err)
	}

	cliFacts := make([]CLIFact, len(result.Items))
	for i, f := range result.Items {
		cliFacts[i] = factToCLI(f)
	}

	return outputResult(CLIResult{
		Command:    "facts",
		Results:    cliFacts,
		TotalCount: &result.TotalCount,
	})
}

func runFactsAbout(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("facts-about", err)
	}
	defer s.Close()

	qb := understory.NewQueryBuilder(s)
	facts, err := qb.FactsAbout(args[0])
	if err != nil {
		return outputError("facts-about", err)
	}

	cliFacts := make([]CLIFact, len(facts))
	for i, f := range facts {
		cliFacts[i] = factToCLI(f)
	}

	paged, total := paginateSlice(cliFacts)
	return outputResult(CLIResult{
		Command:    "facts-about",
		Results:    paged,
		TotalCount: &total,
	})
}

func runNeighborhood(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("neighborhood", err)
	}
	defer s.Close()

	maxDepth, _ := cmd.Flags().GetInt("max-depth")

	qb := understory.NewQueryBuilder(s)
	graph, err := qb.Neighborhood(args[0], maxDepth)
	if err != nil {
		return outputError("neighborhood", err)
	}

	if graph == nil {
		return outputResult(CLIResult{
			Command: "neighborhood",
			Results: nil,
		})
	}

	cliGraph := factGraphToCLI(graph)
	one := 1
	return outputResult(CLIResult{
		Command:    "neighborhood",
		Results:    cliGraph,
		TotalCount: &one,
	})
}

func runMostCaptured(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("most-captured", err)
	}
	defer s.Close()

	topN, _ := cmd.Flags().GetInt("top")

	qb := understory.NewQueryBuilder(s)
	names, err := qb.MostCaptured(topN)
	if err != nil {
		return outputError("most-captured", err)
	}

	cliNames := make([]CLICapturedName, len(names))
	for i, n := range names {
		cliNames[i] = CLICapturedName{
			Name:            n.Name,
			ClosureCount:    n.ClosureCount,
			TotalReferences: n.TotalReferences,
		}
	}

	count := len(cliNames)
	return outputResult(CLIResult{
		Command:    "most-captured",
		Results:    cliNames,
		TotalCount: &count,
	})
}

// --- Converters ---

func factGraphToCLI(g *understory.FactGraph) CLIFactGraph {
	nodes := make([]CLIFactGraphNode, len(g.Nodes))
	for i, n := range g.Nodes {
		nodes[i] = CLIFactGraphNode{
			Entity: n.Entity,
			Depth:  n.Depth,
		}
	}

	edges := make([]CLIFact, len(g.Edges))
	for i, e := range g.Edges {
		edges[i] = factToCLI(e)
	}

	return CLIFactGraph{
		Root:  g.Root,
		Nodes: nodes,
		Edges: edges,
		Depth: g.Depth,
	}
}
