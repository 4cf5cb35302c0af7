package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jward/understory"
	"github.com/jward/understory/scripts"
	"github.com/spf13/cobra"
)

var (
	flagDB     string
	flagFormat string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "understory",
	Short:         "Scope-aware closure capture analysis for expression documents",
	Long:          "Understory indexes pre-parsed expression documents, resolves which variables each closure captures from its enclosing scopes, and emits knowledge-graph facts via Risor scripts into a SQLite database for semantic queries.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .understory/index.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(emitCmd)
	rootCmd.AddCommand(queryCmd)
}

var (
	flagForce      bool
	flagModules    string
	flagSerial     bool
	flagScriptsDir string
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index expression documents for capture analysis",
	Long:  "Discovers .ast.json expression documents, resolves closure captures, runs the emit scripts, and writes results to the SQLite database.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

var emitCmd = &cobra.Command{
	Use:   "emit [path]",
	Short: "Re-run the emit scripts without reindexing",
	Long:  "Deletes stored facts and re-runs the Risor emit scripts over every indexed document. Useful after editing scripts.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEmit,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and reindex from scratch")
	indexCmd.Flags().StringVar(&flagModules, "modules", "", "comma-separated module filter (e.g. MyApp.Worker,MyApp.Queue)")
	indexCmd.Flags().BoolVar(&flagSerial, "serial", false, "disable the parallel analysis pipeline")
	indexCmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "", "load scripts from disk path instead of embedded")

	emitCmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "", "load scripts from disk path instead of embedded")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	// Determine the target directory.
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}

	// Resolve repo root and DB path.
	repoRoot := findRepoRoot(targetDir)
	dbPath := resolveDBPath(repoRoot)

	// Ensure .understory/ directory exists.
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dbDir, err)
	}

	// Handle --force: delete the DB file entirely.
	if flagForce {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing database for --force: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Cleared database: %s\n", dbPath)
	}

	// Build engine options.
	var opts []understory.Option
	if flagModules != "" {
		mods := strings.Split(flagModules, ",")
		for i := range mods {
			mods[i] = strings.TrimSpace(mods[i])
		}
		opts = append(opts, understory.WithModules(mods...))
	}
	if flagSerial {
		opts = append(opts, understory.WithParallel(false))
	}

	// Script source: --scripts-dir overrides embedded FS.
	scriptsDir := flagScriptsDir
	if scriptsDir == "" {
		opts = append(opts, understory.WithScriptsFS(scripts.FS))
	}

	engine, err := understory.New(dbPath, scriptsDir, opts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	ctx := context.Background()

	// Run capture analysis.
	indexStart := time.Now()
	indexStats, err := engine.IndexDirectory(ctx, targetDir)
	if err != nil {
		return fmt.Errorf("indexing: %w", err)
	}
	indexDuration := time.Since(indexStart)

	// Run fact emission.
	emitStart := time.Now()
	emitStats, err := engine.Emit(ctx)
	if err != nil {
		return fmt.Errorf("emitting: %w", err)
	}
	emitDuration := time.Since(emitStart)

	totalDuration := time.Since(start)

	// Print timing summary to stderr.
	fmt.Fprintf(os.Stderr, "Indexed %s in %s (index: %s, emit: %s)\n",
		targetDir,
		totalDuration.Round(time.Millisecond),
		indexDuration.Round(time.Millisecond),
		emitDuration.Round(time.Millisecond),
	)
	fmt.Fprintf(os.Stderr, "Documents: %d indexed, %d skipped, %d failed\n",
		indexStats.Indexed, indexStats.Skipped, indexStats.Failed)
	fmt.Fprintf(os.Stderr, "Facts: %d emitted by %d script(s)\n",
		emitStats.FactsEmitted, emitStats.ScriptsRun)
	fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)

	return nil
}

func runEmit(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	repoRoot := findRepoRoot(targetDir)
	dbPath := resolveDBPath(repoRoot)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("database not found: %s (run 'understory index' first)", dbPath)
	}

	var opts []understory.Option
	scriptsDir := flagScriptsDir
	if scriptsDir == "" {
		opts = append(opts, understory.WithScriptsFS(scripts.FS))
	}

	engine, err := understory.New(dbPath, scriptsDir, opts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	stats, err := engine.Emit(context.Background())
	if err != nil {
		return fmt.Errorf("emitting: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Emitted %d fact(s) for %d document(s) in %s (%d script(s))\n",
		stats.FactsEmitted, stats.Documents,
		time.Since(start).Round(time.Millisecond), stats.ScriptsRun)
	fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)

	return nil
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding .git.
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag or the default.
func resolveDBPath(repoRoot string) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(repoRoot, flagDB)
	}
	return filepath.Join(repoRoot, ".understory", "index.db")
}
