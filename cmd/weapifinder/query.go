package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/praetorian-inc/weapifinder/internal/config"
	"github.com/praetorian-inc/weapifinder/pkg/corpus"
	"github.com/praetorian-inc/weapifinder/pkg/filter"
	"github.com/praetorian-inc/weapifinder/pkg/metadata"
	"github.com/praetorian-inc/weapifinder/pkg/queryengine"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/semaphore"
)

// ioCeiling bounds simultaneous extension-root reads to 500 directory+file
// operations at a time.
const ioCeiling = 500

var (
	queryFilter        string
	queryAsync         bool
	queryPermissions   []string
	queryManifestVers  []string
	queryMinUserCount  int64
	queryProgressEvery int
)

var queryCmd = &cobra.Command{
	Use:   "query <dotted.query> [<dotted.query> ...]",
	Short: "Scan a corpus of extension roots for usage of the given dotted API queries",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryFilter, "filter", "", "filter flavor: permissions, manifest, or user-count")
	queryCmd.Flags().BoolVar(&queryAsync, "async", false, "scan with the pooled AsyncMatcher instead of the synchronous Matcher")
	queryCmd.Flags().StringSliceVar(&queryPermissions, "permissions", nil, "required manifest permissions (filter=permissions)")
	queryCmd.Flags().StringSliceVar(&queryManifestVers, "manifest-version", nil, "allowed manifest_version values (filter=manifest)")
	queryCmd.Flags().Int64Var(&queryMinUserCount, "min-user-count", 0, "minimum AMO user count (filter=user-count)")
	queryCmd.Flags().IntVar(&queryProgressEvery, "progress-every", 1000, "write a progress line to stderr every N processed extensions (0 disables)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	v := viper.New()
	v.BindPFlag("filter", cmd.Flags().Lookup("filter"))
	v.BindPFlag("async", cmd.Flags().Lookup("async"))
	v.Set("queries", args)

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg.Filter = queryFilter
	cfg.Async = queryAsync
	cfg.Queries = args

	filterFunc, err := buildFilter(cfg)
	if err != nil {
		return err
	}

	compiler := queryengine.NewCompiler()
	for _, q := range cfg.Queries {
		if err := compiler.AddQuery(q); err != nil {
			return fmt.Errorf("weapifinder: compile query %q: %w", q, err)
		}
	}

	ctx := context.Background()
	reporter := newProgressReporter(cmd.ErrOrStderr(), queryProgressEvery)
	defer reporter.Close()

	if cfg.Async {
		return runAsync(ctx, cmd, compiler, cfg, filterFunc, reporter)
	}
	return runSync(ctx, cmd, compiler, filterFunc, reporter)
}

// buildFilter resolves cfg.Filter into a filter.Func, loading AMO metadata
// if the user-count flavor is selected.
func buildFilter(cfg config.Config) (filter.Func, error) {
	switch cfg.Filter {
	case "":
		return nil, nil
	case config.FilterPermissions:
		return filter.ByPermissions(queryPermissions), nil
	case config.FilterManifest:
		return filter.ByManifestVersion(queryManifestVers), nil
	case config.FilterUserCount:
		store, err := metadata.Load(cfg.MetadataPath)
		if err != nil {
			if cfg.IgnoreMissingAddon {
				return nil, nil
			}
			return nil, err
		}
		return filter.ByUserCount(store, queryMinUserCount, extensionID), nil
	default:
		return nil, fmt.Errorf("weapifinder: unknown filter flavor %q", cfg.Filter)
	}
}

// extensionID derives an AMO extension id from an extension root's path:
// the final path component, by corpus layout convention.
func extensionID(ext corpus.Extension) string {
	parts := strings.Split(strings.TrimRight(ext.Root, "/"), "/")
	return parts[len(parts)-1]
}

// runSync scans each stdin-named extension root with a fresh synchronous
// Matcher, bounded by a weighted semaphore of ioCeiling, preserving the
// input line order in stdout output even though reads/scans themselves run
// concurrently.
func runSync(ctx context.Context, cmd *cobra.Command, compiler *queryengine.Compiler, filterFunc filter.Func, reporter *progressReporter) error {
	lines, err := readLines(cmd.InOrStdin())
	if err != nil {
		return err
	}

	results := make([]bool, len(lines))
	errs := make([]error, len(lines))

	sem := semaphore.NewWeighted(ioCeiling)
	done := make(chan struct{}, len(lines))

	for i, line := range lines {
		i, line := i, line
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		go func() {
			defer sem.Release(1)
			defer func() { done <- struct{}{} }()
			matched, err := scanLine(compiler, filterFunc, line)
			results[i] = matched
			errs[i] = err
		}()
	}
	for range lines {
		<-done
		reporter.Tick()
	}

	for i, line := range lines {
		if errs[i] != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "weapifinder: %s: %v\n", line, errs[i])
			continue
		}
		if results[i] {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
	}
	return nil
}

// scanLine resolves one extension root and runs it through a fresh Matcher,
// applying filterFunc (if any) on top of the match result.
func scanLine(compiler *queryengine.Compiler, filterFunc filter.Func, line string) (bool, error) {
	ext, err := corpus.ReadRoot(context.Background(), line)
	if err != nil {
		return false, err
	}

	m := compiler.NewMatcher()
	for _, content := range ext.Scripts {
		m.AddSource(string(content))
	}
	m.FindMatches()
	if len(m.GetMatchedResults()) == 0 {
		return false, nil
	}

	if filterFunc == nil {
		return true, nil
	}
	return filterFunc(ext)
}

// runAsync mirrors runSync but dispatches each extension's scan through the
// Compiler's worker pool via AsyncMatcher instead of a manual goroutine.
func runAsync(ctx context.Context, cmd *cobra.Command, compiler *queryengine.Compiler, cfg config.Config, filterFunc filter.Func, reporter *progressReporter) error {
	defer compiler.Destroy()

	lines, err := readLines(cmd.InOrStdin())
	if err != nil {
		return err
	}

	sem := semaphore.NewWeighted(ioCeiling)
	type pending struct {
		line    string
		ext     corpus.Extension
		matcher *queryengine.AsyncMatcher
		future  <-chan error
		readErr error
	}
	tasks := make([]pending, len(lines))

	for i, line := range lines {
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		ext, readErr := corpus.ReadRoot(ctx, line)
		sem.Release(1)

		tasks[i] = pending{line: line, ext: ext, readErr: readErr}
		if readErr != nil {
			continue
		}

		am := compiler.NewAsyncMatcher(cfg.NumThreads)
		for _, content := range ext.Scripts {
			am.AddSource(string(content))
		}
		tasks[i].matcher = am
		tasks[i].future = am.FindMatches()
	}

	for i := range tasks {
		t := &tasks[i]
		if t.readErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "weapifinder: %s: %v\n", t.line, t.readErr)
			reporter.Tick()
			continue
		}
		if err := <-t.future; err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "weapifinder: %s: %v\n", t.line, err)
			reporter.Tick()
			continue
		}
		reporter.Tick()

		matched, err := t.matcher.GetMatchedResults()
		if err != nil || len(matched) == 0 {
			continue
		}

		ok := true
		if filterFunc != nil {
			ok, err = filterFunc(t.ext)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "weapifinder: %s: %v\n", t.line, err)
				continue
			}
		}
		if ok {
			fmt.Fprintln(cmd.OutOrStdout(), t.line)
		}
	}
	return nil
}

func readLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("weapifinder: read stdin: %w", err)
	}
	return lines, nil
}
