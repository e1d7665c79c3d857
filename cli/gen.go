package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veldran/aotq/generator"
	"github.com/veldran/aotq/observability/tracing"
	"github.com/veldran/aotq/query"
)

var runGenerator = generator.Run

const stagingDir = ".aotq/staging"

func newGenCmd() *cobra.Command {
	var (
		dryRun     bool
		force      bool
		components []string
		watch      bool
	)
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Compile repository queries from schema into the manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := normalizeComponents(components)
			if err != nil {
				return wrapError(fmt.Sprintf("gen: %v", err), err, "Use --only with metamodel or queries", 2)
			}
			cfg, err := loadProjectConfig(".")
			if err != nil {
				return wrapError(fmt.Sprintf("gen: read %s: %v", configFileName, err), err, "Fix or remove the config file and re-run `aotq gen`.", 1)
			}
			opts := generator.GenerateOptions{
				DryRun:       dryRun,
				Force:        force,
				Components:   targets,
				SchemaDir:    cfg.SchemaDir,
				NamedQueries: cfg.NamedQueries,
				Properties:   cfg.Properties,
				CaseTemplate: caseTemplateOf(cfg.Query.IgnoreCase),
				Escape:       escapeOf(cfg.Query.Escape),
				Logger:       buildLogger(),
				Tracer:       buildTracer(cfg),
			}
			componentDesc := "all components"
			if len(targets) > 0 {
				componentDesc = humanizeList(targets)
			}
			logVerbose(cmd, "running generator with targets: %s", componentDesc)
			if watch {
				opts.StagingDir = stagingDir
				return runWatch(cmd, opts)
			}
			return executeGeneration(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compile queries without writing any files")
	cmd.Flags().BoolVar(&force, "force", false, "Regenerate even when the schema is unchanged")
	cmd.Flags().StringSliceVar(&components, "only", nil, "Restrict generation to one or more components (metamodel, queries)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Watch the schema directory and regenerate on change")
	return cmd
}

func executeGeneration(cmd *cobra.Command, opts generator.GenerateOptions) error {
	result, err := runGenerator(".", opts)
	if err != nil {
		var discovery generator.SchemaDiscoveryError
		if errors.As(err, &discovery) {
			return wrapError(fmt.Sprintf("gen: %v", err), err, discovery.Suggestion(), 2)
		}
		return wrapError(fmt.Sprintf("gen: generation failed: %v", err), err, "Resolve the schema or configuration issue above and re-run `aotq gen`.", 1)
	}

	out := cmd.OutOrStdout()
	if opts.DryRun {
		fmt.Fprintln(out, "generator: dry-run - no files were written")
		fmt.Fprintf(out, "generator: %d repositories, %d methods compiled\n",
			len(result.Manifest.Repositories), countMethods(result.Manifest))
		fmt.Fprintln(out, "Generation preview complete.")
		return nil
	}
	for _, component := range result.Components {
		switch {
		case component.Skipped:
			fmt.Fprintf(out, "generator: %s skipped (%s)\n", component.Name, component.Reason)
		case component.Staged:
			fmt.Fprintf(out, "generator: %s staged: %s\n", component.Name, humanizeFiles(component.Files))
		default:
			fmt.Fprintf(out, "generator: %s wrote %s\n", component.Name, humanizeFiles(component.Files))
		}
	}
	fmt.Fprintln(out, "Generation complete.")
	return nil
}

func runWatch(cmd *cobra.Command, opts generator.GenerateOptions) error {
	if err := os.MkdirAll(opts.StagingDir, 0o755); err != nil {
		return wrapError(fmt.Sprintf("gen: unable to prepare staging dir: %v", err), err, "Check permissions for .aotq/staging and retry.", 1)
	}
	if err := executeGeneration(cmd, opts); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return wrapError(fmt.Sprintf("gen: watch failed: %v", err), err, "Install inotify/fsevents support and retry.", 1)
	}
	defer watcher.Close()

	schemaDir := opts.SchemaDir
	if schemaDir == "" {
		schemaDir = "schema"
	}
	if err := watcher.Add(schemaDir); err != nil {
		return wrapError(fmt.Sprintf("gen: unable to watch schema directory: %v", err), err, "Ensure the schema directory exists before using --watch.", 1)
	}

	logVerbose(cmd, "watching %s for schema changes", schemaDir)

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case event := <-watcher.Events:
			if !isSchemaEvent(event) {
				continue
			}
			pending = true
			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(200 * time.Millisecond)
		case err := <-watcher.Errors:
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "generator: watch error: %v\n", err)
			}
		case <-debounce.C:
			if !pending {
				continue
			}
			pending = false
			_ = os.RemoveAll(opts.StagingDir)
			if err := executeGeneration(cmd, opts); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "generator: watch run failed: %v\n", err)
			}
		}
	}
}

func isSchemaEvent(event fsnotify.Event) bool {
	if event.Name == "" {
		return false
	}
	return strings.HasSuffix(filepath.Base(event.Name), ".schema.go")
}

func buildLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func buildTracer(cfg projectConfig) tracing.Tracer {
	if !cfg.Observability.EmitSpans {
		return tracing.NoopTracer{}
	}
	return tracing.NewOTelTracer(nil, "")
}

func caseTemplateOf(name string) query.CaseTemplate {
	if strings.EqualFold(name, "lower") {
		return query.LowerCase
	}
	return query.CaseTemplate{}
}

func escapeOf(value string) rune {
	for _, r := range value {
		return r
	}
	return 0
}

func countMethods(manifest generator.Manifest) int {
	total := 0
	for _, repository := range manifest.Repositories {
		total += len(repository.Methods)
	}
	return total
}

func normalizeComponents(values []string) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	valid := map[string]struct{}{
		string(generator.ComponentMetamodel): {},
		string(generator.ComponentQueries):   {},
	}
	set := make([]string, 0, len(values))
	seen := make(map[string]struct{})
	for _, value := range values {
		normalized := strings.ToLower(strings.TrimSpace(value))
		if normalized == "" {
			continue
		}
		if _, ok := valid[normalized]; !ok {
			return nil, fmt.Errorf("unknown component %q", value)
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		set = append(set, normalized)
	}
	slices.Sort(set)
	return set, nil
}

func humanizeList(values []string) string {
	if len(values) == 0 {
		return ""
	}
	if len(values) == 1 {
		return values[0]
	}
	if len(values) == 2 {
		return values[0] + " and " + values[1]
	}
	return strings.Join(values[:len(values)-1], ", ") + ", and " + values[len(values)-1]
}

func humanizeFiles(files []string) string {
	if len(files) == 0 {
		return "(no file changes)"
	}
	return strings.Join(files, ", ")
}
