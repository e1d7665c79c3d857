package generator

import (
	"context"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"github.com/veldran/aotq/aot"
	"github.com/veldran/aotq/metamodel"
	"github.com/veldran/aotq/observability/tracing"
	"github.com/veldran/aotq/query"
)

// GenerateOptions control one generator run.
type GenerateOptions struct {
	DryRun     bool
	Force      bool
	Components []string
	StagingDir string

	// SchemaDir is the schema directory relative to the project root,
	// "schema" when empty.
	SchemaDir string
	// NamedQueries is the path of a properties-format named query
	// resource, optional.
	NamedQueries string
	// Properties are the metamodel bootstrap properties from aotq.yaml.
	Properties map[string]string
	// CaseTemplate overrides the ignore-case folding function of derived
	// queries, UPPER when zero.
	CaseTemplate query.CaseTemplate
	// Escape overrides the LIKE escape character of derived queries.
	Escape rune

	Logger *zap.Logger
	Tracer tracing.Tracer
}

func (opts GenerateOptions) includes(component string) bool {
	if len(opts.Components) == 0 {
		return true
	}
	return slices.Contains(opts.Components, component)
}

func (opts GenerateOptions) schemaDir(root string) string {
	dir := opts.SchemaDir
	if dir == "" {
		dir = "schema"
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	return dir
}

type ComponentResult struct {
	Name    ComponentName
	Changed bool
	Skipped bool
	Staged  bool
	Files   []string
	Reason  string
}

type RunResult struct {
	Components []ComponentResult
	Manifest   Manifest
}

type componentPlan struct {
	Name      ComponentName
	InputHash string
	Changed   bool
	Enabled   bool
	Stage     bool
	WriteRoot string
	Reason    string
	Files     []string
}

// Run loads the schema, compiles every repository method, and writes the
// manifest and metamodel snapshot under .aotq/. Unchanged components are
// skipped unless forced.
func Run(root string, opts GenerateOptions) (RunResult, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = tracing.NoopTracer{}
	}

	ctx, span := tracer.Start(context.Background(), "aotq.generate",
		tracing.String("root", root), tracing.Bool("dry_run", opts.DryRun))
	result, err := run(ctx, root, opts, log, tracer)
	span.End(err)
	return result, err
}

func run(ctx context.Context, root string, opts GenerateOptions, log *zap.Logger, tracer tracing.Tracer) (RunResult, error) {
	result := RunResult{}

	state, err := loadGeneratorState(root)
	if err != nil {
		return result, err
	}
	if state.Components == nil {
		state.Components = make(map[ComponentName]componentState)
	}

	_, loadSpan := tracer.Start(ctx, "aotq.load_schema")
	schema, err := LoadSchema(opts.schemaDir(root))
	loadSpan.End(err)
	if err != nil {
		return result, err
	}

	baseHash, err := schemaInputHash(schema)
	if err != nil {
		return result, err
	}

	plans := make(map[ComponentName]*componentPlan)
	for _, name := range []ComponentName{ComponentMetamodel, ComponentQueries} {
		plan := buildComponentPlan(root, opts, state, baseHash, name)
		plans[name] = &plan
	}

	boot := metamodel.NewBootstrap(schema.Descriptors(), opts.Properties, log)
	factory, err := buildFactory(opts, log)
	if err != nil {
		return result, err
	}

	for _, name := range []ComponentName{ComponentMetamodel, ComponentQueries} {
		plan := plans[name]
		if !plan.Enabled {
			continue
		}
		_, compSpan := tracer.Start(ctx, "aotq.component", tracing.String("component", string(name)))
		var genErr error
		switch name {
		case ComponentMetamodel:
			var path string
			path, genErr = writeMetamodelSnapshot(plan.WriteRoot, boot)
			if genErr == nil {
				plan.Files = relFiles(root, path)
			}
		case ComponentQueries:
			var manifest Manifest
			manifest, genErr = CompileManifest(schema, boot, factory, baseHash, log)
			if genErr == nil {
				result.Manifest = manifest
				if !opts.DryRun {
					var path string
					path, genErr = writeManifest(plan.WriteRoot, manifest)
					if genErr == nil {
						plan.Files = relFiles(root, path)
					}
				}
			}
		}
		compSpan.End(genErr)
		if genErr != nil {
			return result, genErr
		}
		if opts.DryRun || plan.Stage {
			continue
		}
		state.Components[name] = componentState{InputHash: plan.InputHash}
	}

	result.Components = assembleComponentResults(plans)

	if !opts.DryRun {
		if err := saveGeneratorState(root, state); err != nil {
			return result, err
		}
	}

	return result, nil
}

func buildFactory(opts GenerateOptions, log *zap.Logger) (*aot.Factory, error) {
	var source aot.NamedQuerySource
	if opts.NamedQueries != "" {
		queries, err := aot.LoadNamedQueries(opts.NamedQueries)
		if err != nil {
			return nil, err
		}
		source = queries
	}
	factory := aot.NewFactory(source, nil, log)
	factory.Configure(opts.CaseTemplate, opts.Escape)
	return factory, nil
}

func buildComponentPlan(root string, opts GenerateOptions, state generatorState, baseHash string, name ComponentName) componentPlan {
	plan := componentPlan{Name: name, InputHash: componentInputHash(baseHash, name)}
	prev := state.Components[name]
	plan.Changed = opts.Force || prev.InputHash != plan.InputHash

	if !opts.includes(string(name)) {
		plan.Reason = "filtered (--only)"
		return plan
	}
	if opts.DryRun {
		plan.Reason = "dry-run"
		if name == ComponentQueries {
			// compile anyway so the preview can show the manifest
			plan.Enabled = true
		}
		return plan
	}

	if plan.Changed {
		plan.Enabled = true
		plan.WriteRoot = root
		return plan
	}

	if opts.StagingDir != "" {
		stageRoot := opts.StagingDir
		if !filepath.IsAbs(stageRoot) {
			stageRoot = filepath.Join(root, stageRoot)
		}
		plan.Stage = true
		plan.Enabled = true
		plan.WriteRoot = filepath.Join(stageRoot, string(name))
		plan.Reason = "staged"
		return plan
	}

	plan.Reason = "up-to-date"
	return plan
}

func assembleComponentResults(plans map[ComponentName]*componentPlan) []ComponentResult {
	out := make([]ComponentResult, 0, len(plans))
	for _, name := range []ComponentName{ComponentMetamodel, ComponentQueries} {
		plan := plans[name]
		if plan == nil {
			continue
		}
		res := ComponentResult{
			Name:    plan.Name,
			Changed: plan.Changed,
			Staged:  plan.Stage,
			Files:   plan.Files,
			Reason:  plan.Reason,
		}
		if !plan.Enabled {
			res.Skipped = true
		}
		out = append(out, res)
	}
	return out
}

func relFiles(root string, paths ...string) []string {
	out := make([]string, 0, len(paths))
	for _, path := range paths {
		if path == "" {
			continue
		}
		if rel, err := filepath.Rel(root, path); err == nil {
			out = append(out, filepath.ToSlash(rel))
		} else {
			out = append(out, filepath.ToSlash(path))
		}
	}
	return out
}
