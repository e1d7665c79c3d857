package generator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veldran/aotq/aot"
	"github.com/veldran/aotq/metamodel"
	"github.com/veldran/aotq/query"
)

// Manifest is the reproducible build artifact describing every compiled
// repository query.
type Manifest struct {
	RunID        string               `json:"run_id"`
	SchemaHash   string               `json:"schema_hash"`
	MetamodelKey string               `json:"metamodel_key"`
	Dialect      metamodel.Dialect    `json:"dialect"`
	Repositories []ManifestRepository `json:"repositories"`
}

type ManifestRepository struct {
	Name    string           `json:"name"`
	Entity  string           `json:"entity"`
	Methods []ManifestMethod `json:"methods"`
}

type ManifestMethod struct {
	Name     string            `json:"name"`
	Queries  map[string]string `json:"queries"`
	Bindings []ManifestBinding `json:"bindings,omitempty"`
	Limit    int               `json:"limit,omitempty"`
	Delete   bool              `json:"delete,omitempty"`
	Exists   bool              `json:"exists,omitempty"`
	Native   bool              `json:"native,omitempty"`
	// Expression marks methods whose bindings need value-expression
	// evaluation at request time; generated code cannot serve them from
	// the manifest alone.
	Expression bool `json:"expression,omitempty"`
}

type ManifestBinding struct {
	Identifier string `json:"identifier"`
	Origin     string `json:"origin"`
	Kind       string `json:"kind"`
	Match      string `json:"match,omitempty"`
}

// CompileManifest runs the queries factory over every repository method
// and assembles the manifest.
func CompileManifest(schema Schema, boot *metamodel.Bootstrap, factory *aot.Factory, schemaHash string, log *zap.Logger) (Manifest, error) {
	model, err := boot.Metamodel()
	if err != nil {
		return Manifest{}, err
	}

	manifest := Manifest{
		RunID:        uuid.NewString(),
		SchemaHash:   schemaHash,
		MetamodelKey: boot.CacheKey(),
		Dialect:      boot.Dialect(),
	}

	for _, repo := range schema.Repositories {
		entity, err := model.Entity(repo.Entity)
		if err != nil {
			return Manifest{}, fmt.Errorf("repository %s: %w", repo.Name, err)
		}

		compiled := ManifestRepository{Name: repo.Name, Entity: repo.Entity}
		for _, method := range repo.Methods {
			returned := schema.ReturnedTypeOf(repo.Entity, method)
			queries, err := factory.CreateQueries(entity, returned, aot.Method{
				Name:       method.Name,
				Annotation: method.Annotation,
				Paged:      method.Paged,
			})
			if err != nil {
				return Manifest{}, fmt.Errorf("repository %s: %w", repo.Name, err)
			}
			compiled.Methods = append(compiled.Methods, manifestMethod(method.Name, queries))
			log.Debug("compiled repository method",
				zap.String("repository", repo.Name),
				zap.String("method", method.Name),
				zap.String("query", queries.Result.QueryString()))
		}
		manifest.Repositories = append(manifest.Repositories, compiled)
	}

	return manifest, nil
}

func manifestMethod(name string, queries aot.Queries) ManifestMethod {
	result := queries.Result
	method := ManifestMethod{
		Name:       name,
		Queries:    queries.Serialize(),
		Delete:     result.IsDelete(),
		Exists:     result.IsExists(),
		Native:     result.IsNative(),
		Expression: aot.HasExpression(result),
	}
	if aot.IsLimited(result) {
		method.Limit = result.ResultLimit().Max()
	}
	for _, binding := range result.Bindings() {
		method.Bindings = append(method.Bindings, manifestBinding(binding))
	}
	return method
}

func manifestBinding(binding query.ParameterBinding) ManifestBinding {
	out := ManifestBinding{
		Identifier: binding.Identifier.String(),
		Origin:     binding.Origin.String(),
		Kind:       binding.Kind.String(),
	}
	if binding.Kind == query.BindLike {
		out.Match = binding.Match.String()
	}
	return out
}

func manifestPath(root string) string {
	return filepath.Join(root, ".aotq", "manifest.json")
}

func writeManifest(root string, manifest Manifest) (string, error) {
	path := manifestPath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// metamodelSnapshot is the persisted bootstrap view written next to the
// manifest so downstream tooling can inspect the validated model.
type metamodelSnapshot struct {
	CacheKey   string            `json:"cache_key"`
	Dialect    metamodel.Dialect `json:"dialect"`
	Types      []string          `json:"types"`
	Properties map[string]string `json:"properties"`
}

func writeMetamodelSnapshot(root string, boot *metamodel.Bootstrap) (string, error) {
	model, err := boot.Metamodel()
	if err != nil {
		return "", err
	}
	snapshot := metamodelSnapshot{
		CacheKey:   boot.CacheKey(),
		Dialect:    boot.Dialect(),
		Types:      model.TypeNames(),
		Properties: boot.Properties(),
	}
	path := filepath.Join(root, ".aotq", "metamodel.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
