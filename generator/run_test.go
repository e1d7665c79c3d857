package generator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func projectRoot(t *testing.T, schemaSource string) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "schema"), 0o755); err != nil {
		t.Fatalf("mkdir schema: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "schema", "User.schema.go"), []byte(schemaSource), 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	return root
}

func TestRunWritesManifestAndState(t *testing.T) {
	root := projectRoot(t, userSchemaSource)

	result, err := Run(root, GenerateOptions{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(root, ".aotq", "manifest.json"))
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		t.Fatalf("manifest not valid JSON: %v", err)
	}
	if manifest.RunID == "" || manifest.SchemaHash == "" {
		t.Fatalf("manifest missing run metadata: %+v", manifest)
	}
	if len(manifest.Repositories) != 1 || manifest.Repositories[0].Name != "UserRepository" {
		t.Fatalf("unexpected repositories: %+v", manifest.Repositories)
	}

	methods := make(map[string]ManifestMethod)
	for _, method := range manifest.Repositories[0].Methods {
		methods[method.Name] = method
	}
	derived := methods["FindByLastname"]
	if derived.Queries["query"] != "SELECT u FROM User u WHERE u.lastname = ?1" {
		t.Fatalf("derived query wrong: %v", derived.Queries)
	}
	paged := methods["FindByAgeGreaterThan"]
	if paged.Queries["count-query"] == "" {
		t.Fatalf("paged method must carry a count query: %v", paged.Queries)
	}
	if unpaged := methods["FindActive"]; unpaged.Queries["count-query"] != "" {
		t.Fatalf("unpaged method must not carry a count query: %v", unpaged.Queries)
	}
	if native := methods["FindNativeByLastname"]; !native.Native {
		t.Fatalf("native flag lost: %+v", native)
	}

	if _, err := os.Stat(filepath.Join(root, ".aotq", "metamodel.json")); err != nil {
		t.Fatalf("metamodel snapshot not written: %v", err)
	}
	if _, err := os.Stat(cachePath(root)); err != nil {
		t.Fatalf("generator state not written: %v", err)
	}

	for _, comp := range result.Components {
		if comp.Skipped {
			t.Fatalf("first run must not skip %s", comp.Name)
		}
	}
}

func TestRunSkipsUnchangedComponents(t *testing.T) {
	root := projectRoot(t, userSchemaSource)

	if _, err := Run(root, GenerateOptions{}); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	result, err := Run(root, GenerateOptions{})
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	for _, comp := range result.Components {
		if !comp.Skipped || comp.Reason != "up-to-date" {
			t.Fatalf("unchanged component %s must be skipped, got %+v", comp.Name, comp)
		}
	}
}

func TestRunForceRegenerates(t *testing.T) {
	root := projectRoot(t, userSchemaSource)

	if _, err := Run(root, GenerateOptions{}); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	result, err := Run(root, GenerateOptions{Force: true})
	if err != nil {
		t.Fatalf("forced run failed: %v", err)
	}
	for _, comp := range result.Components {
		if comp.Skipped {
			t.Fatalf("forced run must not skip %s", comp.Name)
		}
	}
}

func TestRunDryRunWritesNothing(t *testing.T) {
	root := projectRoot(t, userSchemaSource)

	result, err := Run(root, GenerateOptions{DryRun: true})
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, ".aotq")); !os.IsNotExist(err) {
		t.Fatalf("dry run must not create .aotq")
	}
	if len(result.Manifest.Repositories) == 0 {
		t.Fatalf("dry run must still compile the manifest for preview")
	}
}

func TestRunUsesNamedQueriesResource(t *testing.T) {
	root := projectRoot(t, userSchemaSource)
	queriesPath := filepath.Join(root, "named-queries.properties")
	properties := "User.findByLastname=select u from User u where u.lastname = :lastname\n"
	if err := os.WriteFile(queriesPath, []byte(properties), 0o644); err != nil {
		t.Fatalf("write properties: %v", err)
	}

	result, err := Run(root, GenerateOptions{NamedQueries: queriesPath})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, method := range result.Manifest.Repositories[0].Methods {
		if method.Name == "FindByLastname" {
			if method.Queries["name"] != "User.findByLastname" {
				t.Fatalf("named query not selected: %v", method.Queries)
			}
			return
		}
	}
	t.Fatalf("method FindByLastname missing from manifest")
}

func TestSchemaHashIsStable(t *testing.T) {
	root := projectRoot(t, userSchemaSource)

	schema, err := LoadSchema(filepath.Join(root, "schema"))
	if err != nil {
		t.Fatalf("LoadSchema failed: %v", err)
	}
	first, err := schemaInputHash(schema)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	second, err := schemaInputHash(schema)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if first != second {
		t.Fatalf("schema hash must be deterministic")
	}
	if componentInputHash(first, ComponentQueries) == componentInputHash(first, ComponentMetamodel) {
		t.Fatalf("component hashes must differ per component")
	}
}
