package generator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/veldran/aotq/metamodel"
)

type ComponentName string

const (
	ComponentMetamodel ComponentName = "metamodel"
	ComponentQueries   ComponentName = "queries"
)

type generatorState struct {
	Components map[ComponentName]componentState `json:"components"`
}

type componentState struct {
	InputHash string `json:"input_hash"`
}

func loadGeneratorState(root string) (generatorState, error) {
	path := cachePath(root)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return generatorState{Components: make(map[ComponentName]componentState)}, nil
		}
		return generatorState{}, err
	}
	var state generatorState
	if err := json.Unmarshal(raw, &state); err != nil {
		return generatorState{}, err
	}
	if state.Components == nil {
		state.Components = make(map[ComponentName]componentState)
	}
	return state, nil
}

func saveGeneratorState(root string, state generatorState) error {
	path := cachePath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

func cachePath(root string) string {
	return filepath.Join(root, ".aotq", "cache", "generator_state.json")
}

type schemaSignature struct {
	Entities     []entitySignature     `json:"entities"`
	Repositories []repositorySignature `json:"repositories"`
}

type entitySignature struct {
	Name       string               `json:"name"`
	Kind       int                  `json:"kind"`
	Interface  bool                 `json:"interface"`
	Attributes []attributeSignature `json:"attributes"`
}

type attributeSignature struct {
	Name         string `json:"name"`
	Kind         int    `json:"kind"`
	Type         string `json:"type"`
	TargetType   string `json:"target_type"`
	IsString     bool   `json:"is_string"`
	IsCollection bool   `json:"is_collection"`
	IsID         bool   `json:"is_id"`
}

type repositorySignature struct {
	Name    string            `json:"name"`
	Entity  string            `json:"entity"`
	Methods []methodSignature `json:"methods"`
}

type methodSignature struct {
	Name            string `json:"name"`
	Query           string `json:"query"`
	CountQuery      string `json:"count_query"`
	CountProjection string `json:"count_projection"`
	Native          bool   `json:"native"`
	QueryName       string `json:"query_name"`
	CountName       string `json:"count_name"`
	Paged           bool   `json:"paged"`
	Returns         string `json:"returns"`
}

func schemaInputHash(schema Schema) (string, error) {
	sig := buildSchemaSignature(schema)
	payload, err := json.Marshal(sig)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

func buildSchemaSignature(schema Schema) schemaSignature {
	sig := schemaSignature{
		Entities:     make([]entitySignature, 0, len(schema.Entities)),
		Repositories: make([]repositorySignature, 0, len(schema.Repositories)),
	}

	entities := append([]EntityDef(nil), schema.Entities...)
	sort.Slice(entities, func(i, j int) bool { return entities[i].Name < entities[j].Name })
	for _, entity := range entities {
		sig.Entities = append(sig.Entities, entitySignature{
			Name:       entity.Name,
			Kind:       int(entity.Kind),
			Interface:  entity.Interface,
			Attributes: encodeAttributes(entity.Attributes),
		})
	}

	repos := append([]RepositoryDef(nil), schema.Repositories...)
	sort.Slice(repos, func(i, j int) bool { return repos[i].Name < repos[j].Name })
	for _, repo := range repos {
		sig.Repositories = append(sig.Repositories, repositorySignature{
			Name:    repo.Name,
			Entity:  repo.Entity,
			Methods: encodeMethods(repo.Methods),
		})
	}
	return sig
}

func encodeAttributes(attributes []metamodel.Attribute) []attributeSignature {
	if len(attributes) == 0 {
		return []attributeSignature{}
	}
	sorted := append([]metamodel.Attribute(nil), attributes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	out := make([]attributeSignature, len(sorted))
	for i, attribute := range sorted {
		out[i] = attributeSignature{
			Name:         attribute.Name,
			Kind:         int(attribute.Kind),
			Type:         attribute.Type,
			TargetType:   attribute.TargetType,
			IsString:     attribute.IsString,
			IsCollection: attribute.IsCollection,
			IsID:         attribute.IsID,
		}
	}
	return out
}

func encodeMethods(methods []MethodDef) []methodSignature {
	if len(methods) == 0 {
		return []methodSignature{}
	}
	sorted := append([]MethodDef(nil), methods...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	out := make([]methodSignature, len(sorted))
	for i, method := range sorted {
		sig := methodSignature{
			Name:    method.Name,
			Paged:   method.Paged,
			Returns: method.Returns,
		}
		if ann := method.Annotation; ann != nil {
			sig.Query = ann.Value
			sig.CountQuery = ann.CountQuery
			sig.CountProjection = ann.CountProjection
			sig.Native = ann.NativeQuery
			sig.QueryName = ann.Name
			sig.CountName = ann.CountName
		}
		out[i] = sig
	}
	return out
}

func componentInputHash(base string, component ComponentName) string {
	sum := sha256.Sum256([]byte(base + ":" + string(component)))
	return hex.EncodeToString(sum[:])
}
