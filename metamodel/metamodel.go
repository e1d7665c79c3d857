package metamodel

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/veldran/aotq/query"
)

// AttributeKind classifies how an attribute maps.
type AttributeKind int

const (
	Basic AttributeKind = iota
	Embedded
	Association
	ElementCollection
)

// Attribute is one mapped attribute of a managed type.
type Attribute struct {
	Name string
	Kind AttributeKind
	// Type is the attribute's declared type name.
	Type string
	// TargetType names the managed type an embedded or association
	// attribute descends into.
	TargetType   string
	IsString     bool
	IsCollection bool
	IsID         bool
}

// TypeKind classifies a managed type.
type TypeKind int

const (
	Entity TypeKind = iota
	Embeddable
	MappedSuperclass
)

// ManagedType is the queryable view of one entity, embeddable or mapped
// superclass.
type ManagedType struct {
	name       string
	kind       TypeKind
	attributes []Attribute
	byName     map[string]Attribute
}

func newManagedType(name string, kind TypeKind, attributes []Attribute) *ManagedType {
	byName := make(map[string]Attribute, len(attributes))
	for _, attribute := range attributes {
		byName[attribute.Name] = attribute
	}
	return &ManagedType{name: name, kind: kind, attributes: attributes, byName: byName}
}

func (t *ManagedType) Name() string   { return t.name }
func (t *ManagedType) Kind() TypeKind { return t.kind }

func (t *ManagedType) Attributes() []Attribute { return t.attributes }

func (t *ManagedType) Attribute(name string) (Attribute, bool) {
	attribute, ok := t.byName[name]
	return attribute, ok
}

func (t *ManagedType) AttributeNames() []string {
	names := make([]string, 0, len(t.attributes))
	for _, attribute := range t.attributes {
		names = append(names, attribute.Name)
	}
	return names
}

func (t *ManagedType) IDAttributes() []string {
	var ids []string
	for _, attribute := range t.attributes {
		if attribute.IsID {
			ids = append(ids, attribute.Name)
		}
	}
	return ids
}

// Metamodel is the registry of managed types for one persistence unit under
// generation. Built once, never mutated afterwards.
type Metamodel struct {
	types map[string]*ManagedType
}

// ManagedType looks up a managed type by its unqualified name.
func (m *Metamodel) ManagedType(name string) (*ManagedType, error) {
	if t, ok := m.types[name]; ok {
		return t, nil
	}
	var known []string
	for typeName := range m.types {
		known = append(known, typeName)
	}
	return nil, fmt.Errorf("unknown managed type %q%s", name, didYouMean(name, known))
}

// TypeNames returns the registered managed type names.
func (m *Metamodel) TypeNames() []string {
	names := make([]string, 0, len(m.types))
	for name := range m.types {
		names = append(names, name)
	}
	return names
}

// Entity returns a query.EntityModel view of the named entity.
func (m *Metamodel) Entity(name string) (query.EntityModel, error) {
	t, err := m.ManagedType(name)
	if err != nil {
		return nil, err
	}
	return &entityView{model: m, root: t}, nil
}

// entityView adapts a managed type to the query creator's expectations.
type entityView struct {
	model *Metamodel
	root  *ManagedType
}

func (v *entityView) EntityName() string       { return v.root.name }
func (v *entityView) IDAttributes() []string   { return v.root.IDAttributes() }
func (v *entityView) AttributeNames() []string { return v.root.AttributeNames() }

// ResolvePath resolves a dotted, possibly camel-joined property path against
// the entity, descending through embedded and association attributes. A
// segment with no direct attribute match is split greedily at camel humps,
// longest prefix first, so "organizationName" reaches organization.name when
// no organizationName attribute exists.
func (v *entityView) ResolvePath(path string) (query.ResolvedPath, error) {
	current := v.root
	var resolved []string
	var leaf Attribute

	segments := strings.Split(path, ".")
	for i, segment := range segments {
		rest := segment
		for rest != "" {
			if current == nil {
				return query.ResolvedPath{}, v.pathError(path, rest, nil)
			}
			attribute, remainder, ok := resolveSegment(current, rest)
			if !ok {
				return query.ResolvedPath{}, v.pathError(path, rest, current)
			}
			resolved = append(resolved, attribute.Name)
			leaf = attribute
			current = v.target(attribute)
			rest = remainder
		}
		// Inner path segments must descend into a managed type.
		if i < len(segments)-1 && current == nil {
			return query.ResolvedPath{}, fmt.Errorf(
				"unable to resolve path %q: attribute %q of %s is not an embedded or associated type",
				path, leaf.Name, v.root.name)
		}
	}

	return query.ResolvedPath{
		Path:         strings.Join(resolved, "."),
		IsString:     leaf.IsString,
		IsCollection: leaf.IsCollection,
	}, nil
}

func (v *entityView) target(attribute Attribute) *ManagedType {
	if attribute.TargetType == "" {
		return nil
	}
	if t, ok := v.model.types[attribute.TargetType]; ok {
		return t
	}
	return nil
}

func (v *entityView) pathError(path, segment string, t *ManagedType) error {
	owner := v.root.name
	var known []string
	if t != nil {
		owner = t.name
		known = t.AttributeNames()
	}
	return fmt.Errorf("unable to resolve path %q: no attribute %q on managed type %s%s",
		path, uncapitalize(segment), owner, didYouMean(uncapitalize(segment), known))
}

// resolveSegment matches the longest attribute prefix of the segment. The
// remainder, if any, continues resolution against the attribute's target
// type.
func resolveSegment(t *ManagedType, segment string) (Attribute, string, bool) {
	if attribute, ok := t.Attribute(uncapitalize(segment)); ok {
		return attribute, "", true
	}
	for i := len(segment) - 1; i > 0; i-- {
		if segment[i] < 'A' || segment[i] > 'Z' {
			continue
		}
		if attribute, ok := t.Attribute(uncapitalize(segment[:i])); ok {
			return attribute, segment[i:], true
		}
	}
	return Attribute{}, "", false
}

func uncapitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// didYouMean suggests the closest known name when the distance is small
// enough to look like a typo.
func didYouMean(name string, known []string) string {
	best := ""
	bestDistance := 3
	for _, candidate := range known {
		if d := levenshtein.ComputeDistance(name, candidate); d < bestDistance {
			best = candidate
			bestDistance = d
		}
	}
	if best == "" {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", best)
}
