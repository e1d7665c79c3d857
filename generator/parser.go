package generator

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/veldran/aotq/aot"
	"github.com/veldran/aotq/metamodel"
)

// EntityDef is one managed type declared in the schema package.
type EntityDef struct {
	Name       string
	Kind       metamodel.TypeKind
	Attributes []metamodel.Attribute
	// Interface marks projection interfaces, which never become managed
	// types but may appear as method return types.
	Interface bool
	// Properties lists the input property names in declaration order,
	// used when the type serves as a constructor projection.
	Properties []string
}

// MethodDef is one repository method together with its directives.
type MethodDef struct {
	Name       string
	Annotation *aot.QueryAnnotation
	Paged      bool
	// Returns names the element type of the method's first result, ""
	// when it could not be determined.
	Returns string
}

// RepositoryDef is one repository interface declared in the schema
// package.
type RepositoryDef struct {
	Name    string
	Entity  string
	Methods []MethodDef
}

// Schema is everything the generator learned from one schema directory.
type Schema struct {
	Entities     []EntityDef
	Repositories []RepositoryDef
}

// SchemaDiscoveryError reports a schema directory that yields nothing to
// generate from.
type SchemaDiscoveryError struct {
	Dir string
}

func (e SchemaDiscoveryError) Error() string {
	return fmt.Sprintf("no schema files found in %s", e.Dir)
}

func (e SchemaDiscoveryError) Suggestion() string {
	return "Run `aotq init` to scaffold a schema directory, or point schema_dir in aotq.yaml at your declarations."
}

const repositorySuffix = "Repository"

// LoadSchema parses every *.schema.go file under dir into entity and
// repository definitions. Entities are exported structs; repositories are
// exported interfaces named <Entity>Repository.
func LoadSchema(dir string) (Schema, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.schema.go"))
	if err != nil {
		return Schema{}, err
	}
	if len(matches) == 0 {
		return Schema{}, SchemaDiscoveryError{Dir: dir}
	}
	sort.Strings(matches)

	fset := token.NewFileSet()
	var structs []structDecl
	var ifaces []ifaceDecl

	for _, file := range matches {
		astFile, err := parser.ParseFile(fset, file, nil, parser.ParseComments)
		if err != nil {
			return Schema{}, fmt.Errorf("parse %s: %w", file, err)
		}
		for _, decl := range astFile.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.TYPE {
				continue
			}
			for _, spec := range gen.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok || !ts.Name.IsExported() {
					continue
				}
				switch typ := ts.Type.(type) {
				case *ast.StructType:
					structs = append(structs, structDecl{name: ts.Name.Name, typ: typ})
				case *ast.InterfaceType:
					ifaces = append(ifaces, ifaceDecl{name: ts.Name.Name, typ: typ})
				}
			}
		}
	}

	known := make(map[string]bool, len(structs))
	for _, st := range structs {
		known[st.name] = true
	}

	schema := Schema{}
	for _, st := range structs {
		entity, err := buildEntity(st, known)
		if err != nil {
			return Schema{}, err
		}
		schema.Entities = append(schema.Entities, entity)
	}

	for _, iface := range ifaces {
		if !strings.HasSuffix(iface.name, repositorySuffix) {
			schema.Entities = append(schema.Entities, EntityDef{Name: iface.name, Interface: true})
			continue
		}
		repo, err := buildRepository(iface, known)
		if err != nil {
			return Schema{}, err
		}
		schema.Repositories = append(schema.Repositories, repo)
	}

	sort.Slice(schema.Entities, func(i, j int) bool { return schema.Entities[i].Name < schema.Entities[j].Name })
	sort.Slice(schema.Repositories, func(i, j int) bool { return schema.Repositories[i].Name < schema.Repositories[j].Name })
	return schema, nil
}

type structDecl struct {
	name string
	typ  *ast.StructType
}

type ifaceDecl struct {
	name string
	typ  *ast.InterfaceType
}

func buildEntity(st structDecl, known map[string]bool) (EntityDef, error) {
	entity := EntityDef{Name: st.name, Kind: metamodel.Embeddable}

	if st.typ.Fields == nil {
		return entity, nil
	}
	for _, field := range st.typ.Fields.List {
		if len(field.Names) == 0 {
			continue
		}
		tag := fieldTag(field)
		if tag == "-" {
			continue
		}
		for _, ident := range field.Names {
			if !ident.IsExported() {
				continue
			}
			attribute, err := buildAttribute(st.name, ident.Name, field.Type, tag, known)
			if err != nil {
				return EntityDef{}, err
			}
			if attribute.IsID {
				entity.Kind = metamodel.Entity
			}
			entity.Attributes = append(entity.Attributes, attribute)
			entity.Properties = append(entity.Properties, attribute.Name)
		}
	}
	return entity, nil
}

func fieldTag(field *ast.Field) string {
	if field.Tag == nil {
		return ""
	}
	raw := strings.Trim(field.Tag.Value, "`")
	return reflect.StructTag(raw).Get("aotq")
}

func buildAttribute(owner, fieldName string, expr ast.Expr, tag string, known map[string]bool) (metamodel.Attribute, error) {
	attribute := metamodel.Attribute{Name: lowerCamel(fieldName)}

	for _, opt := range strings.Split(tag, ",") {
		switch strings.TrimSpace(opt) {
		case "id":
			attribute.IsID = true
		case "embedded":
			attribute.Kind = metamodel.Embedded
		case "":
		default:
			return metamodel.Attribute{}, fmt.Errorf("%s.%s: unknown aotq tag option %q", owner, fieldName, opt)
		}
	}

	typeName, collection := typeNameOf(expr)
	if typeName == "" {
		return metamodel.Attribute{}, fmt.Errorf("%s.%s: unsupported field type", owner, fieldName)
	}
	attribute.Type = typeName
	attribute.IsCollection = collection
	attribute.IsString = typeName == "string"

	if known[typeName] {
		attribute.TargetType = typeName
		if attribute.Kind != metamodel.Embedded {
			attribute.Kind = metamodel.Association
		}
	} else if collection {
		attribute.Kind = metamodel.ElementCollection
	}
	if attribute.Kind == metamodel.Embedded && attribute.TargetType == "" {
		return metamodel.Attribute{}, fmt.Errorf("%s.%s: embedded field must reference a schema type", owner, fieldName)
	}
	return attribute, nil
}

// typeNameOf unwraps pointers, slices and arrays down to the element type
// identifier. Selector types (time.Time and friends) keep their bare name.
func typeNameOf(expr ast.Expr) (name string, collection bool) {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name, false
	case *ast.StarExpr:
		name, collection = typeNameOf(t.X)
		return name, collection
	case *ast.ArrayType:
		name, _ = typeNameOf(t.Elt)
		return name, true
	case *ast.SelectorExpr:
		return t.Sel.Name, false
	}
	return "", false
}

func buildRepository(iface ifaceDecl, known map[string]bool) (RepositoryDef, error) {
	entityName := strings.TrimSuffix(iface.name, repositorySuffix)
	if !known[entityName] {
		return RepositoryDef{}, fmt.Errorf("repository %s: no entity %s declared in schema", iface.name, entityName)
	}

	repo := RepositoryDef{Name: iface.name, Entity: entityName}
	if iface.typ.Methods == nil {
		return repo, nil
	}
	for _, field := range iface.typ.Methods.List {
		if len(field.Names) == 0 {
			continue
		}
		fn, ok := field.Type.(*ast.FuncType)
		if !ok {
			continue
		}
		method, err := buildMethod(iface.name, field.Names[0].Name, fn, field.Doc)
		if err != nil {
			return RepositoryDef{}, err
		}
		repo.Methods = append(repo.Methods, method)
	}
	return repo, nil
}

func buildMethod(repoName, methodName string, fn *ast.FuncType, doc *ast.CommentGroup) (MethodDef, error) {
	method := MethodDef{Name: methodName}

	annotation, err := parseDirectives(repoName, methodName, doc)
	if err != nil {
		return MethodDef{}, err
	}
	method.Annotation = annotation

	if fn.Params != nil {
		for _, param := range fn.Params.List {
			if name, _ := typeNameOf(param.Type); name == "Pageable" {
				method.Paged = true
			}
		}
	}
	if fn.Results != nil && len(fn.Results.List) > 0 {
		method.Returns = resultElementType(fn.Results.List[0].Type, &method.Paged)
	}
	return method, nil
}

// resultElementType digs the element type out of a result expression,
// marking the method paged when the result is wrapped in Page.
func resultElementType(expr ast.Expr, paged *bool) string {
	switch t := expr.(type) {
	case *ast.IndexExpr:
		if name, _ := typeNameOf(t.X); name == "Page" {
			*paged = true
		}
		return resultElementType(t.Index, paged)
	case *ast.ArrayType:
		return resultElementType(t.Elt, paged)
	case *ast.StarExpr:
		return resultElementType(t.X, paged)
	case *ast.Ident:
		return t.Name
	case *ast.SelectorExpr:
		return t.Sel.Name
	}
	return ""
}

// parseDirectives reads aotq: directives from a method's doc comment.
func parseDirectives(repoName, methodName string, doc *ast.CommentGroup) (*aot.QueryAnnotation, error) {
	if doc == nil {
		return nil, nil
	}

	var ann aot.QueryAnnotation
	found := false
	for _, comment := range doc.List {
		text := strings.TrimSpace(strings.TrimPrefix(comment.Text, "//"))
		if !strings.HasPrefix(text, "aotq:") {
			continue
		}
		directive := strings.TrimPrefix(text, "aotq:")
		key, value, _ := strings.Cut(directive, " ")
		value = strings.TrimSpace(value)
		switch key {
		case "query":
			ann.Value = value
		case "count":
			ann.CountQuery = value
		case "countProjection":
			ann.CountProjection = value
		case "name":
			ann.Name = value
		case "countName":
			ann.CountName = value
		case "native":
			ann.NativeQuery = true
		default:
			return nil, fmt.Errorf("%s.%s: unknown directive aotq:%s", repoName, methodName, key)
		}
		found = true
	}
	if !found {
		return nil, nil
	}
	return &ann, nil
}
