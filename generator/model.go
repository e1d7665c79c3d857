package generator

import (
	"github.com/veldran/aotq/metamodel"
	"github.com/veldran/aotq/query"
)

// Descriptors converts the parsed entities into metamodel bootstrap
// input. Projection interfaces carry no mapping and are left out.
func (s Schema) Descriptors() []metamodel.TypeDescriptor {
	out := make([]metamodel.TypeDescriptor, 0, len(s.Entities))
	for _, entity := range s.Entities {
		if entity.Interface {
			continue
		}
		out = append(out, metamodel.TypeDescriptor{
			Name:       entity.Name,
			Kind:       entity.Kind,
			Attributes: entity.Attributes,
		})
	}
	return out
}

func (s Schema) entity(name string) (EntityDef, bool) {
	for _, entity := range s.Entities {
		if entity.Name == name {
			return entity, true
		}
	}
	return EntityDef{}, false
}

// ReturnedTypeOf derives the projection metadata for a method of a
// repository bound to domainType. Unknown return types fall back to the
// domain type so scalar and count style methods stay non-projecting.
func (s Schema) ReturnedTypeOf(domainType string, method MethodDef) query.ReturnedType {
	returned := query.ReturnedType{DomainType: domainType, ReturnedType: domainType}

	if method.Returns == "" || method.Returns == domainType {
		return returned
	}
	target, ok := s.entity(method.Returns)
	if !ok {
		return returned
	}

	returned.ReturnedType = target.Name
	returned.IsInterface = target.Interface
	returned.InputProperties = append([]string(nil), target.Properties...)
	return returned
}
