package query

import (
	"strings"
)

// KeysetCreator derives queries that continue from a keyset scroll position
// instead of an offset. The continuation predicate restricts results to rows
// strictly after (or before, when scrolling backward) the reference row
// under the effective sort, and the identifier attributes are appended to the
// sort so the ordering is total and the next keyset can always be computed.
type KeysetCreator struct {
	*Creator
	position KeysetPosition
}

func NewKeysetCreator(tree *Tree, returned ReturnedType, entity EntityModel, position KeysetPosition) *KeysetCreator {
	return &KeysetCreator{
		Creator:  NewCreator(tree, returned, entity),
		position: position,
	}
}

// CreateQuery derives the continuation query for the given dynamic sort.
func (k *KeysetCreator) CreateQuery(sort Sort) (DerivedQuery, error) {
	effective := k.effectiveSort(sort)

	scroll := effective
	if k.position.Direction == ScrollBackward {
		scroll = reverseSort(effective)
	}

	binder := &partBinder{}

	where, err := k.wherePredicate(binder)
	if err != nil {
		return DerivedQuery{}, err
	}
	continuation, err := k.keysetPredicate(scroll.Orders(), binder)
	if err != nil {
		return DerivedQuery{}, err
	}

	selection, err := k.keysetSelection(effective)
	if err != nil {
		return DerivedQuery{}, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(selection)
	sb.WriteString(" FROM ")
	sb.WriteString(k.entity.EntityName())
	sb.WriteString(" ")
	sb.WriteString(k.alias())

	switch {
	case where != "" && continuation != "":
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
		sb.WriteString(" AND ")
		sb.WriteString(continuation)
	case where != "":
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	case continuation != "":
		sb.WriteString(" WHERE ")
		sb.WriteString(continuation)
	}

	orderBy, err := k.orderByClause(scroll)
	if err != nil {
		return DerivedQuery{}, err
	}
	sb.WriteString(orderBy)

	return DerivedQuery{
		Query:    sb.String(),
		Bindings: binder.bindings,
		Limit:    k.tree.ResultLimit(),
	}, nil
}

// effectiveSort appends the identifier attributes to the static and dynamic
// sort so rows with equal sort keys still order deterministically.
func (k *KeysetCreator) effectiveSort(sort Sort) Sort {
	effective := k.tree.Sort().And(sort)

	sorted := map[string]bool{}
	for _, order := range effective.Orders() {
		sorted[order.Property] = true
	}
	for _, id := range k.entity.IDAttributes() {
		if !sorted[id] {
			effective = effective.And(NewSort(Order{Property: id, Direction: Asc}))
		}
	}
	return effective
}

func reverseSort(sort Sort) Sort {
	orders := make([]Order, 0, len(sort.Orders()))
	for _, order := range sort.Orders() {
		order.Direction = order.Direction.Reverse()
		orders = append(orders, order)
	}
	return NewSort(orders...)
}

// keysetPredicate builds the continuation condition as an OR-chain: one
// group per sort key, each group pinning the preceding keys with equality
// and comparing the last one strictly. An empty keyset means the initial
// page and yields no predicate.
func (k *KeysetCreator) keysetPredicate(orders []Order, binder *partBinder) (string, error) {
	if len(k.position.Keys) == 0 {
		return "", nil
	}

	alias := k.alias()
	var groups []string

	for i := range orders {
		terms := make([]string, 0, i+1)
		usable := true

		for j := 0; j <= i; j++ {
			order := orders[j]
			if _, ok := k.position.Keys[order.Property]; !ok {
				usable = false
				break
			}
			resolved, err := k.entity.ResolvePath(order.Property)
			if err != nil {
				return "", err
			}
			path := alias + "." + resolved.Path
			placeholder := binder.keysetValue(order.Property)

			if j < i {
				terms = append(terms, path+" = "+placeholder)
				continue
			}
			operator := " > "
			if order.Direction == Desc {
				operator = " < "
			}
			terms = append(terms, path+operator+placeholder)
		}

		if !usable {
			continue
		}
		group := strings.Join(terms, " AND ")
		if len(terms) > 1 {
			group = "(" + group + ")"
		}
		groups = append(groups, group)
	}

	if len(groups) == 0 {
		return "", nil
	}
	if len(groups) == 1 {
		return groups[0], nil
	}
	return "(" + strings.Join(groups, " OR ") + ")", nil
}

// keysetSelection widens a constructor projection to cover every sort key
// and identifier attribute, so the generated row always carries the data the
// next keyset is computed from. Entity projections already select everything.
func (k *KeysetCreator) keysetSelection(effective Sort) (string, error) {
	if !k.returned.NeedsCustomConstruction() {
		return k.selection(false)
	}

	required := make([]string, 0, len(k.returned.InputProperties))
	seen := map[string]bool{}
	add := func(property string) {
		if !seen[property] {
			seen[property] = true
			required = append(required, property)
		}
	}
	for _, property := range k.returned.InputProperties {
		add(property)
	}
	for _, order := range effective.Orders() {
		add(order.Property)
	}
	for _, id := range k.entity.IDAttributes() {
		add(id)
	}

	paths, err := k.qualifyAll(required)
	if err != nil {
		return "", err
	}
	prefix := ""
	if k.tree.Distinct {
		prefix = "DISTINCT "
	}
	return prefix + strings.Join(paths, ", "), nil
}
