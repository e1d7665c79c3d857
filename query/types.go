package query

import "strings"

// Direction is the ordering direction of a sort expression.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Reverse flips the direction, used when continuing a keyset scroll backwards.
func (d Direction) Reverse() Direction {
	if d == Desc {
		return Asc
	}
	return Desc
}

// Order pairs a property path with a direction.
type Order struct {
	Property   string
	Direction  Direction
	IgnoreCase bool
}

// OrderBy builds an ascending Order for the given property.
func OrderBy(property string) Order {
	return Order{Property: property, Direction: Asc}
}

// Sort is an ordered list of Order expressions. The zero value is unsorted.
type Sort struct {
	orders []Order
}

// NewSort creates a Sort from the given orders.
func NewSort(orders ...Order) Sort {
	return Sort{orders: orders}
}

// Unsorted returns the empty sort.
func Unsorted() Sort {
	return Sort{}
}

// IsSorted reports whether any order expression is present.
func (s Sort) IsSorted() bool { return len(s.orders) > 0 }

// Orders returns the order expressions in declaration order.
func (s Sort) Orders() []Order { return s.orders }

// And appends the orders of the given sort after the receiver's orders. The
// receiver's orders keep priority.
func (s Sort) And(other Sort) Sort {
	if !other.IsSorted() {
		return s
	}
	combined := make([]Order, 0, len(s.orders)+len(other.orders))
	combined = append(combined, s.orders...)
	combined = append(combined, other.orders...)
	return Sort{orders: combined}
}

// Limit caps the number of rows a query may return. The zero value is
// unlimited.
type Limit struct {
	max int
}

// LimitOf creates a Limit capped at max rows.
func LimitOf(max int) Limit {
	return Limit{max: max}
}

// Unlimited returns the unbounded limit.
func Unlimited() Limit {
	return Limit{}
}

// IsLimited reports whether the limit caps the result size.
func (l Limit) IsLimited() bool { return l.max > 0 }

// Max returns the row cap. Only meaningful when IsLimited.
func (l Limit) Max() int { return l.max }

// ScrollDirection determines which side of a keyset position a continuation
// query reads.
type ScrollDirection int

const (
	ScrollForward ScrollDirection = iota
	ScrollBackward
)

// KeysetPosition captures the sort-key values of the last row seen, used to
// continue scrolling without an offset.
type KeysetPosition struct {
	Keys      map[string]any
	Direction ScrollDirection
}

// KeysetOf creates a forward-scrolling position from the given keys.
func KeysetOf(keys map[string]any) KeysetPosition {
	return KeysetPosition{Keys: keys, Direction: ScrollForward}
}

// ReturnedType describes the declared result shape of a repository method as
// seen by the query pipeline.
type ReturnedType struct {
	// DomainType is the entity the repository manages.
	DomainType string
	// ReturnedType names the projection type when the method returns
	// something other than the domain type. Empty for entity results.
	ReturnedType string
	// IsInterface marks interface-based projections, which tolerate
	// over-fetching through tuple access.
	IsInterface bool
	// InputProperties lists the constructor/field inputs of a struct
	// projection in declaration order.
	InputProperties []string
}

// IsProjecting reports whether the method returns something other than the
// domain type.
func (r ReturnedType) IsProjecting() bool {
	return r.ReturnedType != "" && !strings.EqualFold(r.ReturnedType, r.DomainType)
}

// HasInputProperties reports whether a struct projection declares inputs that
// the select clause must match.
func (r ReturnedType) HasInputProperties() bool {
	return len(r.InputProperties) > 0
}

// NeedsCustomConstruction reports whether the select clause must be narrowed
// to projection properties instead of selecting the whole entity.
func (r ReturnedType) NeedsCustomConstruction() bool {
	return r.IsProjecting() && (r.HasInputProperties() || r.IsInterface)
}
