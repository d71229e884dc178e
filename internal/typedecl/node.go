// Package typedecl compiles type declarations of a source format into schema
// fragments. The compiler is independent of any concrete grammar: front-ends
// translate their type system into Nodes first.
package typedecl

// Kind classifies a Node.
type Kind string

const (
	// KindExternal is a declaration whose type is an in-place reference or
	// an embedded JSON/XML schema literal.
	KindExternal     Kind = "external"
	KindObject       Kind = "object"
	KindArray        Kind = "array"
	KindUnion        Kind = "union"
	KindString       Kind = "string"
	KindNumber       Kind = "number"
	KindInteger      Kind = "integer"
	KindBoolean      Kind = "boolean"
	KindDateOnly     Kind = "date-only"
	KindTimeOnly     Kind = "time-only"
	KindDateTimeOnly Kind = "datetime-only"
	KindDateTime     Kind = "datetime"
	KindFile         Kind = "file"
	KindNil          Kind = "nil"
	KindAny          Kind = "any"
)

// Node is one type declaration.
type Node struct {
	Kind        Kind
	Name        string
	DisplayName string
	Description string
	// Types holds the type expressions the node inherits from, such as
	// "object", "Person", "Song[]" or "Cat | Dog".
	Types []string
	// Items holds explicit item type expressions of an array.
	Items []string
	// ItemNode is an inline item declaration. It takes precedence over Items.
	ItemNode   *Node
	Properties []*Node
	Required   bool
	Default    any
	Examples   []any
	Facets     Facets
}

// Facets are the validation facets a declaration may carry. Nil pointers and
// empty values are absent facets.
type Facets struct {
	MinProperties        *int
	MaxProperties        *int
	AdditionalProperties *bool
	Discriminator        string
	DiscriminatorValue   any

	UniqueItems *bool
	MinItems    *int
	MaxItems    *int

	MinLength *int
	MaxLength *int
	Pattern   string

	Minimum    *float64
	Maximum    *float64
	MultipleOf *float64

	Enum []any
}

// Library is a set of type declarations compiled under a namespace. The
// document's own types form a library with an empty namespace.
type Library struct {
	Namespace string
	Types     []*Node
}
