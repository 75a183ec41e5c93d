package graph

import (
	"fmt"
	"strings"

	"genealogic/internal/extractor"
)

type NodeKind string

const (
	NodeDeclared      NodeKind = "declared"
	NodeTemplate      NodeKind = "template"
	NodeInstantiation NodeKind = "instantiation"
	NodeExternal      NodeKind = "external"
)

type EdgeKind string

const (
	EdgeInherits            EdgeKind = "inherits"
	EdgeStaticSelfReference EdgeKind = "static_self_reference"
)

// Node is one class in the hierarchy. Template instantiations reached
// through base lists get their own node per argument binding.
type Node struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Namespace string   `json:"namespace,omitempty"`
	Kind      NodeKind `json:"kind"`

	// Decl is the source declaration; for instantiations it is the
	// template's. Nil for external nodes.
	Decl *extractor.ClassDeclaration `json:"-"`

	// Template and Bindings are set on instantiation nodes.
	Template string                             `json:"template,omitempty"`
	Bindings map[string]extractor.TypeReference `json:"bindings,omitempty"`

	// Methods are the declared member functions, with template parameters
	// substituted on instantiation nodes.
	Methods []extractor.MethodSignature `json:"methods,omitempty"`

	// Dependent lists bases of a generic template that name its own
	// parameters; they only become edges on instantiations.
	Dependent []extractor.BaseSpecifier `json:"dependent,omitempty"`

	Outgoing []*Edge `json:"-"`
	Incoming []*Edge `json:"-"`
}

// External reports whether no declaration was supplied for the node.
func (n *Node) External() bool {
	return n.Kind == NodeExternal
}

// Final reports whether the class is declared final.
func (n *Node) Final() bool {
	return n.Decl != nil && n.Decl.Final
}

// Edge relates a derived class (From) to one of its direct bases (To).
type Edge struct {
	From    string           `json:"from"`
	To      string           `json:"to"`
	Kind    EdgeKind         `json:"kind"`
	Access  extractor.Access `json:"access"`
	Virtual bool             `json:"virtual"`

	// Index is the position of the base in the declaration's base list.
	Index int `json:"index"`

	// Base is the base type as spelled, after template substitution.
	Base extractor.TypeReference `json:"base"`

	// Bindings are the resolved template arguments of the base, if any.
	Bindings map[string]extractor.TypeReference `json:"bindings,omitempty"`
}

// StaticSelfReference reports whether the edge is a CRTP edge.
func (e *Edge) StaticSelfReference() bool {
	return e.Kind == EdgeStaticSelfReference
}

func (e *Edge) String() string {
	var sb strings.Builder
	sb.WriteString(e.From)
	sb.WriteString(" : ")
	if e.Virtual {
		sb.WriteString("virtual ")
	}
	sb.WriteString(e.Access.String())
	sb.WriteByte(' ')
	sb.WriteString(e.To)
	if e.StaticSelfReference() {
		sb.WriteString(" [static]")
	}
	return sb.String()
}

// Duplicate records a second definition of an already defined class.
type Duplicate struct {
	ID      string `json:"id"`
	Kept    string `json:"kept"`
	Ignored string `json:"ignored"`
}

func location(d *extractor.ClassDeclaration) string {
	return fmt.Sprintf("%s:%d", d.File, d.Line)
}
