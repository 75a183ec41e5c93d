package extractor

import "strings"

// Access is a C++ access level.
type Access int

const (
	AccessPublic Access = iota
	AccessProtected
	AccessPrivate
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessProtected:
		return "protected"
	case AccessPrivate:
		return "private"
	default:
		return "unknown"
	}
}

// ParseAccess maps an access keyword to its Access value.
func ParseAccess(word string) (Access, bool) {
	switch word {
	case "public":
		return AccessPublic, true
	case "protected":
		return AccessProtected, true
	case "private":
		return AccessPrivate, true
	}
	return AccessPrivate, false
}

// Virtuality marks how a member function participates in dynamic dispatch.
type Virtuality int

const (
	NonVirtual Virtuality = iota
	Virtual
	VirtualOverride
	PureVirtual
)

func (v Virtuality) String() string {
	switch v {
	case NonVirtual:
		return "non-virtual"
	case Virtual:
		return "virtual"
	case VirtualOverride:
		return "virtual-override"
	case PureVirtual:
		return "pure-virtual"
	default:
		return "unknown"
	}
}

// IsVirtual reports whether the marker implies dynamic dispatch.
func (v Virtuality) IsVirtual() bool {
	return v != NonVirtual
}

// TypeReference names a type, optionally a template instantiation.
type TypeReference struct {
	// Name is the possibly qualified name, e.g. "ns::Base". Non-type template
	// arguments keep their literal spelling here.
	Name string `json:"name"`

	// Args holds template arguments in source order; nil for plain names.
	Args []TypeReference `json:"args,omitempty"`

	// Prefix and Suffix hold cv-qualifiers and declarator marks around the
	// name, e.g. "const" and "&".
	Prefix string `json:"prefix,omitempty"`
	Suffix string `json:"suffix,omitempty"`
}

// IsTemplate reports whether the reference is a template instantiation.
func (r TypeReference) IsTemplate() bool {
	return r.Args != nil
}

// BaseName returns the unqualified last segment of Name.
func (r TypeReference) BaseName() string {
	if i := strings.LastIndex(r.Name, "::"); i >= 0 {
		return r.Name[i+2:]
	}
	return r.Name
}

// String renders the canonical spelling, e.g. "StaticObjectInterface<Feature, Animal>".
func (r TypeReference) String() string {
	var sb strings.Builder
	if r.Prefix != "" {
		sb.WriteString(r.Prefix)
		sb.WriteByte(' ')
	}
	sb.WriteString(r.Name)
	if r.Args != nil {
		sb.WriteByte('<')
		for i, a := range r.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(a.String())
		}
		sb.WriteByte('>')
	}
	sb.WriteString(r.Suffix)
	return sb.String()
}

// Mentions reports whether name appears as a template argument at any depth.
func (r TypeReference) Mentions(name string) bool {
	for _, a := range r.Args {
		if a.Name == name || a.BaseName() == name || a.Mentions(name) {
			return true
		}
	}
	return false
}

// Substitute replaces names bound in b, at any depth.
func (r TypeReference) Substitute(b map[string]TypeReference) TypeReference {
	out := r
	if repl, ok := b[r.Name]; ok {
		out = repl
		out.Prefix = joinQualifiers(repl.Prefix, r.Prefix)
		out.Suffix = repl.Suffix + r.Suffix
	}
	if r.Args != nil {
		out.Args = make([]TypeReference, len(r.Args))
		for i, a := range r.Args {
			out.Args[i] = a.Substitute(b)
		}
	}
	return out
}

func joinQualifiers(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}

// BaseSpecifier is one entry of a class's base-specifier list.
type BaseSpecifier struct {
	Access  Access        `json:"access"`
	Virtual bool          `json:"virtual"`
	Type    TypeReference `json:"type"`

	// SelfReference is set when a template argument spells the enclosing
	// class's name. The graph builder confirms it against resolved names.
	SelfReference bool `json:"self_reference,omitempty"`

	Offset int `json:"offset"`
}

// MethodSignature is one member function declaration.
type MethodSignature struct {
	Name         string     `json:"name"`
	ReturnType   string     `json:"return_type,omitempty"`
	Params       []string   `json:"params"`
	Const        bool       `json:"const,omitempty"`
	RefQualifier string     `json:"ref_qualifier,omitempty"`
	Virtuality   Virtuality `json:"virtuality"`

	// Override is set when the declaration carries an explicit override marker.
	Override   bool   `json:"override,omitempty"`
	Final      bool   `json:"final,omitempty"`
	Static     bool   `json:"static,omitempty"`
	Destructor bool   `json:"destructor,omitempty"`
	Access     Access `json:"access"`
	Offset     int    `json:"offset"`
	Line       int    `json:"line"`
}

// Key identifies the signature for override matching: name, parameter
// types, const and ref qualification. Destructors all share one key.
func (m MethodSignature) Key() string {
	if m.Destructor {
		return "~"
	}
	var sb strings.Builder
	sb.WriteString(m.Name)
	sb.WriteByte('(')
	sb.WriteString(strings.Join(m.Params, ", "))
	sb.WriteByte(')')
	if m.Const {
		sb.WriteString(" const")
	}
	if m.RefQualifier != "" {
		sb.WriteByte(' ')
		sb.WriteString(m.RefQualifier)
	}
	return sb.String()
}

// String renders the signature the way it would be declared.
func (m MethodSignature) String() string {
	var sb strings.Builder
	if m.Virtuality == Virtual || m.Virtuality == PureVirtual {
		sb.WriteString("virtual ")
	}
	if m.ReturnType != "" {
		sb.WriteString(m.ReturnType)
		sb.WriteByte(' ')
	}
	sb.WriteString(m.Name)
	sb.WriteByte('(')
	sb.WriteString(strings.Join(m.Params, ", "))
	sb.WriteByte(')')
	if m.Const {
		sb.WriteString(" const")
	}
	if m.RefQualifier != "" {
		sb.WriteByte(' ')
		sb.WriteString(m.RefQualifier)
	}
	if m.Override {
		sb.WriteString(" override")
	}
	if m.Final {
		sb.WriteString(" final")
	}
	if m.Virtuality == PureVirtual {
		sb.WriteString(" = 0")
	}
	return sb.String()
}

// ClassDeclaration is one top-level class or struct definition.
type ClassDeclaration struct {
	Name           string            `json:"name"`
	Namespace      string            `json:"namespace,omitempty"`
	Key            string            `json:"key"`
	TemplateParams []string          `json:"template_params,omitempty"`
	Bases          []BaseSpecifier   `json:"bases,omitempty"`
	Methods        []MethodSignature `json:"methods,omitempty"`
	Final          bool              `json:"final,omitempty"`
	File           string            `json:"file"`
	Offset         int               `json:"offset"`
	Line           int               `json:"line"`
	EndLine        int               `json:"end_line"`

	// TemplateDefaults maps template parameters to their default arguments.
	TemplateDefaults map[string]TypeReference `json:"template_defaults,omitempty"`
}

// QualifiedName joins Namespace and Name with "::".
func (d ClassDeclaration) QualifiedName() string {
	if d.Namespace == "" {
		return d.Name
	}
	return d.Namespace + "::" + d.Name
}

// IsTemplate reports whether the declaration is a class template.
func (d ClassDeclaration) IsTemplate() bool {
	return d.TemplateParams != nil
}

// DefaultAccess is the access applied to bases and members with no
// explicit specifier.
func (d ClassDeclaration) DefaultAccess() Access {
	if d.Key == "struct" {
		return AccessPublic
	}
	return AccessPrivate
}
