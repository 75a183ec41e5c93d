package resolver

import (
	"sort"

	"genealogic/internal/extractor"
)

// MethodRef identifies one member function declaration: the class that
// declares it and its signature key.
type MethodRef struct {
	Class string `json:"class"`
	Key   string `json:"key"`
}

func (r MethodRef) String() string {
	return r.Class + "::" + r.Key
}

// VirtualEntry is one virtual function visible in a class.
type VirtualEntry struct {
	// Ref is the most derived declaration along the path it was inherited.
	Ref    MethodRef                 `json:"ref"`
	Method extractor.MethodSignature `json:"method"`

	// Roots are the declarations that first introduced the function as
	// virtual, sorted.
	Roots []MethodRef `json:"roots"`

	Pure  bool `json:"pure,omitempty"`
	Final bool `json:"final,omitempty"`

	// Shared is set when the declaring subobject is a virtual base, or lies
	// inside one, so every inheritance path reaches the same declaration.
	Shared bool `json:"shared,omitempty"`

	// dominates are the shared declarations this entry overrides.
	dominates []MethodRef
}

// OverrideFact links a method declared on Class to the ancestor declaration
// it overrides.
type OverrideFact struct {
	Class      string                    `json:"class"`
	Method     extractor.MethodSignature `json:"method"`
	Base       string                    `json:"base"`
	BaseMethod extractor.MethodSignature `json:"base_method"`

	// Implements is set when the overridden declaration is pure virtual.
	Implements bool `json:"implements,omitempty"`
}

// Ref returns the overriding declaration.
func (f OverrideFact) Ref() MethodRef {
	return MethodRef{Class: f.Class, Key: f.Method.Key()}
}

// Target returns the overridden declaration.
func (f OverrideFact) Target() MethodRef {
	return MethodRef{Class: f.Base, Key: f.BaseMethod.Key()}
}

// StaticBinding records that Class reaches a template base through a
// static self-reference (CRTP) edge.
type StaticBinding struct {
	Class    string `json:"class"`
	Base     string `json:"base"`
	Template string `json:"template,omitempty"`

	// Methods are the member function names declared by the base.
	Methods []string `json:"methods,omitempty"`

	// Redeclared are the names Class declares as well.
	Redeclared []string `json:"redeclared,omitempty"`
}

type DiagnosticKind string

const (
	DanglingOverride     DiagnosticKind = "dangling_override"
	AmbiguousOverride    DiagnosticKind = "ambiguous_override"
	OverridesFinal       DiagnosticKind = "overrides_final"
	HiddenVirtual        DiagnosticKind = "hidden_virtual"
	DuplicateDeclaration DiagnosticKind = "duplicate_declaration"
)

// Diagnostic is a non-fatal semantic finding.
type Diagnostic struct {
	Kind   DiagnosticKind `json:"kind"`
	Class  string         `json:"class"`
	Method string         `json:"method,omitempty"`

	// Candidates are the declarations involved, e.g. the ambiguous roots.
	Candidates []MethodRef `json:"candidates,omitempty"`

	// Unresolved lists external ancestors that might declare what is missing.
	Unresolved []string `json:"unresolved,omitempty"`

	Message string `json:"message"`
}

// Result is the outcome of a resolver run. It is not modified once Run
// returns.
type Result struct {
	Facts       []OverrideFact  `json:"facts"`
	Bindings    []StaticBinding `json:"static_bindings"`
	Diagnostics []Diagnostic    `json:"diagnostics"`

	inherited map[string][]VirtualEntry
	effective map[string][]VirtualEntry
}

func newResult() *Result {
	return &Result{
		inherited: make(map[string][]VirtualEntry),
		effective: make(map[string][]VirtualEntry),
	}
}

// Inherited returns the virtual functions class receives from its bases,
// before its own declarations apply.
func (r *Result) Inherited(class string) []VirtualEntry {
	return append([]VirtualEntry(nil), r.inherited[class]...)
}

// Virtuals returns the virtual functions class exposes to derived classes.
func (r *Result) Virtuals(class string) []VirtualEntry {
	return append([]VirtualEntry(nil), r.effective[class]...)
}

func sortRefs(refs []MethodRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Class != refs[j].Class {
			return refs[i].Class < refs[j].Class
		}
		return refs[i].Key < refs[j].Key
	})
}

func unionRefs(sets ...[]MethodRef) []MethodRef {
	seen := make(map[MethodRef]bool)
	var out []MethodRef
	for _, set := range sets {
		for _, r := range set {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	sortRefs(out)
	return out
}

func intersects(a, b []MethodRef) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
