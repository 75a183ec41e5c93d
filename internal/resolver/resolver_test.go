package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genealogic/internal/extractor"
	"genealogic/internal/graph"
)

const (
	animalSrc = `class Animal {
public:
    virtual ~Animal() = default;
    virtual void speak() const = 0;
};`
	flyableSrc = `class Flyable {
public:
    virtual ~Flyable() = default;
    virtual void fly() const = 0;
};`
	dogSrc = `class Dog : public Animal {
public:
    void bark() const;
};`
	flyingDogSrc = `class FlyingDog : public Dog, public Flyable {
public:
    void speak() const override;
    void fly() const override;
};`
	featureSrc = `template<typename Self, typename Base>
class StaticObjectInterface : public Base {
};

class Feature : public StaticObjectInterface<Feature, Animal>, public Flyable {
public:
    void speak() const override;
    void fly() const override;
};`
	crtpBaseSrc = `template<typename Derived>
class CRTPBase {
public:
    void interface() { static_cast<Derived*>(this)->implementation(); }
    void implementation() {}
};`
	crtpChildSrc = `class CRTPChild : public Animal, public CRTPBase<CRTPChild> {
public:
    void speak() const override;
    void implementation();
};`
)

func mustBuild(t *testing.T, sources ...string) *graph.Graph {
	t.Helper()
	var decls []extractor.ClassDeclaration
	for i, src := range sources {
		d, err := extractor.Parse("src"+string(rune('a'+i))+".h", src)
		require.NoError(t, err)
		decls = append(decls, d...)
	}
	g, err := graph.Build(decls)
	require.NoError(t, err)
	return g
}

func resolve(t *testing.T, sources ...string) *Result {
	t.Helper()
	res, err := Resolve(mustBuild(t, sources...))
	require.NoError(t, err)
	return res
}

func factsOf(res *Result, class string) []OverrideFact {
	var out []OverrideFact
	for _, f := range res.Facts {
		if f.Class == class {
			out = append(out, f)
		}
	}
	return out
}

func kinds(res *Result) []DiagnosticKind {
	var out []DiagnosticKind
	for _, d := range res.Diagnostics {
		out = append(out, d.Kind)
	}
	return out
}

func TestResolve_FlyingDog(t *testing.T) {
	res := resolve(t, animalSrc, flyableSrc, dogSrc, flyingDogSrc)

	facts := factsOf(res, "FlyingDog")
	require.Len(t, facts, 2)
	assert.Equal(t, "speak", facts[0].Method.Name)
	assert.Equal(t, "Animal", facts[0].Base)
	assert.Equal(t, "fly", facts[1].Method.Name)
	assert.Equal(t, "Flyable", facts[1].Base)
	assert.True(t, facts[1].Implements)
	assert.Equal(t, MethodRef{Class: "Flyable", Key: "fly() const"}, facts[1].Target())

	assert.Len(t, res.Facts, 2)
	assert.Empty(t, res.Diagnostics)
	assert.Empty(t, res.Bindings)
}

func TestResolve_Feature(t *testing.T) {
	res := resolve(t, animalSrc, flyableSrc, featureSrc)

	facts := factsOf(res, "Feature")
	require.Len(t, facts, 2)
	assert.Equal(t, MethodRef{Class: "Animal", Key: "speak() const"}, facts[0].Target())
	assert.Equal(t, MethodRef{Class: "Flyable", Key: "fly() const"}, facts[1].Target())
	assert.Empty(t, res.Diagnostics)

	require.Len(t, res.Bindings, 1)
	b := res.Bindings[0]
	assert.Equal(t, "Feature", b.Class)
	assert.Equal(t, "StaticObjectInterface<Feature, Animal>", b.Base)
	assert.Equal(t, "StaticObjectInterface", b.Template)
}

func TestResolve_CRTPChild(t *testing.T) {
	res := resolve(t, animalSrc, crtpBaseSrc, crtpChildSrc)

	facts := factsOf(res, "CRTPChild")
	require.Len(t, facts, 1)
	assert.Equal(t, "Animal", facts[0].Base)
	assert.Equal(t, "speak", facts[0].Method.Name)
	assert.Empty(t, res.Diagnostics)

	require.Len(t, res.Bindings, 1)
	assert.Equal(t, StaticBinding{
		Class:      "CRTPChild",
		Base:       "CRTPBase<CRTPChild>",
		Template:   "CRTPBase",
		Methods:    []string{"interface", "implementation"},
		Redeclared: []string{"implementation"},
	}, res.Bindings[0])
}

func TestResolve_StaticBaseContributesNoVirtuals(t *testing.T) {
	res := resolve(t, `template<typename D>
struct Base {
    virtual void impl();
};
struct Impl : Base<Impl> {
    void impl();
};`)
	assert.Empty(t, factsOf(res, "Impl"))
	assert.Empty(t, res.Inherited("Impl"))
	require.Len(t, res.Bindings, 1)
	assert.Equal(t, []string{"impl"}, res.Bindings[0].Redeclared)
}

func TestResolve_OverrideThroughStaticMixin(t *testing.T) {
	res := resolve(t, animalSrc, `template<typename Self, typename Base>
class Mixin : public Base {
public:
    void speak() const override;
};
class Cat : public Mixin<Cat, Animal> {
public:
    void speak() const override;
};`)
	assert.Empty(t, res.Diagnostics)

	facts := factsOf(res, "Cat")
	require.Len(t, facts, 1)
	assert.Equal(t, MethodRef{Class: "Cat", Key: "speak() const"}, facts[0].Ref())
	assert.Equal(t, MethodRef{Class: "Mixin<Cat, Animal>", Key: "speak() const"}, facts[0].Target())
	assert.False(t, facts[0].Implements)

	mixin := factsOf(res, "Mixin<Cat, Animal>")
	require.Len(t, mixin, 1)
	assert.Equal(t, MethodRef{Class: "Animal", Key: "speak() const"}, mixin[0].Target())

	var speak *VirtualEntry
	for _, v := range res.Virtuals("Cat") {
		if v.Ref.Key == "speak() const" {
			speak = &v
		}
	}
	require.NotNil(t, speak)
	assert.Equal(t, []MethodRef{{Class: "Animal", Key: "speak() const"}}, speak.Roots)
	require.Len(t, res.Bindings, 1)
	assert.Equal(t, "Mixin<Cat, Animal>", res.Bindings[0].Base)
}

func TestResolve_QualifierPlacementMatches(t *testing.T) {
	res := resolve(t, `struct Foo {};
struct A { virtual void f(Foo const& x); };
struct B : A { void f(const Foo& x) override; };`)
	assert.Empty(t, res.Diagnostics)
	facts := factsOf(res, "B")
	require.Len(t, facts, 1)
	assert.Equal(t, MethodRef{Class: "A", Key: "f(const Foo&)"}, facts[0].Target())
}

func TestResolve_DanglingOverride(t *testing.T) {
	t.Run("No Matching Base", func(t *testing.T) {
		res := resolve(t, `class Base { public: virtual void f(); };
class D : public Base { public: void g() override; };`)
		assert.Empty(t, factsOf(res, "D"))
		require.Len(t, res.Diagnostics, 1)
		d := res.Diagnostics[0]
		assert.Equal(t, DanglingOverride, d.Kind)
		assert.Equal(t, "D", d.Class)
		assert.Equal(t, "g()", d.Method)
		assert.Empty(t, d.Unresolved)
	})

	t.Run("Signature Must Match", func(t *testing.T) {
		res := resolve(t, `class Base { public: virtual void f(int); };
class D : public Base { public: void f(long) override; };`)
		assert.Equal(t, []DiagnosticKind{DanglingOverride, HiddenVirtual}, kinds(res))
	})

	t.Run("Unresolved Bases", func(t *testing.T) {
		res := resolve(t, flyingDogSrc)
		require.Len(t, res.Diagnostics, 2)
		for _, d := range res.Diagnostics {
			assert.Equal(t, DanglingOverride, d.Kind)
			assert.Equal(t, []string{"Dog", "Flyable"}, d.Unresolved)
			assert.Contains(t, d.Message, "unresolved bases: Dog, Flyable")
		}
	})
}

func TestResolve_Diamond(t *testing.T) {
	t.Run("Virtual Inheritance", func(t *testing.T) {
		res := resolve(t, `struct A { virtual void f(); };
struct B : virtual A {};
struct C : virtual A {};
struct D : B, C { void f() override; };`)
		facts := factsOf(res, "D")
		require.Len(t, facts, 1)
		assert.Equal(t, "A", facts[0].Base)
		assert.Empty(t, res.Diagnostics)
		assert.Len(t, res.Inherited("D"), 1)
	})

	t.Run("One Side Overrides Virtual Base", func(t *testing.T) {
		res := resolve(t, `struct A { virtual void f(); };
struct B : virtual A { void f() override; };
struct C : virtual A {};
struct D : B, C { void f() override; };
struct E : D {};`)
		facts := factsOf(res, "D")
		require.Len(t, facts, 1)
		assert.Equal(t, MethodRef{Class: "B", Key: "f()"}, facts[0].Target())
		assert.Empty(t, res.Diagnostics)

		require.Len(t, res.Inherited("D"), 1)
		assert.Equal(t, MethodRef{Class: "B", Key: "f()"}, res.Inherited("D")[0].Ref)
		require.Len(t, res.Virtuals("E"), 1)
		assert.Equal(t, MethodRef{Class: "D", Key: "f()"}, res.Virtuals("E")[0].Ref)
	})

	t.Run("One Side Overrides Separate Bases", func(t *testing.T) {
		res := resolve(t, `struct A { virtual void f(); };
struct B : A { void f() override; };
struct C : A {};
struct D : B, C { void f() override; };`)
		facts := factsOf(res, "D")
		require.Len(t, facts, 2)
		assert.Equal(t, "B", facts[0].Base)
		assert.Equal(t, "A", facts[1].Base)
		assert.Empty(t, res.Diagnostics)
	})

	t.Run("Both Sides Override", func(t *testing.T) {
		res := resolve(t, `struct A { virtual void f(); };
struct B : A { void f() override; };
struct C : A { void f() override; };
struct D : B, C { void f() override; };`)
		facts := factsOf(res, "D")
		require.Len(t, facts, 2)
		assert.Equal(t, "B", facts[0].Base)
		assert.Equal(t, "C", facts[1].Base)
		assert.Empty(t, res.Diagnostics)

		v := res.Virtuals("D")
		require.Len(t, v, 1)
		assert.Equal(t, []MethodRef{{Class: "A", Key: "f()"}}, v[0].Roots)
	})

	t.Run("Unrelated Bases", func(t *testing.T) {
		res := resolve(t, `struct L { virtual void f(); };
struct R { virtual void f(); };
struct D : L, R { void f() override; };`)
		assert.Len(t, factsOf(res, "D"), 2)
		require.Len(t, res.Diagnostics, 1)
		d := res.Diagnostics[0]
		assert.Equal(t, AmbiguousOverride, d.Kind)
		assert.Equal(t, []MethodRef{{Class: "L", Key: "f()"}, {Class: "R", Key: "f()"}}, d.Candidates)
	})
}

func TestResolve_ImplicitOverride(t *testing.T) {
	res := resolve(t, `struct A { virtual int f() const; virtual ~A(); };
struct B : A { int f() const; ~B(); };
struct C : B { int f() const override; };`)
	facts := factsOf(res, "C")
	require.Len(t, facts, 1)
	assert.Equal(t, "B", facts[0].Base, "most specific declaration wins")
	assert.False(t, facts[0].Implements)
	assert.Len(t, factsOf(res, "B"), 2)
	assert.Empty(t, res.Diagnostics)
}

func TestResolve_OverridesFinal(t *testing.T) {
	res := resolve(t, `struct A { virtual void f(); };
struct B : A { void f() final; };
struct C : B { void f() override; };`)
	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, OverridesFinal, d.Kind)
	assert.Equal(t, "C", d.Class)
	assert.Equal(t, []MethodRef{{Class: "B", Key: "f()"}}, d.Candidates)
}

func TestResolve_HiddenVirtual(t *testing.T) {
	res := resolve(t, `struct A { virtual void draw(int); virtual void draw(float); };
struct B : A { void draw(int) override; };`)
	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, HiddenVirtual, d.Kind)
	assert.Equal(t, []MethodRef{{Class: "A", Key: "draw(float)"}}, d.Candidates)
}

func TestResolve_GenericTemplateIsNotChecked(t *testing.T) {
	res := resolve(t, animalSrc, `template<typename B>
class Loud : public B {
public:
    void speak() const override;
};
class Parrot : public Loud<Animal> {};`)
	assert.Empty(t, res.Diagnostics)
	facts := factsOf(res, "Loud<Animal>")
	require.Len(t, facts, 1)
	assert.Equal(t, "Animal", facts[0].Base)
	assert.True(t, facts[0].Implements)
}

func TestResolve_Duplicates(t *testing.T) {
	res := resolve(t, "class A {};", "class A {};")
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, DuplicateDeclaration, res.Diagnostics[0].Kind)
	assert.Contains(t, res.Diagnostics[0].Message, "srcb.h:1")
}

func TestResolve_StaticMethodsNeverOverride(t *testing.T) {
	res := resolve(t, `struct A { virtual void f(); };
struct B : A { static void f(); };`)
	assert.Empty(t, res.Facts)
}
