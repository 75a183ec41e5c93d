package extractor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flyingDogHeader = `#pragma once
#include "Dog.h"
#include "Flyable.h"

class FlyingDog : public Dog, public Flyable {
public:
    void speak() const override;
    void fly() const override;
};
`

const featureHeader = `#pragma once
#include "Animal.h"
#include "Flyable.h"

template<typename Self, typename Base>
class StaticObjectInterface : public Base {
};

class Feature : public StaticObjectInterface<Feature, Animal>, public Flyable {
public:
    void speak() const override;
    void fly() const override;
};
`

func parseOne(t *testing.T, src string) ClassDeclaration {
	t.Helper()
	decls, err := Parse("test.h", src)
	require.NoError(t, err)
	require.Len(t, decls, 1)
	return decls[0]
}

func TestParse_Fixtures(t *testing.T) {
	t.Run("FlyingDog", func(t *testing.T) {
		decl := parseOne(t, flyingDogHeader)
		assert.Equal(t, "FlyingDog", decl.Name)
		assert.Equal(t, "class", decl.Key)
		assert.Equal(t, 5, decl.Line)
		assert.Equal(t, 9, decl.EndLine)
		assert.False(t, decl.IsTemplate())

		require.Len(t, decl.Bases, 2)
		assert.Equal(t, "Dog", decl.Bases[0].Type.String())
		assert.Equal(t, AccessPublic, decl.Bases[0].Access)
		assert.False(t, decl.Bases[0].Virtual)
		assert.Equal(t, "Flyable", decl.Bases[1].Type.String())

		require.Len(t, decl.Methods, 2)
		speak := decl.Methods[0]
		assert.Equal(t, "speak", speak.Name)
		assert.Equal(t, "void", speak.ReturnType)
		assert.Empty(t, speak.Params)
		assert.True(t, speak.Const)
		assert.True(t, speak.Override)
		assert.Equal(t, VirtualOverride, speak.Virtuality)
		assert.Equal(t, AccessPublic, speak.Access)
		assert.Equal(t, "speak() const", speak.Key())
		assert.Equal(t, 7, speak.Line)
	})

	t.Run("Feature", func(t *testing.T) {
		decls, err := Parse("Feature.h", featureHeader)
		require.NoError(t, err)
		require.Len(t, decls, 2)

		tmpl := decls[0]
		assert.Equal(t, "StaticObjectInterface", tmpl.Name)
		assert.Equal(t, []string{"Self", "Base"}, tmpl.TemplateParams)
		require.Len(t, tmpl.Bases, 1)
		assert.Equal(t, "Base", tmpl.Bases[0].Type.Name)
		assert.False(t, tmpl.Bases[0].SelfReference)
		assert.Empty(t, tmpl.Methods)

		feature := decls[1]
		require.Len(t, feature.Bases, 2)
		crtp := feature.Bases[0]
		assert.Equal(t, "StaticObjectInterface<Feature, Animal>", crtp.Type.String())
		assert.True(t, crtp.Type.IsTemplate())
		assert.True(t, crtp.SelfReference)
		assert.False(t, feature.Bases[1].SelfReference)
	})

	t.Run("Multiline Base List", func(t *testing.T) {
		decl := parseOne(t, "class MultilineChild\n    : public Dog\n    , public Flyable {\npublic:\n    void speak() const override;\n};\n")
		require.Len(t, decl.Bases, 2)
		assert.Equal(t, "Flyable", decl.Bases[1].Type.Name)
		require.Len(t, decl.Methods, 1)
	})
}

func TestParse_BaseSpecifiers(t *testing.T) {
	t.Run("Default Access", func(t *testing.T) {
		decls, err := Parse("t.h", "class C : B {};\nstruct S : B {};")
		require.NoError(t, err)
		require.Len(t, decls, 2)
		assert.Equal(t, AccessPrivate, decls[0].Bases[0].Access)
		assert.Equal(t, AccessPublic, decls[1].Bases[0].Access)
	})

	t.Run("Virtual In Either Position", func(t *testing.T) {
		decl := parseOne(t, "class D : virtual public B, protected virtual C, virtual E {};")
		require.Len(t, decl.Bases, 3)
		for _, b := range decl.Bases {
			assert.True(t, b.Virtual, b.Type.Name)
		}
		assert.Equal(t, AccessPublic, decl.Bases[0].Access)
		assert.Equal(t, AccessProtected, decl.Bases[1].Access)
		assert.Equal(t, AccessPrivate, decl.Bases[2].Access)
	})

	t.Run("Qualified And Nested Templates", func(t *testing.T) {
		decl := parseOne(t, "class X : public ::ns::Outer<Inner<int>, 3>, public std::enable_shared_from_this<X> {};")
		require.Len(t, decl.Bases, 2)
		outer := decl.Bases[0].Type
		assert.Equal(t, "::ns::Outer", outer.Name)
		assert.Equal(t, "Outer", outer.BaseName())
		require.Len(t, outer.Args, 2)
		assert.Equal(t, "Inner<int>", outer.Args[0].String())
		assert.Equal(t, "3", outer.Args[1].Name)
		assert.False(t, decl.Bases[0].SelfReference)
		assert.True(t, decl.Bases[1].SelfReference)
	})

	t.Run("Pack Expansion", func(t *testing.T) {
		decl := parseOne(t, "template<typename... Ts> class Many : public Ts... {};")
		assert.Equal(t, []string{"Ts"}, decl.TemplateParams)
		require.Len(t, decl.Bases, 1)
		assert.Equal(t, "Ts...", decl.Bases[0].Type.String())
	})
}

func TestParse_Scopes(t *testing.T) {
	src := `
namespace zoo {
namespace birds {
class Parrot {};
}
class Keeper {};
}
namespace a::b { struct Deep {}; }
extern "C" { struct Plain {}; }
namespace { class Hidden {}; }
class Fwd;
template<typename T> class Box<T*> {};
struct stat info;
`
	decls, err := Parse("scopes.h", src)
	require.NoError(t, err)

	got := map[string]string{}
	for _, d := range decls {
		got[d.Name] = d.Namespace
	}
	assert.Equal(t, map[string]string{
		"Parrot": "zoo::birds",
		"Keeper": "zoo",
		"Deep":   "a::b",
		"Plain":  "",
		"Hidden": "",
	}, got)
	assert.Equal(t, "zoo::birds::Parrot", decls[0].QualifiedName())
}

func TestParse_Members(t *testing.T) {
	src := `
class Widget : public Base {
    Q_OBJECT
public:
    Widget(int x) : Base(x), y_{x} {}
    virtual ~Widget();
    int value() const { return y_; }
    static Widget make();
    void g(const std::string& name, int count = 3) const &;
    void h(void);
    bool operator==(const Widget& other) const;
    explicit operator bool() const;
    virtual void draw() = 0;
    void tick() final;
    class Inner { void hidden(); };
    using Base::Base;
    friend class Helper;
protected:
    int y_;
    void (*callback)(int);
private:
    virtual void hook() {}
};
`
	decl := parseOne(t, src)
	byName := map[string]MethodSignature{}
	var order []string
	for _, m := range decl.Methods {
		byName[m.Name] = m
		order = append(order, m.Name)
	}
	assert.Equal(t, []string{"~Widget", "value", "make", "g", "h", "operator==", "operator bool", "draw", "tick", "hook"}, order)

	dtor := byName["~Widget"]
	assert.True(t, dtor.Destructor)
	assert.Equal(t, Virtual, dtor.Virtuality)
	assert.Equal(t, "~", dtor.Key())

	assert.Equal(t, NonVirtual, byName["value"].Virtuality)
	assert.True(t, byName["value"].Const)
	assert.True(t, byName["make"].Static)
	assert.Equal(t, "Widget", byName["make"].ReturnType)

	g := byName["g"]
	assert.Equal(t, []string{"const std::string&", "int"}, g.Params)
	assert.Equal(t, "&", g.RefQualifier)
	assert.Equal(t, "g(const std::string&, int) const &", g.Key())

	assert.Empty(t, byName["h"].Params)
	assert.Equal(t, []string{"const Widget&"}, byName["operator=="].Params)
	assert.Equal(t, PureVirtual, byName["draw"].Virtuality)

	tick := byName["tick"]
	assert.True(t, tick.Final)
	assert.Equal(t, VirtualOverride, tick.Virtuality)

	assert.Equal(t, AccessPublic, byName["draw"].Access)
	hook := byName["hook"]
	assert.Equal(t, AccessPrivate, hook.Access)
	assert.Equal(t, Virtual, hook.Virtuality)
}

func TestParse_DefaultMemberAccess(t *testing.T) {
	decls, err := Parse("t.h", "class C { void f(); };\nstruct S { void f(); };")
	require.NoError(t, err)
	require.Len(t, decls, 2)
	assert.Equal(t, AccessPrivate, decls[0].Methods[0].Access)
	assert.Equal(t, AccessPublic, decls[1].Methods[0].Access)
}

func TestParse_ClassHead(t *testing.T) {
	t.Run("Final", func(t *testing.T) {
		decl := parseOne(t, "class Leaf final : public Base {};")
		assert.True(t, decl.Final)
		require.Len(t, decl.Bases, 1)
	})

	t.Run("Export Macro And Attribute", func(t *testing.T) {
		decl := parseOne(t, "class [[nodiscard]] API_EXPORT Widget : public Base {};")
		assert.Equal(t, "Widget", decl.Name)
	})

	t.Run("Template Parameters", func(t *testing.T) {
		decl := parseOne(t, "template<typename T, int N = 4, template<typename> class Alloc, typename...> class Arr {};")
		assert.Equal(t, []string{"T", "N", "Alloc", "$3"}, decl.TemplateParams)
		require.Len(t, decl.TemplateDefaults, 1)
		assert.Equal(t, "4", decl.TemplateDefaults["N"].String())
	})

	t.Run("Template Default Arguments", func(t *testing.T) {
		decl := parseOne(t, "template<class T, class U = std::vector<T>> class Box {};")
		assert.Equal(t, []string{"T", "U"}, decl.TemplateParams)
		u := decl.TemplateDefaults["U"]
		assert.Equal(t, "std::vector", u.Name)
		assert.Equal(t, "std::vector<T>", u.String())
		assert.NotContains(t, decl.TemplateDefaults, "T")
	})

	t.Run("Declarators After Body", func(t *testing.T) {
		decl := parseOne(t, "struct Point { int x; } origin, *cursor;")
		assert.Equal(t, "Point", decl.Name)
	})
}

func TestParse_ParamQualifierPlacement(t *testing.T) {
	decl := parseOne(t, `struct S {
    void f(Foo const& a, int const* p, volatile const int& q, int* const r, std::map<int const, Foo> m);
};`)
	require.Len(t, decl.Methods, 1)
	assert.Equal(t, []string{
		"const Foo&",
		"const int*",
		"const volatile int&",
		"int* const",
		"std::map<int const, Foo>",
	}, decl.Methods[0].Params)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected string
	}{
		{"Missing Base Name", "class A : public {};", "base class name"},
		{"Duplicate Access", "class A : public private B {};", "base class name"},
		{"Duplicate Virtual", "class A : virtual virtual B {};", "base class name"},
		{"Unterminated Base List", "class A : public B", "',' or '{'"},
		{"Unterminated Body", "class A { void f();", "'}'"},
		{"Missing Semicolon", "class A {} class B {};", "';' after class definition"},
		{"Unbalanced Template Args", "class A : public B<C {};", "'>'"},
		{"Stray Closing Brace", "}", "declaration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.h", tt.src)
			require.Error(t, err)
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "got %v", err)
			assert.Equal(t, tt.expected, perr.Expected)
			assert.Equal(t, "bad.h", perr.File)
		})
	}

	t.Run("Lex Error Is Wrapped", func(t *testing.T) {
		_, err := Parse("bad.h", "class A { /* open")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad.h")
	})
}

func TestParseTypeReference(t *testing.T) {
	ref, err := ParseTypeReference("t.h", "const Base<Derived, std::vector<int>>&")
	require.NoError(t, err)
	assert.Equal(t, "const", ref.Prefix)
	assert.Equal(t, "&", ref.Suffix)
	assert.Equal(t, "const Base<Derived, std::vector<int>>&", ref.String())
	assert.True(t, ref.Mentions("Derived"))
	assert.False(t, ref.Mentions("Base"))

	sub := ref.Substitute(map[string]TypeReference{"Derived": {Name: "Impl"}})
	assert.Equal(t, "const Base<Impl, std::vector<int>>&", sub.String())

	_, err = ParseTypeReference("t.h", "Base<int> extra")
	assert.Error(t, err)
}
