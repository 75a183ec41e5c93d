package ux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genealogic/internal/extractor"
	"genealogic/internal/graph"
	"genealogic/internal/resolver"
	"genealogic/internal/retrieval"
)

const zoo = `class Animal { public: virtual void speak() const = 0; };
class Flyable { public: virtual void fly() const = 0; };
class Dog : public Animal {};
class FlyingDog : public Dog, public Flyable { public: void speak() const override; void fly() const override; };`

func zooTree(t *testing.T) *retrieval.Tree {
	t.Helper()
	decls, err := extractor.Parse("zoo.h", zoo)
	require.NoError(t, err)
	g, err := graph.Build(decls)
	require.NoError(t, err)
	tr, err := retrieval.DescendantTree(g, "Animal", retrieval.DefaultConfig())
	require.NoError(t, err)
	return tr
}

func newTestPrinter(plain bool) (*Printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewPrinter(&out, &errOut, plain), &out, &errOut
}

func TestPrinter_Plain(t *testing.T) {
	p, out, errOut := newTestPrinter(true)

	p.Header("Animal", "src", ".h")
	p.ScanResult(4, 3)
	p.TreePreview(zooTree(t))
	p.Success("done")
	p.Info("note")
	p.Warning("careful")
	p.Error("broken")

	assert.Equal(t, `base=Animal dir=src ext=.h
scanned=4 relationships=3
classes=3
Animal
  Dog
    FlyingDog (+ Flyable)
OK: done
note
`, out.String())
	assert.Equal(t, "WARN: careful\nERROR: broken\n", errOut.String())
}

func TestPrinter_Styled(t *testing.T) {
	p, out, errOut := newTestPrinter(false)

	p.Header("Animal", "src", ".h")
	assert.Contains(t, out.String(), "Genealogic")
	assert.Contains(t, out.String(), "C++ Inheritance Tree Visualizer")
	assert.Contains(t, out.String(), "Animal")

	out.Reset()
	p.ScanResult(4, 3)
	assert.Contains(t, out.String(), "inheritance relationships")

	out.Reset()
	p.TreePreview(zooTree(t))
	assert.Contains(t, out.String(), "Inheritance tree:")
	assert.Contains(t, out.String(), "FlyingDog")
	assert.Contains(t, out.String(), "(+ Flyable)")

	out.Reset()
	p.Rendered("out/Animal_inheritance.svg")
	assert.Contains(t, out.String(), string(IconSuccess))
	assert.Contains(t, out.String(), "Rendered to out/Animal_inheritance.svg")

	p.Error("broken")
	assert.Contains(t, errOut.String(), string(IconError)+" broken")
}

func TestPrinter_Results(t *testing.T) {
	p, out, errOut := newTestPrinter(true)

	p.Overrides([]resolver.OverrideFact{{
		Class:      "FlyingDog",
		Method:     extractor.MethodSignature{Name: "fly", Const: true},
		Base:       "Flyable",
		BaseMethod: extractor.MethodSignature{Name: "fly", Const: true},
		Implements: true,
	}})
	p.StaticBindings([]resolver.StaticBinding{{Class: "Ticker", Base: "Counter<Ticker>", Redeclared: []string{"tick"}}})
	p.Diagnostics([]resolver.Diagnostic{{Kind: resolver.DanglingOverride, Class: "Cat", Message: "Cat::meow() overrides nothing"}})

	assert.Equal(t, "FlyingDog::fly() const implements Flyable::fly() const\nTicker binds Counter<Ticker> statically (redeclares tick)\n", out.String())
	assert.Equal(t, "WARN: [dangling_override] Cat::meow() overrides nothing\n", errOut.String())
}
