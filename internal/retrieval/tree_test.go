package retrieval

import (
	"errors"
	"testing"

	"genealogic/internal/extractor"
	"genealogic/internal/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zoo = `class Animal { public: virtual void speak() const = 0; };
class Flyable { public: virtual void fly() const = 0; };
class Dog : public Animal {};
class Cat : public Animal {};
class FlyingDog : public Dog, public Flyable {};
class Puppy : public Dog {};
class Bird : public Flyable, public Animal {};
template<typename Self, typename Base>
class StaticObjectInterface : public Base {};
class Feature : public StaticObjectInterface<Feature, Animal>, public Flyable {};`

func buildZoo(t *testing.T) *graph.Graph {
	t.Helper()
	decls, err := extractor.Parse("zoo.h", zoo)
	require.NoError(t, err)
	g, err := graph.Build(decls)
	require.NoError(t, err)
	return g
}

func childIDs(n *TreeNode) []string {
	var out []string
	for _, c := range n.Children {
		out = append(out, c.ID)
	}
	return out
}

func TestDescendantTree_BFS(t *testing.T) {
	tree, err := DescendantTree(buildZoo(t), "Animal", DefaultConfig())
	require.NoError(t, err)

	root := tree.Root
	assert.Equal(t, "Animal", root.ID)
	assert.Nil(t, root.Via)
	assert.Equal(t, []string{"Bird", "Cat", "Dog", "StaticObjectInterface<Feature, Animal>"}, childIDs(root))

	dog := root.Children[2]
	assert.Equal(t, []string{"FlyingDog", "Puppy"}, childIDs(dog))
	assert.Equal(t, 2, dog.Children[0].Depth)
	assert.Equal(t, []string{"Flyable"}, dog.Children[0].ExtraParents)

	bird := root.Children[0]
	assert.Equal(t, []string{"Flyable"}, bird.ExtraParents)

	inst := root.Children[3]
	assert.Equal(t, graph.NodeInstantiation, inst.Kind)
	require.Len(t, inst.Children, 1)
	feature := inst.Children[0]
	assert.Equal(t, "Feature", feature.ID)
	assert.True(t, feature.Via.StaticSelfReference())

	assert.Equal(t, 8, tree.Count())
	assert.NotContains(t, tree.IDs(), "Flyable")
}

func TestDescendantTree_VisitsOnce(t *testing.T) {
	decls, err := extractor.Parse("d.h", `struct A {};
struct B : A {};
struct C : A {};
struct D : B, C {};`)
	require.NoError(t, err)
	g, err := graph.Build(decls)
	require.NoError(t, err)

	tree, err := DescendantTree(g, "A", DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 4, tree.Count())
	assert.Equal(t, []string{"D"}, childIDs(tree.Root.Children[0]))
	assert.Empty(t, tree.Root.Children[1].Children)
	assert.Equal(t, []string{"C"}, tree.Root.Children[0].Children[0].ExtraParents)

	// Both of D's bases are in the tree, so both edges are kept.
	assert.Len(t, tree.Edges, 4)
}

func TestDescendantTree_Config(t *testing.T) {
	g := buildZoo(t)

	t.Run("Max Depth", func(t *testing.T) {
		tree, err := DescendantTree(g, "Animal", Config{MaxDepth: 1})
		require.NoError(t, err)
		assert.Equal(t, 5, tree.Count())
	})

	t.Run("Allowed Kinds", func(t *testing.T) {
		tree, err := DescendantTree(g, "Animal", Config{AllowedKinds: map[graph.EdgeKind]bool{graph.EdgeInherits: true}})
		require.NoError(t, err)
		assert.NotContains(t, tree.IDs(), "Feature")
	})
}

func TestDescendantTree_Leaf(t *testing.T) {
	tree, err := DescendantTree(buildZoo(t), "Puppy", DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, tree.Count())
	assert.Empty(t, tree.Edges)

	_, err = DescendantTree(buildZoo(t), "Unicorn", DefaultConfig())
	assert.True(t, errors.Is(err, graph.ErrNodeNotFound))
}
