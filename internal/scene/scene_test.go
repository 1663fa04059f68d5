package scene_test

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackamole/internal/scene"
	"trackamole/internal/scene/scenetest"
)

const tol = 1e-6

func boxAsset(min, max mgl64.Vec3, world mgl64.Mat4) *scene.Asset {
	var pts []mgl64.Vec3
	for _, x := range []float64{min.X(), max.X()} {
		for _, y := range []float64{min.Y(), max.Y()} {
			for _, z := range []float64{min.Z(), max.Z()} {
				pts = append(pts, mgl64.Vec3{x, y, z})
			}
		}
	}
	return &scene.Asset{
		Name: "box",
		Root: scene.NewGroup("root", scene.NewTransform("xf", world, scene.NewMesh("body", pts))),
	}
}

func TestNormalize_MaxDimAndCenter(t *testing.T) {
	cases := []struct {
		name     string
		min, max mgl64.Vec3
		world    mgl64.Mat4
	}{
		{"unit", mgl64.Vec3{-0.5, -0.5, -0.5}, mgl64.Vec3{0.5, 0.5, 0.5}, mgl64.Ident4()},
		{"tall offset", mgl64.Vec3{10, 0, 3}, mgl64.Vec3{10.4, 170, 3.3}, mgl64.Ident4()},
		{"scaled and moved", mgl64.Vec3{-1, -2, -1}, mgl64.Vec3{1, 2, 1}, mgl64.Translate3D(5, -7, 2).Mul4(mgl64.Scale3D(30, 30, 30))},
		{"rotated", mgl64.Vec3{0, 0, 0}, mgl64.Vec3{4, 1, 1}, mgl64.HomogRotate3DY(math.Pi / 2)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := scene.Normalize(boxAsset(tc.min, tc.max, tc.world))
			require.NoError(t, err)

			box, ok := scene.Bounds(n.Asset.Root)
			require.True(t, ok)
			assert.InDelta(t, scene.TargetSize, box.MaxDim(), tol)
			assert.InDelta(t, scene.VerticalBias, box.Center().Y(), tol)
			assert.InDelta(t, 0, box.Center().X(), tol)
			assert.InDelta(t, 0, box.Center().Z(), tol)
		})
	}
}

func TestNormalize_DoesNotMutateSource(t *testing.T) {
	src := boxAsset(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{2, 4, 2}, mgl64.Ident4())
	before, _ := scene.Bounds(src.Root)

	n, err := scene.Normalize(src)
	require.NoError(t, err)
	after, _ := scene.Bounds(src.Root)

	assert.Equal(t, before, after)
	assert.NotSame(t, src.Root, n.Asset.Root.Children[0])
	assert.InDelta(t, 1.5/4, n.Transform.Scale, tol)
}

func TestNormalize_TransformApplyMatchesBounds(t *testing.T) {
	src := boxAsset(mgl64.Vec3{1, 1, 1}, mgl64.Vec3{3, 9, 2}, mgl64.Ident4())
	n, err := scene.Normalize(src)
	require.NoError(t, err)

	center := n.Transform.Apply(mgl64.Vec3{2, 5, 1.5})
	assert.InDelta(t, 0.2, center.Y(), tol)
	assert.InDelta(t, 0, center.X(), tol)
}

func TestNormalize_Degenerate(t *testing.T) {
	point := &scene.Asset{Name: "dot", Root: scene.NewMesh("dot", []mgl64.Vec3{{1, 2, 3}, {1, 2, 3}})}
	n, err := scene.Normalize(point)
	require.ErrorIs(t, err, scene.ErrDegenerateGeometry)
	require.NotNil(t, n)
	assert.Equal(t, 1.0, n.Transform.Scale)
	box, ok := scene.Bounds(n.Asset.Root)
	require.True(t, ok)
	assert.InDelta(t, 0.2, box.Center().Y(), tol)

	empty := &scene.Asset{Name: "empty", Root: scene.NewGroup("empty")}
	n, err = scene.Normalize(empty)
	require.ErrorIs(t, err, scene.ErrDegenerateGeometry)
	assert.Equal(t, 1.0, n.Transform.Scale)
}

func TestWalk_ResolvesNestedTransforms(t *testing.T) {
	leaf := scene.NewMesh("leaf", []mgl64.Vec3{{0, 0, 0}})
	root := scene.NewTransform("a", mgl64.Translate3D(1, 0, 0),
		scene.NewGroup("g", scene.NewTransform("b", mgl64.Translate3D(0, 2, 0), leaf)))

	var got mgl64.Vec3
	var kinds []scene.Kind
	err := scene.Walk(root, func(n *scene.Node, world mgl64.Mat4) error {
		kinds = append(kinds, n.Kind)
		if n == leaf {
			got = mgl64.TransformCoordinate(mgl64.Vec3{}, world)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []scene.Kind{scene.KindTransform, scene.KindGroup, scene.KindTransform, scene.KindMesh}, kinds)
	assert.InDelta(t, 1, got.X(), tol)
	assert.InDelta(t, 2, got.Y(), tol)
}

func TestParseGLB(t *testing.T) {
	data := scenetest.GLB(t, scenetest.BoxCorners([3]float32{-1, 0, -0.5}, [3]float32{1, 4, 0.5}), [3]float64{3, 0, 0}, 2)

	asset, err := scene.ParseGLB("male.glb", data)
	require.NoError(t, err)
	assert.Equal(t, 8, asset.VertexCount())

	box, ok := scene.Bounds(asset.Root)
	require.True(t, ok)
	assert.InDelta(t, 1, box.Min.X(), tol)
	assert.InDelta(t, 5, box.Max.X(), tol)
	assert.InDelta(t, 8, box.Max.Y(), tol)

	n, err := scene.Normalize(asset)
	require.NoError(t, err)
	nb, _ := scene.Bounds(n.Asset.Root)
	assert.InDelta(t, 1.5, nb.MaxDim(), tol)
}

func TestParseGLB_SceneSelection(t *testing.T) {
	corners := scenetest.BoxCorners([3]float32{0, 0, 0}, [3]float32{1, 1, 1})

	first := uint32(0)
	asset, err := scene.ParseGLB("first", scenetest.MultiSceneGLB(t, corners, &first))
	require.NoError(t, err)
	assert.Equal(t, 0, asset.VertexCount())

	second := uint32(1)
	asset, err = scene.ParseGLB("second", scenetest.MultiSceneGLB(t, corners, &second))
	require.NoError(t, err)
	assert.Equal(t, 8, asset.VertexCount())

	// Without scenes every parentless node is a root; the mesh node is a child
	// and must not be visited twice.
	asset, err = scene.ParseGLB("sceneless", scenetest.MultiSceneGLB(t, corners, nil))
	require.NoError(t, err)
	assert.Equal(t, 8, asset.VertexCount())
	assert.Len(t, asset.Root.Children, 2)
}

func TestParseGLB_Malformed(t *testing.T) {
	_, err := scene.ParseGLB("junk", []byte("definitely not gltf"))
	assert.ErrorIs(t, err, scene.ErrParse)
}

func TestParseGLB_EmptyDocumentIsDegenerate(t *testing.T) {
	asset, err := scene.ParseGLB("empty", scenetest.EmptyGLB(t))
	require.NoError(t, err)
	assert.Equal(t, 0, asset.VertexCount())

	_, err = scene.Normalize(asset)
	assert.ErrorIs(t, err, scene.ErrDegenerateGeometry)
}
