// Package scenetest builds small glTF binary documents for tests.
package scenetest

import (
	"bytes"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// BoxCorners returns the eight corners of the box spanned by min and max.
func BoxCorners(min, max [3]float32) [][3]float32 {
	var out [][3]float32
	for _, x := range []float32{min[0], max[0]} {
		for _, y := range []float32{min[1], max[1]} {
			for _, z := range []float32{min[2], max[2]} {
				out = append(out, [3]float32{x, y, z})
			}
		}
	}
	return out
}

// GLB encodes a single-mesh document whose root node is translated by
// translation and uniformly scaled by scale.
func GLB(t testing.TB, positions [][3]float32, translation [3]float64, scale float64) []byte {
	t.Helper()
	doc := gltf.NewDocument()
	acc := modeler.WritePosition(doc, positions)
	doc.Meshes = []*gltf.Mesh{{
		Name: "body",
		Primitives: []*gltf.Primitive{{
			Attributes: map[string]uint32{"POSITION": acc},
		}},
	}}
	doc.Nodes = []*gltf.Node{
		{Name: "root", Translation: translation, Scale: [3]float64{scale, scale, scale}, Children: []uint32{1}},
		{Name: "mesh", Mesh: gltf.Index(0)},
	}
	doc.Scenes[0].Nodes = []uint32{0}
	return encode(t, doc)
}

// MultiSceneGLB encodes two scenes: scene 0 holds an empty node, scene 1 the
// mesh. defaultScene selects the document's default; nil drops every scene so
// roots are found from the node hierarchy alone.
func MultiSceneGLB(t testing.TB, positions [][3]float32, defaultScene *uint32) []byte {
	t.Helper()
	doc := gltf.NewDocument()
	acc := modeler.WritePosition(doc, positions)
	doc.Meshes = []*gltf.Mesh{{
		Name:       "body",
		Primitives: []*gltf.Primitive{{Attributes: map[string]uint32{"POSITION": acc}}},
	}}
	doc.Nodes = []*gltf.Node{
		{Name: "empty"},
		{Name: "root", Children: []uint32{2}},
		{Name: "mesh", Mesh: gltf.Index(0)},
	}
	doc.Scene = defaultScene
	if defaultScene == nil {
		doc.Scenes = nil
	} else {
		doc.Scenes = []*gltf.Scene{{Nodes: []uint32{0}}, {Nodes: []uint32{1}}}
	}
	return encode(t, doc)
}

// EmptyGLB encodes a document with a single node and no geometry.
func EmptyGLB(t testing.TB) []byte {
	t.Helper()
	doc := gltf.NewDocument()
	doc.Buffers = nil
	doc.Nodes = []*gltf.Node{{Name: "empty"}}
	doc.Scenes[0].Nodes = []uint32{0}
	return encode(t, doc)
}

func encode(t testing.TB, doc *gltf.Document) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		t.Fatalf("encode glb: %v", err)
	}
	return buf.Bytes()
}
