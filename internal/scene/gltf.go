package scene

import (
	"bytes"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

const positionAttribute = "POSITION"

// ParseGLB decodes a glTF document (binary or JSON with embedded buffers)
// into an Asset. Every failure wraps ErrParse.
func ParseGLB(name string, data []byte) (*Asset, error) {
	var doc gltf.Document
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, name, err)
	}
	b := builder{doc: &doc, meshes: map[int]*Mesh{}, visiting: map[int]bool{}}
	roots, err := b.rootNodes()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, name, err)
	}
	root := NewGroup(name)
	for _, idx := range roots {
		n, err := b.node(idx)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrParse, name, err)
		}
		root.Children = append(root.Children, n)
	}
	return &Asset{Name: name, Root: root}, nil
}

type builder struct {
	doc      *gltf.Document
	meshes   map[int]*Mesh
	visiting map[int]bool
}

// rootNodes picks the default scene, the first scene, or every parentless node.
func (b *builder) rootNodes() ([]int, error) {
	if len(b.doc.Scenes) > 0 {
		idx := 0
		if b.doc.Scene != nil {
			idx = int(*b.doc.Scene)
		}
		if idx >= len(b.doc.Scenes) {
			return nil, fmt.Errorf("scene index %d out of range", idx)
		}
		nodes := make([]int, len(b.doc.Scenes[idx].Nodes))
		for i, n := range b.doc.Scenes[idx].Nodes {
			nodes[i] = int(n)
		}
		return nodes, nil
	}
	child := make(map[int]bool)
	for _, n := range b.doc.Nodes {
		for _, c := range n.Children {
			child[int(c)] = true
		}
	}
	var roots []int
	for i := range b.doc.Nodes {
		if !child[i] {
			roots = append(roots, i)
		}
	}
	return roots, nil
}

func (b *builder) node(idx int) (*Node, error) {
	if idx < 0 || idx >= len(b.doc.Nodes) {
		return nil, fmt.Errorf("node index %d out of range", idx)
	}
	if b.visiting[idx] {
		return nil, fmt.Errorf("node %d is its own ancestor", idx)
	}
	b.visiting[idx] = true
	defer delete(b.visiting, idx)

	src := b.doc.Nodes[idx]
	out := NewTransform(src.Name, localMatrix(src))
	if src.Mesh != nil {
		m, err := b.mesh(int(*src.Mesh))
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, &Node{Kind: KindMesh, Name: m.Name, Mesh: m})
	}
	for _, c := range src.Children {
		child, err := b.node(int(c))
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, child)
	}
	return out, nil
}

func (b *builder) mesh(idx int) (*Mesh, error) {
	if m, ok := b.meshes[idx]; ok {
		return m, nil
	}
	if idx < 0 || idx >= len(b.doc.Meshes) {
		return nil, fmt.Errorf("mesh index %d out of range", idx)
	}
	src := b.doc.Meshes[idx]
	m := &Mesh{Name: src.Name}
	for _, prim := range src.Primitives {
		acrIdx, ok := prim.Attributes[positionAttribute]
		if !ok {
			continue
		}
		if int(acrIdx) >= len(b.doc.Accessors) {
			return nil, fmt.Errorf("accessor index %d out of range", acrIdx)
		}
		pos, err := modeler.ReadPosition(b.doc, b.doc.Accessors[acrIdx], nil)
		if err != nil {
			return nil, fmt.Errorf("mesh %q positions: %w", src.Name, err)
		}
		for _, p := range pos {
			m.Positions = append(m.Positions, mgl64.Vec3{float64(p[0]), float64(p[1]), float64(p[2])})
		}
	}
	b.meshes[idx] = m
	return m, nil
}

// localMatrix prefers an explicit node matrix and otherwise composes T·R·S.
func localMatrix(n *gltf.Node) mgl64.Mat4 {
	if m := mgl64.Mat4(n.MatrixOrDefault()); m != mgl64.Ident4() {
		return m
	}
	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()
	rot := mgl64.Quat{W: r[3], V: mgl64.Vec3{r[0], r[1], r[2]}}.Normalize()
	return mgl64.Translate3D(t[0], t[1], t[2]).
		Mul4(rot.Mat4()).
		Mul4(mgl64.Scale3D(s[0], s[1], s[2]))
}
