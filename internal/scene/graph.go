// Package scene holds the in-memory body model: a small tagged-variant node
// tree parsed from glTF binary documents, plus bounding-box normalization.
package scene

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	// ErrParse is returned when decrypted bytes are not a usable scene document.
	ErrParse = errors.New("scene: parse failed")
	// ErrDegenerateGeometry is returned when the bounding box has zero volume.
	ErrDegenerateGeometry = errors.New("scene: degenerate geometry")
)

// Kind tags a Node.
type Kind int

const (
	KindGroup Kind = iota
	KindTransform
	KindMesh
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindTransform:
		return "transform"
	case KindMesh:
		return "mesh"
	default:
		return "unknown"
	}
}

// Mesh is vertex geometry in its node's local space.
type Mesh struct {
	Name      string
	Positions []mgl64.Vec3
}

// Node is one element of the scene tree. Only KindTransform nodes use Local;
// only KindMesh nodes carry a Mesh.
type Node struct {
	Kind     Kind
	Name     string
	Local    mgl64.Mat4
	Mesh     *Mesh
	Children []*Node
}

func NewGroup(name string, children ...*Node) *Node {
	return &Node{Kind: KindGroup, Name: name, Children: children}
}

func NewTransform(name string, local mgl64.Mat4, children ...*Node) *Node {
	return &Node{Kind: KindTransform, Name: name, Local: local, Children: children}
}

func NewMesh(name string, positions []mgl64.Vec3) *Node {
	return &Node{Kind: KindMesh, Name: name, Mesh: &Mesh{Name: name, Positions: positions}}
}

// Clone deep-copies the subtree rooted at n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Kind: n.Kind, Name: n.Name, Local: n.Local}
	if n.Mesh != nil {
		out.Mesh = &Mesh{Name: n.Mesh.Name, Positions: append([]mgl64.Vec3(nil), n.Mesh.Positions...)}
	}
	if len(n.Children) > 0 {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// WalkFunc visits a node with its resolved world matrix.
type WalkFunc func(n *Node, world mgl64.Mat4) error

// Walk visits root and its descendants depth-first, resolving transforms on
// the way down. Returning an error stops the walk.
func Walk(root *Node, fn WalkFunc) error {
	return walk(root, mgl64.Ident4(), fn)
}

func walk(n *Node, parent mgl64.Mat4, fn WalkFunc) error {
	if n == nil {
		return nil
	}
	world := parent
	if n.Kind == KindTransform {
		world = parent.Mul4(n.Local)
	}
	if err := fn(n, world); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := walk(c, world, fn); err != nil {
			return err
		}
	}
	return nil
}

// Asset is a parsed body model. Cached assets are shared; callers clone
// before mutating.
type Asset struct {
	Name string
	Root *Node
}

func (a *Asset) Clone() *Asset {
	return &Asset{Name: a.Name, Root: a.Root.Clone()}
}

// VertexCount returns the number of mesh vertices in the asset.
func (a *Asset) VertexCount() int {
	n := 0
	_ = Walk(a.Root, func(node *Node, _ mgl64.Mat4) error {
		if node.Kind == KindMesh && node.Mesh != nil {
			n += len(node.Mesh.Positions)
		}
		return nil
	})
	return n
}

// Box is an axis-aligned bounding box.
type Box struct {
	Min, Max mgl64.Vec3
}

func (b Box) Size() mgl64.Vec3   { return b.Max.Sub(b.Min) }
func (b Box) Center() mgl64.Vec3 { return b.Min.Add(b.Max).Mul(0.5) }

// MaxDim is the largest edge length.
func (b Box) MaxDim() float64 {
	s := b.Size()
	return math.Max(s.X(), math.Max(s.Y(), s.Z()))
}

// Bounds computes the world-space bounding box of every mesh vertex under
// root. ok is false when there are no vertices.
func Bounds(root *Node) (box Box, ok bool) {
	inf := math.Inf(1)
	box = Box{Min: mgl64.Vec3{inf, inf, inf}, Max: mgl64.Vec3{-inf, -inf, -inf}}
	_ = Walk(root, func(n *Node, world mgl64.Mat4) error {
		if n.Kind != KindMesh || n.Mesh == nil {
			return nil
		}
		for _, p := range n.Mesh.Positions {
			w := mgl64.TransformCoordinate(p, world)
			for i := 0; i < 3; i++ {
				box.Min[i] = math.Min(box.Min[i], w[i])
				box.Max[i] = math.Max(box.Max[i], w[i])
			}
			ok = true
		}
		return nil
	})
	if !ok {
		return Box{}, false
	}
	return box, true
}
