package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// TargetSize is the largest bounding-box dimension after normalization.
	TargetSize = 1.5
	// VerticalBias lifts the figure so the default camera frames it slightly above center.
	VerticalBias = 0.2

	degenerateEpsilon = 1e-9
)

// Transform is the uniform scale and translation applied to a model clone.
type Transform struct {
	Scale       float64
	Translation mgl64.Vec3
}

// Matrix returns T·S.
func (t Transform) Matrix() mgl64.Mat4 {
	return mgl64.Translate3D(t.Translation.X(), t.Translation.Y(), t.Translation.Z()).
		Mul4(mgl64.Scale3D(t.Scale, t.Scale, t.Scale))
}

// Apply maps a point from model space into normalized space.
func (t Transform) Apply(p mgl64.Vec3) mgl64.Vec3 {
	return p.Mul(t.Scale).Add(t.Translation)
}

// Normalized is a transformed clone of a cached asset.
type Normalized struct {
	Asset     *Asset
	Transform Transform
}

// Normalize clones asset and wraps the clone in a transform node so that its
// largest dimension is TargetSize and its bounding-box center sits at
// (0, VerticalBias, 0). The source asset is never modified.
//
// Zero-volume or empty geometry yields a usable result with scale 1 together
// with ErrDegenerateGeometry.
func Normalize(asset *Asset) (*Normalized, error) {
	if asset == nil || asset.Root == nil {
		return nil, fmt.Errorf("%w: nil asset", ErrParse)
	}
	clone := asset.Clone()
	bias := mgl64.Vec3{0, VerticalBias, 0}

	box, ok := Bounds(clone.Root)
	var center mgl64.Vec3
	if ok {
		center = box.Center()
	}
	if !ok || box.MaxDim() < degenerateEpsilon {
		t := Transform{Scale: 1, Translation: bias.Sub(center)}
		return wrap(clone, t), fmt.Errorf("%w: %s has max dimension %g", ErrDegenerateGeometry, asset.Name, box.MaxDim())
	}

	scale := TargetSize / box.MaxDim()
	t := Transform{Scale: scale, Translation: bias.Sub(center.Mul(scale))}
	return wrap(clone, t), nil
}

func wrap(clone *Asset, t Transform) *Normalized {
	root := NewTransform("normalize", t.Matrix(), clone.Root)
	return &Normalized{
		Asset:     &Asset{Name: clone.Name, Root: root},
		Transform: t,
	}
}
