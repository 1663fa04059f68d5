// Package camera animates the viewer camera toward the selected marker and
// back out to the whole-body view.
package camera

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// Rate is the fraction of the remaining distance covered per second.
	Rate = 2.5
	// Epsilon is the camera distance at which an animation is complete.
	Epsilon = 0.05
	// MarkerDistance is how far the camera sits from a focused marker.
	MarkerDistance = 2.5
	// OverviewDistance is the camera distance from DefaultTarget after deselect.
	OverviewDistance = 4.0

	minDirSq = 0.001
)

var (
	DefaultTarget = r3.Vec{X: 0, Y: 0.3, Z: 0}
	DefaultCamera = r3.Vec{X: 0, Y: 0, Z: 4}
	front         = r3.Vec{X: 0, Y: 0, Z: 1}
)

// Pose is a camera placement: where it is and what it looks at.
type Pose struct {
	Camera r3.Vec
	Target r3.Vec
}

// FocusFor returns the pose that frames marker head-on. The camera is pushed
// out horizontally so it never looks steeply down on the marker.
func FocusFor(marker r3.Vec) Pose {
	dir := r3.Vec{X: marker.X, Z: marker.Z}
	if r3.Norm2(dir) < minDirSq {
		dir = front
	} else {
		dir = r3.Unit(dir)
	}
	return Pose{Camera: r3.Add(marker, r3.Scale(MarkerDistance, dir)), Target: marker}
}

// Overview returns the whole-body pose that keeps the viewing angle of a
// camera currently at cam.
func Overview(cam r3.Vec) Pose {
	dir := r3.Sub(cam, DefaultTarget)
	if r3.Norm2(dir) < minDirSq {
		dir = front
	} else {
		dir = r3.Unit(dir)
	}
	return Pose{Camera: r3.Add(DefaultTarget, r3.Scale(OverviewDistance, dir)), Target: DefaultTarget}
}

// Choreographer owns the live camera pose. It is safe for concurrent use;
// the frame loop calls Update while selection changes arrive elsewhere.
type Choreographer struct {
	mu        sync.Mutex
	pose      Pose
	focus     Pose
	animating bool
}

// New returns a choreographer at the default whole-body pose.
func New() *Choreographer {
	p := Pose{Camera: DefaultCamera, Target: DefaultTarget}
	return &Choreographer{pose: p, focus: p}
}

// Select focuses marker, or the overview when marker is nil, and starts
// animating toward it.
func (c *Choreographer) Select(marker *r3.Vec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if marker != nil {
		c.focus = FocusFor(*marker)
	} else {
		c.focus = Overview(c.pose.Camera)
	}
	c.animating = true
}

// Update advances the animation by dt seconds and returns the new pose.
// The target always eases toward the focus; the camera only while animating.
func (c *Choreographer) Update(dt float64) Pose {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := clamp(Rate*dt, 0, 1)
	c.pose.Target = lerp(c.pose.Target, c.focus.Target, f)
	if c.animating {
		c.pose.Camera = lerp(c.pose.Camera, c.focus.Camera, f)
		if r3.Norm(r3.Sub(c.pose.Camera, c.focus.Camera)) < Epsilon {
			c.animating = false
		}
	}
	return c.pose
}

// Interrupt hands the camera to the user until the next selection change.
func (c *Choreographer) Interrupt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.animating = false
}

// Orbit moves the camera as direct user manipulation does. It interrupts any
// running animation.
func (c *Choreographer) Orbit(cam r3.Vec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.animating = false
	c.pose.Camera = cam
}

func (c *Choreographer) Pose() Pose {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pose
}

// Focus returns the pose being animated toward.
func (c *Choreographer) Focus() Pose {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.focus
}

func (c *Choreographer) IsAnimating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.animating
}

func lerp(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
