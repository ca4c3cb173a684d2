//go:build tinygo || !cgo

package glprog

import (
	"image"
	"time"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/nodemat"
)

func Init1x1GLFW() (terminate func(), err error) {
	return nil, errNoCGO
}

func link(vertex, fragment string) (*Program, error) {
	return nil, errNoCGO
}

type Program struct{}

var _ nodemat.LinkedProgram = (*Program)(nil)

func (p *Program) Use()       {}
func (p *Program) ID() uint32 { return 0 }
func (p *Program) Delete()    {}

func (p *Program) SetFloat(name string, v float32) error     { return errNoCGO }
func (p *Program) SetInt(name string, v int32) error         { return errNoCGO }
func (p *Program) SetVec2(name string, v ms2.Vec) error      { return errNoCGO }
func (p *Program) SetVec3(name string, v ms3.Vec) error      { return errNoCGO }
func (p *Program) SetVec4(name string, v nodemat.Vec4) error { return errNoCGO }
func (p *Program) SetMat4(name string, m [16]float32) error  { return errNoCGO }
func (p *Program) SetSampler(name string, unit int, tex nodemat.Texture) error {
	return errNoCGO
}

type Texture struct{}

func NewTexture(img image.Image) (*Texture, error) {
	return nil, errNoCGO
}

func (t *Texture) TextureID() uint32         { return 0 }
func (t *Texture) Size() (width, height int) { return 0, 0 }
func (t *Texture) Delete()                   {}

// Clock fills the time system values of a scene from the wall clock.
type Clock struct {
	start, last time.Time
}

func (c *Clock) Tick(scene *nodemat.SceneState) {
	now := time.Now()
	if c.start.IsZero() {
		c.start, c.last = now, now
	}
	scene.Time = float32(now.Sub(c.start).Seconds())
	scene.DeltaTime = float32(now.Sub(c.last).Seconds())
	c.last = now
}
