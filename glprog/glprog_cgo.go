//go:build !tinygo && cgo

package glprog

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"github.com/soypat/nodemat"
)

// Init1x1GLFW starts a 1x1 sized GLFW window with a current OpenGL context so that
// programs can be compiled. It returns a termination function to call when done.
func Init1x1GLFW() (terminate func(), err error) {
	_, terminate, err = glgl.InitWithCurrentWindow33(glgl.WindowConfig{
		Title:   "nodemat",
		Version: [2]int{4, 6},
		Width:   1,
		Height:  1,
	})
	return terminate, err
}

func link(vertex, fragment string) (*Program, error) {
	prog, err := glgl.CompileProgram(glgl.ShaderSource{
		Vertex:   nulTerminated(vertex),
		Fragment: nulTerminated(fragment),
	})
	if err != nil {
		return nil, fmt.Errorf("%s\n%s\n%w", vertex, fragment, err)
	}
	return &Program{prog: prog, locations: make(map[string]int32)}, nil
}

// Program is a linked OpenGL program. It implements [nodemat.UniformSetter] and
// [nodemat.LinkedProgram]. Setting a uniform makes the program current.
type Program struct {
	prog      glgl.Program
	locations map[string]int32
}

var _ nodemat.LinkedProgram = (*Program)(nil)

// Use makes the program current for drawing.
func (p *Program) Use() { p.prog.Bind() }

// ID returns the OpenGL program name.
func (p *Program) ID() uint32 { return p.prog.ID() }

// Delete implements [nodemat.LinkedProgram].
func (p *Program) Delete() {
	p.prog.Delete()
	clear(p.locations)
}

// location returns the uniform location of name, or -1 when the uniform is not
// active, which happens when the GLSL compiler removed an unused declaration.
func (p *Program) location(name string) int32 {
	p.prog.Bind()
	if loc, ok := p.locations[name]; ok {
		return loc
	}
	loc, err := p.prog.UniformLocation(nulTerminated(name))
	if err != nil {
		nodemat.Logger().Warn("uniform not active", slog.String("uniform", name), slog.String("err", err.Error()))
		loc = -1
	}
	p.locations[name] = loc
	return loc
}

func (p *Program) SetFloat(name string, v float32) error {
	if loc := p.location(name); loc >= 0 {
		gl.Uniform1f(loc, v)
	}
	return glgl.Err()
}

func (p *Program) SetInt(name string, v int32) error {
	if loc := p.location(name); loc >= 0 {
		gl.Uniform1i(loc, v)
	}
	return glgl.Err()
}

func (p *Program) SetVec2(name string, v ms2.Vec) error {
	if loc := p.location(name); loc >= 0 {
		gl.Uniform2f(loc, v.X, v.Y)
	}
	return glgl.Err()
}

func (p *Program) SetVec3(name string, v ms3.Vec) error {
	if loc := p.location(name); loc >= 0 {
		gl.Uniform3f(loc, v.X, v.Y, v.Z)
	}
	return glgl.Err()
}

func (p *Program) SetVec4(name string, v nodemat.Vec4) error {
	if loc := p.location(name); loc >= 0 {
		gl.Uniform4f(loc, v.X, v.Y, v.Z, v.W)
	}
	return glgl.Err()
}

// SetMat4 uploads a row-major matrix, transposed by OpenGL into column-major.
func (p *Program) SetMat4(name string, rowMajor [16]float32) error {
	if loc := p.location(name); loc >= 0 {
		gl.UniformMatrix4fv(loc, 1, true, &rowMajor[0])
	}
	return glgl.Err()
}

// SetSampler binds tex to texture unit and points the sampler uniform at it.
func (p *Program) SetSampler(name string, unit int, tex nodemat.Texture) error {
	if tex == nil {
		return errors.New("nil texture")
	}
	loc := p.location(name)
	if loc < 0 {
		return nil
	}
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, tex.TextureID())
	gl.Uniform1i(loc, int32(unit))
	return glgl.Err()
}

// Texture is a 2D OpenGL texture. It implements [nodemat.Texture].
type Texture struct {
	id            uint32
	width, height int
}

// NewTexture uploads img as an RGBA8 texture with linear filtering. The first row of
// img becomes the bottom row of the texture, use [FlipVertical] to sample images
// with uv origin at the top left.
func NewTexture(img image.Image) (*Texture, error) {
	rgba := ToRGBA(img)
	b := rgba.Bounds()
	if b.Empty() {
		return nil, errors.New("empty texture image")
	}
	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(b.Dx()), int32(b.Dy()), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(rgba.Pix))
	err := glgl.Err()
	if err != nil {
		gl.DeleteTextures(1, &id)
		return nil, err
	}
	return &Texture{id: id, width: b.Dx(), height: b.Dy()}, nil
}

// TextureID implements [nodemat.Texture].
func (t *Texture) TextureID() uint32 { return t.id }

// Size returns the texture dimensions in texels.
func (t *Texture) Size() (width, height int) { return t.width, t.height }

// Delete releases the texture.
func (t *Texture) Delete() {
	gl.DeleteTextures(1, &t.id)
	t.id = 0
}

// Clock fills the time system values of a scene from the GLFW timer.
type Clock struct {
	start, last float64
	started     bool
}

// Tick updates scene Time with the seconds since the first tick and DeltaTime
// with the seconds since the previous tick.
func (c *Clock) Tick(scene *nodemat.SceneState) {
	now := glfw.GetTime()
	if !c.started {
		c.start, c.last, c.started = now, now, true
	}
	scene.Time = float32(now - c.start)
	scene.DeltaTime = float32(now - c.last)
	c.last = now
}
