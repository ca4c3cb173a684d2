// Package glbuild contains the GLSL text primitives used to generate node material
// shader programs: literal formatting, declaration appenders, free name allocation
// and shader function includes.
package glbuild

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strconv"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

// VersionStr is the default version directive prepended to generated programs.
const VersionStr = "#version 330 core\n"

// PrecisionStr is the default float precision statement. Ignored by desktop GL
// but required by GLSL ES targets.
const PrecisionStr = "precision highp float;\n"

// ShaderFunction is a GLSL function definition that may be included
// in a generated program. Functions are deduplicated by name.
type ShaderFunction struct {
	// Name of the GLSL function as it is called in generated code.
	Name string
	// Source is the full function definition.
	Source []byte
}

// MakeShaderFunction parses the name of the GLSL function definition in shaderDef and
// returns the resulting [ShaderFunction].
func MakeShaderFunction(shaderDef []byte) (sf ShaderFunction, err error) {
	shaderDef = bytes.TrimSpace(shaderDef)
	fnNameEnd := bytes.IndexByte(shaderDef, '(')
	fnNameStart := bytes.IndexByte(shaderDef, ' ')
	if fnNameEnd < 0 || fnNameStart < 0 || fnNameStart > fnNameEnd {
		return ShaderFunction{}, errors.New("unable to parse function name")
	}
	name := shaderDef[fnNameStart:fnNameEnd]
	name = bytes.TrimSpace(name)
	if len(name) == 0 {
		return ShaderFunction{}, errors.New("empty function name")
	}
	return ShaderFunction{Name: string(name), Source: shaderDef}, nil
}

// Equal reports whether both functions share name and source.
func (sf ShaderFunction) Equal(other ShaderFunction) bool {
	return sf.Name == other.Name && bytes.Equal(sf.Source, other.Source)
}

// AppendDefineDecl appends a preprocessor define. aliasReplace may be empty.
func AppendDefineDecl(b []byte, aliasToDefine, aliasReplace string) []byte {
	b = append(b, "#define "...)
	b = append(b, aliasToDefine...)
	if aliasReplace != "" {
		b = append(b, ' ')
		b = append(b, aliasReplace...)
	}
	b = append(b, '\n')
	return b
}

// AppendIfdef opens a conditional block on define. If not is true the block is compiled
// only when the define is absent.
func AppendIfdef(b []byte, define string, not bool) []byte {
	if not {
		b = append(b, "#ifndef "...)
	} else {
		b = append(b, "#ifdef "...)
	}
	b = append(b, define...)
	b = append(b, '\n')
	return b
}

func AppendEndif(b []byte) []byte {
	return append(b, "#endif\n"...)
}

// AppendUniformDecl appends a uniform declaration:
//
//	uniform <typename> <name>;
func AppendUniformDecl(b []byte, typename, name string) []byte {
	return appendQualifiedDecl(b, "uniform ", typename, name)
}

// AppendAttributeDecl appends a vertex input attribute declaration:
//
//	in <typename> <name>;
func AppendAttributeDecl(b []byte, typename, name string) []byte {
	return appendQualifiedDecl(b, "in ", typename, name)
}

// AppendVaryingDecl appends a varying declaration for the vertex (out) or
// fragment (in) stage.
func AppendVaryingDecl(b []byte, vertexStage bool, typename, name string) []byte {
	if vertexStage {
		return appendQualifiedDecl(b, "out ", typename, name)
	}
	return appendQualifiedDecl(b, "in ", typename, name)
}

// AppendSamplerDecl appends a 2D sampler uniform declaration.
func AppendSamplerDecl(b []byte, name string) []byte {
	return appendQualifiedDecl(b, "uniform ", "sampler2D", name)
}

func appendQualifiedDecl(b []byte, qualifier, typename, name string) []byte {
	b = append(b, qualifier...)
	b = append(b, typename...)
	b = append(b, ' ')
	b = append(b, name...)
	b = append(b, ';', '\n')
	return b
}

// AppendConstDecl appends a constant declaration whose value is the literal appended
// by appendLiteral:
//
//	const <typename> <name> = <literal>;
func AppendConstDecl(b []byte, typename, name string, appendLiteral func([]byte) []byte) []byte {
	b = append(b, "const "...)
	b = append(b, typename...)
	b = append(b, ' ')
	b = append(b, name...)
	b = append(b, " = "...)
	b = appendLiteral(b)
	b = append(b, ';', '\n')
	return b
}

// AppendLocalDecl appends the left hand side of a local variable declaration:
//
//	<typename> <name> =
func AppendLocalDecl(b []byte, typename, name string) []byte {
	b = append(b, typename...)
	b = append(b, ' ')
	b = append(b, name...)
	b = append(b, " = "...)
	return b
}

func AppendVec2(b []byte, v ms2.Vec) []byte {
	b = append(b, "vec2("...)
	arr := v.Array()
	b = AppendFloats(b, ',', '-', '.', arr[:]...)
	return append(b, ')')
}

func AppendVec3(b []byte, v ms3.Vec) []byte {
	b = append(b, "vec3("...)
	arr := v.Array()
	b = AppendFloats(b, ',', '-', '.', arr[:]...)
	return append(b, ')')
}

func AppendVec4(b []byte, x, y, z, w float32) []byte {
	b = append(b, "vec4("...)
	b = AppendFloats(b, ',', '-', '.', x, y, z, w)
	return append(b, ')')
}

// AppendMat4 appends a mat4 constructor from a row-major array. GLSL constructors take
// column-major arguments so the array is transposed while appending.
func AppendMat4(b []byte, rowMajor [16]float32) []byte {
	return appendMat(b, "mat4", 4, 4, rowMajor[:])
}

func appendMat(b []byte, typename string, row, col int, arr []float32) []byte {
	b = append(b, typename...)
	b = append(b, '(')
	for i := 0; i < row; i++ {
		for j := 0; j < col; j++ {
			v := arr[j*row+i] // Column major access, as per OpenGL standard.
			b = AppendFloat(b, '-', '.', v)
			last := i == row-1 && j == col-1
			if !last {
				b = append(b, ',')
			}
		}
	}
	return append(b, ')')
}

const decimalDigits = 9

// AppendFloat appends v with trailing zeroes trimmed. neg and decimal replace the
// minus sign and decimal point so the result may be used inside identifiers.
func AppendFloat(b []byte, neg, decimal byte, v float32) []byte {
	start := len(b)
	b = strconv.AppendFloat(b, float64(v), 'f', decimalDigits, 32)
	idx := bytes.IndexByte(b[start:], '.')
	if decimal != '.' && idx >= 0 {
		b[start+idx] = decimal
	}
	if b[start] == '-' {
		b[start] = neg
	}
	// Finally trim zeroes.
	end := len(b)
	for i := len(b) - 1; idx >= 0 && i > idx+start && b[i] == '0'; i-- {
		end--
	}
	return b[:end]
}

func AppendFloats(b []byte, sep, neg, decimal byte, s ...float32) []byte {
	for i, v := range s {
		b = AppendFloat(b, neg, decimal, v)
		if sep != 0 && i != len(s)-1 {
			b = append(b, sep)
		}
	}
	return b
}

// AppendAssign appends a plain assignment statement.
func AppendAssign(b []byte, lhs, rhs string) []byte {
	b = append(b, lhs...)
	b = append(b, " = "...)
	b = append(b, rhs...)
	b = append(b, ';', '\n')
	return b
}

// Swizzle is a component selection mask over x, y, z and w.
type Swizzle uint8

const (
	xBit Swizzle = 1 << iota
	yBit
	zBit
	wBit
)

func NewSwizzle(x, y, z, w bool) Swizzle {
	return Swizzle(b2i(x) | b2i(y)<<1 | b2i(z)<<2 | b2i(w)<<3)
}

// SwizzleN selects the first n components.
func SwizzleN(n int) Swizzle {
	return Swizzle(1<<n - 1)
}

func (sw Swizzle) X() bool { return sw&xBit != 0 }
func (sw Swizzle) Y() bool { return sw&yBit != 0 }
func (sw Swizzle) Z() bool { return sw&zBit != 0 }
func (sw Swizzle) W() bool { return sw&wBit != 0 }

func (sw Swizzle) AppendMapped(b []byte, Map [4]byte) []byte {
	if sw.X() {
		b = append(b, Map[0])
	}
	if sw.Y() {
		b = append(b, Map[1])
	}
	if sw.Z() {
		b = append(b, Map[2])
	}
	if sw.W() {
		b = append(b, Map[3])
	}
	return b
}

func (sw Swizzle) AppendMapped_xyzw(b []byte) []byte {
	return sw.AppendMapped(b, [4]byte{'x', 'y', 'z', 'w'})
}

func (sw Swizzle) AppendMapped_rgba(b []byte) []byte {
	return sw.AppendMapped(b, [4]byte{'r', 'g', 'b', 'a'})
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Hash mixes b into in and returns the result. Used to key generated sources and define sets.
func Hash(b []byte, in uint64) uint64 {
	x := in
	for len(b) >= 8 {
		x ^= binary.LittleEndian.Uint64(b)
		x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
		x = (x ^ (x >> 27)) * 0x94d049bb133111eb
		x ^= x >> 31
		b = b[8:]
	}
	if len(b) > 0 {
		var buf [8]byte
		copy(buf[:], b)
		x ^= binary.LittleEndian.Uint64(buf[:])
		x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
		x = (x ^ (x >> 27)) * 0x94d049bb133111eb
		x ^= x >> 31
	}
	return x
}
