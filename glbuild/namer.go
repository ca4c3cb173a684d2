package glbuild

import (
	"bytes"
	"strconv"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Reserved lists GLSL keywords and builtin type names that generated identifiers must never take.
var Reserved = []string{
	"attribute", "const", "uniform", "varying", "buffer", "shared", "layout", "centroid", "flat",
	"smooth", "noperspective", "patch", "sample", "break", "continue", "do", "for", "while",
	"switch", "case", "default", "if", "else", "subroutine", "in", "out", "inout", "float",
	"double", "int", "void", "bool", "true", "false", "invariant", "precise", "discard", "return",
	"mat2", "mat3", "mat4", "vec2", "vec3", "vec4", "ivec2", "ivec3", "ivec4", "bvec2", "bvec3",
	"bvec4", "uint", "uvec2", "uvec3", "uvec4", "lowp", "mediump", "highp", "precision",
	"sampler2D", "sampler3D", "samplerCube", "struct", "main", "input", "output", "texture",
	"filter", "sizeof", "cast", "namespace", "using", "common", "active", "asm", "class",
	"union", "enum", "typedef", "template", "this", "goto", "inline", "noinline", "public",
	"static", "extern", "external", "interface", "long", "short", "half", "fixed", "unsigned",
	"superp", "sampler", "mod", "min", "max", "mix", "dot", "cross", "length", "normalize",
	"clamp", "step", "pow", "exp", "log", "sin", "cos", "tan", "abs", "sign", "floor", "ceil",
	"fract", "sqrt", "distance", "reflect", "refract", "radians", "degrees",
}

// Namer allocates identifiers that are unique within one generated program.
// The first request for a base name returns it verbatim if free; later requests
// receive a monotonically increasing numeric suffix. Names already taken, including
// excluded names, are always skipped.
type Namer struct {
	used     map[string]struct{}
	excluded []string
	counter  map[string]int
	// alwaysSuffix makes the first allocation of a base carry a suffix too, as is the
	// convention for preprocessor define names.
	alwaysSuffix bool
	scratch      []byte
}

// NewNamer returns a Namer seeded with [Reserved] and the excluded names.
func NewNamer(excluded ...string) *Namer {
	n := &Namer{}
	n.excluded = append(n.excluded, Reserved...)
	n.excluded = append(n.excluded, excluded...)
	n.Reset()
	return n
}

// NewDefineNamer returns a Namer for preprocessor defines, which always carry a suffix.
func NewDefineNamer() *Namer {
	n := NewNamer()
	n.alwaysSuffix = true
	return n
}

// Exclude marks names as taken for the lifetime of the Namer, surviving Reset.
func (n *Namer) Exclude(names ...string) {
	n.excluded = append(n.excluded, names...)
	for _, name := range names {
		n.used[name] = struct{}{}
	}
}

// Reset forgets all allocated names but keeps excluded ones.
func (n *Namer) Reset() {
	if n.used == nil {
		n.used = make(map[string]struct{}, len(n.excluded))
		n.counter = make(map[string]int)
	}
	clear(n.used)
	clear(n.counter)
	for _, name := range n.excluded {
		n.used[name] = struct{}{}
	}
}

// IsUsed reports whether name was allocated or excluded.
func (n *Namer) IsUsed(name string) bool {
	_, ok := n.used[name]
	return ok
}

// Free returns a unique identifier derived from base. base is sanitized first,
// see [Sanitize].
func (n *Namer) Free(base string) string {
	n.scratch = Sanitize(n.scratch[:0], base)
	base = string(n.scratch)
	count, seen := n.counter[base]
	if !seen && !n.alwaysSuffix {
		n.counter[base] = 0
		if !n.IsUsed(base) {
			n.used[base] = struct{}{}
			return base
		}
	} else if !seen {
		n.counter[base] = 0
		count = -1
	}
	for {
		count++
		n.scratch = strconv.AppendInt(n.scratch[:len(base)], int64(count), 10)
		if !n.IsUsed(string(n.scratch)) {
			break
		}
	}
	n.counter[base] = count
	name := string(n.scratch)
	n.used[name] = struct{}{}
	return name
}

// Claim marks a name as used without derivation, returning false if it was already taken.
func (n *Namer) Claim(name string) bool {
	if n.IsUsed(name) {
		return false
	}
	n.used[name] = struct{}{}
	return true
}

var foldASCII = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Sanitize appends a valid GLSL identifier derived from name to dst.
// Accents are folded to their base letter, other characters outside [A-Za-z0-9_] are dropped,
// double underscores and the gl_ prefix (both reserved by GLSL) are avoided.
func Sanitize(dst []byte, name string) []byte {
	folded, _, err := transform.String(foldASCII, name)
	if err != nil {
		folded = name
	}
	start := len(dst)
	for _, c := range []byte(folded) {
		isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isDigit := c >= '0' && c <= '9'
		switch {
		case isLetter:
		case isDigit:
			if len(dst) == start {
				dst = append(dst, '_')
			}
		case c == '_' || c == ' ' || c == '-' || c == '.':
			if len(dst) == start || dst[len(dst)-1] == '_' {
				continue
			}
			c = '_'
		default:
			continue
		}
		dst = append(dst, c)
	}
	if len(dst) == start {
		return append(dst, 'v')
	}
	if bytes.HasPrefix(dst[start:], []byte("gl_")) {
		dst = append(dst, 0)
		copy(dst[start+3:], dst[start+2:len(dst)-1])
		dst[start+2] = 'x'
	}
	return dst
}
