// Package glprog compiles node material programs into OpenGL programs and pushes
// uniform values to them. GPU access requires CGo; without it every constructor
// returns an error.
package glprog

import (
	"errors"
	"fmt"

	"github.com/soypat/nodemat"
)

var errNoCGO = errors.New("OpenGL programs require CGo and are not supported on TinyGo")

// Compile links the sources of prog with defines enabled.
func Compile(prog *nodemat.Program, defines nodemat.Defines) (*Program, error) {
	if prog == nil {
		return nil, errors.New("nil program")
	} else if prog.Diagnostics.HasErrors() {
		return nil, fmt.Errorf("program has errors: %w", prog.Diagnostics.Err())
	}
	vertex, fragment := prog.Sources(defines)
	return link(vertex, fragment)
}

// Compiler links generated sources. It implements [nodemat.ShaderCompiler].
type Compiler struct{}

var _ nodemat.ShaderCompiler = Compiler{}

// Link implements [nodemat.ShaderCompiler].
func (Compiler) Link(vertex, fragment string) (nodemat.LinkedProgram, error) {
	p, err := link(vertex, fragment)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// nulTerminated returns s with a trailing NUL as OpenGL string arguments require.
func nulTerminated(s string) string {
	if len(s) > 0 && s[len(s)-1] == 0 {
		return s
	}
	return s + "\x00"
}
