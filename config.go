package nodemat

import (
	"strings"

	"github.com/soypat/nodemat/glbuild"
)

// Flags is a bitmask of compilation options.
type Flags uint64

const (
	// FlagEmitComments annotates generated code with block names and section headers.
	FlagEmitComments Flags = 1 << iota
	// FlagVerbose logs every block build at debug level, see [SetLogger].
	FlagVerbose
	// FlagAllowEmptyVertexProgram compiles graphs without a vertex output block,
	// for use with an externally provided vertex stage.
	FlagAllowEmptyVertexProgram
	// FlagNoPrecision omits the float precision statement.
	FlagNoPrecision
)

// BuildConfig configures a graph compilation. The zero value is ready to use.
type BuildConfig struct {
	Flags Flags
	// Version is the version directive of both stages. Defaults to [glbuild.VersionStr].
	Version string
	// ExcludedNames are identifiers generated code must not declare, such as
	// uniforms provided by the host renderer.
	ExcludedNames []string
}

func (cfg BuildConfig) version() string {
	if cfg.Version == "" {
		return glbuild.VersionStr
	}
	v := strings.TrimSpace(cfg.Version)
	if !strings.HasPrefix(v, "#version") {
		v = "#version " + v
	}
	return v + "\n"
}
