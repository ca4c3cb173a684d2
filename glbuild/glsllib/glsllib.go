// Package glsllib embeds GLSL helper functions included by node material blocks.
package glsllib

import (
	_ "embed"

	"github.com/soypat/nodemat/glbuild"
)

//go:embed fog.glsl
var fogSrc []byte

// FogFactor computes the fog visibility coefficient in [0,1] for a view space distance:
//
//	float nmCalcFogFactor(float fogDistance, vec4 fogParams)
func FogFactor() glbuild.ShaderFunction {
	return mustFunction(fogSrc)
}

//go:embed linear.glsl
var linearSrc []byte

// ToLinearSpace converts a gamma space color to linear space:
//
//	vec3 nmToLinearSpace(vec3 color)
func ToLinearSpace() glbuild.ShaderFunction {
	return mustFunction(linearSrc)
}

//go:embed gamma.glsl
var gammaSrc []byte

// ToGammaSpace converts a linear space color to gamma space:
//
//	vec3 nmToGammaSpace(vec3 color)
func ToGammaSpace() glbuild.ShaderFunction {
	return mustFunction(gammaSrc)
}

func mustFunction(src []byte) glbuild.ShaderFunction {
	fn, err := glbuild.MakeShaderFunction(src)
	if err != nil {
		panic("glsllib: " + err.Error())
	}
	return fn
}
