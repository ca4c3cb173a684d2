package nodemat

import "github.com/soypat/geometry/ms3"

// Scene provides the runtime context programs are bound against.
type Scene interface {
	// SystemValue returns the current value of sv, or false if the scene does not provide it.
	SystemValue(sv SystemValue) (Value, bool)
	// FogEnabled reports whether fog is to be applied.
	FogEnabled() bool
}

// FogMode selects the fog falloff function.
type FogMode uint8

const (
	FogNone FogMode = iota
	FogLinear
	FogExp
	FogExp2
)

// SceneState is a plain [Scene] implementation. Matrices are row-major with
// column vectors, so World transforms a model position as World*p.
type SceneState struct {
	World, View, Projection ms3.Mat4
	CameraPosition          ms3.Vec

	FogMode    FogMode
	FogColor   ms3.Vec
	FogStart   float32
	FogEnd     float32
	FogDensity float32

	// Time is seconds since the scene started, DeltaTime the seconds since the last frame.
	Time, DeltaTime float32
}

var _ Scene = (*SceneState)(nil)

// FogEnabled implements [Scene].
func (s *SceneState) FogEnabled() bool { return s.FogMode != FogNone }

// SystemValue implements [Scene].
func (s *SceneState) SystemValue(sv SystemValue) (Value, bool) {
	switch sv {
	case SystemWorld:
		return MatrixValue(s.World), true
	case SystemView:
		return MatrixValue(s.View), true
	case SystemProjection:
		return MatrixValue(s.Projection), true
	case SystemViewProjection:
		return MatrixValue(ms3.MulMat4(s.Projection, s.View)), true
	case SystemWorldView:
		return MatrixValue(ms3.MulMat4(s.View, s.World)), true
	case SystemWorldViewProjection:
		wv := ms3.MulMat4(s.View, s.World)
		return MatrixValue(ms3.MulMat4(s.Projection, wv)), true
	case SystemCameraPosition:
		return Vector3Value(s.CameraPosition), true
	case SystemFogColor:
		return Color3Value(s.FogColor.X, s.FogColor.Y, s.FogColor.Z), true
	case SystemFogParameters:
		return Vector4Value(Vec4{X: float32(s.FogMode), Y: s.FogStart, Z: s.FogEnd, W: s.FogDensity}), true
	case SystemTime:
		return FloatValue(s.Time), true
	case SystemDeltaTime:
		return FloatValue(s.DeltaTime), true
	}
	return Value{}, false
}
