package glbuild_test

import (
	"strings"
	"testing"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/nodemat/glbuild"
	"github.com/soypat/nodemat/glbuild/glsllib"
)

func TestNamerUnique(t *testing.T) {
	namer := glbuild.NewNamer()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		for _, base := range []string{"reflectionVector", "reflectionVector1", "output", "a", "a1"} {
			name := namer.Free(base)
			if seen[name] {
				t.Fatalf("duplicate name %q allocated for base %q", name, base)
			}
			seen[name] = true
		}
	}
	namer.Reset()
	first := namer.Free("reflectionVector")
	second := namer.Free("reflectionVector")
	if first != "reflectionVector" {
		t.Errorf("want verbatim first allocation, got %q", first)
	}
	if second == first {
		t.Error("second allocation must differ from first")
	}
}

func TestNamerExcluded(t *testing.T) {
	namer := glbuild.NewNamer("position")
	got := namer.Free("position")
	if got == "position" {
		t.Error("excluded name allocated")
	}
	got = namer.Free("texture")
	if got == "texture" {
		t.Error("reserved word allocated")
	}
	namer.Reset()
	if !namer.IsUsed("position") {
		t.Error("excluded name forgotten after Reset")
	}
}

func TestDefineNamer(t *testing.T) {
	namer := glbuild.NewDefineNamer()
	a := namer.Free("FOG")
	b := namer.Free("FOG")
	if a != "FOG0" || b != "FOG1" {
		t.Errorf("want FOG0, FOG1; got %q, %q", a, b)
	}
}

func TestSanitize(t *testing.T) {
	for _, test := range []struct {
		in, want string
	}{
		{in: "reflectionVector", want: "reflectionVector"},
		{in: "Crème brûlée", want: "Creme_brulee"},
		{in: "9lives", want: "_9lives"},
		{in: "gl_Position", want: "glx_Position"},
		{in: "a__b", want: "a_b"},
		{in: "$$$", want: "v"},
	} {
		got := string(glbuild.Sanitize(nil, test.in))
		if got != test.want {
			t.Errorf("Sanitize(%q): want %q, got %q", test.in, test.want, got)
		}
	}
}

func TestAppendFloat(t *testing.T) {
	for _, test := range []struct {
		v    float32
		want string
	}{
		{v: 1, want: "1."},
		{v: -0.5, want: "-0.5"},
		{v: 2.25, want: "2.25"},
	} {
		got := string(glbuild.AppendFloat(nil, '-', '.', test.v))
		if got != test.want {
			t.Errorf("AppendFloat(%v): want %q, got %q", test.v, test.want, got)
		}
	}
	got := string(glbuild.AppendFloat(nil, 'n', 'p', -1.5))
	if got != "n1p5" {
		t.Errorf("identifier-safe float: got %q", got)
	}
}

func TestAppendMat4(t *testing.T) {
	m := ms3.ScalingMat4(ms3.Vec{X: 2, Y: 3, Z: 4})
	got := string(glbuild.AppendMat4(nil, m.Array()))
	want := "mat4(2.,0.,0.,0.,0.,3.,0.,0.,0.,0.,4.,0.,0.,0.,0.,1.)"
	if got != want {
		t.Errorf("want %s, got %s", want, got)
	}
}

func TestMakeShaderFunction(t *testing.T) {
	fn, err := glbuild.MakeShaderFunction([]byte("\n float myFn(float a) { return a; }\n"))
	if err != nil {
		t.Fatal(err)
	}
	if fn.Name != "myFn" {
		t.Errorf("want name myFn, got %q", fn.Name)
	}
	_, err = glbuild.MakeShaderFunction([]byte("garbage"))
	if err == nil {
		t.Error("expected parse error")
	}
	for _, lib := range []glbuild.ShaderFunction{glsllib.FogFactor(), glsllib.ToLinearSpace(), glsllib.ToGammaSpace()} {
		if !strings.HasPrefix(lib.Name, "nm") {
			t.Errorf("library function %q missing prefix", lib.Name)
		}
	}
}

func TestSwizzle(t *testing.T) {
	sw := glbuild.SwizzleN(3)
	if got := string(sw.AppendMapped_xyzw(nil)); got != "xyz" {
		t.Errorf("want xyz, got %q", got)
	}
	sw = glbuild.NewSwizzle(false, true, false, true)
	if got := string(sw.AppendMapped_rgba(nil)); got != "ga" {
		t.Errorf("bad swizzle %q", sw.AppendMapped_rgba(nil))
	}
}
