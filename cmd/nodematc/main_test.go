package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunStdout(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"-stdout", "-comments", "-defines", "DIFFUSESAMPLER_GAMMA0", "testdata/textured.json"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("%v\n%s", err, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{
		"// textured.vert\n#version 330 core\n#define DIFFUSESAMPLER_GAMMA0\n",
		"in vec3 position;\n",
		"v_uv = uv;\n",
		"uniform sampler2D diffuseSampler;\n",
		"texture(diffuseSampler, v_uv)",
		"#ifdef DIFFUSESAMPLER_GAMMA0\n",
		"uniform vec3 u_tint;\n",
		"// diffuse[TextureBlock]\n// albedo map\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunWritesFiles(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "material")
	var stdout, stderr bytes.Buffer
	err := run([]string{"-o", prefix, "-version", "410 core", "testdata/textured.json"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("%v\n%s", err, stderr.String())
	}
	for _, ext := range []string{".vert", ".frag"} {
		data, err := os.ReadFile(prefix + ext)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.HasPrefix(data, []byte("#version 410 core\n")) {
			t.Errorf("%s: unexpected version line in\n%s", ext, data)
		}
	}
	if !strings.Contains(stdout.String(), "available defines: DIFFUSESAMPLER_GAMMA0,") {
		t.Errorf("defines not listed: %s", stdout.String())
	}
}

func TestRunDiagnostics(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"-stdout", "testdata/unconnected.json"}, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(stderr.String(), "input vector from block vertexOutput[VertexOutputBlock] is not connected and is not optional") {
		t.Errorf("diagnostic not printed:\n%s", stderr.String())
	}
	if stdout.Len() != 0 {
		t.Errorf("sources printed for failed build:\n%s", stdout.String())
	}
}

func TestRunList(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"-list"}, &stdout, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	classes := strings.Fields(stdout.String())
	for _, want := range []string{"FogBlock", "InputBlock", "MultiplyBlock", "VertexOutputBlock"} {
		found := false
		for _, c := range classes {
			found = found || c == want
		}
		if !found {
			t.Errorf("class %s not listed", want)
		}
	}
}

func TestRunUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(nil, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected error without graph argument")
	}
	if !strings.Contains(stderr.String(), "usage: nodematc") {
		t.Errorf("usage not printed:\n%s", stderr.String())
	}
}
