package main

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/automata/model"
	"github.com/gogpu/automata/snapshot"
)

// writeDescriptor writes a 2x2 toggle automaton of 2x2 cells and returns its
// path.
func writeDescriptor(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "toggle.json")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := model.WriteJSON(f, model.NewUniform(2, 2, model.ToggleCellType(), 2, 2)); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// =============================================================================
// generate / inspect
// =============================================================================

func TestGenerate(t *testing.T) {
	desc := writeDescriptor(t)
	tests := []struct {
		target string
		want   string
	}{
		{"wgsl", "@compute @workgroup_size("},
		{"go", "package kernel"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			out, err := execute(t, "generate", "-i", desc, "-t", tt.target)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output lacks %q", tt.want)
			}
		})
	}

	path := filepath.Join(t.TempDir(), "kernel.wgsl")
	if _, err := execute(t, "generate", "-i", desc, "-o", path); err != nil {
		t.Fatal(err)
	}
	if data, err := os.ReadFile(path); err != nil || len(data) == 0 {
		t.Errorf("generated file: %d bytes, %v", len(data), err)
	}
}

func TestGenerateErrors(t *testing.T) {
	desc := writeDescriptor(t)
	if _, err := execute(t, "generate", "-i", desc, "-t", "hlsl"); err == nil {
		t.Error("unknown target accepted")
	}
	if _, err := execute(t, "generate"); err == nil {
		t.Error("missing --input accepted")
	}
	if _, err := execute(t, "generate", "-i", filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Error("missing file accepted")
	}
	if _, err := execute(t, "--log-level", "loud", "generate", "-i", desc); err == nil {
		t.Error("bad log level accepted")
	}
}

func TestInspect(t *testing.T) {
	out, err := execute(t, "inspect", "-i", writeDescriptor(t))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"grid:        2x2 units of 2x2 cells",
		"addressing:  flat",
		"cell type:   toggle x4",
		"SLOT",
		"cell_1_out1",
		"output",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output lacks %q:\n%s", want, out)
		}
	}
}

// =============================================================================
// run
// =============================================================================

func TestRun(t *testing.T) {
	desc := writeDescriptor(t)
	dir := t.TempDir()
	save := filepath.Join(dir, "state.bin")
	img := filepath.Join(dir, "state.png")

	out, err := execute(t, "run", "-i", desc, "-n", "3", "--instances", "2", "--seed", "9",
		"--backend", "cpu", "--save", save, "--png", img, "--png-scale", "2")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "3 update(s) of 2 instance(s)") {
		t.Errorf("run output = %q", out)
	}

	s, err := snapshot.Load(save)
	if err != nil {
		t.Fatal(err)
	}
	if s.Count != 2 {
		t.Errorf("snapshot count = %d, want 2", s.Count)
	}

	f, err := os.Open(img)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	// 4x4 cells at 2 pixels each.
	if b := decoded.Bounds(); b.Dx() != 8 || b.Dy() != 8 {
		t.Errorf("png bounds = %v, want 8x8", b)
	}
}

// TestRunResumes checks that loading a snapshot and running one update
// matches running both updates at once.
func TestRunResumes(t *testing.T) {
	desc := writeDescriptor(t)
	dir := t.TempDir()
	first := filepath.Join(dir, "first.bin")
	resumed := filepath.Join(dir, "resumed.bin")
	direct := filepath.Join(dir, "direct.bin")

	steps := [][]string{
		{"run", "-i", desc, "--seed", "4", "--backend", "cpu", "--save", first},
		{"run", "-i", desc, "--load", first, "--backend", "cpu", "--save", resumed},
		{"run", "-i", desc, "-n", "2", "--seed", "4", "--backend", "cpu", "--save", direct},
	}
	for _, args := range steps {
		if _, err := execute(t, args...); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
	}
	a, err := os.ReadFile(resumed)
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(direct)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("resumed run differs from direct run")
	}
}

func TestRunUnknownBackend(t *testing.T) {
	if _, err := execute(t, "run", "-i", writeDescriptor(t), "--backend", "tpu"); err == nil {
		t.Error("unknown backend accepted")
	}
}
