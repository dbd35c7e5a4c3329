package util

import (
	"os"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestWorkspaceCleanup(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}

	a := ws.NewFile("stage", ".tmp")
	b := ws.NewFile("stage", ".tmp")
	touch(t, a)
	touch(t, b)

	ws.Keep(b)
	ws.Cleanup()

	if FileExists(a) {
		t.Error("unkept file survived cleanup")
	}
	if !FileExists(b) {
		t.Error("kept file was removed")
	}
}

func TestWorkspaceAdopt(t *testing.T) {
	dir := t.TempDir()
	ws, err := NewWorkspace(dir)
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}

	external := TempName(dir, "external", ".tmp")
	touch(t, external)
	ws.Adopt(external)
	ws.Cleanup()

	if FileExists(external) {
		t.Error("adopted file survived cleanup")
	}
}

func TestTempNamesUnique(t *testing.T) {
	a := TempName("/tmp", "stage", ".mp4")
	b := TempName("/tmp", "stage", ".mp4")
	if a == b {
		t.Errorf("TempName produced duplicate %q", a)
	}
}
