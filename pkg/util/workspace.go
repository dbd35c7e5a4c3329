package util

import (
	"os"
)

// Workspace tracks intermediate files created during one pipeline invocation
// so they can be removed on every exit path. Not safe for concurrent use;
// each invocation owns its own Workspace.
type Workspace struct {
	dir     string
	created []string
	kept    map[string]bool
}

// NewWorkspace prepares a workspace rooted at dir, creating it if needed.
func NewWorkspace(dir string) (*Workspace, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}
	return &Workspace{dir: dir, kept: make(map[string]bool)}, nil
}

// NewFile reserves a unique path for an intermediate artifact and records it
// for cleanup.
func (w *Workspace) NewFile(stage, ext string) string {
	path := TempName(w.dir, stage, ext)
	w.created = append(w.created, path)
	return path
}

// Adopt records an externally-created artifact (e.g. a collaborator's
// output) for cleanup alongside the workspace's own files.
func (w *Workspace) Adopt(path string) {
	if path == "" {
		return
	}
	w.created = append(w.created, path)
}

// Keep excludes a path from cleanup. Used for whichever intermediate ends up
// referenced by the final output.
func (w *Workspace) Keep(path string) {
	w.kept[path] = true
}

// Cleanup removes every recorded artifact except kept ones. Safe to call
// multiple times and on partially-completed invocations.
func (w *Workspace) Cleanup() {
	for _, path := range w.created {
		if w.kept[path] {
			continue
		}
		_ = os.Remove(path)
	}
	w.created = nil
}
