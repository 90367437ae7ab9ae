// Package locator defines the Storage Locator contract (spec §2 component
// A): the external collaborator that enumerates root directories holding
// task folders. taskgraph only consumes this interface; detecting the
// host IDE extension's actual storage layout is out of scope (spec §1).
package locator

import (
	"context"
	"os"
	"path/filepath"
)

// Locator enumerates storage roots and, within a root, task folders.
type Locator interface {
	// Roots returns the directories that may contain task folders.
	Roots(ctx context.Context) ([]string, error)
	// TaskDirs returns the task folder paths directly under root.
	TaskDirs(ctx context.Context, root string) ([]string, error)
}

// FSLocator is a default, filesystem-walking Locator used when no host
// extension collaborator is wired in (e.g. running taskgraph standalone
// against a configured list of storage roots). A task folder is any
// direct child directory of a root containing a ui_messages.json file.
type FSLocator struct {
	roots []string
}

// NewFSLocator builds a Locator over the given fixed set of storage roots.
func NewFSLocator(roots []string) *FSLocator {
	cp := make([]string, len(roots))
	copy(cp, roots)
	return &FSLocator{roots: cp}
}

func (l *FSLocator) Roots(ctx context.Context) ([]string, error) {
	return l.roots, nil
}

func (l *FSLocator) TaskDirs(ctx context.Context, root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if e.Name() == ".skeletons" {
			continue
		}
		candidate := filepath.Join(root, e.Name())
		if _, err := os.Stat(filepath.Join(candidate, "ui_messages.json")); err == nil {
			dirs = append(dirs, candidate)
		}
	}
	return dirs, nil
}
