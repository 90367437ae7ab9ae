// Package cache implements the Skeleton Cache (spec §4.G): a
// process-wide map from task id to skeleton, persisted as one JSON file
// per skeleton under a .skeletons/ directory, with incremental refresh
// driven by source-file checksums.
//
// The in-memory map itself is adapted from the teacher repo's generic
// TTL cache (single writer, RWMutex-guarded reads) but specialized here
// to a non-expiring identity map, since skeletons are never evicted
// while their source folder exists (spec §3 lifecycle).
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jra3/taskgraph/internal/apperr"
	"github.com/jra3/taskgraph/internal/skeleton"
)

// Cache owns every Skeleton in a storage location. Concurrent readers may
// take a Snapshot; exactly one engine run mutates the map at a time
// (spec §5).
type Cache struct {
	mu        sync.RWMutex
	skeletons map[string]*skeleton.Skeleton
	dir       string // storage root; .skeletons/ lives alongside it
}

// New creates an empty Cache rooted at storageDir.
func New(storageDir string) *Cache {
	return &Cache{
		skeletons: make(map[string]*skeleton.Skeleton),
		dir:       storageDir,
	}
}

func (c *Cache) skeletonsDir() string {
	return filepath.Join(c.dir, ".skeletons")
}

// LoadFromDisk populates the map from .skeletons/*.json. A missing
// directory is not an error on first run.
func (c *Cache) LoadFromDisk() error {
	dir := c.skeletonsDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperr.Wrap(apperr.CodeMalformedJSON, "list skeleton cache dir", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var sk skeleton.Skeleton
		if err := json.Unmarshal(data, &sk); err != nil {
			continue
		}
		c.skeletons[sk.TaskID] = &sk
	}
	return nil
}

// Put inserts or replaces a skeleton in the in-memory map (does not
// persist; callers use Persist/PersistAll for that).
func (c *Cache) Put(sk *skeleton.Skeleton) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skeletons[sk.TaskID] = sk
}

// Get returns a snapshot copy of the skeleton for taskID, if present.
func (c *Cache) Get(taskID string) (*skeleton.Skeleton, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sk, ok := c.skeletons[taskID]
	if !ok {
		return nil, false
	}
	cp := *sk
	return &cp, true
}

// Snapshot returns a shallow copy of the whole map's values for
// read-only, lock-free iteration by callers.
func (c *Cache) Snapshot() []*skeleton.Skeleton {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*skeleton.Skeleton, 0, len(c.skeletons))
	for _, sk := range c.skeletons {
		cp := *sk
		out = append(out, &cp)
	}
	return out
}

// ByID returns a fresh map holding the live (non-copied) skeleton
// pointers, for internal use by callers that need cycle-detection
// lookups across the whole cache (e.g. the hierarchy engine's Phase 2).
// Callers must not mutate the skeletons concurrently with other cache
// writers.
func (c *Cache) ByID() map[string]*skeleton.Skeleton {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*skeleton.Skeleton, len(c.skeletons))
	for k, v := range c.skeletons {
		out[k] = v
	}
	return out
}

// Siblings returns snapshot copies of every skeleton whose
// ReconstructedParentID equals parentID, the parent's full sibling set
// used by view_conversation_tree's cluster mode (spec §4.G).
func (c *Cache) Siblings(parentID string) []*skeleton.Skeleton {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*skeleton.Skeleton
	for _, sk := range c.skeletons {
		if sk.ReconstructedParentID == parentID {
			cp := *sk
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out
}

// Persist writes one skeleton atomically (write-to-temp then rename)
// under .skeletons/<taskId>.json.
func (c *Cache) Persist(sk *skeleton.Skeleton) error {
	dir := c.skeletonsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Wrap(apperr.CodeMalformedJSON, "create skeleton cache dir", err)
	}

	data, err := skeleton.MarshalIndent(*sk)
	if err != nil {
		return apperr.Wrap(apperr.CodeMalformedJSON, "marshal skeleton", err)
	}

	final := filepath.Join(dir, sk.TaskID+".json")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperr.Wrap(apperr.CodeMalformedJSON, "write skeleton temp file", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return apperr.Wrap(apperr.CodeMalformedJSON, "rename skeleton temp file", err)
	}
	return nil
}

// ListFilter configures ListConversations.
type ListFilter struct {
	RequireAPIHistory bool
	RequireUIMessages bool
	SortBy            string // "lastActivity" | "messageCount" | "totalSize"
	Descending        bool
	Limit             int
}

// ListConversations returns current snapshots matching filter, sorted and
// limited per spec §4.G.
func (c *Cache) ListConversations(filter ListFilter) []*skeleton.Skeleton {
	all := c.Snapshot()

	out := make([]*skeleton.Skeleton, 0, len(all))
	for _, sk := range all {
		if filter.RequireUIMessages && len(sk.Sequence) == 0 {
			continue
		}
		if filter.RequireAPIHistory && sk.SourceChecksums["api_conversation_history.json"] == "" {
			continue
		}
		out = append(out, sk)
	}

	less := sortLess(filter.SortBy, out)
	sort.SliceStable(out, func(i, j int) bool {
		if filter.Descending {
			return less(j, i)
		}
		return less(i, j)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

func sortLess(sortBy string, items []*skeleton.Skeleton) func(i, j int) bool {
	switch sortBy {
	case "messageCount":
		return func(i, j int) bool { return items[i].Metadata.MessageCount < items[j].Metadata.MessageCount }
	case "totalSize":
		return func(i, j int) bool { return items[i].Metadata.TotalSize < items[j].Metadata.TotalSize }
	default: // "lastActivity"
		return func(i, j int) bool { return items[i].Metadata.LastActivity < items[j].Metadata.LastActivity }
	}
}

// MostRecent returns the skeleton with the most recent LastActivity, or
// nil if the cache is empty. Used by view_conversation_tree when no task
// id is given.
func (c *Cache) MostRecent() *skeleton.Skeleton {
	all := c.Snapshot()
	if len(all) == 0 {
		return nil
	}
	best := all[0]
	for _, sk := range all[1:] {
		if sk.Metadata.LastActivity > best.Metadata.LastActivity {
			best = sk
		}
	}
	return best
}
