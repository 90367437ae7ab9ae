package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/jra3/taskgraph/internal/apperr"
	"github.com/jra3/taskgraph/internal/childindex"
	"github.com/jra3/taskgraph/internal/hierarchy"
	"github.com/jra3/taskgraph/internal/locator"
	"github.com/jra3/taskgraph/internal/skeleton"
	"github.com/jra3/taskgraph/internal/sqlindex"
	"github.com/jra3/taskgraph/internal/taskid"
)

// Engine drives the Skeleton Cache through full rebuilds and incremental
// refreshes by pairing it with a Locator and the Hierarchy Reconstruction
// Engine (spec §2 control flow: F calls A, then iterates task folders,
// B/C/D/E produce candidates, F Phase 2 resolves, G persists).
type Engine struct {
	Cache        *Cache
	Locator      locator.Locator
	StrictMode   bool
	BatchSize    int
	Workspace    string // optional filter (spec §4.F)

	// SQLIndex, when set, is kept in lockstep with every Rebuild/Refresh
	// so list_conversations can answer sort/filter/limit queries against
	// it instead of scanning the whole in-memory map.
	SQLIndex *sqlindex.Index
}

// NewEngine builds an Engine with sane defaults.
func NewEngine(c *Cache, loc locator.Locator) *Engine {
	return &Engine{Cache: c, Locator: loc, StrictMode: true, BatchSize: 25}
}

// RebuildResult summarizes one full rebuild.
type RebuildResult struct {
	Phase1 hierarchy.Phase1Metrics
	Phase2 hierarchy.Phase2Metrics
	BuildErrors []string
}

// Rebuild wipes .skeletons/, re-runs the engine across every discovered
// task, writes each skeleton atomically and re-inserts it into the map.
// ctx is honored at batch boundaries: if canceled, partial progress (any
// fully processed skeleton) has already been persisted.
func (e *Engine) Rebuild(ctx context.Context) (RebuildResult, error) {
	skeletonsDir := e.Cache.skeletonsDir()
	if err := os.RemoveAll(skeletonsDir); err != nil && !os.IsNotExist(err) {
		return RebuildResult{}, apperr.Wrap(apperr.CodeMalformedJSON, "wipe skeleton cache dir", err)
	}
	e.Cache.mu.Lock()
	e.Cache.skeletons = make(map[string]*skeleton.Skeleton)
	e.Cache.mu.Unlock()

	dirs, err := e.discoverTaskDirs(ctx)
	if err != nil {
		return RebuildResult{}, err
	}

	built, buildErrors := e.buildAll(ctx, dirs)
	return e.resolveAndPersist(ctx, built, buildErrors)
}

// Refresh compares on-disk source checksums for taskID against the
// cached skeleton; if unchanged, it is a no-op. Otherwise it re-runs the
// builder and Phase 2 for that single task and persists the result.
func (e *Engine) Refresh(ctx context.Context, taskID, dir string) (bool, error) {
	cached, ok := e.Cache.Get(taskID)
	if ok {
		sk, err := skeleton.Build(taskID, dir)
		if err != nil {
			return false, err
		}
		if skeleton.ChecksumsMatch(cached.SourceChecksums, sk.SourceChecksums) {
			return false, nil
		}
	}

	sk, err := skeleton.Build(taskID, dir)
	if err != nil {
		return false, err
	}

	idx := childindex.New()
	all := e.Cache.Snapshot()
	// Seed the index from every cached skeleton (including any older
	// copy of this task) plus the freshly built one, so this task's
	// parent can still be found even though we're not rebuilding the
	// whole corpus.
	skeletons := append(all, &sk)
	hierarchy.Phase1(skeletons, idx)

	byID := e.Cache.ByID()
	byID[sk.TaskID] = &sk
	hierarchy.Phase2([]*skeleton.Skeleton{&sk}, idx, byID)

	e.Cache.Put(&sk)
	if err := e.Cache.Persist(&sk); err != nil {
		return false, err
	}
	if e.SQLIndex != nil {
		if err := e.SQLIndex.Upsert(ctx, &sk); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (e *Engine) discoverTaskDirs(ctx context.Context) (map[string]string, error) {
	roots, err := e.Locator.Roots(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeMalformedJSON, "list storage roots", err)
	}

	dirs := make(map[string]string)
	for _, root := range roots {
		taskDirs, err := e.Locator.TaskDirs(ctx, root)
		if err != nil {
			continue
		}
		for _, d := range taskDirs {
			id := filepath.Base(d)
			if !taskid.Valid(id) {
				continue
			}
			dirs[id] = d
		}
	}
	return dirs, nil
}

// buildAll runs the Skeleton Builder over every task dir, batchSize at a
// time, with goroutines parallelizing I/O within each batch (spec §9:
// "the performance wins are in parallel I/O in Phase 1 only").
func (e *Engine) buildAll(ctx context.Context, dirs map[string]string) ([]*skeleton.Skeleton, []string) {
	batchSize := e.BatchSize
	if batchSize <= 0 {
		batchSize = 25
	}

	ids := make([]string, 0, len(dirs))
	for id := range dirs {
		ids = append(ids, id)
	}

	var (
		mu      sync.Mutex
		built   []*skeleton.Skeleton
		buildErrors []string
	)

	for start := 0; start < len(ids); start += batchSize {
		select {
		case <-ctx.Done():
			return built, buildErrors
		default:
		}

		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		var wg sync.WaitGroup
		for _, id := range batch {
			wg.Add(1)
			go func(id, dir string) {
				defer wg.Done()
				sk, err := skeleton.Build(id, dir)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					buildErrors = append(buildErrors, id+": "+err.Error())
					return
				}
				if e.Workspace != "" && !workspaceMatches(sk.Metadata.Workspace, e.Workspace) {
					return
				}
				built = append(built, &sk)
			}(id, dirs[id])
		}
		wg.Wait()
	}
	return built, buildErrors
}

func (e *Engine) resolveAndPersist(ctx context.Context, built []*skeleton.Skeleton, buildErrors []string) (RebuildResult, error) {
	idx := childindex.New()
	p1 := hierarchy.Phase1(built, idx)

	byID := make(map[string]*skeleton.Skeleton, len(built))
	for _, sk := range built {
		byID[sk.TaskID] = sk
	}
	p2 := hierarchy.Phase2(built, idx, byID)

	for _, sk := range built {
		e.Cache.Put(sk)
		if err := e.Cache.Persist(sk); err != nil {
			buildErrors = append(buildErrors, sk.TaskID+": persist: "+err.Error())
		}
	}

	if e.SQLIndex != nil {
		if err := e.SQLIndex.Rebuild(ctx, built); err != nil {
			buildErrors = append(buildErrors, "sqlindex: rebuild: "+err.Error())
		}
	}

	return RebuildResult{Phase1: p1, Phase2: p2, BuildErrors: buildErrors}, nil
}

// workspaceMatches implements spec §4.F's workspace filter: Unicode- and
// path-safe case-insensitive "contains" in either direction, after
// canonicalizing separators and (on Windows-style paths) lowercasing the
// drive letter.
func workspaceMatches(workspace, filter string) bool {
	w := canonicalizePath(workspace)
	f := canonicalizePath(filter)
	if w == "" || f == "" {
		return false
	}
	return strings.Contains(w, f) || strings.Contains(f, w)
}

func canonicalizePath(p string) string {
	p = norm.NFC.String(strings.TrimSpace(p))
	p = strings.ToLower(p)
	p = strings.ReplaceAll(p, "\\", "/")
	return p
}
