// Package taskgraph is the public entry point aggregating the Skeleton
// Cache, Hierarchy Reconstruction Engine, Commit Log and Message Store
// into one constructed service, the same role pkg/linear.Client plays as
// the importable surface distinct from its internal collaborators.
package taskgraph

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/jra3/taskgraph/internal/apperr"
	"github.com/jra3/taskgraph/internal/cache"
	"github.com/jra3/taskgraph/internal/commitlog"
	"github.com/jra3/taskgraph/internal/config"
	"github.com/jra3/taskgraph/internal/locator"
	"github.com/jra3/taskgraph/internal/logx"
	"github.com/jra3/taskgraph/internal/message"
	"github.com/jra3/taskgraph/internal/render"
	"github.com/jra3/taskgraph/internal/skeleton"
	"github.com/jra3/taskgraph/internal/sqlindex"
	"github.com/jra3/taskgraph/internal/syncloop"
)

// Service bundles every subsystem taskgraph owns, constructed once and
// held for the life of a process (spec §9: module-level singletons
// replaced by an explicit, constructor-injected service).
type Service struct {
	Config    *config.Config
	Cache     *cache.Cache
	Engine    *cache.Engine
	SQLIndex  *sqlindex.Index
	CommitLog *commitlog.Log
	Messages  *message.Store

	cacheSync *syncloop.Worker
	logSync   *syncloop.Worker
	log       *logx.Logger
}

// Open constructs a Service from cfg, wiring the Storage Locator, cache,
// hierarchy engine, SQLite secondary index, commit log and message
// store against cfg's configured roots.
func Open(cfg *config.Config) (*Service, error) {
	if len(cfg.StorageRoots) == 0 {
		return nil, apperr.New(apperr.CodeUninitialized, "no storage roots configured")
	}

	log := logx.New(logOutput(cfg), "taskgraph", logx.ParseLevel(cfg.Log.Level))

	storageDir := cfg.StorageRoots[0]
	c := cache.New(storageDir)
	if err := c.LoadFromDisk(); err != nil {
		return nil, err
	}

	idx, err := sqlindex.Open(filepath.Join(storageDir, ".skeletons", "index.db"))
	if err != nil {
		return nil, err
	}

	eng := cache.NewEngine(c, locator.NewFSLocator(cfg.StorageRoots))
	eng.StrictMode = cfg.Hierarchy.StrictMode
	eng.BatchSize = cfg.Hierarchy.BatchSize
	eng.SQLIndex = idx

	if cfg.SharedRoot == "" {
		return nil, apperr.New(apperr.CodeUninitialized, "no shared root configured for commit log / messages")
	}
	cl, err := commitlog.Open(filepath.Join(cfg.SharedRoot, "commit-log"), cfg.MachineID, cfg.CommitLog.MaxRetryAttempts)
	if err != nil {
		return nil, err
	}
	msgs, err := message.Open(filepath.Join(cfg.SharedRoot, "messages"))
	if err != nil {
		return nil, err
	}

	return &Service{
		Config:    cfg,
		Cache:     c,
		Engine:    eng,
		SQLIndex:  idx,
		CommitLog: cl,
		Messages:  msgs,
		log:       log,
	}, nil
}

func logOutput(cfg *config.Config) io.Writer {
	if cfg.Log.File == "" {
		return os.Stderr
	}
	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return os.Stderr
	}
	return f
}

// StartBackgroundSync launches the periodic cache sweep (a full
// Engine.Rebuild every Cache.TTL) and the commit log's auto-sync tick,
// both built on the same syncloop.Worker with no rate limiter.
func (s *Service) StartBackgroundSync(ctx context.Context) {
	s.cacheSync = syncloop.New(func(ctx context.Context) error {
		_, err := s.Engine.Rebuild(ctx)
		return err
	}, s.Config.Cache.TTL, nil, s.log.With("cache-sync"))
	s.cacheSync.Start(ctx)

	if s.Config.CommitLog.SyncInterval > 0 {
		s.logSync = syncloop.New(func(context.Context) error {
			return s.CommitLog.SyncWithRemote()
		}, s.Config.CommitLog.SyncInterval, nil, s.log.With("commitlog-sync"))
		s.logSync.Start(ctx)
	}
}

// StopBackgroundSync stops any running background workers.
func (s *Service) StopBackgroundSync() {
	if s.cacheSync != nil {
		s.cacheSync.Stop()
	}
	if s.logSync != nil {
		s.logSync.Stop()
	}
}

// Close releases the service's held resources.
func (s *Service) Close() error {
	s.StopBackgroundSync()
	if s.SQLIndex != nil {
		return s.SQLIndex.Close()
	}
	return nil
}

// ListConversations answers list_conversations (spec §4.G) via the
// SQLite secondary index's sort/filter/limit query, falling back to the
// slower in-memory scan if the index can't answer (e.g. not yet built).
func (s *Service) ListConversations(filter cache.ListFilter) []*skeleton.Skeleton {
	if s.SQLIndex == nil {
		return s.Cache.ListConversations(filter)
	}

	ids, err := s.SQLIndex.TaskIDs(context.Background(), sqlindex.Query{
		RequireAPIHistory: filter.RequireAPIHistory,
		RequireUIMessages: filter.RequireUIMessages,
		SortBy:            sqlSortColumn(filter.SortBy),
		Descending:        filter.Descending,
		Limit:             filter.Limit,
	})
	if err != nil || len(ids) == 0 {
		return s.Cache.ListConversations(filter)
	}

	out := make([]*skeleton.Skeleton, 0, len(ids))
	for _, id := range ids {
		if sk, ok := s.Cache.Get(id); ok {
			out = append(out, sk)
		}
	}
	return out
}

func sqlSortColumn(sortBy string) string {
	switch sortBy {
	case "messageCount":
		return "message_count"
	case "totalSize":
		return "total_size"
	default:
		return "last_activity"
	}
}

// ViewConversationTree renders the requested view, defaulting to the
// most recently active task when taskID is empty (spec §4.G).
func (s *Service) ViewConversationTree(taskID string, mode render.ViewMode, truncateLines int) (string, error) {
	if taskID == "" {
		sk := s.Cache.MostRecent()
		if sk == nil {
			return "", apperr.New(apperr.CodeTaskNotFound, "cache is empty")
		}
		taskID = sk.TaskID
	}
	lookup := func(id string) (*skeleton.Skeleton, bool) { return s.Cache.Get(id) }
	siblings := func(parentID string) []*skeleton.Skeleton { return s.Cache.Siblings(parentID) }
	return render.Tree(taskID, mode, truncateLines, lookup, siblings)
}
