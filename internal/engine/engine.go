// Package engine assembles one listening session: record store, change
// bus, progress reconciliation, catalog, unlock machine and playback
// controllers, opened and torn down as a unit.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/abhisek/coursetape/internal/catalog"
	"github.com/abhisek/coursetape/internal/config"
	"github.com/abhisek/coursetape/internal/logging"
	"github.com/abhisek/coursetape/internal/notify"
	"github.com/abhisek/coursetape/internal/playback"
	"github.com/abhisek/coursetape/internal/progress"
	"github.com/abhisek/coursetape/internal/store"
	"github.com/abhisek/coursetape/internal/unlock"
)

// Session is the assembled engine for one user.
type Session struct {
	Log      *logging.Logger
	Config   config.Config
	Catalog  *catalog.Catalog
	Progress *progress.Store

	db       *store.Store
	broker   notify.Broker
	registry *notify.Registry

	// one memo per course, so alternating status queries for different
	// courses don't evict each other
	memoMu sync.Mutex
	memos  map[string]*unlock.Memo
}

// Open builds a session from cfg: database, change bus, progress store
// (loaded and syncing), and catalog (seeded with the demo course on
// first run).
func Open(ctx context.Context, cfg config.Config, log *logging.Logger) (*Session, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
		dbPath = p
	}

	db, err := store.Open(dbPath, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var broker notify.Broker
	if cfg.RedisAddr != "" {
		broker, err = notify.NewRedisBroker(cfg.RedisAddr, log)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connect change bus: %w", err)
		}
	} else {
		broker = notify.NewMemoryBroker()
	}

	registry := notify.NewRegistry(broker, log)

	catalogRepo := db.CatalogRepo()
	empty, err := catalogRepo.Empty(ctx)
	if err != nil {
		broker.Close()
		db.Close()
		return nil, err
	}
	if empty {
		if err := catalogRepo.Seed(ctx); err != nil {
			broker.Close()
			db.Close()
			return nil, fmt.Errorf("seed catalog: %w", err)
		}
		log.Info("seeded demo course")
	}
	cat, err := catalogRepo.LoadCatalog(ctx)
	if err != nil {
		broker.Close()
		db.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	progCfg := progress.Config{ThrottleInterval: cfg.ThrottleInterval}
	prog := progress.NewStore(db.ProgressRepo(broker), registry, cfg.UserID, progCfg, log)
	if err := prog.Load(ctx); err != nil {
		broker.Close()
		db.Close()
		return nil, err
	}
	if err := prog.StartSync(ctx); err != nil {
		broker.Close()
		db.Close()
		return nil, err
	}

	return &Session{
		Log:      log,
		Config:   cfg,
		Catalog:  cat,
		Progress: prog,
		db:       db,
		broker:   broker,
		registry: registry,
		memos:    make(map[string]*unlock.Memo),
	}, nil
}

// LessonStatuses computes unlock statuses for courseID given the
// currently selected lesson. Memoized on unchanged inputs.
func (s *Session) LessonStatuses(courseID, currentLessonID string) map[string]unlock.Status {
	s.memoMu.Lock()
	defer s.memoMu.Unlock()
	memo := s.memos[courseID]
	if memo == nil {
		memo = &unlock.Memo{}
		s.memos[courseID] = memo
	}
	return memo.Compute(
		s.Catalog.CourseLessons(courseID),
		s.Catalog.CourseModules(courseID),
		currentLessonID,
		s.Progress.CompletedByLesson(),
		s.Progress.IsInReviewMode(courseID),
	)
}

// Controller creates a playback controller for courseID over the given
// transport. The controller's refresh hook is prewired so completions
// reach the unlock machine before auto-advance.
func (s *Session) Controller(courseID string, transport playback.Transport) *playback.Controller {
	ctrl := playback.NewController(transport, s.Catalog, s.Progress, courseID, func(currentLessonID string) map[string]unlock.Status {
		return s.LessonStatuses(courseID, currentLessonID)
	}, s.Log)
	// The in-memory state is already current after an awaited write;
	// the refresh hook exists so a remote-backed catalog could refetch.
	ctrl.OnLessonsRefreshed(func(ctx context.Context) error { return nil })
	return ctrl
}

// ResetProgress wipes this user's progress rows and reloads the
// in-memory collections.
func (s *Session) ResetProgress(ctx context.Context) error {
	if err := s.db.ResetProgress(ctx, s.Config.UserID); err != nil {
		return err
	}
	return s.Progress.Load(ctx)
}

// Close tears the session down: subscriptions first, then the bus and
// the database.
func (s *Session) Close() error {
	s.Progress.StopSync()
	s.registry.CleanupAll()
	if err := s.broker.Close(); err != nil {
		s.Log.Warn("close change bus", "err", err)
	}
	return s.db.Close()
}
