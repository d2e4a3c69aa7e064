package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"article-video-gen/internal"
	"article-video-gen/internal/content"
	"article-video-gen/internal/logging"
	"article-video-gen/internal/model"
	"article-video-gen/internal/s3"
	"article-video-gen/internal/video"
)

var (
	ErrAlreadyRunning = errors.New("scheduler: catalog run already in progress")
	ErrItemInFlight   = errors.New("scheduler: post is already being generated")
	ErrNoImages       = errors.New("scheduler: post has no images")
)

// cronParser accepts a seconds field and descriptors; restore reuses it to
// evaluate the reset schedule.
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

const (
	TriggerCatalog = "catalog"
	TriggerManual  = "manual"

	videosHistoryLimit = 500
)

// Catalog is the content source a catalog run pages through.
type Catalog interface {
	content.Lister
	GetPost(ctx context.Context, id int64) (model.Post, error)
}

// Generator turns images into a published video.
type Generator interface {
	Generate(ctx context.Context, images []model.RawImage, title string) model.VideoResult
}

// Notifier is told about every video produced by a catalog run.
type Notifier interface {
	VideoReady(ctx context.Context, rec model.VideoRecord)
}

type Service struct {
	cfg     internal.Config
	log     *logging.Logger
	catalog Catalog
	gen     Generator
	store   ProcessedStore
	objects JSONStore
	state   *State
	cron    *cron.Cron

	// set by BuildService for the outer surfaces
	posts *content.Client

	baseMu  sync.Mutex
	baseCtx context.Context

	notifyMu sync.RWMutex
	notifier Notifier

	videosMu sync.Mutex
	cfgMux   sync.Mutex
	// storeMu makes snapshot+Save and Reset+Clear atomic with respect to
	// each other.
	storeMu sync.Mutex

	sleep   func(ctx context.Context, d time.Duration) error
	closers []func() error
}

// NewService wires a scheduler over its collaborators. store and objects may
// be nil, in which case nothing is persisted.
func NewService(cfg internal.Config, catalog Catalog, gen Generator, store ProcessedStore, objects JSONStore, log *logging.Logger) *Service {
	return &Service{
		cfg:     cfg,
		log:     log,
		catalog: catalog,
		gen:     gen,
		store:   store,
		objects: objects,
		state:   NewState(),
		cron:    cron.New(cron.WithParser(cronParser), cron.WithLogger(cronLogger{log}), cron.WithChain(cron.Recover(cronLogger{log}))),
		baseCtx: context.Background(),
		sleep:   sleepCtx,
	}
}

func (s *Service) GetConfig() internal.Config {
	s.cfgMux.Lock()
	defer s.cfgMux.Unlock()
	return s.cfg
}

func (s *Service) State() *State { return s.state }

func (s *Service) Snapshot() Snapshot { return s.state.Snapshot() }

// Content returns the upstream client when the service was built by
// BuildService, nil otherwise.
func (s *Service) Content() *content.Client { return s.posts }

func (s *Service) SetNotifier(n Notifier) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.notifier = n
}

// Schedule registers the catalog and reset timers.
func (s *Service) Schedule() error {
	if _, err := s.cron.AddFunc(s.cfg.CatalogSchedule, func() {
		s.log.Infof("cron: catalog run")
		if _, err := s.RunCatalog(s.context()); err != nil && !errors.Is(err, ErrAlreadyRunning) {
			s.log.Errorf("cron catalog run: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("catalog schedule %q: %w", s.cfg.CatalogSchedule, err)
	}

	if _, err := s.cron.AddFunc(s.cfg.ResetSchedule, func() {
		s.log.Infof("cron: resetting processed set")
		s.ResetProcessed(s.context())
	}); err != nil {
		return fmt.Errorf("reset schedule %q: %w", s.cfg.ResetSchedule, err)
	}
	return nil
}

func (s *Service) context() context.Context {
	s.baseMu.Lock()
	defer s.baseMu.Unlock()
	return s.baseCtx
}

// Run restores persisted state, starts the timers and blocks until ctx is
// done.
func (s *Service) Run(ctx context.Context) error {
	s.baseMu.Lock()
	s.baseCtx = ctx
	s.baseMu.Unlock()

	if err := s.restore(ctx); err != nil {
		s.log.Warnf("scheduler: restore processed set: %v", err)
	}
	s.cron.Start()

	if s.cfg.RunOnStart {
		go func() {
			if _, err := s.RunCatalog(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) && ctx.Err() == nil {
				s.log.Errorf("startup catalog run: %v", err)
			}
		}()
	}

	<-ctx.Done()

	ctxStop := s.cron.Stop()
	defer func() {
		for _, c := range s.closers {
			if err := c(); err != nil {
				s.log.Warnf("scheduler: close: %v", err)
			}
		}
	}()
	select {
	case <-ctxStop.Done():
		return nil
	case <-time.After(10 * time.Second):
		return errors.New("cron stop timeout")
	}
}

// restore loads the persisted processed set. A set whose last reset is
// older than the reset schedule allows is cleared instead, so restarts never
// postpone the reset.
func (s *Service) restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	set, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	if s.resetDue(set.ResetAt, time.Now()) {
		s.log.Infof("scheduler: persisted processed set (%d posts, last reset %s) is past its reset, clearing",
			len(set.IDs), set.ResetAt.Format(time.RFC3339))
		s.ResetProcessed(ctx)
		return nil
	}
	s.state.Restore(set.IDs, set.ResetAt)
	s.log.Infof("scheduler: restored %d processed posts", len(set.IDs))
	return nil
}

// resetDue reports whether the reset schedule fired between lastReset and
// now. An unknown reset time counts as due.
func (s *Service) resetDue(lastReset, now time.Time) bool {
	if lastReset.IsZero() {
		return true
	}
	sched, err := cronParser.Parse(s.cfg.ResetSchedule)
	if err != nil {
		return true
	}
	return !sched.Next(lastReset).After(now)
}

// RunCatalog walks the whole catalog once, generating a video for every post
// not yet processed since the last reset. Only one run may be active; an
// overlapping call returns ErrAlreadyRunning without doing anything. A failed
// post is logged and skipped.
func (s *Service) RunCatalog(ctx context.Context) (stats RunStats, err error) {
	if !s.state.TryStart() {
		s.log.Warnf("scheduler: catalog run requested while another is running, skipping")
		return RunStats{}, ErrAlreadyRunning
	}
	stats.StartedAt = time.Now()
	s.log.Infof("scheduler: catalog run started")
	defer func() {
		stats.FinishedAt = time.Now()
		if err != nil {
			stats.Error = err.Error()
		}
		s.state.Finish(stats)
		s.log.Infof("scheduler: catalog run finished in %s (pages=%d seen=%d generated=%d skipped=%d failed=%d)",
			stats.FinishedAt.Sub(stats.StartedAt).Round(time.Second), stats.Pages, stats.Seen, stats.Generated, stats.Skipped, stats.Failed)
	}()

	pager := content.NewPager(s.catalog, s.cfg.WPPageSize)
	generatedAny := false
	for pager.Next(ctx) {
		stats.Pages++
		for _, post := range pager.Posts() {
			stats.Seen++
			if s.state.IsProcessed(post.ID) {
				stats.Skipped++
				continue
			}
			if len(post.Images) == 0 {
				s.log.Infof("scheduler: post %d has no images, skipping", post.ID)
				stats.Skipped++
				continue
			}
			if !s.state.LockItem(post.ID) {
				s.log.Infof("scheduler: post %d is being generated by another trigger, skipping", post.ID)
				stats.Skipped++
				continue
			}

			if generatedAny {
				if err := s.sleep(ctx, s.cfg.ItemDelay); err != nil {
					s.state.UnlockItem(post.ID)
					return stats, err
				}
			}
			generatedAny = true

			s.log.Infof("scheduler: generating video for post %d %q", post.ID, post.Title)
			res := s.gen.Generate(ctx, post.Images, post.Title)
			s.state.UnlockItem(post.ID)

			if !res.Completed() {
				stats.Failed++
				s.log.Errorf("scheduler: post %d failed: %s", post.ID, res.Error)
				continue
			}
			stats.Generated++
			s.state.MarkProcessed(post.ID)
			s.persist(ctx)
			s.recordVideo(ctx, post.ID, post.Title, TriggerCatalog, res)
		}
	}
	if err := pager.Err(); err != nil {
		return stats, fmt.Errorf("catalog page %d: %w", pager.Page()+1, err)
	}
	return stats, nil
}

// GenerateForPost fetches one post and generates its video on demand. The
// processed set is neither consulted nor updated. A post already being
// generated by another trigger is refused with ErrItemInFlight.
func (s *Service) GenerateForPost(ctx context.Context, id int64) (model.VideoResult, error) {
	if !s.state.LockItem(id) {
		return model.VideoResult{}, ErrItemInFlight
	}
	defer s.state.UnlockItem(id)

	post, err := s.catalog.GetPost(ctx, id)
	if err != nil {
		return model.VideoResult{}, err
	}
	if len(post.Images) == 0 {
		return model.VideoResult{}, ErrNoImages
	}

	s.log.Infof("scheduler: manual generation for post %d %q", post.ID, post.Title)
	res := s.gen.Generate(ctx, post.Images, post.Title)
	if res.Completed() {
		s.recordVideo(ctx, post.ID, post.Title, TriggerManual, res)
	}
	return res, nil
}

// GenerateForItem runs the pipeline for an arbitrary image list, outside of
// any catalog bookkeeping.
func (s *Service) GenerateForItem(ctx context.Context, images []model.RawImage, title string) model.VideoResult {
	res := s.gen.Generate(ctx, images, title)
	if res.Completed() {
		s.recordVideo(ctx, 0, title, TriggerManual, res)
	}
	return res
}

// ResetProcessed forgets every processed post so the next catalog run
// regenerates them.
func (s *Service) ResetProcessed(ctx context.Context) int {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	n := s.state.Reset()
	if s.store != nil {
		if err := s.store.Clear(ctx, s.state.LastReset()); err != nil {
			s.log.Errorf("scheduler: clear processed store: %v", err)
		}
	}
	s.log.Infof("scheduler: processed set reset (%d posts cleared)", n)
	return n
}

func (s *Service) persist(ctx context.Context) {
	if s.store == nil {
		return
	}
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	set := ProcessedSet{IDs: s.state.ProcessedIDs(), ResetAt: s.state.LastReset()}
	if err := s.store.Save(ctx, set); err != nil {
		s.log.Warnf("scheduler: persist processed set: %v", err)
	}
}

func (s *Service) recordVideo(ctx context.Context, postID int64, title, trigger string, res model.VideoResult) {
	rec := model.VideoRecord{
		PostID:    postID,
		Title:     title,
		URL:       res.URL,
		Trigger:   trigger,
		CreatedAt: time.Now(),
		Meta:      res.Meta,
	}

	if s.objects != nil {
		s.videosMu.Lock()
		var idx model.VideosIndex
		if _, err := s.objects.ReadJSON(ctx, s.cfg.VideosJSONKey, &idx); err != nil {
			s.log.Warnf("scheduler: read %s: %v", s.cfg.VideosJSONKey, err)
		}
		idx.Items = append(idx.Items, rec)
		if len(idx.Items) > videosHistoryLimit {
			idx.Items = idx.Items[len(idx.Items)-videosHistoryLimit:]
		}
		idx.UpdatedAt = time.Now()
		if err := s.objects.WriteJSON(ctx, s.cfg.VideosJSONKey, &idx); err != nil {
			s.log.Errorf("scheduler: write %s: %v", s.cfg.VideosJSONKey, err)
		}
		s.videosMu.Unlock()
	}

	if trigger != TriggerCatalog {
		return
	}
	s.notifyMu.RLock()
	n := s.notifier
	s.notifyMu.RUnlock()
	if n != nil {
		n.VideoReady(ctx, rec)
	}
}

// ListVideos returns up to limit recorded videos, newest first.
func (s *Service) ListVideos(ctx context.Context, limit int) ([]model.VideoRecord, error) {
	if s.objects == nil {
		return nil, nil
	}
	var idx model.VideosIndex
	if _, err := s.objects.ReadJSON(ctx, s.cfg.VideosJSONKey, &idx); err != nil {
		return nil, err
	}
	items := slices.Clone(idx.Items)
	slices.Reverse(items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

type chatConfig struct {
	PostsChatID int64 `json:"posts_chat_id"`
}

// SavePostsChatID sets the publication chat and persists it next to the
// indexes so it survives restarts.
func (s *Service) SavePostsChatID(ctx context.Context, chatID int64) error {
	s.cfgMux.Lock()
	defer s.cfgMux.Unlock()
	s.cfg.PostsChatID = chatID
	if s.objects == nil {
		return nil
	}
	return s.objects.WriteJSON(ctx, "config.json", &chatConfig{PostsChatID: chatID})
}

func (s *Service) LoadPostsChatID(ctx context.Context) error {
	if s.objects == nil {
		return nil
	}
	s.cfgMux.Lock()
	defer s.cfgMux.Unlock()
	var cfg chatConfig
	found, err := s.objects.ReadJSON(ctx, "config.json", &cfg)
	if err != nil {
		return err
	}
	if found && cfg.PostsChatID != 0 {
		s.cfg.PostsChatID = cfg.PostsChatID
		s.log.Infof("loaded POSTS_CHAT_ID=%d from S3", cfg.PostsChatID)
	}
	return nil
}

func BuildService(ctx context.Context, log *logging.Logger) (*Service, error) {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return nil, err
	}

	s3c, err := s3.New(cfg)
	if err != nil {
		return nil, err
	}

	posts := content.NewClient(cfg.WPBaseURL, &http.Client{Timeout: 30 * time.Second}, log)
	if cfg.EnrichEmbeds {
		posts.Embeds = content.NewEmbedResolver(log)
	}

	enc := video.NewExecEncoder(cfg.FFmpegMaxProcs, cfg.EncodeTimeout, log)
	pipeline := video.NewPipeline(cfg, enc, s3c, log)

	var store ProcessedStore = NewJSONProcessedStore(s3c, cfg.ProcessedJSONKey)
	var closers []func() error
	if cfg.RedisURL != "" {
		rs, err := NewRedisProcessedStore(cfg.RedisURL, RedisProcessedKey)
		if err != nil {
			return nil, err
		}
		store = rs
		closers = append(closers, rs.Close)
		log.Infof("scheduler: processed set stored in redis")
	}

	s := NewService(cfg, posts, pipeline, store, s3c, log)
	s.posts = posts
	s.closers = closers
	if err := s.Schedule(); err != nil {
		return nil, err
	}

	if err := s.LoadPostsChatID(ctx); err != nil {
		log.Errorf("failed to load POSTS_CHAT_ID: %v", err)
	}
	return s, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// cronLogger routes cron's own errors and recovered panics to our logger.
type cronLogger struct{ log *logging.Logger }

// Info is per-tick noise from cron and is dropped.
func (cronLogger) Info(string, ...interface{}) {}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Errorf("cron: %s: %v %v", msg, err, keysAndValues)
}
