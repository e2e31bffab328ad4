package cleanup

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"itemscout/internal/storage"
)

// Manager deletes released images in the background so item mutations
// never wait on object storage. Callers release an image only after checking
// that no item still references it.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()
	// ImageKey maps an image URL to the key of the store it lives in.
	ImageKey(imageURL string) (string, bool)
	ReleaseImage(imageURL string)
}

type Config struct {
	MaxConcurrent int
	DeleteTimeout time.Duration
	Logger        *logrus.Logger
}

type manager struct {
	cfg     Config
	storage storage.Service

	sem     chan struct{}
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	pending map[string]struct{}
}

func NewManager(cfg Config, store storage.Service) Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.DeleteTimeout <= 0 {
		cfg.DeleteTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &manager{
		cfg:     cfg,
		storage: store,
		sem:     make(chan struct{}, cfg.MaxConcurrent),
		pending: make(map[string]struct{}),
	}
}

func (m *manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	m.cfg.Logger.Info("image cleanup started")
	return nil
}

// Shutdown waits for queued deletes to finish.
func (m *manager) Shutdown() {
	m.wg.Wait()
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()
	m.cfg.Logger.Info("image cleanup stopped")
}

func (m *manager) ImageKey(imageURL string) (string, bool) {
	return m.storage.KeyFromURL(imageURL)
}

func (m *manager) ReleaseImage(imageURL string) {
	logger := m.cfg.Logger.WithField("image", imageURL)

	key, ok := m.storage.KeyFromURL(imageURL)
	if !ok {
		logger.Debug("image not managed by this store, skipping cleanup")
		return
	}

	m.mu.Lock()
	if m.ctx == nil {
		m.mu.Unlock()
		logger.Warn("cleanup manager not started, image left in place")
		return
	}
	if _, busy := m.pending[key]; busy {
		m.mu.Unlock()
		return
	}
	m.pending[key] = struct{}{}
	baseCtx := m.ctx
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.pending, key)
			m.mu.Unlock()
		}()

		m.sem <- struct{}{}
		defer func() { <-m.sem }()

		m.deleteImage(baseCtx, key)
	}()
}

func (m *manager) deleteImage(ctx context.Context, key string) {
	logger := m.cfg.Logger.WithField("key", key)

	deleteCtx, cancel := context.WithTimeout(ctx, m.cfg.DeleteTimeout)
	defer cancel()

	if err := m.storage.Delete(deleteCtx, key); err != nil {
		logger.Warnf("delete image: %v", err)
		return
	}
	logger.Info("image deleted")
}

var _ Manager = (*manager)(nil)
