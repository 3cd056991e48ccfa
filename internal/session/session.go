// Package session 为每个广告维护一个编辑会话：文档、价格、历史以及渲染所需的目录数据。
// dirty 的会话定期整体保存。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"adBuilder/internal/database"
	"adBuilder/internal/document"
	"adBuilder/internal/editor"
	"adBuilder/internal/history"
	"adBuilder/internal/metrics"
	"adBuilder/internal/model"
	"adBuilder/internal/pricing"
)

// ErrAdNotFound 广告不存在。
var ErrAdNotFound = errors.New("session: ad not found")

// Repository 是 Manager 需要的持久化接口。
type Repository interface {
	LoadAd(ctx context.Context, id string) (model.Ad, error)
	SaveAd(ctx context.Context, ad model.Ad) (map[string]string, error)
	ListBlocks(ctx context.Context, adID string) ([]model.BlockData, error)
	ListTemplates(ctx context.Context) ([]model.Template, error)
	ListRegionalPrices(ctx context.Context, adID string) ([]database.RegionalPriceEntry, error)
}

type Options struct {
	AutosaveInterval time.Duration
	HistoryLimit     int
	PriceFlashDelay  time.Duration
	DefaultRegion    string
	// 超过 IdleTimeout 未访问且已保存的会话会被回收
	IdleTimeout time.Duration
	// UPC 被标记为最近更新时回调
	OnPriceUpdate func(adID, upc string)
	Logger        *slog.Logger
}

// Session 是单个广告的实时状态。
type Session struct {
	AdID   string
	Editor *editor.Editor
	Prices *pricing.Store

	mu        sync.RWMutex
	blocks    map[string]model.BlockData
	templates editor.TemplateSet
	touched   time.Time

	saveMu sync.Mutex
}

func (s *Session) Document() *document.Store { return s.Editor.Document() }

func (s *Session) Block(id string) (model.BlockData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[id]
	return b, ok
}

// Blocks 返回 BlockData 的拷贝。
func (s *Session) Blocks() map[string]model.BlockData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.BlockData, len(s.blocks))
	for k, v := range s.blocks {
		out[k] = v
	}
	return out
}

// PutBlocks 新增或替换 BlockData，同时把价格写入价格存储。
func (s *Session) PutBlocks(blocks []model.BlockData) {
	s.mu.Lock()
	for _, b := range blocks {
		s.blocks[b.ID] = b
	}
	s.mu.Unlock()
	s.Prices.ImportFeed(blocks)
}

func (s *Session) Templates() editor.TemplateSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.templates
}

// SetTemplates 替换放置与渲染使用的模板集合。
func (s *Session) SetTemplates(list []model.Template) {
	set := make(editor.TemplateSet, len(list))
	for _, t := range list {
		set[t.ID] = t
	}
	s.mu.Lock()
	s.templates = set
	s.mu.Unlock()
	s.Editor.SetTemplates(set)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.touched = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.touched
}

// Manager 持有所有会话。
type Manager struct {
	repo   Repository
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(repo Repository, opts Options) *Manager {
	if opts.AutosaveInterval <= 0 {
		opts.AutosaveInterval = 30 * time.Second
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = history.DefaultLimit
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 30 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		repo:     repo,
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Get 返回 adID 的会话，首次访问时从数据库加载。
func (m *Manager) Get(ctx context.Context, adID string) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[adID]; ok {
		m.mu.Unlock()
		s.touch()
		return s, nil
	}
	m.mu.Unlock()

	s, err := m.load(ctx, adID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// 其他请求可能已经加载
	if existing, ok := m.sessions[adID]; ok {
		return existing, nil
	}
	m.sessions[adID] = s
	metrics.SetLiveSessions(len(m.sessions))
	return s, nil
}

func (m *Manager) load(ctx context.Context, adID string) (*Session, error) {
	ad, err := m.repo.LoadAd(ctx, adID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrAdNotFound, adID)
		}
		return nil, fmt.Errorf("load ad: %w", err)
	}
	blocks, err := m.repo.ListBlocks(ctx, adID)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}
	templates, err := m.repo.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	regional, err := m.repo.ListRegionalPrices(ctx, adID)
	if err != nil {
		return nil, fmt.Errorf("load regional prices: %w", err)
	}

	region := m.opts.DefaultRegion
	if len(ad.RegionIDs) > 0 {
		region = ad.RegionIDs[0]
	}
	priceOpts := []pricing.Option{pricing.WithRegion(region), pricing.WithFlashDelay(m.opts.PriceFlashDelay)}
	if hook := m.opts.OnPriceUpdate; hook != nil {
		priceOpts = append(priceOpts, pricing.WithUpdateHook(func(upc string) { hook(adID, upc) }))
	}
	prices := pricing.NewStore(priceOpts...)
	for _, rp := range regional {
		prices.LoadOverride(rp.Region, rp.UPC, rp.Price)
	}

	s := &Session{
		AdID:    adID,
		Editor:  editor.New(document.New(ad), history.New(m.opts.HistoryLimit), nil),
		Prices:  prices,
		blocks:  make(map[string]model.BlockData, len(blocks)),
		touched: time.Now(),
	}
	s.SetTemplates(templates)
	s.PutBlocks(blocks)
	m.logger.Info("editing session loaded",
		slog.String("ad_id", adID),
		slog.Int("blocks", len(blocks)),
		slog.Int("pages", ad.PageCount()),
	)
	return s, nil
}

// Save 在会话 dirty 时落盘，并把临时 id 换成正式 id。
func (m *Manager) Save(ctx context.Context, adID string) error {
	m.mu.Lock()
	s, ok := m.sessions[adID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.save(ctx, s)
}

func (m *Manager) save(ctx context.Context, s *Session) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	doc := s.Document()
	if !doc.Dirty() {
		return nil
	}
	rev := doc.Revision()
	ad := doc.Snapshot()

	ids, err := m.repo.SaveAd(ctx, ad)
	metrics.ObserveSave(err)
	if err != nil {
		return fmt.Errorf("save ad %s: %w", s.AdID, err)
	}
	renamed := 0
	for oldID, newID := range ids {
		if s.Editor.ReplacePlacedBlockID(oldID, newID) {
			renamed++
		}
	}
	// 保存期间的新修改保持 dirty
	doc.MarkClean(rev + uint64(renamed))
	return nil
}

// Invalidate 丢弃会话，不保存。
func (m *Manager) Invalidate(adID string) {
	m.mu.Lock()
	delete(m.sessions, adID)
	metrics.SetLiveSessions(len(m.sessions))
	m.mu.Unlock()
}

func (m *Manager) Loaded(adID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[adID]
	return s, ok
}

// ReloadTemplates 刷新所有会话的模板集合。
func (m *Manager) ReloadTemplates(ctx context.Context) error {
	templates, err := m.repo.ListTemplates(ctx)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	for _, s := range m.snapshot() {
		s.SetTemplates(templates)
	}
	return nil
}

func (m *Manager) snapshot() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// SaveAll 保存所有 dirty 会话，失败只记日志，留到下一轮。
func (m *Manager) SaveAll(ctx context.Context) {
	for _, s := range m.snapshot() {
		if err := m.save(ctx, s); err != nil {
			m.logger.Warn("autosave failed", slog.String("ad_id", s.AdID), slog.Any("error", err))
		}
	}
}

func (m *Manager) evictIdle(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.Document().Dirty() {
			continue
		}
		if now.Sub(s.idleSince()) > m.opts.IdleTimeout {
			delete(m.sessions, id)
			m.logger.Info("editing session closed", slog.String("ad_id", id))
		}
	}
	metrics.SetLiveSessions(len(m.sessions))
}

// Run 定时自动保存，ctx 结束后再保存一次。
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.opts.AutosaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			m.SaveAll(flushCtx)
			cancel()
			return
		case now := <-ticker.C:
			m.SaveAll(ctx)
			m.evictIdle(now)
		}
	}
}
