// Package pricing 按当前地区解析商品的生效价格。查询不会失败，查不到就是 nil。
package pricing

import (
	"sync"
	"time"

	"adBuilder/internal/model"
)

// DefaultFlashDelay 是“最近更新”标记的保留时长。
const DefaultFlashDelay = 2 * time.Second

// Store 保存 feed 基础价、地区覆盖价与当前地区，可并发使用。
type Store struct {
	mu             sync.RWMutex
	prices         map[string]model.PriceData
	regionalPrices map[string]map[string]model.PriceData
	activeRegion   string

	recent     map[string]uint64
	generation uint64
	flashDelay time.Duration
	afterFunc  func(time.Duration, func()) stopper
	onUpdate   func(upc string)
}

type stopper interface {
	Stop() bool
}

type Option func(*Store)

func WithFlashDelay(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.flashDelay = d
		}
	}
}

// WithUpdateHook 注册回调，UPC 被标记时在锁外调用。
func WithUpdateHook(fn func(upc string)) Option {
	return func(s *Store) {
		s.onUpdate = fn
	}
}

func WithRegion(region string) Option {
	return func(s *Store) {
		s.activeRegion = region
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		prices:         make(map[string]model.PriceData),
		regionalPrices: make(map[string]map[string]model.PriceData),
		recent:         make(map[string]uint64),
		flashDelay:     DefaultFlashDelay,
		afterFunc: func(d time.Duration, fn func()) stopper {
			return time.AfterFunc(d, fn)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ImportFeed 按 UPC 记录每个区块的结构化价格，与上次导入相比促销价变化的 UPC 会被标记。
func (s *Store) ImportFeed(blocks []model.BlockData) {
	var flagged []string

	s.mu.Lock()
	for _, b := range blocks {
		if b.UPC == "" || b.Feed.Price == nil {
			continue
		}
		price := *b.Feed.Price
		prev, existed := s.prices[b.UPC]
		s.prices[b.UPC] = price
		if existed && !prev.SameAdPrice(price) {
			flagged = append(flagged, b.UPC)
		}
	}
	s.mu.Unlock()

	for _, upc := range flagged {
		s.flag(upc)
	}
}

// SetRegion 切换当前地区，未知地区回落到基础价。
func (s *Store) SetRegion(region string) {
	s.mu.Lock()
	s.activeRegion = region
	s.mu.Unlock()
}

func (s *Store) Region() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeRegion
}

// SetOverride 在当前地区下写入覆盖价。
func (s *Store) SetOverride(upc string, price model.PriceData) {
	s.mu.Lock()
	s.setRegional(s.activeRegion, upc, price)
	s.mu.Unlock()
	s.flag(upc)
}

// LoadOverride 写入指定地区的覆盖价但不标记，加载持久化数据时使用。
func (s *Store) LoadOverride(region, upc string, price model.PriceData) {
	s.mu.Lock()
	s.setRegional(region, upc, price)
	s.mu.Unlock()
}

func (s *Store) setRegional(region, upc string, price model.PriceData) {
	byUPC, ok := s.regionalPrices[region]
	if !ok {
		byUPC = make(map[string]model.PriceData)
		s.regionalPrices[region] = byUPC
	}
	byUPC[upc] = price
}

// GetPrice 依次返回当前地区覆盖价、基础价，都没有时返回 nil。
func (s *Store) GetPrice(upc string) *model.PriceData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.activeRegion, upc)
}

func (s *Store) GetPriceIn(region, upc string) *model.PriceData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(region, upc)
}

func (s *Store) lookup(region, upc string) *model.PriceData {
	if byUPC, ok := s.regionalPrices[region]; ok {
		if p, ok := byUPC[upc]; ok {
			return &p
		}
	}
	if p, ok := s.prices[upc]; ok {
		return &p
	}
	return nil
}

func (s *Store) RecentlyUpdated(upc string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.recent[upc]
	return ok
}

// Clone 复制价格与地区，不复制标记。
func (s *Store) Clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := NewStore(WithFlashDelay(s.flashDelay), WithRegion(s.activeRegion))
	for upc, p := range s.prices {
		out.prices[upc] = p
	}
	for region, byUPC := range s.regionalPrices {
		copied := make(map[string]model.PriceData, len(byUPC))
		for upc, p := range byUPC {
			copied[upc] = p
		}
		out.regionalPrices[region] = copied
	}
	return out
}

func (s *Store) flag(upc string) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.recent[upc] = gen
	delay := s.flashDelay
	s.mu.Unlock()

	s.afterFunc(delay, func() {
		s.mu.Lock()
		// 同一 UPC 有更新的标记时由它负责清除
		if s.recent[upc] == gen {
			delete(s.recent, upc)
		}
		s.mu.Unlock()
	})

	if s.onUpdate != nil {
		s.onUpdate(upc)
	}
}

// View 是固定在某个地区上的只读视图。
type View struct {
	store  *Store
	region string
}

// In 返回指定地区的视图，region 为空时跟随当前地区。
func (s *Store) In(region string) View {
	return View{store: s, region: region}
}

func (v View) GetPrice(upc string) *model.PriceData {
	if v.region == "" {
		return v.store.GetPrice(upc)
	}
	return v.store.GetPriceIn(v.region, upc)
}

func (v View) RecentlyUpdated(upc string) bool {
	return v.store.RecentlyUpdated(upc)
}
