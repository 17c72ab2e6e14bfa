package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/any-cache/internal/logging"
)

// Config 描述一个 Cache 实例的可选行为。
type Config struct {
	// Placeholder 非空时，每次 Lookup 都会先投递它。
	Placeholder []byte
	// LocalCachePath 非空时启用磁盘影子缓存；目录创建失败则本进程内保持禁用。
	LocalCachePath string
	// AliveTime 目前只被记录和展示，不会触发任何淘汰。
	AliveTime time.Duration
}

// Option 调整 Cache 的运行参数。
type Option func(*Cache)

// WithMetrics 注入 Prometheus 指标。
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithFetchTimeout 限制单次回源竞速的总时长，<= 0 表示不限制。
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		c.fetchTimeout = d
	}
}

// WithContext 设置后台 fetch 与落盘使用的根 context，取消后在途回源随之中止。
func WithContext(ctx context.Context) Option {
	return func(c *Cache) {
		if ctx != nil {
			c.baseCtx = ctx
		}
	}
}

// Cache 负责 orchestrate “内存命中 → 在途去重 → 磁盘/网络竞速 → 写回” 的全流程。
// ResultStore 与 InFlight 是仅有的共享可变状态，调用方无需额外加锁。
type Cache struct {
	store    *ResultStore
	inflight *InFlight
	disk     *DiskStore
	fetcher  Fetcher

	placeholder    Payload
	hasPlaceholder bool
	aliveTime      time.Duration
	fetchTimeout   time.Duration

	baseCtx context.Context
	logger  logrus.FieldLogger
	metrics *Metrics

	workers sync.WaitGroup
	persist sync.WaitGroup
}

// Stats 是 Cache 状态的瞬时快照，供诊断接口输出。
type Stats struct {
	Entries     int           `json:"entries"`
	InFlight    int           `json:"in_flight"`
	DiskEnabled bool          `json:"disk_enabled"`
	DiskPath    string        `json:"disk_path,omitempty"`
	Placeholder bool          `json:"placeholder"`
	AliveTime   time.Duration `json:"alive_time"`
}

// New 构造 Cache。fetcher 为空时使用默认 HTTPFetcher，logger 为空时使用 logrus 全局 logger。
func New(cfg Config, fetcher Fetcher, logger logrus.FieldLogger, opts ...Option) *Cache {
	if fetcher == nil {
		fetcher = NewHTTPFetcher(nil, "")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	c := &Cache{
		store:     NewResultStore(),
		inflight:  NewInFlight(),
		fetcher:   fetcher,
		aliveTime: cfg.AliveTime,
		baseCtx:   context.Background(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.Placeholder != nil {
		c.placeholder = NewPayload(cfg.Placeholder, SourcePlaceholder)
		c.hasPlaceholder = true
	}

	if cfg.LocalCachePath != "" {
		disk, err := NewDiskStore(cfg.LocalCachePath)
		if err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"action": "disk_init",
				"path":   cfg.LocalCachePath,
			}).Warn("disk_cache_disabled")
		} else {
			c.disk = disk
		}
	}

	return c
}

// Lookup 是唯一的请求入口：先投递占位内容，再按 “命中 → 加入在途 → 发起回源” 处理。
// reply 可以为 nil，此时只做预取。Lookup 从不阻塞在 IO 上。
func (c *Cache) Lookup(raw string, reply *Reply) {
	if c.hasPlaceholder {
		_ = reply.Send(c.placeholder)
	}

	key, err := Normalize(raw)
	if err != nil {
		c.metrics.lookup("invalid")
		c.logger.WithError(err).WithFields(logging.LookupFields(raw, "invalid")).Warn("lookup_invalid_key")
		return
	}

	if payload, ok := c.store.Get(key); ok {
		c.metrics.lookup("hit")
		_ = reply.Send(payload)
		return
	}

	if !c.inflight.TryMark(key, reply) {
		c.metrics.lookup("joined")
		c.logger.WithFields(logging.LookupFields(key.String(), "joined")).Debug("lookup_joined_inflight")
		return
	}
	c.metrics.inflightAdd(1)

	// Get 与 TryMark 之间可能恰好有一次 fetch 完成，这里再确认一次，避免重复回源。
	if payload, ok := c.store.Get(key); ok {
		c.metrics.lookup("hit")
		_ = reply.Send(payload)
		c.release(key, payload, true)
		return
	}

	c.metrics.lookup("miss")
	c.workers.Go(func() { c.fetch(key, reply) })
}

// Get 是 Lookup 的同步封装：等待最终结果或 ctx 结束。占位内容不算结果。
func (c *Cache) Get(ctx context.Context, raw string) (Payload, error) {
	if _, err := Normalize(raw); err != nil {
		return Payload{}, err
	}
	reply := NewReply()
	defer reply.Close()

	c.Lookup(raw, reply)
	payload, ok := reply.Await(ctx)
	if !ok {
		return payload, ctx.Err()
	}
	return payload, nil
}

// Peek 只查询内存，不触发回源。
func (c *Cache) Peek(raw string) (Payload, bool) {
	key, err := Normalize(raw)
	if err != nil {
		return Payload{}, false
	}
	return c.store.Get(key)
}

// Wait 阻塞直到所有在途回源及其异步落盘完成，用于优雅退出与测试。
func (c *Cache) Wait() {
	c.workers.Wait()
	c.persist.Wait()
}

// Disk 返回磁盘影子缓存，未启用时为 nil。
func (c *Cache) Disk() *DiskStore {
	return c.disk
}

// Stats 返回当前状态快照。
func (c *Cache) Stats() Stats {
	s := Stats{
		Entries:     c.store.Len(),
		InFlight:    c.inflight.Len(),
		Placeholder: c.hasPlaceholder,
		AliveTime:   c.aliveTime,
	}
	if c.disk != nil {
		s.DiskEnabled = true
		s.DiskPath = c.disk.Dir()
	}
	return s
}

// fetch 在独立 goroutine 中执行一次竞速。无论成功、失败还是 panic，
// 延迟执行的 release 都会清除在途标记，保证 key 之后仍可再次回源。
func (c *Cache) fetch(key Key, reply *Reply) {
	started := time.Now()
	var (
		resolved Payload
		ok       bool
	)
	defer func() {
		if r := recover(); r != nil {
			ok = false
			c.logger.WithFields(logging.LookupFields(key.String(), "panic")).
				Errorf("fetch_panic: %v", r)
		}
		c.release(key, resolved, ok)
	}()

	ctx, cancel := c.fetchContext()
	defer cancel()

	winner, err := c.race(ctx, key)
	fields := logging.LookupFields(key.String(), "fetch")
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if err != nil {
		c.metrics.fetched("none")
		c.logger.WithError(err).WithFields(fields).Error("fetch_failed")
		return
	}
	resolved, ok = winner, true
	c.metrics.fetched(string(winner.Source()))

	_ = reply.Send(winner)
	c.store.Insert(key, winner)
	if c.disk != nil && winner.Source() != SourceDisk {
		c.persistAsync(key, winner)
	}

	fields["source"] = string(winner.Source())
	fields["bytes"] = winner.Len()
	c.logger.WithFields(fields).Debug("fetch_complete")
}

type candidate struct {
	payload Payload
	source  Source
	err     error
}

// race 并发执行磁盘与网络两个候选，返回第一个成功的结果。
// 落败者写入带缓冲的通道后自行退出；fetch 结束时 ctx 被取消，仍在进行的网络请求随之中止。
func (c *Cache) race(ctx context.Context, key Key) (Payload, error) {
	results := make(chan candidate, 2)
	pending := 0

	if c.disk != nil {
		pending++
		go c.runCandidate(results, SourceDisk, func() (Payload, error) {
			return c.disk.read(ctx, key)
		})
	}

	pending++
	go c.runCandidate(results, SourceNetwork, func() (Payload, error) {
		data, err := c.fetcher.Fetch(ctx, key.String())
		if err != nil {
			return Payload{}, err
		}
		return ownedPayload(data, SourceNetwork), nil
	})

	var errs []error
	for pending > 0 {
		select {
		case res := <-results:
			pending--
			if res.err == nil {
				return res.payload, nil
			}
			errs = append(errs, fmt.Errorf("%s: %w", res.source, res.err))
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
			return Payload{}, errors.Join(errs...)
		}
	}
	return Payload{}, errors.Join(errs...)
}

func (c *Cache) runCandidate(results chan<- candidate, source Source, run func() (Payload, error)) {
	defer func() {
		if r := recover(); r != nil {
			results <- candidate{source: source, err: fmt.Errorf("candidate panic: %v", r)}
		}
	}()
	p, err := run()
	results <- candidate{payload: p, source: source, err: err}
}

// persistAsync 在后台把 payload 写入磁盘影子缓存，失败只记录日志，不重试。
func (c *Cache) persistAsync(key Key, p Payload) {
	c.persist.Go(func() {
		err := c.disk.Write(c.baseCtx, key, p)
		c.metrics.diskWrite(err)
		fields := logging.LookupFields(key.String(), "persist")
		fields["path"] = c.disk.PathFor(key)
		if err != nil {
			c.logger.WithError(err).WithFields(fields).Warn("disk_write_failed")
			return
		}
		c.logger.WithFields(fields).Debug("disk_write_complete")
	})
}

// release 清除在途标记，并在成功时把结果投递给在途期间加入的 waiter。
func (c *Cache) release(key Key, p Payload, ok bool) {
	waiters := c.inflight.Unmark(key)
	c.metrics.inflightAdd(-1)
	if !ok {
		return
	}
	for _, w := range waiters {
		_ = w.Send(p)
	}
}

func (c *Cache) fetchContext() (context.Context, context.CancelFunc) {
	if c.fetchTimeout > 0 {
		return context.WithTimeout(c.baseCtx, c.fetchTimeout)
	}
	return context.WithCancel(c.baseCtx)
}
