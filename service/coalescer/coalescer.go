package coalescer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"MGProject/logger"
	"MGProject/service/storage"
	"MGProject/tools/safe"
)

// Producer 延迟求值：到点刷盘时才生成要持久化的值，
// 合并窗口内多次 Schedule 只留最后一个 producer。
type Producer func() (string, error)

type entry struct {
	producer Producer
	opts     *storage.SetOpts
	timer    *time.Timer
	gen      uint64 // 每次重新调度 +1，旧定时器据此识别自己已过期
}

// Coalescer 按键去抖合并写。进程内单实例组件：timer 和 producer 表
// 只属于一个运行时，适合合并同一会话来源的高频写，不做跨实例去重。
// 单键失败互相隔离；周期性兜底刷盘约束未落盘数据的最大滞后。
type Coalescer struct {
	store storage.Store

	mu      sync.Mutex
	pending map[string]*entry

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New 创建并启动周期兜底刷盘（interval<=0 表示关闭周期刷盘）
func New(store storage.Store, interval time.Duration) *Coalescer {
	safe.MustNotNil(store, "store")
	c := &Coalescer{
		store:   store,
		pending: make(map[string]*entry),
		stopCh:  make(chan struct{}),
	}
	if interval > 0 {
		safe.SafeGo(func() { c.loop(interval) })
	}
	return c
}

// Schedule 记录 key 最新的 producer 并重开 delay 窗口（trailing-edge 去抖）。
// 已有待写条目时只替换 producer、重开新定时器，不会多触发一次。
// 旧定时器可能已经触发并卡在锁上：代次检查保证它拿到锁后直接放弃，
// 不会提前刷掉新窗口。
func (c *Coalescer) Schedule(key string, p Producer, delay time.Duration, opts *storage.SetOpts) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.pending[key]; ok {
		e.producer = p
		e.opts = opts
		e.gen++
		e.timer.Stop()
		gen := e.gen
		e.timer = time.AfterFunc(delay, func() { c.timedFlush(key, gen) })
		return
	}
	e := &entry{producer: p, opts: opts}
	gen := e.gen
	e.timer = time.AfterFunc(delay, func() { c.timedFlush(key, gen) })
	c.pending[key] = e
}

// timedFlush 定时路径的刷盘；条目已被重新调度（代次不符）或已不存在时放弃
func (c *Coalescer) timedFlush(key string, gen uint64) {
	c.mu.Lock()
	e, ok := c.pending[key]
	if !ok || e.gen != gen {
		c.mu.Unlock()
		return
	}
	delete(c.pending, key)
	prod, opts := e.producer, e.opts
	c.mu.Unlock()

	val, err := prod()
	if err == nil {
		err = c.store.Set(context.Background(), key, val, opts)
	}
	if err != nil {
		logger.Error("coalescer timed flush failed", zap.String("key", key), zap.Error(err))
	}
}

// Flush 取消计时器并立刻执行最新 producer；key 无待写条目时是 no-op。
func (c *Coalescer) Flush(ctx context.Context, key string) error {
	c.mu.Lock()
	e, ok := c.pending[key]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.pending, key)
	e.timer.Stop()
	prod, opts := e.producer, e.opts
	c.mu.Unlock()

	val, err := prod()
	if err != nil {
		return err
	}
	return c.store.Set(ctx, key, val, opts)
}

// FlushAll 并发刷所有待写键；单键失败只记日志，不阻塞其他键。
// 返回失败键数。
func (c *Coalescer) FlushAll(ctx context.Context) int {
	c.mu.Lock()
	keys := make([]string, 0, len(c.pending))
	for k := range c.pending {
		keys = append(keys, k)
	}
	c.mu.Unlock()

	var (
		wg     sync.WaitGroup
		failMu sync.Mutex
		failed int
	)
	for _, k := range keys {
		wg.Add(1)
		key := k
		go func() {
			defer wg.Done()
			if err := c.Flush(ctx, key); err != nil {
				logger.Error("coalescer flush failed", zap.String("key", key), zap.Error(err))
				failMu.Lock()
				failed++
				failMu.Unlock()
			}
		}()
	}
	wg.Wait()
	return failed
}

// Cancel 丢弃 key 的待写条目，不执行 producer
func (c *Coalescer) Cancel(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.pending[key]; ok {
		e.timer.Stop()
		delete(c.pending, key)
	}
}

// CancelAll 丢弃全部待写条目
func (c *Coalescer) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.pending {
		e.timer.Stop()
		delete(c.pending, k)
	}
}

// PendingCount 当前待写键数（监控/测试用）
func (c *Coalescer) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Shutdown 停掉周期刷盘并把所有待写条目落盘；进程退出前必须调用。
func (c *Coalescer) Shutdown(ctx context.Context) {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.FlushAll(ctx)
}

func (c *Coalescer) loop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-t.C:
			c.FlushAll(context.Background())
		}
	}
}
