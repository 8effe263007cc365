package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"MGProject/global"
	"MGProject/module/social/model"
	"MGProject/service/coalescer"
	"MGProject/service/storage"
	"MGProject/tools/errs"
)

// Snapshot 客户端上报的本地进度
type Snapshot struct {
	XP           int64       `json:"xp"`
	Stats        model.Stats `json:"stats"`
	Achievements []string    `json:"achievements,omitempty"`
}

// ProfileSynchronizer 档案合并。
//
// 合并规则是逐字段取 max（单调合并）：客户端可能离线攒了进度，
// 取 max 保证不回退，代价是无法撤销客户端侧的错误膨胀——
// 休闲游戏接受这个取舍，省掉真正的 CRDT。
//
// 档案写入走 WriteCoalescer 合并（调用方容忍最终持久化）；
// 窗口内的最新合并结果留在会话缓存里，保证落盘前单调性对后续合并可见。
type ProfileSynchronizer struct {
	store      storage.Store
	co         *coalescer.Coalescer
	writeDelay time.Duration

	mu    sync.Mutex
	cache map[string]*model.Profile // identity -> 最近一次合并结果（未必已落盘）
}

func NewProfileSynchronizer(store storage.Store, co *coalescer.Coalescer, writeDelay time.Duration) *ProfileSynchronizer {
	if writeDelay <= 0 {
		writeDelay = 2 * time.Second
	}
	return &ProfileSynchronizer{
		store:      store,
		co:         co,
		writeDelay: writeDelay,
		cache:      make(map[string]*model.Profile),
	}
}

// Merge 把客户端快照并入服务端档案并返回合并结果。
// 首次同步自动创建零值档案。
func (p *ProfileSynchronizer) Merge(ctx context.Context, identity string, snap Snapshot) (*model.Profile, error) {
	if identity == "" {
		return nil, errs.ErrNotFound.WrapMsg("unknown identity")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	base, err := p.baseProfileLocked(ctx, identity)
	if err != nil {
		return nil, err
	}

	merged := *base
	merged.XP = maxI64(base.XP, snap.XP)
	merged.Stats.GamesPlayed = maxI64(base.Stats.GamesPlayed, snap.Stats.GamesPlayed)
	merged.Stats.Wins = maxI64(base.Stats.Wins, snap.Stats.Wins)
	merged.Stats.BestStreak = maxI64(base.Stats.BestStreak, snap.Stats.BestStreak)
	merged.Stats.PlayMillis = maxI64(base.Stats.PlayMillis, snap.Stats.PlayMillis)
	merged.Achievements = unionSorted(base.Achievements, snap.Achievements)
	merged.Recompute()
	merged.LastSyncedAt = time.Now()

	p.cache[identity] = &merged

	// producer 延迟取缓存最新值：窗口内多次 Merge 只落一次盘
	p.co.Schedule(global.ProfileKey(identity), func() (string, error) {
		p.mu.Lock()
		cur, ok := p.cache[identity]
		p.mu.Unlock()
		if !ok {
			cur = &merged
		}
		raw, err := json.Marshal(cur)
		if err != nil {
			return "", errs.WrapMsg(err, "marshal profile", "identity", identity)
		}
		return string(raw), nil
	}, p.writeDelay, nil)

	out := merged
	return &out, nil
}

// Get 返回当前权威档案（优先会话缓存，其次存储）；从未同步过则 404
func (p *ProfileSynchronizer) Get(ctx context.Context, identity string) (*model.Profile, error) {
	p.mu.Lock()
	if cached, ok := p.cache[identity]; ok {
		out := *cached
		p.mu.Unlock()
		return &out, nil
	}
	p.mu.Unlock()

	prof, err := p.loadStored(ctx, identity)
	if err != nil {
		return nil, err
	}
	if prof == nil {
		return nil, errs.ErrNotFound.WrapMsg("profile not found", "identity", identity)
	}
	return prof, nil
}

// baseProfileLocked 合并基线：缓存 > 存储 > 零值档案（调用方持锁）
func (p *ProfileSynchronizer) baseProfileLocked(ctx context.Context, identity string) (*model.Profile, error) {
	if cached, ok := p.cache[identity]; ok {
		return cached, nil
	}
	prof, err := p.loadStored(ctx, identity)
	if err != nil {
		return nil, err
	}
	if prof == nil {
		prof = model.NewProfile(identity)
	}
	return prof, nil
}

func (p *ProfileSynchronizer) loadStored(ctx context.Context, identity string) (*model.Profile, error) {
	raw, ok, err := p.store.Get(ctx, global.ProfileKey(identity))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var prof model.Profile
	if err := json.Unmarshal([]byte(raw), &prof); err != nil {
		return nil, errs.WrapMsg(err, "unmarshal profile", "identity", identity)
	}
	return &prof, nil
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func unionSorted(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a)+len(b))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		set[v] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
