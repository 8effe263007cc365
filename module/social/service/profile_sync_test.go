package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"MGProject/global"
	"MGProject/module/social/model"
	"MGProject/service/coalescer"
	"MGProject/service/storage"
	"MGProject/tools/errs"
)

func newTestProfiles() (*ProfileSynchronizer, *coalescer.Coalescer, storage.Store) {
	store := storage.NewMemStore()
	co := coalescer.New(store, 0)
	return NewProfileSynchronizer(store, co, 50*time.Millisecond), co, store
}

func TestLevelFormula(t *testing.T) {
	cases := []struct {
		xp    int64
		level int
	}{
		{0, 1},
		{299, 1},
		{300, 2},
		{1199, 2},
		{1200, 3},
		{2700, 4},
	}
	for _, c := range cases {
		if got := model.LevelForXP(c.xp); got != c.level {
			t.Errorf("LevelForXP(%d) = %d, want %d", c.xp, got, c.level)
		}
	}
}

func TestMergeMonotonicXP(t *testing.T) {
	ps, _, _ := newTestProfiles()
	ctx := context.Background()

	p1, err := ps.Merge(ctx, "alice", Snapshot{XP: 500})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if p1.XP != 500 || p1.Level != 2 {
		t.Fatalf("first merge: xp=%d level=%d", p1.XP, p1.Level)
	}

	// 落后的快照不得回退 XP
	p2, _ := ps.Merge(ctx, "alice", Snapshot{XP: 400})
	if p2.XP != 500 {
		t.Fatalf("stale snapshot regressed xp to %d", p2.XP)
	}
	// 前进的快照正常推进
	p3, _ := ps.Merge(ctx, "alice", Snapshot{XP: 2700})
	if p3.XP != 2700 || p3.Level != 4 {
		t.Fatalf("third merge: xp=%d level=%d", p3.XP, p3.Level)
	}
	if p3.LastSyncedAt.IsZero() {
		t.Fatalf("merge must stamp LastSyncedAt")
	}
}

func TestMergeStatsElementwiseMax(t *testing.T) {
	ps, _, _ := newTestProfiles()
	ctx := context.Background()

	_, _ = ps.Merge(ctx, "alice", Snapshot{
		Stats:        model.Stats{GamesPlayed: 10, Wins: 4, BestStreak: 3, PlayMillis: 60000},
		Achievements: []string{"first_win"},
	})
	got, err := ps.Merge(ctx, "alice", Snapshot{
		Stats:        model.Stats{GamesPlayed: 8, Wins: 6, BestStreak: 2, PlayMillis: 90000},
		Achievements: []string{"streak_3"},
	})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	want := model.Stats{GamesPlayed: 10, Wins: 6, BestStreak: 3, PlayMillis: 90000}
	if got.Stats != want {
		t.Fatalf("stats = %+v, want %+v", got.Stats, want)
	}
	if got.WinRate != 60 {
		t.Fatalf("win rate = %d, want 60", got.WinRate)
	}
	if len(got.Achievements) != 2 {
		t.Fatalf("achievements should union, got %v", got.Achievements)
	}
}

func TestMergeWinRateZeroGames(t *testing.T) {
	ps, _, _ := newTestProfiles()
	got, err := ps.Merge(context.Background(), "alice", Snapshot{XP: 10})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if got.WinRate != 0 {
		t.Fatalf("win rate with 0 games should be 0, got %d", got.WinRate)
	}
}

func TestMergePersistsThroughCoalescer(t *testing.T) {
	ps, co, store := newTestProfiles()
	ctx := context.Background()

	// 合并窗口内连发三次：只有最后的合并结果落盘
	_, _ = ps.Merge(ctx, "alice", Snapshot{XP: 100})
	_, _ = ps.Merge(ctx, "alice", Snapshot{XP: 200})
	_, _ = ps.Merge(ctx, "alice", Snapshot{XP: 300})

	key := global.ProfileKey("alice")
	if _, ok, _ := store.Get(ctx, key); ok {
		t.Fatalf("profile should not persist before the write window closes")
	}

	if err := co.Flush(ctx, key); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	raw, ok, _ := store.Get(ctx, key)
	if !ok {
		t.Fatalf("profile not persisted after flush")
	}
	var stored model.Profile
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		t.Fatalf("stored profile corrupt: %v", err)
	}
	if stored.XP != 300 {
		t.Fatalf("stored xp = %d, want 300", stored.XP)
	}

	// 落盘后新实例（无缓存）也读得到
	ps2 := NewProfileSynchronizer(store, co, 50*time.Millisecond)
	prof, err := ps2.Get(ctx, "alice")
	if err != nil || prof.XP != 300 {
		t.Fatalf("fresh reader: prof=%+v err=%v", prof, err)
	}
}

func TestGetUnknownProfile(t *testing.T) {
	ps, _, _ := newTestProfiles()
	if _, err := ps.Get(context.Background(), "ghost"); errs.CodeOf(err) != errs.NotFoundError {
		t.Fatalf("unknown profile should 404, got %v", err)
	}
}
