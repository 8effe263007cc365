package model

import (
	"math"
	"time"
)

// Stats 单调递增的对局计数器。合并时逐字段取 max，绝不回退。
type Stats struct {
	GamesPlayed int64 `json:"games_played"`
	Wins        int64 `json:"wins"`
	BestStreak  int64 `json:"best_streak"`
	PlayMillis  int64 `json:"play_millis"` // 累计游玩时长（毫秒）
}

// Profile 玩家档案。XP 在任意同步序列下单调不减；
// Level / WinRate 是派生字段，每次合并后重算。
type Profile struct {
	Identity     string    `json:"identity"`
	XP           int64     `json:"xp"`
	Level        int       `json:"level"`
	Stats        Stats     `json:"stats"`
	Achievements []string  `json:"achievements,omitempty"`
	WinRate      int       `json:"win_rate"` // 百分比 0~100
	LastSyncedAt time.Time `json:"last_synced_at"`
}

// NewProfile 零值档案（首次同步时创建）
func NewProfile(identity string) *Profile {
	return &Profile{
		Identity: identity,
		Level:    LevelForXP(0),
	}
}

// LevelForXP level = floor(sqrt(xp/300)) + 1
func LevelForXP(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(math.Floor(math.Sqrt(float64(xp)/300.0))) + 1
}

// WinRateFor 四舍五入的胜率百分比，0 局时为 0
func WinRateFor(wins, games int64) int {
	if games <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(wins) / float64(games)))
}

// Recompute 重算派生字段
func (p *Profile) Recompute() {
	p.Level = LevelForXP(p.XP)
	p.WinRate = WinRateFor(p.Stats.Wins, p.Stats.GamesPlayed)
}
