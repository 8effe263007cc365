package model

import "time"

const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusDeclined = "declined"

	// InviteValidity 邀请逻辑有效期；过期记录读时过滤，不主动删除
	InviteValidity = 24 * time.Hour
	// InviteRetention 存储层 TTL 兜底回收（晚于逻辑过期）
	InviteRetention = 72 * time.Hour
)

// Invitation 房间邀请：单向、限时，接受也不建立任何双向关系，
// 只是一次性入场凭证。
type Invitation struct {
	InviteID     string    `json:"invite_id"`
	FromIdentity string    `json:"from_identity"`
	ToIdentity   string    `json:"to_identity"`
	RoomCode     string    `json:"room_code"`
	Status       string    `json:"status"`
	CreateTime   time.Time `json:"create_time"`
	ExpireTime   time.Time `json:"expire_time"`
}

// Expired 是否已过逻辑有效期
func (i *Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpireTime)
}

// Active pending 且未过期
func (i *Invitation) Active(now time.Time) bool {
	return i.Status == InviteStatusPending && !i.Expired(now)
}

// StatusForInviteDecision 把 accept/decline 决定映射到状态
func StatusForInviteDecision(decision string) (string, bool) {
	switch decision {
	case "accept":
		return InviteStatusAccepted, true
	case "decline":
		return InviteStatusDeclined, true
	default:
		return "", false
	}
}
