package model

import "time"

// 申请状态机：pending → accepted / rejected / cancelled，三个终态都不可再迁移。
// 终态记录不删除（留作审计与幂等判断），只是不再出现在 active 视图里。
const (
	RequestPending   = "pending"
	RequestAccepted  = "accepted"
	RequestRejected  = "rejected"
	RequestCancelled = "cancelled"
)

// FriendRequest 表示一次好友申请的完整生命周期。
// 主记录落在接收方前缀下（收件箱 = 前缀扫描），发送方只留索引。
type FriendRequest struct {
	RequestID    string `json:"request_id"`    // 全局唯一（雪花ID），幂等处理用
	FromIdentity string `json:"from_identity"` // 发起方
	ToIdentity   string `json:"to_identity"`   // 接收方
	ReqMsg       string `json:"req_msg"`       // 申请附带的留言

	Status      string    `json:"status"`
	CreateTime  time.Time `json:"create_time"`
	RespondTime time.Time `json:"respond_time,omitempty"` // 终态时间戳
}

// Terminal 是否已进入终态
func (r *FriendRequest) Terminal() bool {
	return r.Status != RequestPending
}

// StatusForDecision 把 accept/reject 决定映射到状态
func StatusForDecision(decision string) (string, bool) {
	switch decision {
	case "accept":
		return RequestAccepted, true
	case "reject":
		return RequestRejected, true
	default:
		return "", false
	}
}
