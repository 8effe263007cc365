package model

import "time"

// Friend 好友邻接记录：一条边拆成两条单向记录，各自独立写入。
// A 方向写成功、B 方向写失败只是暂时性不对称，由 Reconcile 懒修复，
// 判定好友关系以 owner 侧记录为准。
type Friend struct {
	OwnerIdentity string    `json:"owner_identity"` // 谁的好友列表
	PeerIdentity  string    `json:"peer_identity"`  // 对方
	RequestID     string    `json:"request_id"`     // 来源申请（审计）
	CreateTime    time.Time `json:"create_time"`
}
