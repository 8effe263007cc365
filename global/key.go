package global

import "strings"

// 社交域的键命名（全部可前缀扫描）：
//
//	social:freq:recv:<to>:<reqID>     好友申请主记录（按接收方组织，收件箱=前缀扫描）
//	social:freq:sent:<from>:<reqID>   发送方索引，value 是接收方身份
//	social:freq:pair:<a>|<b>          pending 去重标记（a/b 为排序后的无序对）
//	social:freq:id:<reqID>            全局 ID 索引 → 主记录键
//	social:friends:<owner>:<peer>     好友邻接记录（每个方向各一条，独立写入）
//	social:invite:recv:<to>:<invID>   房间邀请（收件方）
//	social:invite:sent:<from>:<invID> 房间邀请（发送方副本）
//	social:profile:<identity>         玩家档案
const (
	prefixReqRecv = "social:freq:recv:"
	prefixReqSent = "social:freq:sent:"
	prefixReqPair = "social:freq:pair:"
	prefixReqID   = "social:freq:id:"
	prefixFriends = "social:friends:"
	prefixInvRecv = "social:invite:recv:"
	prefixInvSent = "social:invite:sent:"
	prefixProfile = "social:profile:"
)

// IdentityValid 身份的合法字符集：字母数字 + `_ - . @`，最长 64。
// 键分隔符（: |）和 redis 通配符（* ? [ ]）会污染前缀扫描和键解析，
// 一律在进入键空间之前拒绝。
func IdentityValid(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.' || r == '@':
		default:
			return false
		}
	}
	return true
}

func RequestRecvKey(to, reqID string) string { return prefixReqRecv + to + ":" + reqID }

// RequestIDKey 全局 ID 索引，value 是主记录键（respond/cancel 按 ID 找记录）
func RequestIDKey(reqID string) string { return prefixReqID + reqID }

// RequestRecvPrefix 某人收件箱的扫描前缀
func RequestRecvPrefix(to string) string { return prefixReqRecv + to + ":" }

func RequestSentKey(from, reqID string) string { return prefixReqSent + from + ":" + reqID }

func RequestSentPrefix(from string) string { return prefixReqSent + from + ":" }

// RequestPairKey 无序对标记；键对两个方向的 send 都一样
func RequestPairKey(a, b string) string {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return prefixReqPair + lo + "|" + hi
}

func FriendKey(owner, peer string) string { return prefixFriends + owner + ":" + peer }

func FriendPrefix(owner string) string { return prefixFriends + owner + ":" }

// FriendPeerFromKey 从邻接键里取出对端身份
func FriendPeerFromKey(owner, key string) string {
	return strings.TrimPrefix(key, FriendPrefix(owner))
}

func InviteRecvKey(to, invID string) string { return prefixInvRecv + to + ":" + invID }

func InviteRecvPrefix(to string) string { return prefixInvRecv + to + ":" }

func InviteSentKey(from, invID string) string { return prefixInvSent + from + ":" + invID }

func InviteSentPrefix(from string) string { return prefixInvSent + from + ":" }

func ProfileKey(identity string) string { return prefixProfile + identity }
