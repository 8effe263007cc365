package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// 事件类型：外部投递通道（站内信/邮件/推送）自行订阅消费
const (
	EventFriendRequestCreated  = "friend_request.created"
	EventFriendRequestAccepted = "friend_request.accepted"
	EventFriendRequestRejected = "friend_request.rejected"
	EventInviteCreated         = "invite.created"
	EventFriendRemoved         = "friend.removed"
)

// Event 一条待投递的社交事件
type Event struct {
	ID       string    `json:"id"` // 消息ID，消费端幂等用
	Type     string    `json:"type"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	RefID    string    `json:"ref_id,omitempty"`    // 申请/邀请记录ID
	RoomCode string    `json:"room_code,omitempty"` // 邀请事件携带
	At       time.Time `json:"at"`
}

// NewEvent 填充 ID 和时间戳
func NewEvent(typ, from, to, refID string) Event {
	return Event{
		ID:    uuid.NewString(),
		Type:  typ,
		From:  from,
		To:    to,
		RefID: refID,
		At:    time.Now(),
	}
}

// Notifier 纯 fire-and-forget：投递失败只记日志，
// 绝不让通知失败影响发起它的业务操作。
type Notifier interface {
	Publish(ctx context.Context, ev Event)
}

type noopNotifier struct{}

func NewNoopNotifier() Notifier { return noopNotifier{} }

func (noopNotifier) Publish(ctx context.Context, ev Event) {}
