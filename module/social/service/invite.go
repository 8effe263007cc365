package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"MGProject/global"
	"MGProject/logger"
	"MGProject/module/social/model"
	"MGProject/service/audit"
	"MGProject/service/notify"
	"MGProject/service/storage"
	"MGProject/tools/errs"
	"MGProject/tools/ids"
)

// InvitationStore 房间邀请：单向、24h 有效。
// 过期靠读时过滤（懒过期），存储 TTL 只做垃圾回收兜底。
type InvitationStore struct {
	store    storage.Store
	notifier notify.Notifier
	auditor  audit.Recorder
}

func NewInvitationStore(store storage.Store, n notify.Notifier, a audit.Recorder) *InvitationStore {
	return &InvitationStore{store: store, notifier: n, auditor: a}
}

// Invite 创建邀请：收件方主记录 + 发送方副本，两次独立写入
func (s *InvitationStore) Invite(ctx context.Context, from, to, roomCode string) (*model.Invitation, error) {
	if from == to {
		return nil, errs.ErrValidation.WrapMsg("cannot invite yourself", "identity", from)
	}
	if !global.IdentityValid(to) || roomCode == "" {
		return nil, errs.ErrValidation.WrapMsg("valid target identity and room code required")
	}

	now := time.Now()
	inv := &model.Invitation{
		InviteID:     ids.GenerateString(),
		FromIdentity: from,
		ToIdentity:   to,
		RoomCode:     roomCode,
		Status:       model.InviteStatusPending,
		CreateTime:   now,
		ExpireTime:   now.Add(model.InviteValidity),
	}
	opts := &storage.SetOpts{TTL: model.InviteRetention}
	if err := s.writeInvite(ctx, global.InviteRecvKey(to, inv.InviteID), inv, opts); err != nil {
		return nil, err
	}
	// 发送方副本写失败只影响发件箱视图，不影响邀请本身
	if err := s.writeInvite(ctx, global.InviteSentKey(from, inv.InviteID), inv, opts); err != nil {
		logger.Warn("invite sender copy write failed",
			zap.String("invite_id", inv.InviteID), zap.Error(err))
	}

	ev := notify.NewEvent(notify.EventInviteCreated, from, to, inv.InviteID)
	ev.RoomCode = roomCode
	s.notifier.Publish(ctx, ev)
	s.auditor.Record(ctx, audit.Entry{
		Kind: "invitation", RefID: inv.InviteID,
		From: from, To: to, Status: inv.Status,
	})
	return inv, nil
}

// ListActive 收到的、pending 且未过期的邀请
func (s *InvitationStore) ListActive(ctx context.Context, identity string) ([]*model.Invitation, error) {
	return s.list(ctx, global.InviteRecvPrefix(identity))
}

// ListSentActive 发出的、仍有效的邀请
func (s *InvitationStore) ListSentActive(ctx context.Context, identity string) ([]*model.Invitation, error) {
	return s.list(ctx, global.InviteSentPrefix(identity))
}

// Resolve 收件方处理邀请；decision ∈ {accept, decline}。
// 不建立任何双向关系——邀请只是一次性入场凭证。
func (s *InvitationStore) Resolve(ctx context.Context, inviteID, responder, decision string) (*model.Invitation, error) {
	wanted, ok := model.StatusForInviteDecision(decision)
	if !ok {
		return nil, errs.ErrValidation.WrapMsg("unknown decision", "decision", decision)
	}

	recvKey := global.InviteRecvKey(responder, inviteID)
	inv, err := s.loadInvite(ctx, recvKey)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, errs.ErrNotFound.WrapMsg("invite not found", "invite_id", inviteID)
	}
	if inv.Status != model.InviteStatusPending {
		if inv.Status == wanted {
			return inv, nil // 幂等重放
		}
		return nil, errs.ErrConflict.WrapMsg("invite already resolved",
			"invite_id", inviteID, "status", inv.Status)
	}
	if inv.Expired(time.Now()) {
		return nil, errs.ErrConflict.WrapMsg("invite expired", "invite_id", inviteID)
	}

	inv.Status = wanted
	opts := &storage.SetOpts{TTL: model.InviteRetention}
	if err := s.writeInvite(ctx, recvKey, inv, opts); err != nil {
		return nil, err
	}
	// 发送方副本同步更新，失败同样只影响视图
	if err := s.writeInvite(ctx, global.InviteSentKey(inv.FromIdentity, inviteID), inv, opts); err != nil {
		logger.Warn("invite sender copy update failed",
			zap.String("invite_id", inviteID), zap.Error(err))
	}

	s.auditor.Record(ctx, audit.Entry{
		Kind: "invitation", RefID: inviteID,
		From: inv.FromIdentity, To: inv.ToIdentity, Status: inv.Status,
	})
	return inv, nil
}

func (s *InvitationStore) list(ctx context.Context, prefix string) ([]*model.Invitation, error) {
	keys, err := s.store.ListKeys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]*model.Invitation, 0, len(keys))
	for _, k := range keys {
		inv, err := s.loadInvite(ctx, k)
		if err != nil || inv == nil {
			continue
		}
		if !inv.Active(now) {
			continue // 懒过期：过期未清除的记录读时过滤
		}
		out = append(out, inv)
	}
	return out, nil
}

func (s *InvitationStore) loadInvite(ctx context.Context, key string) (*model.Invitation, error) {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var inv model.Invitation
	if err := json.Unmarshal([]byte(raw), &inv); err != nil {
		return nil, errs.WrapMsg(err, "unmarshal invitation", "key", key)
	}
	return &inv, nil
}

func (s *InvitationStore) writeInvite(ctx context.Context, key string, inv *model.Invitation, opts *storage.SetOpts) error {
	raw, err := json.Marshal(inv)
	if err != nil {
		return errs.WrapMsg(err, "marshal invitation")
	}
	return s.store.Set(ctx, key, string(raw), opts)
}
