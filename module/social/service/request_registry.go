package service

import (
	"context"
	"encoding/json"
	"time"

	"MGProject/global"
	"MGProject/module/social/model"
	"MGProject/service/audit"
	"MGProject/service/notify"
	"MGProject/service/storage"
	"MGProject/tools/errs"
	"MGProject/tools/ids"
)

// RequestRegistry 好友申请的生命周期管理。
//
// 并发模型：无状态请求处理器，多实例并发跑，只共享外部 KV。
// "检查无 pending 再创建" 是竞态窗口——两个并发 Send 可能都通过检查。
// 这里接受该竞态：重复申请不致命，Respond 按决定幂等、Link 幂等，
// 后写的 pair 标记覆盖先写的即最后写入生效。不引入锁服务。
type RequestRegistry struct {
	store    storage.Store
	friends  *FriendshipStore
	notifier notify.Notifier
	auditor  audit.Recorder
}

func NewRequestRegistry(store storage.Store, friends *FriendshipStore, n notify.Notifier, a audit.Recorder) *RequestRegistry {
	return &RequestRegistry{store: store, friends: friends, notifier: n, auditor: a}
}

// Send 发起好友申请。
// 自己加自己 400；任一方向已有 pending 或已是好友 409。
func (r *RequestRegistry) Send(ctx context.Context, from, to, reqMsg string) (*model.FriendRequest, error) {
	if from == to {
		return nil, errs.ErrValidation.WrapMsg("cannot friend yourself", "identity", from)
	}
	if !global.IdentityValid(to) {
		return nil, errs.ErrValidation.WrapMsg("invalid target identity", "to", to)
	}

	// pending 去重：无序对标记；标记指向的记录已终态则视为残留，可覆盖。
	// 回表出错必须上抛（fail closed），不能当作"无冲突"放行
	pairKey := global.RequestPairKey(from, to)
	if recvKey, ok, err := r.store.Get(ctx, pairKey); err != nil {
		return nil, err
	} else if ok {
		req, err := r.loadByRecvKey(ctx, recvKey)
		if err != nil {
			return nil, err
		}
		if req != nil && !req.Terminal() {
			return nil, errs.ErrConflict.WrapMsg("request already pending",
				"from", req.FromIdentity, "to", req.ToIdentity)
		}
	}

	already, err := r.friends.AreFriends(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, errs.ErrConflict.WrapMsg("already friends", "from", from, "to", to)
	}

	req := &model.FriendRequest{
		RequestID:    ids.GenerateString(),
		FromIdentity: from,
		ToIdentity:   to,
		ReqMsg:       reqMsg,
		Status:       model.RequestPending,
		CreateTime:   time.Now(),
	}
	recvKey := global.RequestRecvKey(to, req.RequestID)
	if err := r.writeRequest(ctx, recvKey, req); err != nil {
		return nil, err
	}
	// 三条索引彼此独立写入；中途崩溃留下的孤儿索引在读路径兜底
	if err := r.store.Set(ctx, global.RequestSentKey(from, req.RequestID), to, nil); err != nil {
		return nil, err
	}
	if err := r.store.Set(ctx, global.RequestIDKey(req.RequestID), recvKey, nil); err != nil {
		return nil, err
	}
	if err := r.store.Set(ctx, pairKey, recvKey, nil); err != nil {
		return nil, err
	}

	r.notifier.Publish(ctx, notify.NewEvent(notify.EventFriendRequestCreated, from, to, req.RequestID))
	r.auditor.Record(ctx, audit.Entry{
		Kind: "friend_request", RefID: req.RequestID,
		From: from, To: to, Status: req.Status,
	})
	return req, nil
}

// Respond 接收方处理申请；decision ∈ {accept, reject}。
// 重复提交相同决定是幂等 no-op；不同决定或已撤销则 409。
func (r *RequestRegistry) Respond(ctx context.Context, requestID, responder, decision string) (*model.FriendRequest, error) {
	wanted, ok := model.StatusForDecision(decision)
	if !ok {
		return nil, errs.ErrValidation.WrapMsg("unknown decision", "decision", decision)
	}

	req, recvKey, err := r.loadByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ToIdentity != responder {
		return nil, errs.ErrForbidden.WrapMsg("not the request recipient", "request_id", requestID)
	}
	if req.Terminal() {
		if req.Status == wanted {
			// 幂等：同一决定重放。accept 重放时重建好友边（Link 幂等）——
			// 状态写入和建边之间中断过的话，重试是唯一的补偿入口
			if wanted == model.RequestAccepted {
				if err := r.friends.Link(ctx, req.FromIdentity, req.ToIdentity, req.RequestID); err != nil {
					return nil, err
				}
			}
			return req, nil
		}
		return nil, errs.ErrConflict.WrapMsg("request already resolved",
			"request_id", requestID, "status", req.Status)
	}

	req.Status = wanted
	req.RespondTime = time.Now()
	if err := r.writeRequest(ctx, recvKey, req); err != nil {
		return nil, err
	}
	// pair 标记删除失败不影响结果：Send 发现标记指向终态记录会自行覆盖
	_ = r.store.Delete(ctx, global.RequestPairKey(req.FromIdentity, req.ToIdentity))

	if wanted == model.RequestAccepted {
		if err := r.friends.Link(ctx, req.FromIdentity, req.ToIdentity, req.RequestID); err != nil {
			return nil, err
		}
		r.notifier.Publish(ctx, notify.NewEvent(notify.EventFriendRequestAccepted, responder, req.FromIdentity, requestID))
	} else {
		r.notifier.Publish(ctx, notify.NewEvent(notify.EventFriendRequestRejected, responder, req.FromIdentity, requestID))
	}
	r.auditor.Record(ctx, audit.Entry{
		Kind: "friend_request", RefID: requestID,
		From: req.FromIdentity, To: req.ToIdentity, Status: req.Status,
	})
	return req, nil
}

// Cancel 只有发起方能撤销，且只能撤销 pending 的申请
func (r *RequestRegistry) Cancel(ctx context.Context, requestID, requester string) (*model.FriendRequest, error) {
	req, recvKey, err := r.loadByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.FromIdentity != requester {
		return nil, errs.ErrForbidden.WrapMsg("not the request sender", "request_id", requestID)
	}
	if req.Terminal() {
		if req.Status == model.RequestCancelled {
			return req, nil
		}
		return nil, errs.ErrConflict.WrapMsg("request already resolved",
			"request_id", requestID, "status", req.Status)
	}

	req.Status = model.RequestCancelled
	req.RespondTime = time.Now()
	if err := r.writeRequest(ctx, recvKey, req); err != nil {
		return nil, err
	}
	_ = r.store.Delete(ctx, global.RequestPairKey(req.FromIdentity, req.ToIdentity))

	r.auditor.Record(ctx, audit.Entry{
		Kind: "friend_request", RefID: requestID,
		From: req.FromIdentity, To: req.ToIdentity, Status: req.Status,
	})
	return req, nil
}

// Unfriend 解除好友关系（幂等）并通知对方
func (r *RequestRegistry) Unfriend(ctx context.Context, identity, peer string) error {
	if !global.IdentityValid(peer) {
		return errs.ErrValidation.WrapMsg("invalid peer identity", "peer", peer)
	}
	if peer == identity {
		return errs.ErrValidation.WrapMsg("cannot unfriend yourself", "identity", identity)
	}
	if err := r.friends.Unlink(ctx, identity, peer); err != nil {
		return err
	}
	r.notifier.Publish(ctx, notify.NewEvent(notify.EventFriendRemoved, identity, peer, ""))
	r.auditor.Record(ctx, audit.Entry{
		Kind: "friendship", From: identity, To: peer, Status: "removed",
	})
	return nil
}

// ListReceived 收件箱；includeResolved=false 时只看 pending
func (r *RequestRegistry) ListReceived(ctx context.Context, identity string, includeResolved bool) ([]*model.FriendRequest, error) {
	keys, err := r.store.ListKeys(ctx, global.RequestRecvPrefix(identity))
	if err != nil {
		return nil, err
	}
	out := make([]*model.FriendRequest, 0, len(keys))
	for _, k := range keys {
		req, err := r.loadByRecvKey(ctx, k)
		if err != nil || req == nil {
			continue
		}
		if !includeResolved && req.Terminal() {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

// ListSent 发件箱：sent 索引 value 是接收方，回表主记录
func (r *RequestRegistry) ListSent(ctx context.Context, identity string, includeResolved bool) ([]*model.FriendRequest, error) {
	prefix := global.RequestSentPrefix(identity)
	keys, err := r.store.ListKeys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]*model.FriendRequest, 0, len(keys))
	for _, k := range keys {
		to, ok, err := r.store.Get(ctx, k)
		if err != nil || !ok {
			continue
		}
		reqID := k[len(prefix):]
		req, err := r.loadByRecvKey(ctx, global.RequestRecvKey(to, reqID))
		if err != nil || req == nil {
			continue
		}
		if !includeResolved && req.Terminal() {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

func (r *RequestRegistry) loadByID(ctx context.Context, requestID string) (*model.FriendRequest, string, error) {
	recvKey, ok, err := r.store.Get(ctx, global.RequestIDKey(requestID))
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", errs.ErrNotFound.WrapMsg("request not found", "request_id", requestID)
	}
	req, err := r.loadByRecvKey(ctx, recvKey)
	if err != nil {
		return nil, "", err
	}
	if req == nil {
		return nil, "", errs.ErrNotFound.WrapMsg("request record missing", "request_id", requestID)
	}
	return req, recvKey, nil
}

func (r *RequestRegistry) loadByRecvKey(ctx context.Context, recvKey string) (*model.FriendRequest, error) {
	raw, ok, err := r.store.Get(ctx, recvKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var req model.FriendRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return nil, errs.WrapMsg(err, "unmarshal friend request", "key", recvKey)
	}
	return &req, nil
}

func (r *RequestRegistry) writeRequest(ctx context.Context, recvKey string, req *model.FriendRequest) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return errs.WrapMsg(err, "marshal friend request")
	}
	return r.store.Set(ctx, recvKey, string(raw), nil)
}
