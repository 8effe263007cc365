package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"MGProject/global"
	"MGProject/logger"
	"MGProject/module/social/model"
	"MGProject/service/storage"
	"MGProject/tools/errs"
)

// FriendshipStore 维护双向好友边。一条边 = 两条独立邻接记录，
// 两次写之间崩溃只产生暂时性不对称，由 Reconcile 修复，不视为错误。
type FriendshipStore struct {
	store storage.Store
}

func NewFriendshipStore(store storage.Store) *FriendshipStore {
	return &FriendshipStore{store: store}
}

// Link 幂等建边：a 的列表加 b，b 的列表加 a。
// 第二次写失败不回滚第一次（存储层没有事务），留给懒修复。
func (s *FriendshipStore) Link(ctx context.Context, a, b, requestID string) error {
	now := time.Now()
	if err := s.writeEdge(ctx, a, b, requestID, now); err != nil {
		return err
	}
	return s.writeEdge(ctx, b, a, requestID, now)
}

// Unlink 幂等删边：两个方向各删一次，删不存在的键也算成功
func (s *FriendshipStore) Unlink(ctx context.Context, a, b string) error {
	if err := s.store.Delete(ctx, global.FriendKey(a, b)); err != nil {
		return err
	}
	return s.store.Delete(ctx, global.FriendKey(b, a))
}

// AreFriends 以 a 侧记录为准；b 侧视为可自愈的派生数据
func (s *FriendshipStore) AreFriends(ctx context.Context, a, b string) (bool, error) {
	_, ok, err := s.store.Get(ctx, global.FriendKey(a, b))
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ListFriends 返回 owner 当前好友身份列表
func (s *FriendshipStore) ListFriends(ctx context.Context, owner string) ([]string, error) {
	keys, err := s.store.ListKeys(ctx, global.FriendPrefix(owner))
	if err != nil {
		return nil, err
	}
	peers := make([]string, 0, len(keys))
	for _, k := range keys {
		peers = append(peers, global.FriendPeerFromKey(owner, k))
	}
	return peers, nil
}

// Reconcile 修复不对称：identity 列表里的每个 peer，
// 若缺少反向记录则补写。读路径触发（列表接口后台调一次）。
func (s *FriendshipStore) Reconcile(ctx context.Context, identity string) (int, error) {
	keys, err := s.store.ListKeys(ctx, global.FriendPrefix(identity))
	if err != nil {
		return 0, err
	}
	repaired := 0
	for _, k := range keys {
		raw, ok, err := s.store.Get(ctx, k)
		if err != nil {
			return repaired, err
		}
		if !ok {
			continue // 扫描和读取之间被删了
		}
		var rec model.Friend
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			logger.Warn("skip corrupted friend record", zap.String("key", k), zap.Error(err))
			continue
		}
		peer := rec.PeerIdentity
		_, exists, err := s.store.Get(ctx, global.FriendKey(peer, identity))
		if err != nil {
			return repaired, err
		}
		if exists {
			continue
		}
		if err := s.writeEdge(ctx, peer, identity, rec.RequestID, rec.CreateTime); err != nil {
			return repaired, err
		}
		repaired++
	}
	if repaired > 0 {
		logger.Info("friendship reconciled",
			zap.String("identity", identity), zap.Int("repaired", repaired))
	}
	return repaired, nil
}

func (s *FriendshipStore) writeEdge(ctx context.Context, owner, peer, requestID string, at time.Time) error {
	rec := model.Friend{
		OwnerIdentity: owner,
		PeerIdentity:  peer,
		RequestID:     requestID,
		CreateTime:    at,
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return errs.WrapMsg(err, "marshal friend record")
	}
	return s.store.Set(ctx, global.FriendKey(owner, peer), string(raw), nil)
}
