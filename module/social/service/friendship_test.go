package service

import (
	"context"
	"testing"

	"MGProject/global"
	"MGProject/service/storage"
)

func TestLinkIsIdempotentAndBidirectional(t *testing.T) {
	store := storage.NewMemStore()
	fs := NewFriendshipStore(store)
	ctx := context.Background()

	if err := fs.Link(ctx, "alice", "bob", "r1"); err != nil {
		t.Fatalf("link failed: %v", err)
	}
	if err := fs.Link(ctx, "alice", "bob", "r1"); err != nil {
		t.Fatalf("repeated link should be idempotent: %v", err)
	}

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		ok, err := fs.AreFriends(ctx, pair[0], pair[1])
		if err != nil || !ok {
			t.Fatalf("%v should be friends: ok=%v err=%v", pair, ok, err)
		}
	}

	peers, _ := fs.ListFriends(ctx, "alice")
	if len(peers) != 1 || peers[0] != "bob" {
		t.Fatalf("alice friends = %v", peers)
	}
}

func TestUnlinkRemovesBothSides(t *testing.T) {
	store := storage.NewMemStore()
	fs := NewFriendshipStore(store)
	ctx := context.Background()

	_ = fs.Link(ctx, "alice", "bob", "r1")
	if err := fs.Unlink(ctx, "alice", "bob"); err != nil {
		t.Fatalf("unlink failed: %v", err)
	}
	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		if ok, _ := fs.AreFriends(ctx, pair[0], pair[1]); ok {
			t.Fatalf("%v should not be friends after unlink", pair)
		}
	}
	// 删不存在的边也成功
	if err := fs.Unlink(ctx, "alice", "bob"); err != nil {
		t.Fatalf("repeated unlink should be idempotent: %v", err)
	}
}

func TestReconcileRepairsAsymmetry(t *testing.T) {
	store := storage.NewMemStore()
	fs := NewFriendshipStore(store)
	ctx := context.Background()

	_ = fs.Link(ctx, "alice", "bob", "r1")
	// 模拟两次写之间崩溃：bob 侧记录丢失
	_ = store.Delete(ctx, global.FriendKey("bob", "alice"))
	if ok, _ := fs.AreFriends(ctx, "bob", "alice"); ok {
		t.Fatalf("asymmetry setup failed")
	}

	repaired, err := fs.Reconcile(ctx, "alice")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if repaired != 1 {
		t.Fatalf("expected 1 repaired edge, got %d", repaired)
	}
	// 修复后双向一致
	ab, _ := fs.AreFriends(ctx, "alice", "bob")
	ba, _ := fs.AreFriends(ctx, "bob", "alice")
	if !ab || !ba {
		t.Fatalf("friendship should be symmetric after reconcile: ab=%v ba=%v", ab, ba)
	}

	// 再跑一遍无事可修
	repaired, _ = fs.Reconcile(ctx, "alice")
	if repaired != 0 {
		t.Fatalf("second reconcile should repair nothing, got %d", repaired)
	}
}
