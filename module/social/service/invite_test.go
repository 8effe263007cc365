package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"MGProject/global"
	"MGProject/module/social/model"
	"MGProject/service/audit"
	"MGProject/service/notify"
	"MGProject/service/storage"
	"MGProject/tools/errs"
)

func newTestInvites() (*InvitationStore, storage.Store) {
	store := storage.NewMemStore()
	return NewInvitationStore(store, notify.NewNoopNotifier(), audit.NewNoopRecorder()), store
}

func TestInviteCreateAndList(t *testing.T) {
	inv, _ := newTestInvites()
	ctx := context.Background()

	created, err := inv.Invite(ctx, "alice", "bob", "ROOM42")
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}
	if created.Status != model.InviteStatusPending {
		t.Fatalf("new invite should be pending, got %s", created.Status)
	}
	if got := created.ExpireTime.Sub(created.CreateTime); got != model.InviteValidity {
		t.Fatalf("validity window = %v, want %v", got, model.InviteValidity)
	}

	recv, _ := inv.ListActive(ctx, "bob")
	if len(recv) != 1 || recv[0].RoomCode != "ROOM42" {
		t.Fatalf("bob active invites = %+v", recv)
	}
	sent, _ := inv.ListSentActive(ctx, "alice")
	if len(sent) != 1 {
		t.Fatalf("alice sent invites = %+v", sent)
	}
}

func TestInviteValidation(t *testing.T) {
	inv, _ := newTestInvites()
	ctx := context.Background()

	if _, err := inv.Invite(ctx, "alice", "alice", "R"); errs.CodeOf(err) != errs.ValidationError {
		t.Fatalf("self-invite should 400, got %v", err)
	}
	if _, err := inv.Invite(ctx, "alice", "bob", ""); errs.CodeOf(err) != errs.ValidationError {
		t.Fatalf("missing room code should 400, got %v", err)
	}
}

func TestInviteLazyExpiry(t *testing.T) {
	inv, store := newTestInvites()
	ctx := context.Background()

	created, _ := inv.Invite(ctx, "alice", "bob", "ROOM42")

	// 把记录改成已过期（不删除——懒过期只在读路径过滤）
	created.ExpireTime = time.Now().Add(-time.Minute)
	raw, _ := json.Marshal(created)
	_ = store.Set(ctx, global.InviteRecvKey("bob", created.InviteID), string(raw), nil)

	active, err := inv.ListActive(ctx, "bob")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expired invite must be filtered at read time, got %+v", active)
	}

	// 过期邀请不可再接受
	if _, err := inv.Resolve(ctx, created.InviteID, "bob", "accept"); errs.CodeOf(err) != errs.ConflictError {
		t.Fatalf("resolving expired invite should 409, got %v", err)
	}
}

func TestInviteResolve(t *testing.T) {
	inv, _ := newTestInvites()
	ctx := context.Background()

	created, _ := inv.Invite(ctx, "alice", "bob", "ROOM42")

	got, err := inv.Resolve(ctx, created.InviteID, "bob", "accept")
	if err != nil || got.Status != model.InviteStatusAccepted {
		t.Fatalf("accept failed: err=%v got=%+v", err, got)
	}
	// 已消费的邀请不再出现在 active 视图
	active, _ := inv.ListActive(ctx, "bob")
	if len(active) != 0 {
		t.Fatalf("resolved invite should leave active view, got %+v", active)
	}
	// 同决定重放幂等；换决定 409
	if _, err := inv.Resolve(ctx, created.InviteID, "bob", "accept"); err != nil {
		t.Fatalf("replayed accept should be no-op, got %v", err)
	}
	if _, err := inv.Resolve(ctx, created.InviteID, "bob", "decline"); errs.CodeOf(err) != errs.ConflictError {
		t.Fatalf("conflicting decision should 409, got %v", err)
	}
	// 只有收件方可见：别人按这个 ID 解析不到
	if _, err := inv.Resolve(ctx, created.InviteID, "mallory", "accept"); errs.CodeOf(err) != errs.NotFoundError {
		t.Fatalf("non-recipient resolve should 404, got %v", err)
	}
}
