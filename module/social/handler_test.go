package social

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	mid "MGProject/middleware"
	midsec "MGProject/middleware/security"
	"MGProject/module/social/model"
	"MGProject/module/social/service"
	"MGProject/service/audit"
	"MGProject/service/coalescer"
	"MGProject/service/notify"
	"MGProject/service/storage"
	security "MGProject/tools/security"
)

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*gin.Engine, func(user string) string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewMemStore()
	co := coalescer.New(store, 0)
	friends := service.NewFriendshipStore(store)
	registry := service.NewRequestRegistry(store, friends, notify.NewNoopNotifier(), audit.NewNoopRecorder())
	invites := service.NewInvitationStore(store, notify.NewNoopNotifier(), audit.NewNoopRecorder())
	profiles := service.NewProfileSynchronizer(store, co, 20*time.Millisecond)

	opts := security.DefaultOptions([]byte("test-secret"))
	resolver := security.NewJWTResolver(opts)
	router := mid.NewRouter(midsec.Middleware(resolver, midsec.DefaultOptions()))

	engine := gin.New()
	h := &Handler{
		Registry: registry,
		Friends:  friends,
		Invites:  invites,
		Profiles: profiles,
		Store:    store,
	}
	h.RegisterRoutes(engine, router)

	token := func(user string) string {
		tok, _, err := security.Generate(opts, user, nil)
		if err != nil {
			t.Fatalf("mint token for %s: %v", user, err)
		}
		return tok
	}
	return engine, token
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var env envelope
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope from %s %s: %v (%s)", method, path, err, w.Body.String())
		}
	}
	return w, env
}

func TestFriendFlowEndToEnd(t *testing.T) {
	engine, token := newTestServer(t)
	alice, bob := token("alice"), token("bob")

	// alice → bob 发申请
	w, env := doJSON(t, engine, http.MethodPost, "/friend-requests", alice,
		map[string]any{"target_identity": "bob", "message": "play a round?"})
	if w.Code != http.StatusCreated {
		t.Fatalf("send status = %d body=%s", w.Code, w.Body.String())
	}
	var created model.FriendRequest
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode request: %v", err)
	}

	// bob 收件箱能看到
	_, env = doJSON(t, engine, http.MethodGet, "/friend-requests?type=received", bob, nil)
	var inbox []model.FriendRequest
	_ = json.Unmarshal(env.Data, &inbox)
	if len(inbox) != 1 || inbox[0].RequestID != created.RequestID {
		t.Fatalf("bob inbox = %+v", inbox)
	}

	// bob 接受
	w, _ = doJSON(t, engine, http.MethodPut, "/friend-requests", bob,
		map[string]any{"request_id": created.RequestID, "action": "accept"})
	if w.Code != http.StatusOK {
		t.Fatalf("accept status = %d body=%s", w.Code, w.Body.String())
	}

	// 双方 /friends 都能看到对方
	views := []struct {
		user, token, want string
	}{
		{"alice", alice, "bob"},
		{"bob", bob, "alice"},
	}
	for _, v := range views {
		_, env = doJSON(t, engine, http.MethodGet, "/friends", v.token, nil)
		var peers []string
		_ = json.Unmarshal(env.Data, &peers)
		if len(peers) != 1 || peers[0] != v.want {
			t.Fatalf("%s friends = %v, want [%s]", v.user, peers, v.want)
		}
	}

	// 再次申请 409
	w, _ = doJSON(t, engine, http.MethodPost, "/friend-requests", alice,
		map[string]any{"target_identity": "bob"})
	if w.Code != http.StatusConflict {
		t.Fatalf("re-send status = %d, want 409", w.Code)
	}

	// 等读路径触发的后台修复跑完，再解除好友
	time.Sleep(50 * time.Millisecond)
	w, _ = doJSON(t, engine, http.MethodDelete, "/friends?peer=bob", alice, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unfriend status = %d", w.Code)
	}
	_, env = doJSON(t, engine, http.MethodGet, "/friends", bob, nil)
	var peers []string
	_ = json.Unmarshal(env.Data, &peers)
	if len(peers) != 0 {
		t.Fatalf("bob friends after unfriend = %v", peers)
	}
}

func TestAuthRequired(t *testing.T) {
	engine, token := newTestServer(t)

	w, _ := doJSON(t, engine, http.MethodGet, "/friends", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d, want 401", w.Code)
	}
	w, _ = doJSON(t, engine, http.MethodGet, "/friends", "not-a-jwt", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d, want 401", w.Code)
	}
	// 签名合法但 sub 字符集非法（会污染键空间）的令牌同样 401
	w, _ = doJSON(t, engine, http.MethodGet, "/friends", token("evil|sub:*"), nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("malformed sub status = %d, want 401", w.Code)
	}
	// 健康检查不需要认证
	w, _ = doJSON(t, engine, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", w.Code)
	}
}

func TestRespondErrorStatuses(t *testing.T) {
	engine, token := newTestServer(t)
	alice, bob, mallory := token("alice"), token("bob"), token("mallory")

	w, _ := doJSON(t, engine, http.MethodPut, "/friend-requests", bob,
		map[string]any{"request_id": "999", "action": "accept"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown id status = %d, want 404", w.Code)
	}

	_, env := doJSON(t, engine, http.MethodPost, "/friend-requests", alice,
		map[string]any{"target_identity": "bob"})
	var created model.FriendRequest
	_ = json.Unmarshal(env.Data, &created)

	w, _ = doJSON(t, engine, http.MethodPut, "/friend-requests", mallory,
		map[string]any{"request_id": created.RequestID, "action": "accept"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("responder mismatch status = %d, want 403", w.Code)
	}
}

func TestInviteFlowEndToEnd(t *testing.T) {
	engine, token := newTestServer(t)
	alice, bob := token("alice"), token("bob")

	w, env := doJSON(t, engine, http.MethodPost, "/invites", alice,
		map[string]any{"to_identity": "bob", "room_code": "ROOM42"})
	if w.Code != http.StatusCreated {
		t.Fatalf("invite status = %d body=%s", w.Code, w.Body.String())
	}
	var inv model.Invitation
	_ = json.Unmarshal(env.Data, &inv)

	_, env = doJSON(t, engine, http.MethodGet, "/invites", bob, nil)
	var active []model.Invitation
	_ = json.Unmarshal(env.Data, &active)
	if len(active) != 1 || active[0].RoomCode != "ROOM42" {
		t.Fatalf("bob invites = %+v", active)
	}

	w, _ = doJSON(t, engine, http.MethodPut, "/invites", bob,
		map[string]any{"invite_id": inv.InviteID, "action": "accept"})
	if w.Code != http.StatusOK {
		t.Fatalf("resolve status = %d", w.Code)
	}

	// 接受邀请不建立好友关系
	_, env = doJSON(t, engine, http.MethodGet, "/friends", bob, nil)
	var peers []string
	_ = json.Unmarshal(env.Data, &peers)
	if len(peers) != 0 {
		t.Fatalf("invite must not create friendship, got %v", peers)
	}
}

func TestProfileSyncEndpoint(t *testing.T) {
	engine, token := newTestServer(t)
	alice := token("alice")

	w, env := doJSON(t, engine, http.MethodPost, "/profile/sync", alice,
		map[string]any{"snapshot": map[string]any{"xp": 2700, "stats": map[string]any{"games_played": 10, "wins": 5}}})
	if w.Code != http.StatusOK {
		t.Fatalf("sync status = %d body=%s", w.Code, w.Body.String())
	}
	var prof model.Profile
	_ = json.Unmarshal(env.Data, &prof)
	if prof.XP != 2700 || prof.Level != 4 || prof.WinRate != 50 {
		t.Fatalf("merged profile = %+v", prof)
	}

	// 冒充别人同步 404
	w, _ = doJSON(t, engine, http.MethodPost, "/profile/sync", alice,
		map[string]any{"identity": "bob", "snapshot": map[string]any{"xp": 1}})
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign identity sync status = %d, want 404", w.Code)
	}

	// 读回
	_, env = doJSON(t, engine, http.MethodGet, "/profile", alice, nil)
	_ = json.Unmarshal(env.Data, &prof)
	if prof.XP != 2700 {
		t.Fatalf("profile read-back = %+v", prof)
	}
}
