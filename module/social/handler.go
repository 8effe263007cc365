package social

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"MGProject/global"
	"MGProject/logger"
	mid "MGProject/middleware"
	midsec "MGProject/middleware/security"
	"MGProject/module/social/service"
	"MGProject/service/storage"
	"MGProject/tools/errs"
	"MGProject/tools/safe"
)

// Handler 社交接口；全部依赖注入，自身无状态
type Handler struct {
	Registry *service.RequestRegistry
	Friends  *service.FriendshipStore
	Invites  *service.InvitationStore
	Profiles *service.ProfileSynchronizer
	Store    storage.Store // healthz 探活
}

// RegisterRoutes 挂载 §社交 路由；除健康检查外全部要求认证
func (h *Handler) RegisterRoutes(r *gin.Engine, rt *mid.Router) {
	auth := mid.RouteOpt{IsAuth: true}
	open := mid.RouteOpt{IsAuth: false}

	rt.POST(r, "/friend-requests", h.SendFriendRequest, auth)
	rt.GET(r, "/friend-requests", h.ListFriendRequests, auth)
	rt.PUT(r, "/friend-requests", h.RespondFriendRequest, auth)

	rt.GET(r, "/friends", h.ListFriends, auth)
	rt.DELETE(r, "/friends", h.Unfriend, auth)

	rt.POST(r, "/invites", h.SendInvite, auth)
	rt.GET(r, "/invites", h.ListInvites, auth)
	rt.PUT(r, "/invites", h.ResolveInvite, auth)

	rt.POST(r, "/profile/sync", h.SyncProfile, auth)
	rt.GET(r, "/profile", h.GetProfile, auth)

	rt.GET(r, "/healthz", h.Healthz, open)
}

type sendRequestBody struct {
	TargetIdentity string `json:"target_identity" binding:"required"`
	Message        string `json:"message"`
}

func (h *Handler) SendFriendRequest(c *gin.Context) {
	identity, ok := midsec.IdentityFrom(c)
	if !ok {
		fail(c, errs.ErrAuth.Wrap())
		return
	}
	var body sendRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, errs.ErrValidation.WrapMsg("bad request body", "err", err.Error()))
		return
	}
	req, err := h.Registry.Send(c.Request.Context(), identity, body.TargetIdentity, body.Message)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, global.Sucess(req))
}

func (h *Handler) ListFriendRequests(c *gin.Context) {
	identity, ok := midsec.IdentityFrom(c)
	if !ok {
		fail(c, errs.ErrAuth.Wrap())
		return
	}
	includeResolved := c.Query("all") == "1"
	var (
		out any
		err error
	)
	switch c.DefaultQuery("type", "received") {
	case "sent":
		out, err = h.Registry.ListSent(c.Request.Context(), identity, includeResolved)
	case "received":
		out, err = h.Registry.ListReceived(c.Request.Context(), identity, includeResolved)
	default:
		err = errs.ErrValidation.WrapMsg("type must be received or sent")
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, global.Sucess(out))
}

type respondRequestBody struct {
	RequestID string `json:"request_id" binding:"required"`
	Action    string `json:"action" binding:"required"` // accept / reject / cancel
}

func (h *Handler) RespondFriendRequest(c *gin.Context) {
	identity, ok := midsec.IdentityFrom(c)
	if !ok {
		fail(c, errs.ErrAuth.Wrap())
		return
	}
	var body respondRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, errs.ErrValidation.WrapMsg("bad request body", "err", err.Error()))
		return
	}
	var (
		req any
		err error
	)
	if body.Action == "cancel" {
		req, err = h.Registry.Cancel(c.Request.Context(), body.RequestID, identity)
	} else {
		req, err = h.Registry.Respond(c.Request.Context(), body.RequestID, identity, body.Action)
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, global.Sucess(req))
}

func (h *Handler) ListFriends(c *gin.Context) {
	identity, ok := midsec.IdentityFrom(c)
	if !ok {
		fail(c, errs.ErrAuth.Wrap())
		return
	}
	peers, err := h.Friends.ListFriends(c.Request.Context(), identity)
	if err != nil {
		fail(c, err)
		return
	}
	// 读路径触发懒修复：补齐缺失的反向边，不阻塞响应
	safe.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := h.Friends.Reconcile(ctx, identity); err != nil {
			logger.Warn("friendship reconcile failed", zap.String("identity", identity), zap.Error(err))
		}
	})
	c.JSON(http.StatusOK, global.Sucess(peers))
}

func (h *Handler) Unfriend(c *gin.Context) {
	identity, ok := midsec.IdentityFrom(c)
	if !ok {
		fail(c, errs.ErrAuth.Wrap())
		return
	}
	peer := c.Query("peer")
	if peer == "" {
		fail(c, errs.ErrValidation.WrapMsg("peer query param required"))
		return
	}
	if err := h.Registry.Unfriend(c.Request.Context(), identity, peer); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, global.Sucess(nil))
}

type sendInviteBody struct {
	ToIdentity string `json:"to_identity" binding:"required"`
	RoomCode   string `json:"room_code" binding:"required"`
}

func (h *Handler) SendInvite(c *gin.Context) {
	identity, ok := midsec.IdentityFrom(c)
	if !ok {
		fail(c, errs.ErrAuth.Wrap())
		return
	}
	var body sendInviteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, errs.ErrValidation.WrapMsg("bad request body", "err", err.Error()))
		return
	}
	inv, err := h.Invites.Invite(c.Request.Context(), identity, body.ToIdentity, body.RoomCode)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, global.Sucess(inv))
}

func (h *Handler) ListInvites(c *gin.Context) {
	identity, ok := midsec.IdentityFrom(c)
	if !ok {
		fail(c, errs.ErrAuth.Wrap())
		return
	}
	var (
		out any
		err error
	)
	switch c.DefaultQuery("type", "received") {
	case "sent":
		out, err = h.Invites.ListSentActive(c.Request.Context(), identity)
	case "received":
		out, err = h.Invites.ListActive(c.Request.Context(), identity)
	default:
		err = errs.ErrValidation.WrapMsg("type must be received or sent")
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, global.Sucess(out))
}

type resolveInviteBody struct {
	InviteID string `json:"invite_id" binding:"required"`
	Action   string `json:"action" binding:"required"` // accept / decline
}

func (h *Handler) ResolveInvite(c *gin.Context) {
	identity, ok := midsec.IdentityFrom(c)
	if !ok {
		fail(c, errs.ErrAuth.Wrap())
		return
	}
	var body resolveInviteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, errs.ErrValidation.WrapMsg("bad request body", "err", err.Error()))
		return
	}
	inv, err := h.Invites.Resolve(c.Request.Context(), body.InviteID, identity, body.Action)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, global.Sucess(inv))
}

type syncProfileBody struct {
	Identity string           `json:"identity"`
	Snapshot service.Snapshot `json:"snapshot"`
}

func (h *Handler) SyncProfile(c *gin.Context) {
	identity, ok := midsec.IdentityFrom(c)
	if !ok {
		fail(c, errs.ErrAuth.Wrap())
		return
	}
	var body syncProfileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, errs.ErrValidation.WrapMsg("bad request body", "err", err.Error()))
		return
	}
	// 同步对象只能是认证身份本人；body 里带了别人就是未知身份
	if body.Identity != "" && body.Identity != identity {
		fail(c, errs.ErrNotFound.WrapMsg("unknown identity", "identity", body.Identity))
		return
	}
	prof, err := h.Profiles.Merge(c.Request.Context(), identity, body.Snapshot)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, global.Sucess(prof))
}

func (h *Handler) GetProfile(c *gin.Context) {
	identity, ok := midsec.IdentityFrom(c)
	if !ok {
		fail(c, errs.ErrAuth.Wrap())
		return
	}
	prof, err := h.Profiles.Get(c.Request.Context(), identity)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, global.Sucess(prof))
}

func (h *Handler) Healthz(c *gin.Context) {
	if err := h.Store.Ping(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, global.Sucess("ok"))
}

func fail(c *gin.Context, err error) {
	c.JSON(errs.HTTPStatus(err), global.Fail(err))
}
