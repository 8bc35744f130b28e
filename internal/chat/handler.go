package chat

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"go-talk/internal/apperr"
	"go-talk/internal/httpx"
	myMiddleware "go-talk/internal/middleware"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Token auth, not cookies: cross-origin clients are fine.
	},
}

type Handler struct {
	hub        *Hub
	router     *Router
	groups     *GroupService
	repo       *Repository
	log        *zap.Logger
	sendBuffer int
	expose     bool
	baseCtx    context.Context
}

func NewHandler(ctx context.Context, hub *Hub, router *Router, groups *GroupService, repo *Repository, log *zap.Logger, sendBuffer int, expose bool) *Handler {
	return &Handler{
		hub:        hub,
		router:     router,
		groups:     groups,
		repo:       repo,
		log:        log,
		sendBuffer: sendBuffer,
		expose:     expose,
		baseCtx:    ctx,
	}
}

// ServeWs upgrades an authenticated request to a websocket session. The auth
// middleware has already refused requests without a valid token.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	userID, username, ok := myMiddleware.Identity(r.Context())
	if !ok {
		httpx.Error(w, apperr.ErrUnauthenticated, "unauthorized")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	session := NewSession(userID, username, h.sendBuffer)
	client := NewClient(h.hub, conn, session, h.log)
	h.hub.Connect(h.baseCtx, session)

	go client.WritePump()
	go client.ReadPump(h.baseCtx)
}

func (h *Handler) DirectHistory(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := myMiddleware.Identity(r.Context())
	msgs, err := h.repo.DirectHistory(r.Context(), userID, chi.URLParam(r, "userID"), historyLimit(r))
	if err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	httpx.JSON(w, http.StatusOK, msgs)
}

func (h *Handler) GroupHistory(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := myMiddleware.Identity(r.Context())
	groupID := chi.URLParam(r, "groupID")
	if _, err := h.router.members(r.Context(), groupID, userID); err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	msgs, err := h.repo.GroupHistory(r.Context(), groupID, historyLimit(r))
	if err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	httpx.JSON(w, http.StatusOK, msgs)
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := myMiddleware.Identity(r.Context())
	if err := h.router.MarkRead(r.Context(), chi.URLParam(r, "messageID"), userID); err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := myMiddleware.Identity(r.Context())
	var req CreateGroupRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	g, err := h.groups.Create(r.Context(), userID, req)
	if err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	httpx.JSON(w, http.StatusCreated, g)
}

func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := myMiddleware.Identity(r.Context())
	groups, err := h.groups.List(r.Context(), userID)
	if err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	httpx.JSON(w, http.StatusOK, groups)
}

func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := myMiddleware.Identity(r.Context())
	g, err := h.groups.Get(r.Context(), chi.URLParam(r, "groupID"), userID)
	if err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	httpx.JSON(w, http.StatusOK, g)
}

func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := myMiddleware.Identity(r.Context())
	var req AddMemberRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	g, err := h.groups.AddMember(r.Context(), chi.URLParam(r, "groupID"), userID, req.UserID)
	if err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	httpx.JSON(w, http.StatusOK, g)
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := myMiddleware.Identity(r.Context())
	err := h.groups.RemoveMember(r.Context(), chi.URLParam(r, "groupID"), userID, chi.URLParam(r, "userID"))
	if err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func historyLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultHistoryLimit
	}
	return min(n, maxHistoryLimit)
}
