package user

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"go-talk/internal/httpx"
	myMiddleware "go-talk/internal/middleware"
)

type Handler struct {
	Service *Service
	log     *zap.Logger
	expose  bool
}

func NewHandler(s *Service, log *zap.Logger, expose bool) *Handler {
	return &Handler{Service: s, log: log, expose: expose}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}

	res, err := h.Service.Register(r.Context(), &req)
	if err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}

	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}

	res, err := h.Service.Login(r.Context(), &req)
	if err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}

	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := myMiddleware.Identity(r.Context())
	u, err := h.Service.Me(r.Context(), userID)
	if err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := myMiddleware.Identity(r.Context())
	users, err := h.Service.SearchUsers(r.Context(), userID, r.URL.Query().Get("q"))
	if err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := myMiddleware.Identity(r.Context())
	if err := h.Service.SendFriendRequest(r.Context(), userID, chi.URLParam(r, "userID")); err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"message": "friend request sent"})
}

func (h *Handler) AcceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := myMiddleware.Identity(r.Context())
	if err := h.Service.AcceptFriendRequest(r.Context(), userID, chi.URLParam(r, "userID")); err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "friend request accepted"})
}

func (h *Handler) Friends(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := myMiddleware.Identity(r.Context())
	friends, err := h.Service.Friends(r.Context(), userID)
	if err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	httpx.JSON(w, http.StatusOK, friends)
}
