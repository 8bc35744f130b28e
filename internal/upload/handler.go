package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"go-talk/internal/apperr"
	"go-talk/internal/chat"
	"go-talk/internal/httpx"
	myMiddleware "go-talk/internal/middleware"
)

// formOverhead leaves room for the multipart boundaries and text fields
// around a full-size chunk.
const formOverhead = 64 * 1024

// Messenger wraps a completed upload into a chat message.
type Messenger interface {
	SendDirect(ctx context.Context, from chat.Sender, recipientID string, body chat.Body) (*chat.Message, error)
	SendGroup(ctx context.Context, from chat.Sender, groupID string, body chat.Body) (*chat.Message, error)
}

type Handler struct {
	coord        *Coordinator
	messenger    Messenger
	log          *zap.Logger
	maxChunkSize int64
	maxFileSize  int64
	expose       bool
}

func NewHandler(coord *Coordinator, messenger Messenger, log *zap.Logger, maxChunkSize, maxFileSize int64, expose bool) *Handler {
	return &Handler{
		coord:        coord,
		messenger:    messenger,
		log:          log,
		maxChunkSize: maxChunkSize,
		maxFileSize:  maxFileSize,
		expose:       expose,
	}
}

type completeResponse struct {
	*CompleteResult
	Message *chat.Message `json:"message,omitempty"`
}

func (h *Handler) Init(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := myMiddleware.Identity(r.Context())
	var req InitRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	if req.FileSize > h.maxFileSize {
		httpx.Fail(w, h.log, fmt.Errorf("%w: file exceeds %d bytes", apperr.ErrValidation, h.maxFileSize), h.expose)
		return
	}
	res, err := h.coord.Initialize(r.Context(), userID, req)
	if err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// Chunk accepts a multipart form with fileId, chunkNumber, totalChunks and the
// chunk file itself.
func (h *Handler) Chunk(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := myMiddleware.Identity(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, h.maxChunkSize+formOverhead)

	fileID, number, total, data, err := h.readChunk(r)
	if err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	res, err := h.coord.AcceptChunk(r.Context(), userID, fileID, number, total, data)
	if err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) readChunk(r *http.Request) (string, int, int, []byte, error) {
	if err := r.ParseMultipartForm(h.maxChunkSize + formOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", 0, 0, nil, fmt.Errorf("%w: chunk exceeds %d bytes", apperr.ErrValidation, h.maxChunkSize)
		}
		return "", 0, 0, nil, fmt.Errorf("%w: malformed form: %v", apperr.ErrValidation, err)
	}

	fileID := r.FormValue("fileId")
	if fileID == "" {
		return "", 0, 0, nil, fmt.Errorf("%w: fileId is required", apperr.ErrValidation)
	}
	number, err := strconv.Atoi(r.FormValue("chunkNumber"))
	if err != nil {
		return "", 0, 0, nil, fmt.Errorf("%w: chunkNumber: %v", apperr.ErrValidation, err)
	}
	total, err := strconv.Atoi(r.FormValue("totalChunks"))
	if err != nil {
		return "", 0, 0, nil, fmt.Errorf("%w: totalChunks: %v", apperr.ErrValidation, err)
	}

	file, _, err := r.FormFile("chunk")
	if err != nil {
		return "", 0, 0, nil, fmt.Errorf("%w: chunk file is required", apperr.ErrValidation)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxChunkSize+1))
	if err != nil {
		return "", 0, 0, nil, fmt.Errorf("%w: read chunk: %v", apperr.ErrValidation, err)
	}
	if int64(len(data)) > h.maxChunkSize {
		return "", 0, 0, nil, fmt.Errorf("%w: chunk exceeds %d bytes", apperr.ErrValidation, h.maxChunkSize)
	}
	return fileID, number, total, data, nil
}

// Complete finalizes the upload and, when a recipient or group is named,
// sends the file to it as a message.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, username, _ := myMiddleware.Identity(r.Context())
	var req CompleteRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	res, err := h.coord.Complete(r.Context(), userID, req.FileID)
	if err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}

	out := completeResponse{CompleteResult: res}
	if req.RecipientID != "" || req.GroupID != "" {
		body := chat.Body{
			Content:  res.FileName,
			Kind:     chat.KindForMIME(res.MimeType),
			FileURL:  res.URL,
			FileName: res.FileName,
			FileSize: res.FileSize,
		}
		from := chat.Sender{ID: userID, Username: username}
		if req.GroupID != "" {
			out.Message, err = h.messenger.SendGroup(r.Context(), from, req.GroupID, body)
		} else {
			out.Message, err = h.messenger.SendDirect(r.Context(), from, req.RecipientID, body)
		}
		if err != nil {
			httpx.Fail(w, h.log, err, h.expose)
			return
		}
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) Abort(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := myMiddleware.Identity(r.Context())
	var req AbortRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	if err := h.coord.Abort(r.Context(), userID, req.FileID); err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "upload aborted"})
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := myMiddleware.Identity(r.Context())
	u, err := h.coord.DownloadURL(r.Context(), chi.URLParam(r, "fileID"), userID)
	if err != nil {
		httpx.Fail(w, h.log, err, h.expose)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"url": u})
}
