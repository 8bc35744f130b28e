package upload_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"go-talk/internal/chat"
	myMiddleware "go-talk/internal/middleware"
	"go-talk/internal/upload"
)

const (
	maxChunk = 1024
	maxFile  = 4096
)

type sentMessage struct {
	from      chat.Sender
	to, group string
	body      chat.Body
}

type recordingMessenger struct {
	sent []sentMessage
}

func (m *recordingMessenger) SendDirect(_ context.Context, from chat.Sender, recipientID string, body chat.Body) (*chat.Message, error) {
	m.sent = append(m.sent, sentMessage{from: from, to: recipientID, body: body})
	return &chat.Message{ID: "m-1", SenderID: from.ID, RecipientID: recipientID, Kind: body.Kind, FileURL: body.FileURL}, nil
}

func (m *recordingMessenger) SendGroup(_ context.Context, from chat.Sender, groupID string, body chat.Body) (*chat.Message, error) {
	m.sent = append(m.sent, sentMessage{from: from, group: groupID, body: body})
	return &chat.Message{ID: "m-2", SenderID: from.ID, GroupID: groupID, Kind: body.Kind, FileURL: body.FileURL}, nil
}

func newUploadServer(t *testing.T, f *fixture, messenger upload.Messenger) *httptest.Server {
	t.Helper()
	h := upload.NewHandler(f.coord, messenger, zap.NewNop(), maxChunk, maxFile, false)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(myMiddleware.WithIdentity(r.Context(), owner, "Alice")))
		})
	})
	r.Post("/api/files/upload/init", h.Init)
	r.Post("/api/files/upload/chunk", h.Chunk)
	r.Post("/api/files/upload/complete", h.Complete)
	r.Post("/api/files/upload/abort", h.Abort)
	r.Get("/api/files/{fileID}/download", h.Download)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func postChunk(t *testing.T, url, fileID string, number, total int, data []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("fileId", fileID))
	require.NoError(t, w.WriteField("chunkNumber", strconv.Itoa(number)))
	require.NoError(t, w.WriteField("totalChunks", strconv.Itoa(total)))
	part, err := w.CreateFormFile("chunk", "blob")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	resp, err := http.Post(url, w.FormDataContentType(), &buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHandler_UploadFlowSendsFileMessage(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	messenger := &recordingMessenger{}
	srv := newUploadServer(t, f, messenger)

	f.objects.EXPECT().CreateMultipart(gomock.Any(), gomock.Any(), "video/mp4").Return(uploadID, nil)
	resp := postJSON(t, srv.URL+"/api/files/upload/init", map[string]any{
		"fileName": "clip.mp4", "fileSize": 2048, "mimeType": "video/mp4",
	})
	req.Equal(http.StatusOK, resp.StatusCode)
	initRes := decodeBody[upload.InitResult](t, resp)
	req.Equal(uploadID, initRes.UploadID)

	f.etagByPart().Times(2)
	for n := 1; n <= 2; n++ {
		resp = postChunk(t, srv.URL+"/api/files/upload/chunk", initRes.FileID, n, 2, bytes.Repeat([]byte("v"), maxChunk))
		req.Equal(http.StatusOK, resp.StatusCode)
		chunk := decodeBody[upload.ChunkResult](t, resp)
		req.Equal(n, chunk.Uploaded)
	}

	f.objects.EXPECT().CompleteMultipart(gomock.Any(), gomock.Any(), uploadID, gomock.Len(2)).Return(location, nil)
	f.files.EXPECT().SaveFile(gomock.Any(), gomock.Any()).Return(nil)
	resp = postJSON(t, srv.URL+"/api/files/upload/complete", map[string]string{
		"fileId": initRes.FileID, "recipientId": "bob",
	})
	req.Equal(http.StatusOK, resp.StatusCode)

	var done struct {
		upload.CompleteResult
		Message *chat.Message `json:"message"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&done))
	req.Equal(location, done.URL)
	req.NotNil(done.Message)
	req.Equal(chat.KindVideo, done.Message.Kind)

	req.Len(messenger.sent, 1)
	req.Equal(chat.Sender{ID: owner, Username: "Alice"}, messenger.sent[0].from)
	req.Equal("bob", messenger.sent[0].to)
	req.Equal(chat.KindVideo, messenger.sent[0].body.Kind)
	req.Equal("clip.mp4", messenger.sent[0].body.FileName)
	req.Equal(location, messenger.sent[0].body.FileURL)
}

func TestHandler_InitRejectsOversizedFile(t *testing.T) {
	f := newFixture(t)
	srv := newUploadServer(t, f, &recordingMessenger{})

	// no multipart upload is opened
	resp := postJSON(t, srv.URL+"/api/files/upload/init", map[string]any{
		"fileName": "huge.iso", "fileSize": maxFile + 1,
	})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_ChunkTooLarge(t *testing.T) {
	f := newFixture(t)
	srv := newUploadServer(t, f, &recordingMessenger{})
	fileID := f.init(t, "image/png")

	resp := postChunk(t, srv.URL+"/api/files/upload/chunk", fileID, 1, 1, bytes.Repeat([]byte("x"), maxChunk+1))

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_ChunkBadFields(t *testing.T) {
	f := newFixture(t)
	srv := newUploadServer(t, f, &recordingMessenger{})

	resp := postChunk(t, srv.URL+"/api/files/upload/chunk", "", 1, 1, []byte("x"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err := http.Post(srv.URL+"/api/files/upload/chunk", "text/plain", strings.NewReader("nope"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_CompleteRejectsTwoTargets(t *testing.T) {
	f := newFixture(t)
	srv := newUploadServer(t, f, &recordingMessenger{})

	resp := postJSON(t, srv.URL+"/api/files/upload/complete", map[string]string{
		"fileId": "f-1", "recipientId": "bob", "groupId": "g-1",
	})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_AbortAndDownload(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	srv := newUploadServer(t, f, &recordingMessenger{})
	fileID := f.init(t, "image/png")

	f.objects.EXPECT().AbortMultipart(gomock.Any(), gomock.Any(), uploadID).Return(nil)
	resp := postJSON(t, srv.URL+"/api/files/upload/abort", map[string]string{"fileId": fileID})
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal("upload aborted", decodeBody[map[string]string](t, resp)["message"])

	f.files.EXPECT().GetFile(gomock.Any(), "f-1").Return(&upload.FileRecord{ID: "f-1", StorageKey: "k"}, nil)
	f.objects.EXPECT().PresignedURL(gomock.Any(), "k", gomock.Any()).Return("http://signed", nil)
	resp, err := http.Get(srv.URL + "/api/files/f-1/download")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal("http://signed", decodeBody[map[string]string](t, resp)["url"])
}
