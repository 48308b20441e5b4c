package controllers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/cppla/quicktransfer/store"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fs, err := store.NewFileStore(t.TempDir(), nil, nil)
	require.NoError(t, err)
	fc := NewFileController(fs)

	r := gin.New()
	r.POST("/upload", fc.Upload)
	r.GET("/files", fc.List)
	r.GET("/download/:name", fc.Download)
	r.GET("/preview/:name", fc.Preview)
	r.DELETE("/delete/:name", fc.Delete)
	return r
}

func doUpload(t *testing.T, r *gin.Engine, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type uploadResponse struct {
	Code int `json:"code"`
	Data struct {
		Filename    string `json:"filename"`
		Size        int    `json:"size"`
		DeleteToken string `json:"delete_token"`
	} `json:"data"`
}

func TestUploadDownloadDeleteFlow(t *testing.T) {
	r := newTestRouter(t)

	content := []byte(strings.Repeat("hello world", 1000))
	w := doUpload(t, r, "notes.txt", content)
	require.Equal(t, http.StatusOK, w.Code)

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "notes.txt", resp.Data.Filename)
	require.Equal(t, len(content), resp.Data.Size)
	require.NotEmpty(t, resp.Data.DeleteToken)
	require.Equal(t, resp.Data.DeleteToken, w.Header().Get("X-Delete-Token"))

	// Download returns the original bytes, not the stored envelope.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/download/notes.txt", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, content, w.Body.Bytes())
	require.Contains(t, w.Header().Get("Content-Disposition"), "attachment")

	// Preview serves inline.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/preview/notes.txt", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Disposition"), "inline")

	// Deleting without the token is forbidden.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/delete/notes.txt", nil))
	require.Equal(t, http.StatusForbidden, w.Code)

	// Deleting with the token removes the record.
	req := httptest.NewRequest(http.MethodDelete, "/delete/notes.txt", nil)
	req.Header.Set("X-Delete-Token", resp.Data.DeleteToken)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/download/notes.txt", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadWithoutFileField(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("not multipart"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadEmptyFile(t *testing.T) {
	r := newTestRouter(t)

	w := doUpload(t, r, "empty.txt", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListShowsUploadedFiles(t *testing.T) {
	r := newTestRouter(t)

	require.Equal(t, http.StatusOK, doUpload(t, r, "a.txt", []byte("aaa")).Code)
	require.Equal(t, http.StatusOK, doUpload(t, r, "b.txt", []byte("bbbb")).Code)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []struct {
			Name string `json:"name"`
			Size int64  `json:"size"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)

	sizes := map[string]int64{}
	for _, f := range resp.Data {
		sizes[f.Name] = f.Size
	}
	require.Equal(t, int64(3), sizes["a.txt"])
	require.Equal(t, int64(4), sizes["b.txt"])
}

func TestDeleteTokenViaQueryParameter(t *testing.T) {
	r := newTestRouter(t)

	w := doUpload(t, r, "q.txt", []byte("data"))
	var resp uploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/delete/q.txt?token="+resp.Data.DeleteToken, nil))
	require.Equal(t, http.StatusOK, w.Code)
}
