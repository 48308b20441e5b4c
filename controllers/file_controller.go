package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/quicktransfer/config"
	"github.com/cppla/quicktransfer/store"
	"github.com/cppla/quicktransfer/utils"
)

// FileController exposes the file store over HTTP: upload, list, download,
// preview, and token-authorized delete.
type FileController struct {
	store *store.FileStore
}

// NewFileController creates a new FileController instance.
func NewFileController(fs *store.FileStore) *FileController {
	return &FileController{store: fs}
}

// Upload accepts one multipart file, stores it encrypted, and returns the
// final filename together with the one-time delete token. The token is also
// exposed via the X-Delete-Token header; it is never retrievable again.
func (f *FileController) Upload(ctx *gin.Context) {
	// Accept common field name 'file' or fallback to 'f'
	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		file, header, err = ctx.Request.FormFile("f")
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40010, "no file uploaded")
			return
		}
	}
	defer file.Close()

	maxSize := int64(config.Get().MaxUploadMB) * 1024 * 1024
	if header.Size > 0 && header.Size > maxSize {
		utils.Error(ctx, http.StatusBadRequest, 40011, fmt.Sprintf("file exceeds %s limit", utils.HumanSize(maxSize)))
		return
	}

	// Enforce the limit even when the declared size lies.
	payload, err := io.ReadAll(&io.LimitedReader{R: file, N: maxSize + 1})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to read upload")
		return
	}
	if int64(len(payload)) > maxSize {
		utils.Error(ctx, http.StatusBadRequest, 40011, fmt.Sprintf("file exceeds %s limit", utils.HumanSize(maxSize)))
		return
	}

	name, token, err := f.store.Create(header.Filename, payload, ctx.ClientIP())
	if err != nil {
		f.fail(ctx, err)
		return
	}

	ctx.Header("X-Delete-Token", token)
	utils.Success(ctx, gin.H{
		"filename":     name,
		"size":         len(payload),
		"delete_token": token,
	})
}

// List returns stored files with their original sizes, newest first.
func (f *FileController) List(ctx *gin.Context) {
	files, err := f.store.List()
	if err != nil {
		f.fail(ctx, err)
		return
	}
	out := make([]gin.H, 0, len(files))
	for _, fi := range files {
		out = append(out, gin.H{"name": fi.Name, "size": fi.Size})
	}
	utils.Success(ctx, out)
}

// Download streams the decrypted file as an attachment.
func (f *FileController) Download(ctx *gin.Context) {
	f.serve(ctx, "attachment")
}

// Preview streams the decrypted file inline so browsers can render it.
func (f *FileController) Preview(ctx *gin.Context) {
	f.serve(ctx, "inline")
}

func (f *FileController) serve(ctx *gin.Context, disposition string) {
	name := ctx.Param("name")
	payload, mimeType, err := f.store.Read(name)
	if err != nil {
		f.fail(ctx, err)
		return
	}
	ctx.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, name))
	ctx.Data(http.StatusOK, mimeType, payload)
}

// Delete removes a file when the caller presents its delete token, taken
// from the X-Delete-Token header or the token query parameter.
func (f *FileController) Delete(ctx *gin.Context) {
	name := ctx.Param("name")
	token := ctx.GetHeader("X-Delete-Token")
	if token == "" {
		token = ctx.Query("token")
	}

	if err := f.store.Delete(name, token); err != nil {
		f.fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "file deleted successfully"})
}

// fail maps store errors onto the HTTP error taxonomy. Unreadable envelopes
// surface as a server error; the stored ciphertext is never echoed back.
func (f *FileController) fail(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrEmptyPayload):
		utils.Error(ctx, http.StatusBadRequest, 40012, "empty file")
	case errors.Is(err, store.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40410, "file not found")
	case errors.Is(err, store.ErrForbidden):
		utils.Error(ctx, http.StatusForbidden, 40310, "missing or invalid delete token")
	case errors.Is(err, store.ErrCorruptEnvelope):
		utils.Error(ctx, http.StatusInternalServerError, 50011, "stored file is unreadable")
	default:
		if utils.Sugar != nil {
			utils.Sugar.Errorf("file operation failed: %v", err)
		}
		utils.Error(ctx, http.StatusInternalServerError, 50012, "internal server error")
	}
}
