// files.go — обработчики операций над загруженными файлами api-module.
// Тело POST /scrapedFiles разбирается собственным multipart-парсером.
package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/sftmadness/api-module/internal/api/errors"
	"github.com/sftmadness/api-module/internal/domain/model"
	"github.com/sftmadness/api-module/internal/multipartform"
	"github.com/sftmadness/api-module/internal/service"
)

// fileReadResponse — ответ Read File.
// Текстовое содержимое отдаётся как есть, бинарное — в base64
// с флагом isBase64Encoded.
type fileReadResponse struct {
	File            *model.ScrapedFile `json:"file"`
	Content         string             `json:"content"`
	IsBase64Encoded bool               `json:"isBase64Encoded"`
}

// CreateFile — POST /scrapedFiles. Multipart тело с полями
// model, filename, filetype и файловой частью.
func (h *APIHandler) CreateFile(w http.ResponseWriter, r *http.Request) {
	requester := h.requester(w, r)
	if requester == nil {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		apierrors.ValidationError(w, "Не удалось прочитать тело запроса")
		return
	}

	form, err := multipartform.Parse(body, r.Header.Get("Content-Type"))
	if err != nil {
		if errors.Is(err, multipartform.ErrMalformedBody) {
			apierrors.ValidationError(w, err.Error())
			return
		}
		h.writeServiceError(w, err)
		return
	}

	file, err := h.files.Upload(r.Context(), requester.ID, service.UploadInput{
		Model:    form.Fields["model"],
		Filename: form.Fields["filename"],
		Filetype: form.Fields["filetype"],
		Data:     form.File.Data,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, file)
}

// ReadFile — GET /scrapedFiles/{fileId}.
func (h *APIHandler) ReadFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := h.fileIDParam(w, r)
	if !ok {
		return
	}

	requester := h.requester(w, r)
	if requester == nil {
		return
	}

	content, err := h.files.Get(r.Context(), requester.ID, fileID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := fileReadResponse{File: content.File}
	if content.Textual {
		resp.Content = string(content.Data)
	} else {
		resp.Content = base64.StdEncoding.EncodeToString(content.Data)
		resp.IsBase64Encoded = true
	}

	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", content.File.Filename))
	writeJSON(w, http.StatusOK, resp)
}

// DeleteFile — DELETE /scrapedFiles/{fileId}. Не идемпотентен:
// повторное удаление возвращает 404.
func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := h.fileIDParam(w, r)
	if !ok {
		return
	}

	requester := h.requester(w, r)
	if requester == nil {
		return
	}

	if err := h.files.Delete(r.Context(), requester.ID, fileID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, "Файл удалён")
}

// fileIDParam извлекает fileId из пути запроса.
func (h *APIHandler) fileIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "fileId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		apierrors.ValidationError(w, "Невалидный идентификатор файла")
		return 0, false
	}
	return id, true
}
