package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/logcar/logcar/internal/logcar/record"
	"github.com/logcar/logcar/internal/logger"
)

// fileEnvelope is the shape a record's value takes when it represents an
// uploaded file: C7 chunks and stores it exactly like any other JSON
// mapping, no special casing below the HTTP layer.
type fileEnvelope struct {
	IsFile      bool   `json:"__file__"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        string `json:"data"`
}

// Handlers implements the record CRUD, file, and health surface, wired to
// one record.Store.
type Handlers struct {
	store  *record.Store
	errors *Handler
	logger logger.Logger
}

// NewHandlers builds a Handlers bound to store.
func NewHandlers(store *record.Store, errors *Handler, lg logger.Logger) *Handlers {
	if lg == nil {
		lg = logger.NoOpLogger{}
	}
	return &Handlers{store: store, errors: errors, logger: lg}
}

type createRequest struct {
	Value any    `json:"value"`
	Key   string `json:"key,omitempty"`
}

type recordResponse struct {
	RID        string `json:"rid"`
	Op         string `json:"op,omitempty"`
	Value      any    `json:"value"`
	Incomplete bool   `json:"incomplete,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

func callOpts(key string) []record.Option {
	if key == "" {
		return nil
	}
	return []record.Option{record.WithKey(key)}
}

// CreateRecord handles POST /records.
func (h *Handlers) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.WriteValidationError(w, r, "invalid request body: "+err.Error())
		return
	}

	rec, err := h.store.Create(req.Value, callOpts(req.Key)...)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(rec))
}

// GetRecord handles GET /records/{rid}.
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	rid := mux.Vars(r)["rid"]
	key := r.URL.Query().Get("key")

	rec, err := h.store.Read(r.Context(), rid, callOpts(key)...)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

// UpdateRecord handles PUT /records/{rid}.
func (h *Handlers) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	rid := mux.Vars(r)["rid"]

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.WriteValidationError(w, r, "invalid request body: "+err.Error())
		return
	}

	rec, err := h.store.Update(rid, req.Value, callOpts(req.Key)...)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

// DeleteRecord handles DELETE /records/{rid}.
func (h *Handlers) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	rid := mux.Vars(r)["rid"]
	if err := h.store.Delete(rid); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

const maxUploadMemory = 32 << 20 // 32MiB held in memory before spilling to temp files

// UploadFile handles POST /records/{rid}/file: a multipart upload is
// base64-encoded into a fileEnvelope and stored exactly like any other
// record value.
func (h *Handlers) UploadFile(w http.ResponseWriter, r *http.Request) {
	rid := mux.Vars(r)["rid"]

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.errors.WriteValidationError(w, r, "invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.errors.WriteValidationError(w, r, "missing file field: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.errors.WriteValidationError(w, r, "failed to read upload: "+err.Error())
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	envelope := fileEnvelope{
		IsFile:      true,
		Name:        header.Filename,
		ContentType: contentType,
		Data:        base64.StdEncoding.EncodeToString(data),
	}

	key := r.URL.Query().Get("key")

	var rec record.Record
	if rid == "" || rid == "new" {
		rec, err = h.store.Create(envelope, callOpts(key)...)
	} else {
		rec, err = h.store.Update(rid, envelope, callOpts(key)...)
	}
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(rec))
}

// DownloadFile handles GET /records/{rid}/file: it decodes a stored
// fileEnvelope and streams the raw bytes with the stored contentType.
func (h *Handlers) DownloadFile(w http.ResponseWriter, r *http.Request) {
	rid := mux.Vars(r)["rid"]
	key := r.URL.Query().Get("key")

	rec, err := h.store.Read(r.Context(), rid, callOpts(key)...)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	envelope, err := asFileEnvelope(rec.Value)
	if err != nil {
		h.errors.WriteValidationError(w, r, err.Error())
		return
	}

	data, err := base64.StdEncoding.DecodeString(envelope.Data)
	if err != nil {
		h.errors.WriteValidationError(w, r, "stored file data is not valid base64: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", envelope.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", envelope.Name))
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

func asFileEnvelope(value any) (fileEnvelope, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return fileEnvelope{}, errors.New("record value is not a file envelope")
	}
	isFile, _ := m["__file__"].(bool)
	if !isFile {
		return fileEnvelope{}, errors.New("record value is not a file envelope")
	}
	name, _ := m["name"].(string)
	contentType, _ := m["contentType"].(string)
	data, _ := m["data"].(string)
	return fileEnvelope{IsFile: true, Name: name, ContentType: contentType, Data: data}, nil
}

// Liveness handles GET /healthz: process is up and serving.
func (h *Handlers) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func toResponse(rec record.Record) recordResponse {
	return recordResponse{
		RID:        rec.RID,
		Op:         string(rec.Op),
		Value:      rec.Value,
		Incomplete: rec.Incomplete,
	}
}
