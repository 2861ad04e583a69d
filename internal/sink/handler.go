package sink

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"camclinic/internal/metrics"
)

const (
	chunkField     = "chunk"
	maxChunkMemory = 32 << 20
)

// Ack is the per-message reply on the websocket upload stream.
type Ack struct {
	OK    bool   `json:"ok"`
	Bytes int64  `json:"bytes,omitempty"`
	Error string `json:"error,omitempty"`
}

// Handler exposes the append sink over HTTP and websocket.
type Handler struct {
	store    *Store
	log      *slog.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	// maxMessage caps one websocket chunk like maxChunkMemory caps a form.
	maxMessage int64
}

// NewHandler returns a Handler. Metrics may be nil to disable recording.
func NewHandler(store *Store, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		store:   store,
		log:     log,
		metrics: m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		maxMessage: maxChunkMemory,
	}
}

// Routes mounts POST /append/{fileName} and GET /stream/{fileName}.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/append/{fileName}", h.Append)
	r.Get("/stream/{fileName}", h.Stream)
}

// Append handles POST /api/video/append/{fileName} with a multipart "chunk".
func (h *Handler) Append(w http.ResponseWriter, r *http.Request) {
	name, err := SanitizeName(fileNameParam(r))
	if err != nil {
		h.reject(w, "name", err)
		return
	}

	if err := r.ParseMultipartForm(maxChunkMemory); err != nil {
		h.reject(w, "form", err)
		return
	}
	file, header, err := r.FormFile(chunkField)
	if err != nil {
		h.reject(w, "missing_chunk", err)
		return
	}
	defer file.Close()
	if header.Size == 0 {
		h.reject(w, "empty_chunk", errors.New("empty chunk"))
		return
	}

	n, err := h.store.Append(name, file)
	if err != nil {
		h.log.Error("append failed", slog.String("file", name), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.log.Debug("chunk appended", slog.String("file", name), slog.Int64("bytes", n))
	if h.metrics != nil {
		h.metrics.ObserveAppend(int(n))
	}
	w.WriteHeader(http.StatusOK)
}

// Stream handles GET /api/video/stream/{fileName}: every binary message is
// appended and answered with one Ack.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	name, err := SanitizeName(fileNameParam(r))
	if err != nil {
		h.reject(w, "name", err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(h.maxMessage)

	if h.metrics != nil {
		h.metrics.StreamOpened()
		defer h.metrics.StreamClosed()
	}
	h.log.Info("upload stream opened", slog.String("file", name), slog.String("remote", r.RemoteAddr))

	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				h.log.Info("upload rejected", slog.String("reason", "too_large"), slog.String("file", name))
				if h.metrics != nil {
					h.metrics.IncRejected("too_large")
				}
				return
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("upload stream read failed", slog.String("file", name), slog.String("error", err.Error()))
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}

		ack := h.appendMessage(name, payload)
		if err := conn.WriteJSON(ack); err != nil {
			h.log.Warn("upload stream ack failed", slog.String("file", name), slog.String("error", err.Error()))
			return
		}
	}
}

func (h *Handler) appendMessage(name string, payload []byte) Ack {
	if len(payload) == 0 {
		if h.metrics != nil {
			h.metrics.IncRejected("empty_chunk")
		}
		return Ack{OK: false, Error: "empty chunk"}
	}
	n, err := h.store.Append(name, bytes.NewReader(payload))
	if err != nil {
		h.log.Error("append failed", slog.String("file", name), slog.String("error", err.Error()))
		return Ack{OK: false, Error: err.Error()}
	}
	if h.metrics != nil {
		h.metrics.ObserveAppend(int(n))
	}
	return Ack{OK: true, Bytes: n}
}

// fileNameParam decodes the route parameter. chi matches on the raw path
// when it carries escaped slashes.
func fileNameParam(r *http.Request) string {
	raw := chi.URLParam(r, "fileName")
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

func (h *Handler) reject(w http.ResponseWriter, reason string, err error) {
	h.log.Info("upload rejected", slog.String("reason", reason), slog.String("error", err.Error()))
	if h.metrics != nil {
		h.metrics.IncRejected(reason)
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}
