package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/unrolled/render"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/dispatch"
	"github.com/jonwraymond/querycache/observe"
)

// ErrMalformedBody is reported for request bodies that are not a JSON
// dispatch.Request.
var ErrMalformedBody = errors.New("server: malformed request body")

type handler struct {
	dispatcher   *dispatch.Dispatcher
	logger       observe.Logger
	render       *render.Render
	maxBodyBytes int64
}

func (h *handler) dispatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dispatch.Request
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		h.logger.Warn(ctx, "failed to decode request body", observe.Field{Key: "error", Value: err.Error()})
		h.sendJSON(ctx, w, http.StatusBadRequest, dispatch.Response{
			Error: fmt.Errorf("%w: %v", ErrMalformedBody, err).Error(),
		})
		return
	}

	h.do(w, r, req)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	h.do(w, r, dispatch.Request{Action: dispatch.ActionStats})
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	h.do(w, r, dispatch.Request{Action: dispatch.ActionList})
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	key, ok := h.keyParam(w, r)
	if !ok {
		return
	}
	h.do(w, r, dispatch.Request{Action: dispatch.ActionGet, Key: key})
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	key, ok := h.keyParam(w, r)
	if !ok {
		return
	}
	h.do(w, r, dispatch.Request{Action: dispatch.ActionDelete, Key: key})
}

// keyParam returns the decoded {key} segment. chi routes on RawPath when the
// request carries one, and on the already decoded Path otherwise.
func (h *handler) keyParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := chi.URLParam(r, "key")
	if r.URL.RawPath == "" {
		return key, true
	}
	key, err := url.PathUnescape(key)
	if err != nil {
		h.sendJSON(r.Context(), w, http.StatusBadRequest, dispatch.Response{Error: err.Error()})
		return "", false
	}
	return key, true
}

func (h *handler) do(w http.ResponseWriter, r *http.Request, req dispatch.Request) {
	resp, err := h.dispatcher.Do(r.Context(), req)
	h.sendJSON(r.Context(), w, statusFor(err), resp)
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case cache.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, cache.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) sendJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	if err := h.render.JSON(w, status, body); err != nil {
		h.logger.Error(ctx, "render JSON error", observe.Field{Key: "error", Value: err.Error()})
	}
}
