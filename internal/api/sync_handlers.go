package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/service"
)

// ListChanges handles GET /api/{subject}/changes?since=<unix seconds>.
// The reply is the UUID of every subject changed at or after since, each once.
func (s *APIServer) ListChanges(w http.ResponseWriter, r *http.Request) {
	feed := s.feed(w, r)
	if feed == nil {
		return
	}

	rec, done := instrument(w, feed.Subject(), "changes")
	defer done()

	since, err := service.ParseSince(r.URL.Query().Get("since"))
	if err != nil {
		writeError(rec, http.StatusBadRequest, codeInvalidSince, err.Error())
		return
	}

	ids, err := feed.ListChanged(r.Context(), since)
	if err != nil {
		writeInternal(rec, r, err)
		return
	}

	results := make([]string, 0, len(ids))
	for _, id := range ids {
		results = append(results, id.String())
	}

	writeJSON(rec, http.StatusOK, ListResponse[string]{Results: results})
}

// GetDetail handles GET /api/{subject}/{uuid}.
func (s *APIServer) GetDetail(w http.ResponseWriter, r *http.Request) {
	feed := s.feed(w, r)
	if feed == nil {
		return
	}

	rec, done := instrument(w, feed.Subject(), "detail")
	defer done()

	id, err := uuid.Parse(r.PathValue("uuid"))
	if err != nil {
		writeError(rec, http.StatusNotFound, codeNotFound, feed.Subject().String()+" not found")
		return
	}

	detail, err := feed.Detail(r.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(rec, http.StatusNotFound, codeNotFound, feed.Subject().String()+" not found")
			return
		}
		writeInternal(rec, r, err)
		return
	}

	writeJSON(rec, http.StatusOK, detail)
}

// GetDetailBatch handles GET /api/{subject}/batch?uuids=<a>,<b>.
// Unknown identifiers are omitted; the rest keep the requested order.
func (s *APIServer) GetDetailBatch(w http.ResponseWriter, r *http.Request) {
	feed := s.feed(w, r)
	if feed == nil {
		return
	}

	rec, done := instrument(w, feed.Subject(), "batch")
	defer done()

	query := r.URL.Query()
	raw := query.Get("uuids")
	if raw == "" {
		raw = query.Get("ids")
	}

	ids, err := service.ParseUUIDList(raw, feed.BatchMax())
	if err != nil {
		writeError(rec, http.StatusBadRequest, codeMissingUUIDs, err.Error())
		return
	}

	details, err := feed.DetailBatch(r.Context(), ids)
	if err != nil {
		writeInternal(rec, r, err)
		return
	}

	if details == nil {
		details = []any{}
	}

	writeJSON(rec, http.StatusOK, ListResponse[any]{Results: details})
}
