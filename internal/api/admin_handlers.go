package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/jnst/storefront-sync/internal/export"
	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/repository"
	"github.com/jnst/storefront-sync/internal/service"
	"github.com/jnst/storefront-sync/internal/snapshot"
)

// CreateOrder handles POST /admin/orders.
func (s *APIServer) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var params model.CreateOrderParams
	if !decodeBody(w, r, &params) {
		return
	}

	order, err := s.orders.CreateOrder(r.Context(), &params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, snapshot.OrderDetail(order))
}

// UpdateOrder handles PATCH /admin/orders/{uuid}.
func (s *APIServer) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	var params model.UpdateOrderParams
	if !decodeBody(w, r, &params) {
		return
	}

	order, err := s.orders.UpdateOrder(r.Context(), id, &params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot.OrderDetail(order))
}

// DeleteOrder handles DELETE /admin/orders/{uuid}.
func (s *APIServer) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	if err := s.orders.DeleteOrder(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateUser handles POST /admin/users.
func (s *APIServer) CreateUser(w http.ResponseWriter, r *http.Request) {
	var params model.CreateUserParams
	if !decodeBody(w, r, &params) {
		return
	}

	user, err := s.users.CreateUser(r.Context(), &params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, snapshot.User(user))
}

// UpdateUser handles PATCH /admin/users/{uuid}.
func (s *APIServer) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	var params model.UpdateUserParams
	if !decodeBody(w, r, &params) {
		return
	}

	user, err := s.users.UpdateUser(r.Context(), id, &params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot.User(user))
}

// DeleteUser handles DELETE /admin/users/{uuid}.
func (s *APIServer) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	if err := s.users.DeleteUser(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /admin/export/{subject}?format=xlsx|csv and replies with the file as an attachment.
// The exported records are marked sent before the reply is written.
func (s *APIServer) Export(w http.ResponseWriter, r *http.Request) {
	subject, err := model.ParseSubject(r.PathValue("subject"))
	if err != nil {
		writeError(w, http.StatusNotFound, codeNotFound, "unknown subject")
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = s.exportFormat
	}

	result, err := s.exports.Export(r.Context(), subject, format)
	if err != nil {
		switch {
		case errors.Is(err, export.ErrUnknownFormat):
			writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		case errors.Is(err, model.ErrUnknownSubject):
			writeError(w, http.StatusNotFound, codeNotFound, err.Error())
		default:
			writeInternal(w, r, err)
		}
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("uuid"))
	if err != nil {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
		return uuid.Nil, false
	}

	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, err.Error())
		return false
	}

	return true
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrPostCommitHook):
		writeInternal(w, r, err)
	case service.IsNotFound(err):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, model.ErrEmailTaken):
		writeError(w, http.StatusConflict, codeConflict, err.Error())
	case errors.Is(err, model.ErrInvalidName),
		errors.Is(err, model.ErrInvalidEmail),
		errors.Is(err, model.ErrEmptyOrder),
		errors.Is(err, model.ErrInvalidQuantity),
		errors.Is(err, model.ErrInvalidPrice),
		errors.Is(err, model.ErrInvalidOrderStatus),
		errors.Is(err, model.ErrInvalidPaymentType),
		errors.Is(err, model.ErrUnknownDeliveryMethod),
		errors.Is(err, model.ErrReferrerNotFound):
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
	default:
		writeInternal(w, r, err)
	}
}
