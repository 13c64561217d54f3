// Package http exposes the ledger services over a JSON HTTP API.
package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/louisbranch/leaselog/internal/services/ledger/api"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Handler serves the ledger HTTP API.
type Handler struct {
	commands *api.CommandService
	queries  *api.QueryService
}

// NewHandler builds the ledger HTTP handler with tracing instrumentation.
func NewHandler(commands *api.CommandService, queries *api.QueryService) http.Handler {
	h := &Handler{commands: commands, queries: queries}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("POST /v1/leases", h.handleCreateLease)
	mux.HandleFunc("GET /v1/leases", h.handleListLeases)
	mux.HandleFunc("GET /v1/leases/{leaseID}", h.handleGetLease)
	mux.HandleFunc("GET /v1/leases/{leaseID}/events", h.handleListLeaseEvents)
	mux.HandleFunc("DELETE /v1/leases/{leaseID}/events/{eventID}", h.handleDeleteLeaseEvent)
	mux.HandleFunc("POST /v1/leases/{leaseID}/payments/schedule", h.handleSchedulePayment)
	mux.HandleFunc("POST /v1/leases/{leaseID}/payments/receive", h.handleReceivePayment)
	mux.HandleFunc("POST /v1/leases/{leaseID}/terminate", h.handleTerminateLease)

	return otelhttp.NewHandler(mux, "ledger")
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleCreateLease(w http.ResponseWriter, r *http.Request) {
	var req api.CreateLeaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.commands.CreateLease(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleSchedulePayment(w http.ResponseWriter, r *http.Request) {
	h.handlePayment(w, r, h.commands.SchedulePayment)
}

func (h *Handler) handleReceivePayment(w http.ResponseWriter, r *http.Request) {
	h.handlePayment(w, r, h.commands.ReceivePayment)
}

func (h *Handler) handlePayment(w http.ResponseWriter, r *http.Request, submit func(context.Context, api.PaymentRequest) (api.CommandResponse, error)) {
	var req api.PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.LeaseID = r.PathValue("leaseID")

	resp, err := submit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleTerminateLease(w http.ResponseWriter, r *http.Request) {
	var req api.TerminateLeaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.LeaseID = r.PathValue("leaseID")

	resp, err := h.commands.TerminateLease(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDeleteLeaseEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.ParseUint(r.PathValue("eventID"), 10, 64)
	if err != nil {
		writeError(w, status.Error(codes.InvalidArgument, "event id must be a positive integer"))
		return
	}

	resp, err := h.commands.DeleteLeaseEvent(r.Context(), api.DeleteLeaseEventRequest{
		LeaseID: r.PathValue("leaseID"),
		EventID: eventID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetLease(w http.ResponseWriter, r *http.Request) {
	resp, err := h.queries.GetLease(r.Context(), api.GetLeaseRequest{
		LeaseID: r.PathValue("leaseID"),
		AsAt:    r.URL.Query().Get("as_at"),
		AsOn:    r.URL.Query().Get("as_on"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListLeaseEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	pageSize, ok := parsePageSize(w, query.Get("page_size"))
	if !ok {
		return
	}

	resp, err := h.queries.ListLeaseEvents(r.Context(), api.ListLeaseEventsRequest{
		LeaseID:   r.PathValue("leaseID"),
		AsAt:      query.Get("as_at"),
		AsOn:      query.Get("as_on"),
		Filter:    query.Get("filter"),
		PageSize:  pageSize,
		PageToken: query.Get("page_token"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListLeases(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	pageSize, ok := parsePageSize(w, query.Get("page_size"))
	if !ok {
		return
	}

	resp, err := h.queries.ListLeases(r.Context(), api.ListLeasesRequest{
		PageSize:  pageSize,
		PageToken: query.Get("page_token"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func parsePageSize(w http.ResponseWriter, raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size < 0 {
		writeError(w, status.Error(codes.InvalidArgument, "page_size must be a non-negative integer"))
		return 0, false
	}
	return size, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, status.Error(codes.InvalidArgument, "request body is not valid JSON"))
		return false
	}
	return true
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

// writeError renders a gRPC status error as a JSON error body using the
// canonical status-to-HTTP mapping.
func writeError(w http.ResponseWriter, err error) {
	st := status.Convert(err)

	detail := errorDetail{
		Code:    st.Code().String(),
		Message: st.Message(),
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			detail.Reason = info.GetReason()
		}
	}

	writeJSON(w, httpStatusFromCode(st.Code()), errorBody{Error: detail})
}

func httpStatusFromCode(code codes.Code) int {
	switch code {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}
