package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"

	"reviewnotify/internal/types"
)

// maxRequestBodySize caps inbound event payloads (1 MB decompressed).
const maxRequestBodySize = 1 << 20

// activityEventRequest is the inbound event contract. The host posts one
// record per review activity; raw carries the action-specific extras the
// classifier and builder probe tolerantly.
type activityEventRequest struct {
	TraceID  string `json:"trace_id"`
	ReviewID string `json:"review_id" validate:"required"`

	Activity struct {
		ID          string         `json:"id" validate:"required"`
		Action      string         `json:"action" validate:"required"`
		AuthorID    string         `json:"author_id"`
		Description string         `json:"description"`
		Raw         map[string]any `json:"raw"`
	} `json:"activity"`

	Quiet     bool     `json:"quiet"`
	DataQuiet []string `json:"data_quiet"`
}

// handleActivityEvent ingests one host activity event and enqueues it for
// the notify worker. The response is 202: acceptance means "queued", not
// "notified"; delivery outcomes are visible in worker logs only.
func (s *Server) handleActivityEvent(w http.ResponseWriter, r *http.Request) {
	var req activityEventRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, types.ErrCodeMalformedEvent, err.Error())
		return
	}

	if err := s.validate.Struct(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, types.ErrCodeMalformedEvent, "missing required event fields")
		return
	}

	msg := types.ActivityMessage{
		TraceID:             req.TraceID,
		ReviewID:            req.ReviewID,
		ActivityID:          req.Activity.ID,
		ActivityAction:      req.Activity.Action,
		ActivityAuthorID:    req.Activity.AuthorID,
		ActivityDescription: req.Activity.Description,
		ActivityRaw:         req.Activity.Raw,
		Quiet:               req.Quiet,
		DataQuiet:           req.DataQuiet,
	}
	if msg.TraceID == "" {
		msg.TraceID = types.GetRequestID(r.Context())
	}

	if err := s.sender.SendActivity(r.Context(), msg, "gateway_ingest"); err != nil {
		s.logger.Error("failed to enqueue activity",
			"review_id", msg.ReviewID,
			"activity_id", msg.ActivityID,
			"error", err.Error(),
		)
		writeError(w, r, http.StatusServiceUnavailable, types.ErrCodeInternalUnexpected, "failed to enqueue event")
		return
	}

	writeJSON(w, r, http.StatusAccepted, map[string]string{
		"status":      "accepted",
		"review_id":   msg.ReviewID,
		"activity_id": msg.ActivityID,
	})
}

// decodeBody reads the request body into dst, transparently decompressing
// gzip payloads (the host batches large raw fields), enforcing the size cap
// and rejecting unknown fields.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	var body io.Reader = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	if strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return errors.New("invalid gzip request body")
		}
		defer gz.Close()
		body = io.LimitReader(gz, maxRequestBodySize)
	}

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body must not be empty")
		}
		return errors.New("malformed JSON in request body")
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
