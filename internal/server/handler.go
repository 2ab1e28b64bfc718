/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package server

import (
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/kentakayama/pts-over-http/internal/collector"
	"github.com/kentakayama/pts-over-http/internal/domain"
)

const (
	// ContentTypeCBOR carries segment requests, responses and AIK listings.
	ContentTypeCBOR = "application/pts-aik+cbor"
	// ContentTypeValue carries a raw AIK attribute value.
	ContentTypeValue = "application/octet-stream"

	// CBOR framing around the largest accepted segment
	envelopeOverhead = 256
)

// SegmentRequest is the CBOR body of POST /pts/aik/segments.
type SegmentRequest struct {
	SessionID string `cbor:"1,keyasint,omitempty"`
	Length    uint32 `cbor:"2,keyasint,omitempty"`
	Noskip    bool   `cbor:"3,keyasint,omitempty"`
	Segment   []byte `cbor:"4,keyasint,omitempty"`
}

// SegmentResponse reports the reassembly state after a segment.
type SegmentResponse struct {
	SessionID string `cbor:"1,keyasint,omitempty"`
	Status    string `cbor:"2,keyasint"`
	Received  uint32 `cbor:"3,keyasint"`
	KID       []byte `cbor:"4,keyasint,omitempty"`
	Kind      string `cbor:"5,keyasint,omitempty"`
	Error     string `cbor:"6,keyasint,omitempty"`
	// Revoked is set when the submitted AIK was collected and revoked before.
	Revoked   bool   `cbor:"7,keyasint,omitempty"`
}

type AIKEntry struct {
	KID     []byte `cbor:"1,keyasint"`
	Kind    string `cbor:"2,keyasint"`
	Revoked bool   `cbor:"3,keyasint,omitempty"`
}

type handler struct {
	collector *collector.Collector
	logger    logrus.FieldLogger
	maxBody   int64
	router    chi.Router
}

type responseSpec struct {
	status      int
	body        []byte
	contentType string
}

func newHandler(c *collector.Collector, maxAttrLength int, logger logrus.FieldLogger) *handler {
	h := &handler{
		collector: c,
		logger:    logger,
		maxBody:   int64(maxAttrLength) + envelopeOverhead,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/pts/aik", func(r chi.Router) {
		r.Get("/", h.listAIKs)
		r.Post("/segments", h.submitSegment)
		r.Get("/{kid}", h.getAIK)
		r.Delete("/{kid}", h.revokeAIK)
	})
	h.router = r
	return h
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *handler) submitSegment(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Content-Type") != ContentTypeCBOR {
		h.logger.Debugf("content type mismatch: expected %s, actual %v", ContentTypeCBOR, r.Header.Get("Content-Type"))
		http.Error(w, "This endpoint only accepts Content-Type: "+ContentTypeCBOR, http.StatusUnsupportedMediaType)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "segment too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.logger.WithError(err).Warn("failed reading request body")
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	var req SegmentRequest
	if err := cbor.Unmarshal(body, &req); err != nil {
		h.logger.WithError(err).Debug("failed to parse segment request")
		http.Error(w, "failed to parse segment request", http.StatusBadRequest)
		return
	}

	result, err := h.collector.Submit(r.Context(), collector.SegmentRequest{
		SessionID: req.SessionID,
		Length:    int(req.Length),
		Noskip:    req.Noskip,
		Segment:   req.Segment,
	})

	var resp SegmentResponse
	if result != nil {
		resp = SegmentResponse{
			SessionID: result.SessionID,
			Status:    result.Status.String(),
			Received:  uint32(result.Received),
			KID:       result.KID,
		}
		if result.KID != nil {
			resp.Kind = result.Kind.String()
		}
	}

	status := http.StatusCreated
	switch {
	case err == nil && result.KID == nil:
		status = http.StatusAccepted
	case errors.Is(err, collector.ErrAttrFailed), errors.Is(err, collector.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrRevoked):
		resp.Revoked = true
		status = http.StatusGone
	case errors.Is(err, collector.ErrUnknownSession):
		status = http.StatusNotFound
	case errors.Is(err, collector.ErrAttrTooLarge):
		status = http.StatusRequestEntityTooLarge
	case err != nil:
		h.logger.WithError(err).Error("failed to collect AIK")
		status = http.StatusInternalServerError
	}
	if err != nil {
		resp.Error = err.Error()
		if result == nil {
			resp.Status = "failed"
		}
	}
	h.writeCBOR(w, status, resp)
}

func (h *handler) listAIKs(w http.ResponseWriter, r *http.Request) {
	aiks, err := h.collector.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("failed to list AIKs")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	entries := make([]AIKEntry, 0, len(aiks))
	for _, a := range aiks {
		entries = append(entries, AIKEntry{KID: a.KID, Kind: a.Kind, Revoked: a.RevokedAt != nil})
	}
	h.writeCBOR(w, http.StatusOK, entries)
}

func (h *handler) getAIK(w http.ResponseWriter, r *http.Request) {
	kid, ok := h.kidParam(w, r)
	if !ok {
		return
	}
	attr, err := h.collector.Lookup(r.Context(), kid)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	defer attr.Destroy()

	w.Header().Set("X-PA-TNC-Attr-Type", attr.Type().String())
	w.Header().Set("X-PA-TNC-Noskip", strconv.FormatBool(attr.NoskipFlag()))
	h.writeResponse(w, responseSpec{
		status:      http.StatusOK,
		body:        attr.Value(),
		contentType: ContentTypeValue,
	})
}

func (h *handler) revokeAIK(w http.ResponseWriter, r *http.Request) {
	kid, ok := h.kidParam(w, r)
	if !ok {
		return
	}
	if err := h.collector.Revoke(r.Context(), kid); err != nil {
		h.writeLookupError(w, err)
		return
	}
	h.writeResponse(w, responseSpec{status: http.StatusNoContent})
}

func (h *handler) kidParam(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	kid, err := hex.DecodeString(chi.URLParam(r, "kid"))
	if err != nil || len(kid) == 0 {
		http.Error(w, "kid must be hex encoded", http.StatusBadRequest)
		return nil, false
	}
	return kid, true
}

func (h *handler) writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "AIK not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrRevoked):
		http.Error(w, "AIK revoked", http.StatusGone)
	default:
		h.logger.WithError(err).Error("AIK lookup failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *handler) writeCBOR(w http.ResponseWriter, status int, v any) {
	body, err := cbor.Marshal(v)
	if err != nil {
		h.logger.WithError(err).Error("failed to encode response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.writeResponse(w, responseSpec{status: status, body: body, contentType: ContentTypeCBOR})
}

func (h *handler) writeResponse(w http.ResponseWriter, spec responseSpec) {
	if len(spec.body) > 0 {
		for k, v := range defaultHeaders {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", spec.contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(spec.body)))
		w.WriteHeader(spec.status)
		if _, err := w.Write(spec.body); err != nil {
			h.logger.WithError(err).Warn("failed writing response body")
		}
		return
	}

	w.WriteHeader(spec.status)
}

var defaultHeaders = map[string]string{
	"Cache-Control":           "no-store",
	"X-Content-Type-Options":  "nosniff",
	"Content-Security-Policy": "default-src 'none'",
	"Referrer-Policy":         "no-referrer",
}
