/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package server

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kentakayama/pts-over-http/internal/config"
	"github.com/kentakayama/pts-over-http/internal/cred"
	"github.com/kentakayama/pts-over-http/internal/pts"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.DBPath = ":memory:"
	cfg.MaxAttrLength = 4096

	s, err := New(context.Background(), cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		assert.NoError(t, s.Shutdown(context.Background()))
	})
	return ts
}

func aikValue(t *testing.T) []byte {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(3),
		Subject:      pkix.Name{CommonName: "aik"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	aik := cred.NewX509(cert)
	defer aik.Destroy()
	attr := pts.NewAIK(aik, nil)
	defer attr.Destroy()
	attr.Build()
	return append([]byte(nil), attr.Value()...)
}

func postSegment(t *testing.T, ts *httptest.Server, req SegmentRequest) (int, SegmentResponse) {
	t.Helper()
	body, err := cbor.Marshal(req)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/pts/aik/segments", ContentTypeCBOR, bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out SegmentResponse
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, cbor.Unmarshal(data, &out))
	return resp.StatusCode, out
}

func TestServer_SegmentedUpload(t *testing.T) {
	ts := newTestServer(t)
	value := aikValue(t)

	status, res := postSegment(t, ts, SegmentRequest{Length: uint32(len(value)), Segment: value[:10], Noskip: true})
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, "need-more", res.Status)
	assert.Equal(t, uint32(10), res.Received)
	require.NotEmpty(t, res.SessionID)

	status, res = postSegment(t, ts, SegmentRequest{SessionID: res.SessionID, Segment: value[10:]})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "x509", res.Kind)
	require.Len(t, res.KID, 32)

	kid := hex.EncodeToString(res.KID)
	resp, err := http.Get(ts.URL + "/pts/aik/" + kid)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ContentTypeValue, resp.Header.Get("Content-Type"))
	assert.Equal(t, "TCG/0x0000000e", resp.Header.Get("X-PA-TNC-Attr-Type"))
	assert.Equal(t, "true", resp.Header.Get("X-PA-TNC-Noskip"))
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, value, got)

	listResp, err := http.Get(ts.URL + "/pts/aik")
	require.NoError(t, err)
	defer listResp.Body.Close()
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	data, err := io.ReadAll(listResp.Body)
	require.NoError(t, err)
	var entries []AIKEntry
	require.NoError(t, cbor.Unmarshal(data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, res.KID, entries[0].KID)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/pts/aik/"+kid, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	goneResp, err := http.Get(ts.URL + "/pts/aik/" + kid)
	require.NoError(t, err)
	goneResp.Body.Close()
	assert.Equal(t, http.StatusGone, goneResp.StatusCode)
}

func TestServer_ResubmitRevoked(t *testing.T) {
	ts := newTestServer(t)
	value := aikValue(t)

	status, res := postSegment(t, ts, SegmentRequest{Length: uint32(len(value)), Segment: value})
	require.Equal(t, http.StatusCreated, status)
	assert.False(t, res.Revoked)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/pts/aik/"+hex.EncodeToString(res.KID), nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	require.Equal(t, http.StatusNoContent, delResp.StatusCode)

	status, again := postSegment(t, ts, SegmentRequest{Length: uint32(len(value)), Segment: value})
	assert.Equal(t, http.StatusGone, status)
	assert.True(t, again.Revoked)
	assert.Equal(t, res.KID, again.KID)
	assert.NotEmpty(t, again.Error)
}

func TestServer_SegmentErrors(t *testing.T) {
	ts := newTestServer(t)

	status, res := postSegment(t, ts, SegmentRequest{Length: 1, Segment: []byte{0x80}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "failed", res.Status)
	assert.NotEmpty(t, res.Error)

	status, res = postSegment(t, ts, SegmentRequest{SessionID: "00000000-0000-0000-0000-000000000001", Segment: []byte{0x00}})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "failed", res.Status)

	status, _ = postSegment(t, ts, SegmentRequest{Length: 8192})
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
}

func TestServer_BadRequests(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/pts/aik/segments", "application/json", bytes.NewReader([]byte("{}")))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/pts/aik/segments", ContentTypeCBOR, bytes.NewReader([]byte{0xff, 0xff}))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/pts/aik/segments", ContentTypeCBOR, bytes.NewReader(make([]byte, 8192)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/pts/aik/zz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/pts/aik/" + hex.EncodeToString([]byte("missing")))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
