/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package collector

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kentakayama/pts-over-http/internal/cred"
	"github.com/kentakayama/pts-over-http/internal/domain"
	"github.com/kentakayama/pts-over-http/internal/infra/sqlite"
	"github.com/kentakayama/pts-over-http/internal/pts"
)

func newTestCertificate(t *testing.T) *x509.Certificate {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject:      pkix.Name{CommonName: "platform aik"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

// buildValue encodes aik the way a sending peer does.
func buildValue(t *testing.T, aik cred.Certificate) []byte {
	t.Helper()
	attr := pts.NewAIK(aik, nil)
	defer attr.Destroy()
	attr.Build()
	return append([]byte(nil), attr.Value()...)
}

func newTestCollector(t *testing.T, cfg Config) *Collector {
	t.Helper()
	db, err := sqlite.InitDB(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.CloseDB(db) })
	c := New(sqlite.NewAIKRepository(db), cred.NewFactory(), cfg)
	t.Cleanup(c.Close)
	return c
}

func TestCollector_SubmitSingleSegment(t *testing.T) {
	logger, hook := test.NewNullLogger()
	c := newTestCollector(t, Config{Logger: logger})
	ctx := context.Background()

	aik := cred.NewX509(newTestCertificate(t))
	defer aik.Destroy()
	value := buildValue(t, aik)

	res, err := c.Submit(ctx, SegmentRequest{Length: len(value), Segment: value, Noskip: true})
	require.NoError(t, err)
	assert.Equal(t, pts.StatusSuccess, res.Status)
	assert.Equal(t, cred.KindX509, res.Kind)
	assert.Equal(t, len(value), res.Received)
	assert.Equal(t, 0, c.Sessions())

	wantKID, err := cred.KeyID(aik)
	require.NoError(t, err)
	assert.Equal(t, wantKID, res.KID)
	assert.Equal(t, "collected AIK", hook.LastEntry().Message)

	// the collected key is sent back exactly as received
	attr, err := c.Lookup(ctx, res.KID)
	require.NoError(t, err)
	defer attr.Destroy()
	assert.Equal(t, value, attr.Value())
	assert.True(t, attr.NoskipFlag())

	all, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "x509", all[0].Kind)
	assert.NotEmpty(t, all[0].PublicKey)
}

func TestCollector_SubmitSegments(t *testing.T) {
	c := newTestCollector(t, Config{})
	ctx := context.Background()

	cert := newTestCertificate(t)
	aik := cred.NewTrustedPubkey(cert.PublicKey)
	defer aik.Destroy()
	value := buildValue(t, aik)
	require.Equal(t, byte(0x80), value[0])

	res, err := c.Submit(ctx, SegmentRequest{Length: len(value), Segment: value[:5]})
	require.NoError(t, err)
	assert.Equal(t, pts.StatusNeedMore, res.Status)
	assert.Equal(t, 5, res.Received)
	assert.Equal(t, 1, c.Sessions())
	require.NotEmpty(t, res.SessionID)

	rest := value[5:]
	for len(rest) > 16 {
		res, err = c.Submit(ctx, SegmentRequest{SessionID: res.SessionID, Segment: rest[:16]})
		require.NoError(t, err)
		require.Equal(t, pts.StatusNeedMore, res.Status)
		rest = rest[16:]
	}
	res, err = c.Submit(ctx, SegmentRequest{SessionID: res.SessionID, Segment: rest})
	require.NoError(t, err)
	assert.Equal(t, pts.StatusSuccess, res.Status)
	assert.Equal(t, cred.KindTrustedPubkey, res.Kind)
	assert.Equal(t, 0, c.Sessions())

	attr, err := c.Lookup(ctx, res.KID)
	require.NoError(t, err)
	defer attr.Destroy()
	assert.Equal(t, value, attr.Value())
	assert.Equal(t, cred.KindTrustedPubkey, attr.AIK().Kind())

	_, err = c.Submit(ctx, SegmentRequest{SessionID: res.SessionID, Segment: []byte{0x00}})
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestCollector_SubmitDuplicate(t *testing.T) {
	logger, hook := test.NewNullLogger()
	c := newTestCollector(t, Config{Logger: logger})
	ctx := context.Background()

	aik := cred.NewX509(newTestCertificate(t))
	defer aik.Destroy()
	value := buildValue(t, aik)

	for i := 0; i < 2; i++ {
		res, err := c.Submit(ctx, SegmentRequest{Length: len(value), Segment: value})
		require.NoError(t, err)
		assert.Equal(t, pts.StatusSuccess, res.Status)
	}
	assert.Equal(t, "AIK already collected", hook.LastEntry().Message)

	all, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCollector_SubmitFailures(t *testing.T) {
	c := newTestCollector(t, Config{MaxAttrLength: 64})
	ctx := context.Background()

	res, err := c.Submit(ctx, SegmentRequest{Length: 8, Segment: []byte{0x00, 'n', 'o', 't', 'a', 'c', 'r', 't'}})
	assert.ErrorIs(t, err, ErrAttrFailed)
	require.NotNil(t, res)
	assert.Equal(t, pts.StatusFailed, res.Status)

	res, err = c.Submit(ctx, SegmentRequest{Length: 1, Segment: []byte{0x80}})
	assert.ErrorIs(t, err, ErrAttrFailed)
	assert.Equal(t, pts.StatusFailed, res.Status)

	_, err = c.Submit(ctx, SegmentRequest{Length: -1})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = c.Submit(ctx, SegmentRequest{Length: 65})
	assert.ErrorIs(t, err, ErrAttrTooLarge)

	_, err = c.Submit(ctx, SegmentRequest{SessionID: "not-a-uuid"})
	assert.ErrorIs(t, err, ErrUnknownSession)

	// a peer sending past the announced length is cut off at the cap
	res, err = c.Submit(ctx, SegmentRequest{Length: 64, Segment: make([]byte, 60)})
	require.NoError(t, err)
	require.Equal(t, pts.StatusNeedMore, res.Status)
	_, err = c.Submit(ctx, SegmentRequest{SessionID: res.SessionID, Segment: make([]byte, 8)})
	assert.ErrorIs(t, err, ErrAttrTooLarge)
	assert.Equal(t, 0, c.Sessions())
}

func TestCollector_Expire(t *testing.T) {
	c := newTestCollector(t, Config{SessionTTL: time.Minute})
	ctx := context.Background()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return start }

	res, err := c.Submit(ctx, SegmentRequest{Length: 100, Segment: []byte{0x00}})
	require.NoError(t, err)
	require.Equal(t, pts.StatusNeedMore, res.Status)

	assert.Equal(t, 0, c.Expire(start.Add(30*time.Second)))
	assert.Equal(t, 1, c.Sessions())
	assert.Equal(t, 1, c.Expire(start.Add(2*time.Minute)))
	assert.Equal(t, 0, c.Sessions())

	_, err = c.Submit(ctx, SegmentRequest{SessionID: res.SessionID, Segment: []byte{0x01}})
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestCollector_Revoke(t *testing.T) {
	c := newTestCollector(t, Config{})
	ctx := context.Background()

	aik := cred.NewX509(newTestCertificate(t))
	defer aik.Destroy()
	value := buildValue(t, aik)

	res, err := c.Submit(ctx, SegmentRequest{Length: len(value), Segment: value})
	require.NoError(t, err)

	require.NoError(t, c.Revoke(ctx, res.KID))
	_, err = c.Lookup(ctx, res.KID)
	assert.ErrorIs(t, err, domain.ErrRevoked)
	assert.ErrorIs(t, c.Revoke(ctx, res.KID), domain.ErrNotFound)

	_, err = c.Lookup(ctx, []byte("missing"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCollector_SubmitRevoked(t *testing.T) {
	logger, hook := test.NewNullLogger()
	c := newTestCollector(t, Config{Logger: logger})
	ctx := context.Background()

	aik := cred.NewX509(newTestCertificate(t))
	defer aik.Destroy()
	value := buildValue(t, aik)

	res, err := c.Submit(ctx, SegmentRequest{Length: len(value), Segment: value})
	require.NoError(t, err)
	require.NoError(t, c.Revoke(ctx, res.KID))

	again, err := c.Submit(ctx, SegmentRequest{Length: len(value), Segment: value})
	assert.ErrorIs(t, err, domain.ErrRevoked)
	require.NotNil(t, again)
	assert.Equal(t, res.KID, again.KID)
	assert.Equal(t, "revoked AIK submitted again", hook.LastEntry().Message)
	assert.Equal(t, 0, c.Sessions())
}

func TestCollector_RunStopsOnCancel(t *testing.T) {
	c := newTestCollector(t, Config{SessionTTL: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	_, err := c.Submit(ctx, SegmentRequest{Length: 100, Segment: []byte{0x00}})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	assert.Eventually(t, func() bool { return c.Sessions() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
