/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package collector reassembles Attestation Identity Key attributes
// received in segments and keeps the collected keys in a repository.
package collector

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kentakayama/pts-over-http/internal/cred"
	"github.com/kentakayama/pts-over-http/internal/domain"
	"github.com/kentakayama/pts-over-http/internal/domain/model"
	"github.com/kentakayama/pts-over-http/internal/domain/service"
	"github.com/kentakayama/pts-over-http/internal/pts"
)

const (
	defaultMaxAttrLength = 64 * 1024
	defaultSessionTTL    = 30 * time.Second
)

type Config struct {
	MaxAttrLength int
	SessionTTL    time.Duration
	Logger        logrus.FieldLogger
}

type Collector struct {
	repo   service.AIKRepository
	creds  cred.Builder
	log    logrus.FieldLogger
	maxLen int
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

// session owns one reference to its attribute. Requests working on the
// attribute take another reference for their duration.
type session struct {
	mu       sync.Mutex
	attr     pts.AIK
	lastSeen time.Time
}

// SegmentRequest carries one segment of an AIK attribute value. The first
// segment has no SessionID and announces the total Length.
type SegmentRequest struct {
	SessionID string
	Length    int
	Noskip    bool
	Segment   []byte
}

type SegmentResult struct {
	SessionID string
	Status    pts.Status
	Received  int
	KID       []byte
	Kind      cred.Kind
}

func New(repo service.AIKRepository, creds cred.Builder, cfg Config) *Collector {
	logger := cfg.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	maxLen := cfg.MaxAttrLength
	if maxLen <= 0 {
		maxLen = defaultMaxAttrLength
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Collector{
		repo:     repo,
		creds:    creds,
		log:      logger,
		maxLen:   maxLen,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*session),
	}
}

// Submit feeds a segment to its reassembly session and processes the
// attribute. A StatusNeedMore result keeps the session open.
func (c *Collector) Submit(ctx context.Context, req SegmentRequest) (*SegmentResult, error) {
	var (
		id   uuid.UUID
		s    *session
		attr pts.Attribute
		err  error
	)
	if req.SessionID == "" {
		id, s, attr, err = c.open(req)
	} else {
		id, s, attr, err = c.resume(req)
	}
	if err != nil {
		return nil, err
	}
	defer attr.Destroy()

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.SessionID != "" {
		if len(s.attr.Value())+len(req.Segment) > c.maxLen {
			c.close(id)
			return nil, fmt.Errorf("%w: %d", ErrAttrTooLarge, c.maxLen)
		}
		s.attr.AddSegment(req.Segment)
	}
	s.lastSeen = c.now()

	result := &SegmentResult{
		SessionID: id.String(),
		Received:  len(s.attr.Value()),
	}
	_, result.Status = s.attr.Process()

	switch result.Status {
	case pts.StatusNeedMore:
		return result, nil
	case pts.StatusSuccess:
		c.close(id)
		if err := c.store(ctx, s.attr, result); err != nil {
			if errors.Is(err, domain.ErrRevoked) {
				return result, err
			}
			return nil, err
		}
		return result, nil
	default:
		c.close(id)
		return result, ErrAttrFailed
	}
}

func (c *Collector) open(req SegmentRequest) (uuid.UUID, *session, pts.Attribute, error) {
	if req.Length < 0 {
		return uuid.Nil, nil, nil, fmt.Errorf("%w: negative length %d", ErrInvalidRequest, req.Length)
	}
	if req.Length > c.maxLen || len(req.Segment) > c.maxLen {
		return uuid.Nil, nil, nil, fmt.Errorf("%w: %d", ErrAttrTooLarge, c.maxLen)
	}

	id := uuid.New()
	attr := pts.NewAIKFromData(req.Length, req.Segment, c.creds, c.log.WithField("session_id", id.String()))
	attr.SetNoskipFlag(req.Noskip)
	s := &session{attr: attr, lastSeen: c.now()}

	c.mu.Lock()
	c.sessions[id] = s
	ref := attr.GetRef()
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"session_id": id.String(), "length": req.Length}).Debug("opened AIK reassembly session")
	return id, s, ref, nil
}

func (c *Collector) resume(req SegmentRequest) (uuid.UUID, *session, pts.Attribute, error) {
	id, err := uuid.Parse(req.SessionID)
	if err != nil {
		return uuid.Nil, nil, nil, fmt.Errorf("%w: %q", ErrUnknownSession, req.SessionID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	if !ok {
		return uuid.Nil, nil, nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return id, s, s.attr.GetRef(), nil
}

// close drops the session and its reference to the attribute.
func (c *Collector) close(id uuid.UUID) {
	c.mu.Lock()
	s, ok := c.sessions[id]
	delete(c.sessions, id)
	c.mu.Unlock()
	if ok {
		s.attr.Destroy()
	}
}

func (c *Collector) store(ctx context.Context, attr pts.AIK, result *SegmentResult) error {
	aik := attr.AIK()
	result.Kind = aik.Kind()

	kid, err := cred.KeyID(aik)
	if err != nil {
		return fmt.Errorf("derive AIK kid: %w", err)
	}
	result.KID = kid

	encoding := cred.EncodingCertDER
	if aik.Kind() == cred.KindTrustedPubkey {
		encoding = cred.EncodingPubkeySPKIDER
	}
	encoded, err := aik.Encoding(encoding)
	if err != nil {
		return fmt.Errorf("encode AIK: %w", err)
	}
	coseKey, err := cred.COSEKey(aik)
	if err != nil {
		// not every key type has a COSE_Key representation
		coseKey = nil
	}

	log := c.log.WithFields(logrus.Fields{"kid": hex.EncodeToString(kid), "kind": aik.Kind().String()})
	_, err = c.repo.Create(ctx, &model.AIK{
		KID:       kid,
		Kind:      aik.Kind().String(),
		Encoded:   encoded,
		PublicKey: coseKey,
		Noskip:    attr.NoskipFlag(),
		CreatedAt: c.now().UTC().Truncate(time.Second),
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		if _, ferr := c.repo.FindByKID(ctx, kid); errors.Is(ferr, domain.ErrRevoked) {
			log.Warn("revoked AIK submitted again")
			return fmt.Errorf("%w: %x", domain.ErrRevoked, kid)
		}
		log.Info("AIK already collected")
		return nil
	}
	if err != nil {
		return fmt.Errorf("store AIK: %w", err)
	}
	log.Info("collected AIK")
	return nil
}

// Lookup rebuilds the AIK attribute of a collected key. The caller must
// Destroy the returned attribute.
func (c *Collector) Lookup(ctx context.Context, kid []byte) (pts.AIK, error) {
	rec, err := c.repo.FindByKID(ctx, kid)
	if err != nil {
		return nil, err
	}
	kind, err := cred.ParseKind(rec.Kind)
	if err != nil {
		return nil, err
	}
	aik, err := c.creds.Create(kind, cred.BlobDER, rec.Encoded)
	if err != nil {
		return nil, fmt.Errorf("load AIK %x: %w", kid, err)
	}
	defer aik.Destroy()

	attr := pts.NewAIK(aik, c.log.WithField("kid", hex.EncodeToString(kid)))
	attr.SetNoskipFlag(rec.Noskip)
	attr.Build()
	return attr, nil
}

func (c *Collector) List(ctx context.Context) ([]model.AIK, error) {
	return c.repo.GetAll(ctx)
}

func (c *Collector) Revoke(ctx context.Context, kid []byte) error {
	if err := c.repo.RevokeByKID(ctx, kid); err != nil {
		return err
	}
	c.log.WithField("kid", hex.EncodeToString(kid)).Info("revoked AIK")
	return nil
}

// Sessions returns the number of open reassembly sessions.
func (c *Collector) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// Expire closes sessions idle for longer than the session TTL and returns
// how many were closed.
func (c *Collector) Expire(now time.Time) int {
	var expired []*session

	c.mu.Lock()
	for id, s := range c.sessions {
		if !s.mu.TryLock() {
			continue
		}
		if now.Sub(s.lastSeen) > c.ttl {
			delete(c.sessions, id)
			expired = append(expired, s)
		}
		s.mu.Unlock()
	}
	c.mu.Unlock()

	for _, s := range expired {
		s.attr.Destroy()
	}
	if len(expired) > 0 {
		c.log.WithField("count", len(expired)).Debug("expired AIK reassembly sessions")
	}
	return len(expired)
}

// Run expires idle sessions until ctx is done.
func (c *Collector) Run(ctx context.Context) {
	interval := c.ttl / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.Expire(now)
		}
	}
}

// Close drops all open sessions.
func (c *Collector) Close() {
	c.mu.Lock()
	sessions := c.sessions
	c.sessions = make(map[uuid.UUID]*session)
	c.mu.Unlock()
	for _, s := range sessions {
		s.attr.Destroy()
	}
}
