/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package ptsclient submits AIK attribute values to a collector over HTTP.
package ptsclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/sirupsen/logrus"

	"github.com/kentakayama/pts-over-http/internal/pts"
	"github.com/kentakayama/pts-over-http/internal/server"
	"github.com/kentakayama/pts-over-http/internal/util"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultSegmentSize = 1024
	userAgent          = "pts-aik/client"
)

var (
	ErrEmptyValue = errors.New("refusing to submit empty attribute value")
	ErrRejected   = errors.New("collector rejected request")
)

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	InsecureTLS bool
	// SegmentSize bounds the attribute bytes carried per request.
	SegmentSize int
	Logger      logrus.FieldLogger
}

type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	segmentSize int
	logger      logrus.FieldLogger
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("collector URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse collector URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	segmentSize := cfg.SegmentSize
	if segmentSize <= 0 {
		segmentSize = defaultSegmentSize
	}
	logger := cfg.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	transport := &http.Transport{}
	if base.Scheme == "https" {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.InsecureTLS}
	}

	return &Client{
		baseURL:     base,
		httpClient:  &http.Client{Timeout: timeout, Transport: transport},
		segmentSize: segmentSize,
		logger:      logger,
	}, nil
}

// Submit sends value to the collector split into segments and returns the
// response to the last one.
func (c *Client) Submit(ctx context.Context, value []byte, noskip bool) (*server.SegmentResponse, error) {
	if len(value) == 0 {
		return nil, ErrEmptyValue
	}

	req := server.SegmentRequest{Length: uint32(len(value)), Noskip: noskip}
	var resp *server.SegmentResponse
	for off := 0; off < len(value); {
		end := min(off+c.segmentSize, len(value))
		req.Segment = value[off:end]

		var err error
		resp, err = c.postSegment(ctx, req)
		if err != nil {
			return resp, err
		}
		off = end
		c.logger.WithFields(logrus.Fields{
			"session_id": resp.SessionID,
			"received":   resp.Received,
		}).Debugf("segment %s", resp.Status)

		if resp.Status != pts.StatusNeedMore.String() {
			break
		}
		// only the opening request announces the length
		req = server.SegmentRequest{SessionID: resp.SessionID}
	}
	return resp, nil
}

func (c *Client) postSegment(ctx context.Context, req server.SegmentRequest) (*server.SegmentResponse, error) {
	body, err := cbor.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode segment request: %w", err)
	}
	respBody, status, err := c.do(ctx, http.MethodPost, "/pts/aik/segments", body)
	if err != nil {
		return nil, err
	}

	var resp server.SegmentResponse
	if err := cbor.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: %d %s", ErrRejected, status, bytes.TrimSpace(respBody))
	}
	if status != http.StatusAccepted && status != http.StatusCreated {
		return &resp, fmt.Errorf("%w: %d %s", ErrRejected, status, resp.Error)
	}
	return &resp, nil
}

// Fetch returns the attribute value the collector builds for kid.
func (c *Client) Fetch(ctx context.Context, kid []byte) ([]byte, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/pts/aik/"+hex.EncodeToString(kid), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: %d %s", ErrRejected, status, bytes.TrimSpace(body))
	}
	return body, nil
}

func (c *Client) List(ctx context.Context) ([]server.AIKEntry, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/pts/aik", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: %d %s", ErrRejected, status, bytes.TrimSpace(body))
	}
	var entries []server.AIKEntry
	if err := cbor.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode AIK list: %w", err)
	}
	return entries, nil
}

func (c *Client) Revoke(ctx context.Context, kid []byte) error {
	body, status, err := c.do(ctx, http.MethodDelete, "/pts/aik/"+hex.EncodeToString(kid), nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return fmt.Errorf("%w: %d %s", ErrRejected, status, bytes.TrimSpace(body))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	u, err := c.baseURL.Parse(path)
	if err != nil {
		return nil, 0, fmt.Errorf("build request URL: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", server.ContentTypeCBOR)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("read response body: %w", err)
	}
	if resp.Header.Get("Content-Type") == server.ContentTypeCBOR {
		c.logResponse(respBody)
	}
	return respBody, resp.StatusCode, nil
}

func (c *Client) logResponse(body []byte) {
	decoded, err := util.RenderCBOR(body)
	if err != nil {
		c.logger.WithError(err).Debug("failed to decode collector response for pretty print")
		return
	}
	c.logger.Debugf("collector response (decoded):\n%s", decoded)
}
