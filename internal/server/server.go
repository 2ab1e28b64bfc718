/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package server

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kentakayama/pts-over-http/internal/collector"
	"github.com/kentakayama/pts-over-http/internal/config"
	"github.com/kentakayama/pts-over-http/internal/cred"
	"github.com/kentakayama/pts-over-http/internal/infra/sqlite"
)

// Server wires the HTTP listener and the AIK collector.
type Server struct {
	cfg       config.CollectorConfig
	collector *collector.Collector
	db        *sql.DB
	http      *http.Server
	logger    logrus.FieldLogger
}

// New constructs a Server using the provided configuration.
func New(ctx context.Context, cfg config.CollectorConfig) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	db, err := sqlite.InitDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	c := collector.New(sqlite.NewAIKRepository(db), cred.NewFactory(), collector.Config{
		MaxAttrLength: cfg.MaxAttrLength,
		SessionTTL:    cfg.SessionTTL.Duration,
		Logger:        logger.WithField("component", "collector"),
	})

	h := newHandler(c, cfg.MaxAttrLength, logger.WithField("component", "http"))

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		cfg:       cfg,
		collector: c,
		db:        db,
		http:      httpSrv,
		logger:    logger,
	}, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe starts the HTTP server and blocks until it stops.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.logger.WithField("addr", s.http.Addr).Info("Run PTS AIK collector")

	expireCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.collector.Run(expireCtx)

	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully takes down the HTTP server and releases open sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.collector.Close()
	if cerr := sqlite.CloseDB(s.db); err == nil {
		err = cerr
	}
	return err
}
