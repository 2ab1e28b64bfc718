/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kentakayama/pts-over-http/internal/infra/ptsclient"
)

type clientFlags struct {
	url      string
	insecure bool
	timeout  time.Duration
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "url", "http://localhost:8443", "Collector base URL")
	cmd.Flags().BoolVar(&f.insecure, "insecure", false, "Skip TLS certificate verification")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 30*time.Second, "Request timeout")
}

func (f *clientFlags) client(cmd *cobra.Command, segmentSize int) (*ptsclient.Client, error) {
	logger, err := newLogger(cmd)
	if err != nil {
		return nil, err
	}
	return ptsclient.New(ptsclient.Config{
		BaseURL:     f.url,
		Timeout:     f.timeout,
		InsecureTLS: f.insecure,
		SegmentSize: segmentSize,
		Logger:      logger,
	})
}

func newSubmitCmd() *cobra.Command {
	var (
		flags       clientFlags
		inPath      string
		segmentSize int
		noskip      bool
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Send an encoded AIK attribute value to a collector",
		Long: `Submit posts a raw attribute value (as written by "encode --out") to a
collector in segments of --segment-size bytes and prints the kid the
collector stored it under.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := os.ReadFile(inPath)
			if err != nil {
				return err
			}
			c, err := flags.client(cmd, segmentSize)
			if err != nil {
				return err
			}
			resp, err := c.Submit(cmd.Context(), value, noskip)
			if resp != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "status: %s (%d bytes)\n", resp.Status, resp.Received)
			}
			if err != nil {
				return err
			}
			if len(resp.KID) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "kind: %s\nkid: %s\n", resp.Kind, hex.EncodeToString(resp.KID))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&inPath, "in", "", "Raw attribute value file")
	cmd.Flags().IntVar(&segmentSize, "segment-size", 1024, "Bytes per segment")
	cmd.Flags().BoolVar(&noskip, "noskip", false, "Set the PA-TNC NOSKIP flag")
	cmd.MarkFlagRequired("in")
	return cmd
}

func newListCmd() *cobra.Command {
	var flags clientFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the AIKs stored by a collector",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client(cmd, 0)
			if err != nil {
				return err
			}
			entries, err := c.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-64s  %-15s  %s\n", "KID", "KIND", "REVOKED")
			for _, e := range entries {
				fmt.Fprintf(out, "%-64s  %-15s  %t\n", hex.EncodeToString(e.KID), e.Kind, e.Revoked)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
