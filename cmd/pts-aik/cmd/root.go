/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package cmd implements the pts-aik CLI commands.
package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kentakayama/pts-over-http/internal/config"
)

var (
	// Version is set at build time
	Version = "0.1.0"

	logLevel string
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pts-aik",
		Short: "Encode, decode and collect TCG PTS Attestation Identity Key attributes",
		Long: `pts-aik handles the Attestation Identity Key (AIK) attribute of the
TCG PTS binding to IF-M.

It encodes an AIK certificate or naked public key into a PA-TNC attribute
value, decodes attribute values received in segments, and runs a collector
service storing the AIKs submitted by platforms.`,
		Version:      Version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	root.AddCommand(newServeCmd(), newEncodeCmd(), newDecodeCmd(), newSubmitCmd(), newListCmd())
	return root
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newLogger(cmd *cobra.Command) (*logrus.Logger, error) {
	logger, err := config.NewLogger(logLevel, "text")
	if err != nil {
		return nil, err
	}
	logger.SetOutput(cmd.ErrOrStderr())
	return logger, nil
}
