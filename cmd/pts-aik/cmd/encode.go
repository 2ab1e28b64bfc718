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

	"github.com/spf13/cobra"

	"github.com/kentakayama/pts-over-http/internal/cred"
	"github.com/kentakayama/pts-over-http/internal/pts"
)

func newEncodeCmd() *cobra.Command {
	var (
		certPath string
		naked    bool
		outPath  string
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode an AIK certificate or public key as an attribute value",
		Long: `Encode reads a PEM or DER AIK and prints the PA-TNC attribute value
as hex, or writes the raw bytes to --out.

With --naked the public key is sent without its certificate and the
NAKED_KEY flag is set.

Examples:
  pts-aik encode --cert aik.pem
  pts-aik encode --cert aik.pem --naked --out aik.attr`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}

			kind := cred.KindX509
			if naked {
				kind = cred.KindTrustedPubkey
			}
			aik, err := cred.LoadFile(cred.NewFactory(), kind, certPath)
			if err != nil {
				return err
			}
			defer aik.Destroy()

			attr := pts.NewAIK(aik, logger)
			defer attr.Destroy()
			attr.Build()

			if outPath != "" {
				return os.WriteFile(outPath, attr.Value(), 0o644)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(attr.Value()))
			return err
		},
	}
	cmd.Flags().StringVar(&certPath, "cert", "", "AIK certificate or public key file (PEM or DER)")
	cmd.Flags().BoolVar(&naked, "naked", false, "Encode the naked public key")
	cmd.Flags().StringVar(&outPath, "out", "", "Write the raw attribute value to this file")
	cmd.MarkFlagRequired("cert")
	return cmd
}
