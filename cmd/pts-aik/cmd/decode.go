/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kentakayama/pts-over-http/internal/cred"
	"github.com/kentakayama/pts-over-http/internal/pts"
)

var errDecodeFailed = errors.New("attribute rejected")

func newDecodeCmd() *cobra.Command {
	var (
		inPath      string
		length      int
		segmentSize int
	)
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode an AIK attribute value",
		Long: `Decode feeds a raw attribute value to the AIK decoder in segments of
--segment-size bytes, the way a PA-TNC message carrying it in several
segments would, and prints the resulting status.

--length overrides the announced attribute length (default: file size).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(inPath)
			if err != nil {
				return err
			}
			if length < 0 {
				length = len(data)
			}
			if segmentSize <= 0 || segmentSize > len(data) {
				segmentSize = len(data)
			}

			out := cmd.OutOrStdout()
			attr := pts.NewAIKFromData(length, data[:segmentSize], cred.NewFactory(), logger)
			defer attr.Destroy()

			rest := data[segmentSize:]
			_, status := attr.Process()
			for status == pts.StatusNeedMore && len(rest) > 0 {
				n := min(segmentSize, len(rest))
				attr.AddSegment(rest[:n])
				rest = rest[n:]
				_, status = attr.Process()
			}
			fmt.Fprintf(out, "status: %s (%d/%d bytes)\n", status, len(attr.Value()), length)
			if status != pts.StatusSuccess {
				if status == pts.StatusNeedMore {
					return nil
				}
				return errDecodeFailed
			}

			aik := attr.AIK()
			fmt.Fprintf(out, "kind: %s\n", aik.Kind())
			if kid, err := cred.KeyID(aik); err == nil {
				fmt.Fprintf(out, "kid: %s\n", hex.EncodeToString(kid))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "Raw attribute value file")
	cmd.Flags().IntVar(&length, "length", -1, "Announced attribute length")
	cmd.Flags().IntVar(&segmentSize, "segment-size", 0, "Segment size (default: whole value)")
	cmd.MarkFlagRequired("in")
	return cmd
}
