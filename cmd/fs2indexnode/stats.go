package main

import (
	"encoding/xml"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

type statsResponse struct {
	Peers             int   `xml:"peers,attr"`
	Files             int   `xml:"files,attr"`
	UniqueFiles       int   `xml:"uniqueFiles,attr"`
	TotalSize         int64 `xml:"totalSize,attr"`
	UniqueSize        int64 `xml:"uniqueSize,attr"`
	EstimatedTransfer int64 `xml:"estimatedTransfer,attr"`
}

func newStatsCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Fetch and print a running indexnode's aggregate stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Get(addr + "/stats")
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			var s statsResponse
			if err := xml.NewDecoder(resp.Body).Decode(&s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "peers:       %d\n", s.Peers)
			fmt.Fprintf(cmd.OutOrStdout(), "files:       %d (%d unique)\n", s.Files, s.UniqueFiles)
			fmt.Fprintf(cmd.OutOrStdout(), "total size:  %d bytes (%d unique)\n", s.TotalSize, s.UniqueSize)
			fmt.Fprintf(cmd.OutOrStdout(), "served:      %d bytes\n", s.EstimatedTransfer)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://localhost:6771", "indexnode base URL")
	return cmd
}
