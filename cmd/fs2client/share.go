package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bs2609/fs2/internal/ratelimit"
	"github.com/bs2609/fs2/internal/shareengine"
)

func newShareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Manage local shares without a running serve process",
	}
	cmd.AddCommand(newShareAddCommand())
	return cmd
}

func newShareAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <root-dir> <list-path>",
		Short: "Walk and hash root-dir once, writing its file list to list-path",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, root, listPath := args[0], args[1], args[2]
			log := newLogger().WithField("role", "share-add")

			s := shareengine.New(name, root, listPath, ratelimit.New(0), nil)
			if err := s.Refresh(cmd.Context()); err != nil {
				return fmt.Errorf("refresh %s: %w", name, err)
			}
			log.WithFields(map[string]any{
				"share":    name,
				"revision": s.Revision(),
			}).Info("share list written")
			return nil
		},
	}
}
