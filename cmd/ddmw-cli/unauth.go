package main

import (
	"context"

	"github.com/spf13/cobra"

	"ddmw-cli/internal/auth"
	"ddmw-cli/internal/conn"
)

func newUnauthCmd(cfg *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "unauth",
		Short: "Drop the connection identity back to anonymous",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ai, err := cfg.authInfo()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.opTimeout())
			defer cancel()

			nc, err := conn.Dial(ctx, cfg.endpoint())
			if err != nil {
				return err
			}
			defer nc.Close()

			if ai != nil {
				if _, err := auth.Authenticate(ctx, nc, ai); err != nil {
					return err
				}
			}
			return auth.Unauthenticate(ctx, nc)
		},
	}
}
