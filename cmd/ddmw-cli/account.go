package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"ddmw-cli/internal/auth"
	"ddmw-cli/internal/conn"
	"ddmw-cli/internal/mgmt"
)

func newAccountCmd(cfg *rootConfig) *cobra.Command {
	var (
		id   int64
		name string
	)
	c := &cobra.Command{
		Use:   "account",
		Short: "Show account information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := mgmt.CurrentAccount()
			switch {
			case cmd.Flags().Changed("id") && cmd.Flags().Changed("name"):
				return fmt.Errorf("--id and --name are mutually exclusive")
			case cmd.Flags().Changed("id"):
				q = mgmt.AccountByID(id)
			case cmd.Flags().Changed("name"):
				q = mgmt.AccountByName(name)
			}

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

			acc, err := mgmt.ReadAccount(ctx, nc, q)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Id:    %d\n", acc.ID)
			_, _ = fmt.Fprintf(out, "Name:  %s\n", acc.Name)
			_, _ = fmt.Fprintf(out, "Lock:  %t\n", acc.Lock)
			_, _ = fmt.Fprintf(out, "Perms: %s\n", formatPerms(acc.Perms))
			return nil
		},
	}

	c.Flags().Int64Var(&id, "id", 0, "look up account by id")
	c.Flags().StringVar(&name, "name", "", "look up account by name")
	return c
}

func formatPerms(perms map[string]struct{}) string {
	if len(perms) == 0 {
		return "-"
	}
	list := make([]string, 0, len(perms))
	for p := range perms {
		list = append(list, p)
	}
	sort.Strings(list)
	return strings.Join(list, ",")
}
