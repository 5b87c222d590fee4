package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rendis/scenario/internal/secrets"
	"github.com/rendis/scenario/pkg/schema"
)

func newSecretCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage encrypted service API keys",
		Long: `Manage API keys used by send steps that pass no api_key.
Keys are stored per service name, encrypted with secrets.key or
secrets.passphrase + secrets.salt (SCENARIO_SECRETS_KEY, ...).`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <service> [value]",
			Short: "Store a key; reads stdin when value is omitted",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withVault(cmd, opts, func(ctx context.Context, v *secrets.AESVault) error {
					value := ""
					if len(args) == 2 {
						value = args[1]
					} else {
						raw, err := io.ReadAll(cmd.InOrStdin())
						if err != nil {
							return err
						}
						value = strings.TrimRight(string(raw), "\r\n")
					}
					return v.Store(ctx, args[0], []byte(value))
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List services with a stored key",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withVault(cmd, opts, func(ctx context.Context, v *secrets.AESVault) error {
					keys, err := v.List(ctx)
					if err != nil {
						return err
					}
					for _, k := range keys {
						fmt.Fprintln(cmd.OutOrStdout(), k)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete <service>",
			Short: "Delete a stored key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withVault(cmd, opts, func(ctx context.Context, v *secrets.AESVault) error {
					return v.Delete(ctx, args[0])
				})
			},
		},
	)
	return cmd
}

func withVault(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, v *secrets.AESVault) error) error {
	return withApp(cmd, opts, func(ctx context.Context, a *app) error {
		if a.vault == nil {
			return schema.NewError(schema.ErrCodeConfig, "no secrets key configured; set secrets.key or secrets.passphrase and secrets.salt")
		}
		return fn(ctx, a.vault)
	})
}
