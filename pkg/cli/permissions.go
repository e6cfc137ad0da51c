package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/stockyard/pkg/gateway"
	"github.com/platinummonkey/stockyard/pkg/permmatrix"
	"github.com/spf13/cobra"
)

func newPermissionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "permissions",
		Aliases: []string{"perms"},
		Short:   "View and edit the role permission matrix",
	}
	cmd.AddCommand(newPermissionsShowCmd(a), newPermissionsToggleCmd(a))
	return cmd
}

func newPermissionsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the permission matrix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withEditor(cmd, func(_ context.Context, ed *permmatrix.Editor) error {
				return permmatrix.Render(cmd.OutOrStdout(), ed.View(), ed.Summary())
			})
		},
	}
}

func newPermissionsToggleCmd(a *app) *cobra.Command {
	var (
		roles []int64
		perms []int64
		save  bool
	)

	cmd := &cobra.Command{
		Use:   "toggle",
		Short: "Flip role/permission cells and optionally save them",
		Long: `Flip one or more cells of the permission matrix. The n-th --role is paired
with the n-th --permission. Without --save the edits are only displayed.`,
		Example: "  stockyard permissions toggle --role 3 --permission 1 --role 3 --permission 4 --save",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(roles) == 0 {
				return fmt.Errorf("at least one --role and --permission pair is required")
			}
			if len(roles) != len(perms) {
				return fmt.Errorf("got %d --role and %d --permission flags, they must pair up", len(roles), len(perms))
			}

			return a.withEditor(cmd, func(ctx context.Context, ed *permmatrix.Editor) error {
				for i := range roles {
					granted, err := ed.Toggle(roles[i], perms[i])
					if err != nil {
						return err
					}
					a.logger.WithFields(map[string]interface{}{
						"role_id":       roles[i],
						"permission_id": perms[i],
						"granted":       granted,
					}).Debug("cell toggled")
				}

				if save {
					if err := ed.Save(ctx); err != nil {
						return err
					}
					fmt.Fprintln(cmd.ErrOrStderr(), "Permissions saved")
				}
				return permmatrix.Render(cmd.OutOrStdout(), ed.View(), ed.Summary())
			})
		},
	}

	cmd.Flags().Int64SliceVarP(&roles, "role", "r", nil, "role id (repeatable)")
	cmd.Flags().Int64SliceVarP(&perms, "permission", "p", nil, "permission id (repeatable)")
	cmd.Flags().BoolVar(&save, "save", false, "submit the edits as one bulk update")
	return cmd
}

// withEditor opens a permission editor over a fresh client. A partial load
// is reported and the command continues with what did load.
func (a *app) withEditor(cmd *cobra.Command, fn func(ctx context.Context, ed *permmatrix.Editor) error) error {
	return a.withClient(cmd, func(ctx context.Context, c *gateway.Client) error {
		ed := permmatrix.NewEditor(permmatrix.NewGatewayAPI(c), permmatrix.WithLogger(a.logger))
		defer ed.Close()

		if err := ed.Open(ctx); err != nil {
			var loadErrs *permmatrix.LoadErrors
			if !errors.As(err, &loadErrs) {
				return err
			}
			a.logger.WithError(err).Warn("permission matrix is incomplete")
		}
		return fn(ctx, ed)
	})
}
