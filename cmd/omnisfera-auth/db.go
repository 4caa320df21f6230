package main

import (
	"fmt"
	"os"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/spf13/cobra"

	auth "github.com/goliatone/go-omnisfera"
)

func buildMigrateCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the workspace, member and admin tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := auth.NewLogger("omnisfera.migrate", os.Stderr)

			opts, err := loadOptions(*configFile, logger)
			if err != nil {
				return err
			}

			db, err := openDB(opts)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := auth.Migrate(cmd.Context(), db); err != nil {
				return err
			}

			logger.Info("migrations applied", "dsn", opts.DatabaseDSN)
			return nil
		},
	}
}

func buildSeedCmd(configFile *string) *cobra.Command {
	var workspaceName, masterEmail, adminEmail, password string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a workspace with its master member and a platform admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := auth.NewLogger("omnisfera.seed", os.Stderr)

			opts, err := loadOptions(*configFile, logger)
			if err != nil {
				return err
			}

			db, err := openDB(opts)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			if err := auth.Migrate(ctx, db); err != nil {
				return err
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			// ids derive from names so repeated seeds collide instead of duplicating
			wsID, err := hashid.NewUUID("workspace:" + workspaceName)
			if err != nil {
				return err
			}
			masterID, err := hashid.NewUUID("member:" + masterEmail)
			if err != nil {
				return err
			}
			adminID, err := hashid.NewUUID("admin:" + adminEmail)
			if err != nil {
				return err
			}

			members := auth.NewMembersRepository(db)

			ws, err := members.CreateWorkspace(ctx, &auth.Workspace{
				ID:     wsID,
				Name:   workspaceName,
				Active: true,
			})
			if err != nil {
				return err
			}

			master := &auth.WorkspaceMember{
				ID:           masterID,
				WorkspaceID:  ws.ID,
				Nome:         "Master",
				Email:        masterEmail,
				PasswordHash: hash,
				Role:         auth.RoleMaster,
				Active:       true,
			}
			master.SetPermissions(auth.PermissionSet{
				auth.CanEstudantes: true,
				auth.CanPEI:        true,
				auth.CanPAEE:       true,
				auth.CanPGI:        true,
				auth.CanHub:        true,
				auth.CanDiario:     true,
				auth.CanAvaliacao:  true,
				auth.CanGestao:     true,
				auth.CanConfig:     true,
			})
			if _, err := members.CreateMember(ctx, master); err != nil {
				return err
			}

			if _, err := members.CreatePlatformAdmin(ctx, &auth.PlatformAdmin{
				ID:           adminID,
				Nome:         "Platform Admin",
				Email:        adminEmail,
				PasswordHash: hash,
				Active:       true,
			}); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "workspace %s\nmaster    %s\nadmin     %s\n", ws.ID, masterID, adminID)
			return nil
		},
	}

	cmd.Flags().StringVar(&workspaceName, "workspace", "Escola Demo", "workspace name")
	cmd.Flags().StringVar(&masterEmail, "master-email", "master@omnisfera.local", "master member email")
	cmd.Flags().StringVar(&adminEmail, "admin-email", "admin@omnisfera.local", "platform admin email")
	cmd.Flags().StringVar(&password, "password", "", "password for both accounts")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func buildHashPasswordCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash of a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				hash string
				err  error
			)
			if cost > 0 {
				hash, err = auth.HashPasswordWithCost(args[0], cost)
			} else {
				hash, err = auth.HashPassword(args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().IntVar(&cost, "cost", 0, "bcrypt cost (default: library default)")

	return cmd
}
