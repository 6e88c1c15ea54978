package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"medrecords/pkg/db"
	"medrecords/services/identity"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := db.Migrate(ctx, a.pool); err != nil {
				return err
			}
			version, err := db.MigrationStatus(ctx, a.pool)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
}

func newAdminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrator account operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newAdminCreateCommand())
	return cmd
}

func newAdminCreateCommand() *cobra.Command {
	var in identity.AdminInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.identity()
			if err != nil {
				return err
			}
			in.ConfirmPassword = in.Password
			admin, err := svc.CreateAdmin(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created administrator %s (%s)\n", admin.Username, admin.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Username, "username", "", "Login name")
	cmd.Flags().StringVar(&in.FullName, "full-name", "", "Name shown in audit trails")
	cmd.Flags().StringVar(&in.Email, "email", "", "Contact email")
	cmd.Flags().StringVar(&in.Password, "password", "", "Initial password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("full-name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
