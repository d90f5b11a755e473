package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goliatone/go-print"
	accounts "github.com/ia-nocode/user-roles-v4"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	envFiles []string
	email    string
	password string
	json     bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "console",
		Short: "Administer accounts across the identity provider and the profile store",
		Long: `console creates, updates and deletes user accounts. Every account is an
identity in the configured auth provider plus a profile record in the users table.

Example usage:
  console serve                                  # Start the JSON API
  console users list --email admin@example.com   # List profile records
  console users reconcile --json                 # Report orphaned records`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringSliceVar(&flags.envFiles, "env", nil, "env files to load (default .env)")

	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newUsersCmd(flags))
	return root
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := bootstrap(ctx, flags.envFiles)
			if err != nil {
				return err
			}
			defer app.Close()

			if app.config.Persistence.Debug {
				fmt.Println(print.MaybeHighlightJSON(app.config))
			}

			sweepCtx, stopSweep := context.WithCancel(ctx)
			defer stopSweep()
			go sweepSessions(sweepCtx, app, time.Minute)

			srv := newHTTPServer(app)
			go func() {
				if err := srv.Serve(app.config.Server.Address); err != nil {
					app.GetLogger("console").Error("server stopped: %v", err)
				}
			}()

			WaitExitSignal()

			shutdownCtx, cancel := shutdownContext(app.config.Server)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newUsersCmd(flags *globalFlags) *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}

	users.PersistentFlags().StringVar(&flags.email, "email", os.Getenv("CONSOLE_ADMIN_EMAIL"), "administrator email")
	users.PersistentFlags().StringVar(&flags.password, "password", os.Getenv("CONSOLE_ADMIN_PASSWORD"), "administrator password")
	users.PersistentFlags().BoolVar(&flags.json, "json", false, "output as JSON")

	users.AddCommand(newUsersListCmd(flags))
	users.AddCommand(newUsersCreateCmd(flags))
	users.AddCommand(newUsersUpdateCmd(flags))
	users.AddCommand(newUsersDeleteCmd(flags))
	users.AddCommand(newUsersReconcileCmd(flags))
	return users
}

func newUsersListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List profile records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSignedIn(cmd.Context(), flags, func(ctx context.Context, app *App) error {
				profiles, n := app.console.ListUsers(ctx)
				if n != nil {
					return report(flags, *n)
				}
				if flags.json {
					fmt.Println(print.MaybeHighlightJSON(profiles))
					return nil
				}
				return renderProfiles(os.Stdout, profiles, app.config.Console.MobileRegion)
			})
		},
	}
}

func newUsersCreateCmd(flags *globalFlags) *cobra.Command {
	req := accounts.CreateAccountRequest{}
	var role string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an identity and its profile record",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Role = accounts.Role(role)
			return withSignedIn(cmd.Context(), flags, func(ctx context.Context, app *App) error {
				return report(flags, app.console.CreateUser(ctx, req))
			})
		},
	}

	cmd.Flags().StringVar(&req.Email, "user-email", "", "email of the new user")
	cmd.Flags().StringVar(&req.Password, "user-password", "", "initial password of the new user")
	cmd.Flags().StringVar(&role, "role", string(accounts.RoleUser), "role: admin, editor or user")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&req.Mobile, "mobile", "", "mobile number")
	return cmd
}

func newUsersUpdateCmd(flags *globalFlags) *cobra.Command {
	var email, firstName, lastName, mobile, role, newPassword string

	cmd := &cobra.Command{
		Use:   "update <record-id>",
		Short: "Update a profile record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := accounts.ProfilePatch{}
			changed := cmd.Flags().Changed
			if changed("user-email") {
				patch.Email = accounts.StringPtr(email)
			}
			if changed("first-name") {
				patch.FirstName = accounts.StringPtr(firstName)
			}
			if changed("last-name") {
				patch.LastName = accounts.StringPtr(lastName)
			}
			if changed("mobile") {
				patch.Mobile = accounts.StringPtr(mobile)
			}
			if changed("role") {
				patch.Role = accounts.RolePtr(accounts.Role(role))
			}

			req := accounts.UpdateAccountRequest{
				RecordID:    args[0],
				Patch:       patch,
				NewPassword: newPassword,
			}
			return withSignedIn(cmd.Context(), flags, func(ctx context.Context, app *App) error {
				return report(flags, app.console.UpdateUser(ctx, req))
			})
		},
	}

	cmd.Flags().StringVar(&email, "user-email", "", "new email")
	cmd.Flags().StringVar(&firstName, "first-name", "", "new first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "new last name")
	cmd.Flags().StringVar(&mobile, "mobile", "", "new mobile number")
	cmd.Flags().StringVar(&role, "role", "", "new role")
	cmd.Flags().StringVar(&newPassword, "new-password", "", "new password (not supported for other users)")
	return cmd
}

func newUsersDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <record-id>",
		Short: "Delete a profile record",
		Long: `Delete removes the profile record only. The identity stays in the auth
provider and shows up in "users reconcile".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSignedIn(cmd.Context(), flags, func(ctx context.Context, app *App) error {
				return report(flags, app.console.DeleteUser(ctx, args[0]))
			})
		},
	}
}

func newUsersReconcileCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Report profile records and identities that do not match",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSignedIn(cmd.Context(), flags, func(ctx context.Context, app *App) error {
				r, n := app.console.Reconcile(ctx)
				if !n.OK() {
					return report(flags, n)
				}
				if flags.json {
					fmt.Println(print.MaybeHighlightJSON(r))
					return nil
				}
				if err := renderReport(os.Stdout, r); err != nil {
					return err
				}
				return report(flags, n)
			})
		},
	}
}

// withSignedIn bootstraps the app, signs the administrator in and runs fn.
func withSignedIn(ctx context.Context, flags *globalFlags, fn func(ctx context.Context, app *App) error) error {
	app, err := bootstrap(ctx, flags.envFiles)
	if err != nil {
		return err
	}
	defer app.Close()

	if n := app.console.SignIn(ctx, flags.email, flags.password); !n.OK() {
		return report(flags, n)
	}
	defer app.console.SignOut(ctx)

	return fn(ctx, app)
}

var errNotification = errors.New("operation failed")

func report(flags *globalFlags, n accounts.Notification) error {
	if flags.json {
		fmt.Println(print.MaybeHighlightJSON(n))
	} else {
		printNotification(os.Stdout, n)
	}
	if n.Level == accounts.LevelError {
		return fmt.Errorf("%w: %s", errNotification, n.Kind)
	}
	return nil
}
