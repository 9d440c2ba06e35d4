package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inovacc/pagewright/internal/auth"
)

var claimsCmd = &cobra.Command{
	Use:   "claims",
	Short: "Manage custom claims on user accounts",
	Long: `Custom claims travel with every verified token. The admin panel and the
publish endpoint only accept users with admin=true or role=admin.

Values are typed: true/false become booleans, numbers become numbers and
JSON objects or arrays are parsed; anything else is stored as a string.

Examples:
  pagewright claims set editor@example.com role editor
  pagewright claims remove editor@example.com role
  pagewright claims get editor@example.com
  pagewright claims list admin
  pagewright claims admin editor@example.com
  pagewright claims unadmin editor@example.com`,
}

var claimsSetCmd = &cobra.Command{
	Use:   "set <email> <claim> <value>",
	Short: "Set one claim",
	Args:  cobra.ExactArgs(3),
	RunE: withUsers(func(cmd *cobra.Command, users *auth.Local, args []string) error {
		claims, err := users.SetClaim(cmd.Context(), args[0], args[1], parseClaimValue(args[2]))
		if err != nil {
			return err
		}

		printf("Claim %s set for %s\n", args[1], args[0])
		printf("Claims: %s\n", formatClaims(claims))

		return nil
	}),
}

var claimsRemoveCmd = &cobra.Command{
	Use:     "remove <email> <claim>",
	Short:   "Remove one claim",
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(2),
	RunE: withUsers(func(cmd *cobra.Command, users *auth.Local, args []string) error {
		claims, removed, err := users.RemoveClaim(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		if !removed {
			printf("%s has no claim %s\n", args[0], args[1])

			return nil
		}

		printf("Claim %s removed from %s\n", args[1], args[0])
		printf("Claims: %s\n", formatClaims(claims))

		return nil
	}),
}

var claimsGetCmd = &cobra.Command{
	Use:   "get <email>",
	Short: "Show a user's claims",
	Args:  cobra.ExactArgs(1),
	RunE: withUsers(func(cmd *cobra.Command, users *auth.Local, args []string) error {
		u, err := users.GetUser(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		printf("Email:  %s\n", u.Email)
		printf("UID:    %s\n", u.UID)
		printf("Admin:  %t\n", auth.HasAdminClaim(u.Claims))
		printf("Claims: %s\n", formatClaims(u.Claims))

		return nil
	}),
}

var claimsListCmd = &cobra.Command{
	Use:   "list [claim] [value]",
	Short: "List users carrying a claim",
	Long: `List users carrying a claim, optionally with a given value. Without
arguments every user with at least one claim is listed.`,
	Aliases: []string{"ls"},
	Args:    cobra.MaximumNArgs(2),
	RunE: withUsers(func(cmd *cobra.Command, users *auth.Local, args []string) error {
		var (
			name  string
			value any
		)

		if len(args) > 0 {
			name = args[0]
		}

		if len(args) > 1 {
			value = parseClaimValue(args[1])
		}

		list, err := users.ListUsersWithClaim(cmd.Context(), name, value)
		if err != nil {
			return err
		}

		if len(list) == 0 {
			printf("No matching users.\n")

			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "EMAIL\tCLAIMS")

		for _, u := range list {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", u.Email, formatClaims(u.Claims))
		}

		return w.Flush()
	}),
}

var claimsAdminCmd = &cobra.Command{
	Use:   "admin <email>",
	Short: "Grant the admin claim",
	Args:  cobra.ExactArgs(1),
	RunE: withUsers(func(cmd *cobra.Command, users *auth.Local, args []string) error {
		claims, err := users.GrantAdmin(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		printf("%s is now an admin\n", args[0])
		printf("Claims: %s\n", formatClaims(claims))

		return nil
	}),
}

var claimsUnadminCmd = &cobra.Command{
	Use:   "unadmin <email>",
	Short: "Revoke the admin claim",
	Args:  cobra.ExactArgs(1),
	RunE: withUsers(func(cmd *cobra.Command, users *auth.Local, args []string) error {
		claims, err := users.RevokeAdmin(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		printf("%s is no longer an admin\n", args[0])
		printf("Claims: %s\n", formatClaims(claims))

		return nil
	}),
}

func init() {
	rootCmd.AddCommand(claimsCmd)
	claimsCmd.AddCommand(claimsSetCmd, claimsRemoveCmd, claimsGetCmd, claimsListCmd, claimsAdminCmd, claimsUnadminCmd)
}

// withUsers opens the user database around fn.
func withUsers(fn func(*cobra.Command, *auth.Local, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		users, err := openUsers(cfg)
		if err != nil {
			return err
		}

		defer func() { _ = users.Close() }()

		return fn(cmd, users, args)
	}
}
