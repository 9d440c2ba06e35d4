package cmd

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/inovacc/pagewright/internal/auth"
)

var userPassword string

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage admin panel accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create <email> [password]",
	Short: "Create an admin user, or promote an existing one",
	Long: `Create an account and give it the admin claim (admin=true, role=admin).

If the account already exists its claims are set to admin and, when a
password is given, the password is replaced.

The password is read from the argument, --password, PAGEWRIGHT_PASSWORD or
stdin, in that order.

Examples:
  pagewright user create admin@example.com
  pagewright user create admin@example.com s3cret!`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runUserCreate,
}

var userListJSON bool

var userListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List accounts and their claims",
	Aliases: []string{"ls"},
	Args:    cobra.NoArgs,
	RunE:    runUserList,
}

var userDeleteCmd = &cobra.Command{
	Use:     "delete <email>",
	Short:   "Delete an account",
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(1),
	RunE:    runUserDelete,
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd <email> [password]",
	Short: "Replace an account's password",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runUserPasswd,
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd, userListCmd, userDeleteCmd, userPasswdCmd)

	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "Password (at least 6 characters)")
	userPasswdCmd.Flags().StringVar(&userPassword, "password", "", "New password (at least 6 characters)")
	userListCmd.Flags().BoolVar(&userListJSON, "json", false, "Output as JSON")
}

func passwordArg(args []string) (string, error) {
	if len(args) > 1 {
		return args[1], nil
	}

	return readPassword(userPassword)
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	email := args[0]

	password, err := passwordArg(args)
	if err != nil {
		return err
	}

	users, err := openUsers(cfg)
	if err != nil {
		return err
	}

	defer func() { _ = users.Close() }()

	ctx := cmd.Context()

	u, err := users.CreateUser(ctx, email, password)

	switch {
	case err == nil:
		printf("Created user %s (uid %s)\n", u.Email, u.UID)
	case errors.Is(err, auth.ErrUserExists):
		printf("User %s already exists, updating claims\n", email)

		if password != "" {
			if err := users.SetPassword(ctx, email, password); err != nil {
				logger.Warn("password not updated", "email", email, "error", err)
			} else {
				printf("Password updated\n")
			}
		}
	default:
		return err
	}

	claims, err := users.GrantAdmin(ctx, email)
	if err != nil {
		return err
	}

	printf("Claims: %s\n", formatClaims(claims))

	return nil
}

func runUserList(cmd *cobra.Command, _ []string) error {
	users, err := openUsers(cfg)
	if err != nil {
		return err
	}

	defer func() { _ = users.Close() }()

	list, err := users.ListUsers(cmd.Context())
	if err != nil {
		return err
	}

	if userListJSON {
		type item struct {
			Email     string         `json:"email"`
			UID       string         `json:"uid"`
			Admin     bool           `json:"admin"`
			Claims    map[string]any `json:"claims,omitempty"`
			CreatedAt string         `json:"created_at"`
		}

		items := make([]item, 0, len(list))
		for _, u := range list {
			items = append(items, item{
				Email:     u.Email,
				UID:       u.UID,
				Admin:     auth.HasAdminClaim(u.Claims),
				Claims:    u.Claims,
				CreatedAt: u.CreatedAt.Format(time.RFC3339),
			})
		}

		return printJSON(items)
	}

	if len(list) == 0 {
		printf("No users.\n")
		printf("\nCreate one with: pagewright user create <email>\n")

		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "EMAIL\tADMIN\tCLAIMS\tLAST SIGN-IN")

	for _, u := range list {
		last := "never"
		if !u.LastSignIn.IsZero() {
			last = humanize.Time(u.LastSignIn)
		}

		admin := ""
		if auth.HasAdminClaim(u.Claims) {
			admin = "*"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.Email, admin, formatClaims(u.Claims), last)
	}

	return w.Flush()
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	users, err := openUsers(cfg)
	if err != nil {
		return err
	}

	defer func() { _ = users.Close() }()

	if err := users.DeleteUser(cmd.Context(), args[0]); err != nil {
		return err
	}

	printf("Deleted user %s\n", args[0])

	return nil
}

func runUserPasswd(cmd *cobra.Command, args []string) error {
	password, err := passwordArg(args)
	if err != nil {
		return err
	}

	users, err := openUsers(cfg)
	if err != nil {
		return err
	}

	defer func() { _ = users.Close() }()

	if err := users.SetPassword(cmd.Context(), args[0], password); err != nil {
		return err
	}

	printf("Password updated for %s\n", args[0])

	return nil
}

// formatClaims prints claims as sorted key=value pairs.
func formatClaims(claims map[string]any) string {
	if len(claims) == 0 {
		return "{}"
	}

	pairs := make([]string, 0, len(claims))
	for k, v := range claims {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
	}

	slices.Sort(pairs)

	return "{" + strings.Join(pairs, ", ") + "}"
}
