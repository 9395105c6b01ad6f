package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/warp/time-tracking/auth"
	"github.com/warp/time-tracking/clock"
	"github.com/warp/time-tracking/config"
	"github.com/warp/time-tracking/tracking"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage accounts",
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	RunE: withStore(false, func(ctx context.Context, cmd *cobra.Command, _ *config.Config, _ *logrus.Entry, st tracking.TxStore) error {
		username, _ := cmd.Flags().GetString("username")
		staff, _ := cmd.Flags().GetBool("staff")
		username = strings.TrimSpace(username)
		if username == "" {
			return errors.New("--username is required")
		}

		if _, err := st.GetUserByUsername(ctx, username); err == nil {
			return fmt.Errorf("user %q already exists", username)
		} else if !tracking.IsNotFound(err) {
			return err
		}

		u := tracking.User{
			ID:        tracking.UserID(tracking.NewID()),
			Username:  username,
			IsStaff:   staff,
			CreatedAt: clock.NewSystem(time.UTC).Now(),
		}
		if err := st.SaveUser(ctx, u); err != nil {
			return err
		}
		fmt.Printf("Created %s %s (%s)\n", role(u), u.Username, u.ID)
		return nil
	}),
}

var usersListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List accounts",
	RunE: withStore(false, func(ctx context.Context, _ *cobra.Command, _ *config.Config, _ *logrus.Entry, st tracking.TxStore) error {
		users, err := st.ListUsers(ctx, tracking.UserFilter{})
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Println("No users found. Use 'server users create --username NAME' to add one.")
			return nil
		}

		fmt.Printf("%-36s %-24s %-6s %s\n", "ID", "USERNAME", "ROLE", "CREATED")
		fmt.Println(strings.Repeat("-", 90))
		for _, u := range users {
			fmt.Printf("%-36s %-24s %-6s %s\n", u.ID, u.Username, role(u), u.CreatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	}),
}

var usersStaffCmd = &cobra.Command{
	Use:   "staff",
	Short: "Grant or revoke the staff flag",
	Long:  "Changes apply to existing tokens immediately since every request reloads the user.",
	RunE: withStore(false, func(ctx context.Context, cmd *cobra.Command, _ *config.Config, _ *logrus.Entry, st tracking.TxStore) error {
		username, _ := cmd.Flags().GetString("username")
		staff, _ := cmd.Flags().GetBool("staff")

		u, err := st.GetUserByUsername(ctx, username)
		if err != nil {
			return err
		}
		u.IsStaff = staff
		if err := st.SaveUser(ctx, *u); err != nil {
			return err
		}
		fmt.Printf("%s is now %s\n", u.Username, role(*u))
		return nil
	}),
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign a bearer token for a user",
	Long:  "Signs an HS256 token with JWT_SECRET. Intended for development and scripts.",
	RunE: withStore(true, func(ctx context.Context, cmd *cobra.Command, cfg *config.Config, log *logrus.Entry, st tracking.TxStore) error {
		username, _ := cmd.Flags().GetString("username")

		u, err := st.GetUserByUsername(ctx, username)
		if err != nil {
			return err
		}
		issuer := auth.NewIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL, clock.NewSystem(cfg.Location))
		token, expiresAt, err := issuer.Issue(*u)
		if err != nil {
			return err
		}
		fmt.Println(token)
		log.WithFields(logrus.Fields{
			"user":       u.Username,
			"expires_at": expiresAt.Format("2006-01-02 15:04:05 MST"),
		}).Info("token issued")
		return nil
	}),
}

func init() {
	usersCreateCmd.Flags().String("username", "", "account name")
	usersCreateCmd.Flags().Bool("staff", false, "create a staff account")

	usersStaffCmd.Flags().String("username", "", "account name")
	usersStaffCmd.Flags().Bool("staff", true, "staff flag to set")
	_ = usersStaffCmd.MarkFlagRequired("username")

	tokenCmd.Flags().String("username", "", "account to sign the token for")
	_ = tokenCmd.MarkFlagRequired("username")

	usersCmd.AddCommand(usersCreateCmd)
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersStaffCmd)
}

// withStore runs fn with loaded configuration and an open store. Logs go
// to stderr so stdout carries only command output.
func withStore(needAuth bool, fn func(context.Context, *cobra.Command, *config.Config, *logrus.Entry, tracking.TxStore) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd, needAuth)
		if err != nil {
			return err
		}
		logger := cfg.NewLogger()
		logger.SetOutput(os.Stderr)
		log := logger.WithField("command", cmd.Name())

		ctx := cmd.Context()
		st, closeStore, err := openStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeStore()
		return fn(ctx, cmd, cfg, log, st)
	}
}

func role(u tracking.User) string {
	if u.IsStaff {
		return "staff"
	}
	return "member"
}
