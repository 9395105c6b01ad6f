/*
main.go - Application entry point

PURPOSE:
  Command-line entry for the time-tracking service. Subcommands:

    serve          Run the HTTP API
    users create   Add an account (--staff for staff)
    users list     Print all accounts
    users staff    Grant or revoke the staff flag
    token          Sign a development bearer token for a user

CONFIGURATION:
  Settings come from flags, then environment, then the .env file named by
  --env-file, then defaults. See config/config.go for the keys.

EXAMPLES:
  # Run with a file database
  ./server serve --db-url ./data/tt.db

  # Create a member and get a token for it
  ./server users create --username alice
  JWT_SECRET=dev ./server token --username alice

  # In-memory database and cache
  ./server serve --db-driver memory

SEE ALSO:
  - serve.go: Server startup and graceful shutdown
  - deps.go: Store and cache selection
  - api/server.go: Router configuration
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/warp/time-tracking/config"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Employee time-tracking API",
	Long: `Tracks staff calendar events, employee vacations and check-in/check-out
work sessions, and reports working-time statistics over HTTP.`,
	SilenceUsage: true,
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"addr":       "HTTP_ADDR",
	"db-driver":  "DATABASE_DRIVER",
	"db-url":     "DATABASE_URL",
	"redis-addr": "REDIS_ADDR",
	"time-zone":  "TIME_ZONE",
	"log-level":  "LOG_LEVEL",
	"log-format": "LOG_FORMAT",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file to read (missing is fine)")
	pf.String("db-driver", "", "database driver: sqlite, postgres or memory")
	pf.String("db-url", "", "sqlite path or postgres connection string")
	pf.String("time-zone", "", "IANA time zone used to bucket days")
	pf.String("log-level", "", "log level")
	pf.String("log-format", "", "log format: text or json")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(tokenCmd)
}

// loadConfig resolves configuration for cmd. Commands that never touch
// tokens pass needAuth=false so JWT_SECRET may be unset.
func loadConfig(cmd *cobra.Command, needAuth bool) (*config.Config, error) {
	v := config.NewViper(envFile)
	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}

	cfg := config.Bind(v)
	validate := cfg.ValidateStorage
	if needAuth {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
