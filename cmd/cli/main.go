package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	fileRepo "github.com/iho/minibank/internal/adapter/repository/file"
	postgresRepo "github.com/iho/minibank/internal/adapter/repository/postgres"
	"github.com/iho/minibank/internal/domain"
	"github.com/iho/minibank/internal/infrastructure/config"
	"github.com/iho/minibank/internal/infrastructure/postgres"
	"github.com/iho/minibank/internal/infrastructure/retry"
	"github.com/iho/minibank/internal/usecase"
)

var bcryptGenerate = bcrypt.GenerateFromPassword

// options holds the persistent flags.
type options struct {
	store       string
	path        string
	databaseURL string
	output      string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "minibank-cli",
		Short:         "minibank operator tool",
		Long:          `Inspect and administer the minibank account store directly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.store, "store", envOr("STORE_BACKEND", config.StoreFile), "Store backend: file or postgres")
	rootCmd.PersistentFlags().StringVar(&opts.path, "path", envOr("STORE_PATH", "accounts.json"), "Path of the JSON store file")
	rootCmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "Output format: table or json")

	rootCmd.AddCommand(accountsCmd(opts), adminCmd(opts), migrateCmd(opts), hashPasswordCmd())

	return rootCmd
}

func accountsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Account operations",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts with role and balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), opts, func(store usecase.AccountStore) error {
				accounts, err := usecase.NewReportUseCase(store).ListAccounts(cmd.Context())
				if err != nil {
					return err
				}
				return printAccounts(cmd.OutOrStdout(), opts.output, accounts)
			})
		},
	}

	statementsCmd := &cobra.Command{
		Use:   "statements <username>",
		Short: "Print a user's transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), opts, func(store usecase.AccountStore) error {
				statements, err := usecase.NewReportUseCase(store).Statements(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if opts.output == "json" {
					return printJSON(cmd.OutOrStdout(), statements)
				}
				for _, line := range statements {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(
		listCmd,
		statementsCmd,
		roleCmd(opts, "promote", "Grant the admin role", domain.RoleAdmin),
		roleCmd(opts, "demote", "Revoke the admin role", domain.RoleCustomer),
	)
	return cmd
}

func roleCmd(opts *options, use, short string, role domain.Role) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <username>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), opts, func(store usecase.AccountStore) error {
				acc, err := newAuthUseCase(store).SetRole(cmd.Context(), args[0], role)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", acc.Username, acc.Role)
				return nil
			})
		},
	}
}

func adminCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin account operations",
	}

	var password string
	createCmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create the admin account, or promote it if it exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return errors.New("--password is required")
			}
			return withStore(cmd.Context(), opts, func(store usecase.AccountStore) error {
				acc, err := newAuthUseCase(store).EnsureAdmin(cmd.Context(), args[0], password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "admin account %s ready\n", acc.Username)
				return nil
			})
		},
	}
	createCmd.Flags().StringVar(&password, "password", "", "Password for a newly created admin")

	cmd.AddCommand(createCmd)
	return cmd
}

func migrateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema",
	}

	run := func(use, short string, fn func(cmd *cobra.Command, m *postgres.Migrator) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if opts.databaseURL == "" {
					return errors.New("--database-url is required for migrations")
				}
				m, err := postgres.NewMigrator(opts.databaseURL, zerolog.New(cmd.ErrOrStderr()))
				if err != nil {
					return err
				}
				defer m.Close()
				return fn(cmd, m)
			},
		}
	}

	cmd.AddCommand(
		run("up", "Apply pending migrations", func(_ *cobra.Command, m *postgres.Migrator) error {
			return m.Up()
		}),
		run("down", "Roll back the last migration", func(_ *cobra.Command, m *postgres.Migrator) error {
			return m.Down()
		}),
		run("version", "Print the applied schema version", func(cmd *cobra.Command, m *postgres.Migrator) error {
			version, dirty, ok, err := m.Version()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", version, dirty)
			return nil
		}),
	)
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash of a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcryptGenerate([]byte(args[0]), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
}

func newAuthUseCase(store usecase.AccountStore) *usecase.AuthUseCase {
	return usecase.NewAuthUseCase(usecase.AuthConfig{
		Store:   store,
		Retrier: retry.NewRetrier(),
		Logger:  zerolog.Nop(),
	})
}

// withStore opens the selected backend for the duration of fn.
func withStore(ctx context.Context, opts *options, fn func(usecase.AccountStore) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch opts.store {
	case config.StoreFile:
		return fn(fileRepo.NewStore(opts.path))
	case config.StorePostgres:
		if opts.databaseURL == "" {
			return errors.New("--database-url is required for the postgres store")
		}
		if err := postgres.RunMigrations(opts.databaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		pool, err := postgres.NewPool(ctx, opts.databaseURL, 2, 1)
		if err != nil {
			return err
		}
		defer pool.Close()
		return fn(postgresRepo.NewStore(pool))
	default:
		return fmt.Errorf("unknown store %q", opts.store)
	}
}

func printAccounts(w io.Writer, output string, accounts []*domain.Account) error {
	if output == "json" {
		type row struct {
			Username     string `json:"username"`
			Role         string `json:"role"`
			Balance      string `json:"balance"`
			Transactions int    `json:"transactions"`
		}
		rows := make([]row, 0, len(accounts))
		for _, acc := range accounts {
			rows = append(rows, row{
				Username:     acc.Username,
				Role:         string(acc.Role),
				Balance:      acc.Balance.StringFixed(2),
				Transactions: len(acc.Transactions),
			})
		}
		return printJSON(w, rows)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tROLE\tBALANCE\tTRANSACTIONS")
	for _, acc := range accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", truncate(acc.Username, 32), acc.Role, domain.FormatMoney(acc.Balance), len(acc.Transactions))
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
