package cmd

import (
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/registration/internal/domain/registrations"
	"github.com/Togather-Foundation/registration/internal/roster"
	"github.com/Togather-Foundation/registration/internal/storage/postgres"
)

func newRosterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Legacy roster file tools",
	}

	var (
		output   string
		noHeader bool
	)
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the database registrations as a legacy roster file",
		Long: `Export every registration in the database as tab-separated lines in the
legacy roster format, oldest first. The result can replace the roster file
kept in the GitHub repository.

Examples:
  server roster export > atletas.tsv
  server roster export --output public/atletas.tsv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if !cfg.StoreConfigured() {
				return errNoDatabase
			}

			ctx := cmd.Context()
			pool, err := postgres.NewPool(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			defer pool.Close()
			repo, err := postgres.NewRepository(pool)
			if err != nil {
				return err
			}
			regs, err := repo.Registrations().List(ctx, registrations.Filters{})
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			if err := writeRoster(w, regs, !noHeader); err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d registrations to %s\n", len(regs), output)
			}
			return nil
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	export.Flags().BoolVar(&noHeader, "no-header", false, "omit the header line")

	cmd.AddCommand(export)
	return cmd
}

// writeRoster renders regs, which the store lists newest first, in file
// order.
func writeRoster(w io.Writer, regs []registrations.Registration, header bool) error {
	if header {
		if _, err := io.WriteString(w, roster.Header+"\n"); err != nil {
			return err
		}
	}
	for _, r := range slices.Backward(regs) {
		if _, err := io.WriteString(w, roster.FormatLine(rosterEntry(r))); err != nil {
			return err
		}
	}
	return nil
}

func rosterEntry(r registrations.Registration) roster.Entry {
	e := roster.Entry{
		Name:  r.Name,
		Email: r.Email,
		Phone: r.Phone,
		Shirt: "não",
		Date:  r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.WantsShirt {
		e.Shirt = "sim"
	}
	if r.ShirtSize != nil {
		e.Size = string(*r.ShirtSize)
	}
	return e
}
