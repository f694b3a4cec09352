package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"talok/internal/app"
	"talok/internal/domain"
	"talok/internal/export"
	"talok/internal/shared"
	"talok/internal/wizard"
)

func exportCmd(cfg shared.Config) *cobra.Command {
	var (
		format string
		owner  string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export <properties|leases|invoices>",
		Short: "Export records from the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			who := domain.Identity{Role: domain.RoleAdmin}
			if owner != "" {
				id, err := uuid.Parse(owner)
				if err != nil {
					return fmt.Errorf("--owner: %w", err)
				}
				who = domain.Identity{UserID: id, Role: domain.RoleOwner}
			}

			wizCfg, err := loadWizardConfig(cfg.WizardConfig)
			if err != nil {
				return err
			}
			store, db, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			opt := app.WithDBTimeout(cfg.DBTimeout)
			props := app.NewPropertyService(store, nil, 0, wizCfg, opt)
			svc := app.NewExportService(props, app.NewLeaseService(store, store, opt), app.NewInvoiceService(store, store, opt))

			var w io.Writer = cmd.OutOrStdout()
			if out == "" {
				out = args[0] + "-" + time.Now().Format("20060102") + f.Extension()
			}
			if out != "-" {
				file, err := os.Create(out)
				if err != nil {
					return err
				}
				defer file.Close()
				w = file
			}
			if err := svc.Export(cmd.Context(), who, args[0], f, w); err != nil {
				return fmt.Errorf("export %s: %w", args[0], err)
			}
			if out != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "csv, xls, json or html")
	cmd.Flags().StringVar(&owner, "owner", "", "restrict to one owner's records (default: all, as admin)")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file, - for stdout (default: <entity>-<date>.<ext>)")
	return cmd
}

func loadWizardConfig(path string) (*wizard.Config, error) {
	if path == "" {
		return wizard.Default()
	}
	return wizard.Load(path)
}
