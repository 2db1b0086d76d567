package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"medmatch/internal/doctor"
	"medmatch/internal/ingest"
	"medmatch/internal/platform/postgres"
)

func migrateCmd(load loader) *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or with --down, roll back) database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer log.Sync()
			return postgres.Migrate(cfg.Database.Migrations, cfg.Database.URL, down, log)
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back all migrations")
	return cmd
}

func ingestCmd(load loader) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Replace the doctor directory with a scraped JSON listing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := postgres.Open(cmd.Context(), cfg.Database.URL, log)
			if err != nil {
				return err
			}
			defer db.Close()

			specialties := loadSpecialties(cfg.Specialty.Synonyms, log)
			n, err := ingest.NewLoader(doctor.NewRepository(db), specialties, log).Run(cmd.Context(), file)
			if err != nil {
				return err
			}
			log.Info("ingest complete", zap.Int("doctors", n))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "BD Doctor_Search.json", "listing to load")
	return cmd
}
