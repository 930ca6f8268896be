package main

import (
	"encoding/json"
	"fmt"
	"os"

	"project-tracker-api/internal/repository/postgres"
	"project-tracker-api/internal/service"
	"project-tracker-api/pkg/importer"

	"github.com/spf13/cobra"
)

var (
	importMapping   string
	importDryRun    bool
	importMaxErrors int
)

func init() {
	importCmd.Flags().StringVar(&importMapping, "mapping", "", "column mapping YAML (default: IMPORT_MAPPING or the built-in mapping)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "validate rows without writing")
	importCmd.Flags().IntVar(&importMaxErrors, "max-errors", importer.DefaultMaxErrors, "stop after this many failed rows")
}

var importCmd = &cobra.Command{
	Use:   "import <file.xlsx>",
	Short: "Import projects from an Excel workbook",
	Long: `Create one project per workbook row and assign the managers listed by
employee id. The summary is printed as JSON.

Examples:
  tracker import projects.xlsx --dry-run
  tracker import projects.xlsx --mapping configs/projects.yaml --max-errors 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, flush, err := setup()
		if err != nil {
			return err
		}
		defer flush()

		path := importMapping
		if path == "" {
			path = cfg.ImportMapping
		}
		mapping, err := importer.LoadMapping(path)
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		pool, err := postgres.NewPool(cmd.Context(), cfg.DBDSN, cfg.DBMaxConns)
		if err != nil {
			return err
		}
		store := postgres.New(pool)
		defer store.Close()

		im, err := importer.New(service.NewProjectService(store, nil, logger), mapping, logger)
		if err != nil {
			return err
		}
		sum, impErr := im.Import(cmd.Context(), f, importer.Options{DryRun: importDryRun, MaxErrors: importMaxErrors})

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(sum); err != nil {
			return err
		}
		if impErr != nil {
			return fmt.Errorf("import failed: %w", impErr)
		}
		return nil
	},
}
