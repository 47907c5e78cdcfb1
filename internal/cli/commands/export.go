package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/fieldmeta/internal/catalog"
	"github.com/conduit-lang/fieldmeta/internal/cli/ui"
	"github.com/conduit-lang/fieldmeta/internal/compiler/codegen"
)

// NewExportCommand creates the export command
func NewExportCommand() *cobra.Command {
	var (
		driver  string
		dsn     string
		list    bool
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the dispatch tables to the SQL catalog",
		Long: `Compile the sources under source_dir and store the dispatch tables in the
SQL catalog. Each export is stored in full under a new export id; earlier
exports are kept. Supported drivers: sqlite3, postgres (lib/pq) and pgx.`,
		Example: `  fieldmeta export
  fieldmeta export --driver pgx --dsn postgres://localhost/fieldmeta
  fieldmeta export --list`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			defer p.logger.Sync()

			if driver == "" {
				driver = p.cfg.Catalog.Driver
			}
			if dsn == "" {
				dsn = p.cfg.Catalog.DSN
				// sqlite files live next to fieldmeta.yaml
				if d, err := catalog.DialectFor(driver); err == nil && d == catalog.SQLite &&
					dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
					dsn = p.cfg.Path(dsn)
				}
			}

			ctx := cmd.Context()
			c, err := catalog.Open(ctx, driver, dsn, p.logger)
			if err != nil {
				return err
			}
			defer c.Close()

			if list {
				exports, err := c.Exports(ctx)
				if err != nil {
					return err
				}
				table := ui.NewTable(cmd.OutOrStdout(), noColor, "EXPORT", "EXPORTED AT", "SOURCE HASH")
				for _, e := range exports {
					table.AddRow(e.ID, e.ExportedAt.Format(time.RFC3339), e.SourceHash)
				}
				table.Render()
				return nil
			}

			out, hash, err := p.compileArgs(nil)
			if err != nil {
				return reportErrors(cmd.ErrOrStderr(), err, false)
			}

			if err := c.Migrate(ctx); err != nil {
				return err
			}
			snap := out.Registry().Snapshot()
			snap.Version = codegen.Version
			snap.SourceHash = hash

			id, err := c.Export(ctx, snap)
			if err != nil {
				return err
			}
			ui.Success(cmd.OutOrStdout(), fmt.Sprintf("Exported %d kind(s) and %d record(s) as %s", len(snap.Kinds), len(snap.Records), id), noColor)
			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "driver", "", "database/sql driver (default: catalog.driver)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Data source name (default: catalog.dsn)")
	cmd.Flags().BoolVar(&list, "list", false, "List stored exports instead of exporting")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}
