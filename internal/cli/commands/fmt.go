package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/fieldmeta/internal/format"
)

// NewFmtCommand creates the fmt command
func NewFmtCommand() *cobra.Command {
	var (
		check    bool
		showDiff bool
	)

	cmd := &cobra.Command{
		Use:   "fmt [files...]",
		Short: "Rewrite sources in canonical form",
		Long: `Format fieldmeta sources using the format section of fieldmeta.yaml.

By default files are rewritten in place. Use --check to list the files that
would change without touching them, or --diff to print the changes instead.`,
		Example: `  fieldmeta fmt
  fieldmeta fmt --check
  fieldmeta fmt --diff schema/models.fmd`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			defer p.logger.Sync()

			files, err := p.sourceFiles(args)
			if err != nil {
				return err
			}

			successColor := color.New(color.FgGreen)
			errorColor := color.New(color.FgRed, color.Bold)
			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

			formatter := format.New(&p.cfg.Format)
			changed, failed := 0, 0
			for _, file := range files {
				original, err := os.ReadFile(file)
				if err != nil {
					errorColor.Fprintf(errOut, "Error reading %s: %v\n", file, err)
					failed++
					continue
				}

				formatted, err := formatter.Format(string(original))
				if err != nil {
					reportErrors(errOut, withFile(err, file), false)
					failed++
					continue
				}

				diff := format.Diff(string(original), formatted)
				if !diff.Changed {
					continue
				}
				changed++

				switch {
				case check:
					errorColor.Fprintf(errOut, "✗ %s needs formatting\n", file)
				case showDiff:
					fmt.Fprint(out, diff.UnifiedDiff(file))
				default:
					if err := os.WriteFile(file, []byte(formatted), 0644); err != nil {
						errorColor.Fprintf(errOut, "Error writing %s: %v\n", file, err)
						failed++
						continue
					}
					successColor.Fprintf(out, "✓ %s formatted\n", file)
				}
			}

			if check && changed > 0 {
				return fmt.Errorf("%d file(s) need formatting", changed)
			}
			if failed > 0 {
				return fmt.Errorf("%d file(s) had errors", failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&check, "check", "c", false, "List files that are not formatted (exit 1 if any)")
	cmd.Flags().BoolVarP(&showDiff, "diff", "d", false, "Print a diff instead of rewriting files")

	return cmd
}
