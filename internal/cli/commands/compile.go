package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/fieldmeta/internal/format"
)

// NewCompileCommand creates the compile command
func NewCompileCommand() *cobra.Command {
	var (
		asJSON   bool
		showDiff bool
		output   string
	)

	cmd := &cobra.Command{
		Use:   "compile [files...]",
		Short: "Expand annotated records into plain records and dispatch entries",
		Long: `Compile fieldmeta sources and print the expanded program: every annotated
record is printed without its annotations, followed by the dispatch entries
the annotations compiled to.

Without arguments every source under source_dir is compiled. Directories are
searched for .fmd files.`,
		Example: `  # Print the expansion of every source
  fieldmeta compile

  # Show how one file changes
  fieldmeta compile --diff schema/models.fmd

  # Errors as JSON, for editors and CI
  fieldmeta compile --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			defer p.logger.Sync()

			files, err := p.readSources(args)
			if err != nil {
				return err
			}

			out, err := p.compile(files)
			if err != nil {
				w := cmd.ErrOrStderr()
				if asJSON {
					w = cmd.OutOrStdout()
				}
				return reportErrors(w, err, asJSON)
			}

			if showDiff {
				originals := make(map[string]string, len(files))
				for _, f := range files {
					originals[f.Path] = string(f.Content)
				}

				title := color.New(color.FgCyan, color.Bold)
				for _, f := range out.Files {
					diff := format.Diff(originals[f.Path], f.Source())
					title.Fprintf(cmd.OutOrStdout(), "=== %s ===\n", f.Path)
					if !diff.Changed {
						fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n", diff.Stats())
						continue
					}
					fmt.Fprint(cmd.OutOrStdout(), diff.String())
					fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n", diff.Stats())
				}
				return nil
			}

			source := out.Source()
			if output != "" {
				if err := writeFile(output, []byte(source)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), source)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output errors in JSON format")
	cmd.Flags().BoolVar(&showDiff, "diff", false, "Show each source next to its expansion")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the expansion to a file")

	return cmd
}
