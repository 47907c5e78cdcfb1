package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/fieldmeta/internal/cli/ui"
	"github.com/conduit-lang/fieldmeta/runtime/metadata"
)

// NewQueryCommand creates the query command
func NewQueryCommand() *cobra.Command {
	var (
		asJSON    bool
		listKinds bool
		noColor   bool
	)

	cmd := &cobra.Command{
		Use:   "query <kind> <Type> [field]",
		Short: "Evaluate a metadata accessor over the compiled sources",
		Long: `Compile the sources under source_dir and evaluate kind(Type, field). Without a
field, the metadata of every field of Type is listed in declaration order.`,
		Example: `  fieldmeta query range Model a
  fieldmeta query range Model
  fieldmeta query --kinds`,
		Args: func(cmd *cobra.Command, args []string) error {
			if listKinds {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.RangeArgs(2, 3)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			defer p.logger.Sync()

			out, _, err := p.compileArgs(nil)
			if err != nil {
				return reportErrors(cmd.ErrOrStderr(), err, false)
			}
			r := out.Registry()
			w := cmd.OutOrStdout()

			if listKinds {
				table := ui.NewTable(w, noColor, "KIND", "DEFAULT")
				for _, kind := range r.Kinds() {
					def, _ := r.Default(kind)
					table.AddRow(kind, metadata.FormatValue(def))
				}
				table.Render()
				return nil
			}

			kind, typ := args[0], args[1]
			if len(args) == 3 {
				v, err := r.Lookup(kind, typ, args[2])
				if err != nil {
					return explainLookup(cmd, r, kind, typ, err, noColor)
				}
				if asJSON {
					return json.NewEncoder(w).Encode(v)
				}
				fmt.Fprintln(w, metadata.FormatValue(v))
				return nil
			}

			values, err := r.All(kind, typ)
			if err != nil {
				return explainLookup(cmd, r, kind, typ, err, noColor)
			}
			fields, _ := r.Fields(typ)
			if asJSON {
				byField := make(map[string]metadata.Value, len(fields))
				for i, f := range fields {
					byField[f] = values[i]
				}
				return json.NewEncoder(w).Encode(byField)
			}

			table := ui.NewTable(w, noColor, "FIELD", kind)
			for i, f := range fields {
				table.AddRow(f, metadata.FormatValue(values[i]))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print values as JSON")
	cmd.Flags().BoolVar(&listKinds, "kinds", false, "List the declared kinds and their defaults")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

func explainLookup(cmd *cobra.Command, r *metadata.Registry, kind, typ string, err error, noColor bool) error {
	switch {
	case errors.Is(err, metadata.ErrUnknownKind):
		ui.UnknownKind(kind, r.Kinds(), noColor).Write(cmd.ErrOrStderr())
	case errors.Is(err, metadata.ErrUnknownRecord):
		ui.UnknownRecord(typ, r.Records(), noColor).Write(cmd.ErrOrStderr())
	}
	return err
}
