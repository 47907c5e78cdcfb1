package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/fieldmeta/internal/cli/ui"
	"github.com/conduit-lang/fieldmeta/internal/compiler/parser"
)

// starterConfig is the part of fieldmeta.yaml init writes; everything else
// keeps its default
type starterConfig struct {
	SourceDir string        `yaml:"source_dir"`
	Build     starterBuild  `yaml:"build"`
	Kinds     []starterKind `yaml:"kinds,omitempty"`
}

type starterBuild struct {
	Output  string `yaml:"output"`
	Package string `yaml:"package"`
}

type starterKind struct {
	Name    string `yaml:"name"`
	Default string `yaml:"default"`
}

// exampleRecord is written to the source directory of a new project
const exampleRecord = `@label
record Example {
    id: Int | "Identifier"
    name: String | "Name"
}
`

// exampleSource declares label unless the configuration already does
func exampleSource(kinds []starterKind) string {
	for _, k := range kinds {
		if k.Name == "label" {
			return exampleRecord
		}
	}
	return "# Kinds declared here apply to every file in the project.\nmetadata label = \"\"\n\n" + exampleRecord
}

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	var (
		kinds     []string
		sourceDir string
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a starter fieldmeta.yaml",
		Long: `Create fieldmeta.yaml and a source directory with an example file.

Kinds to declare in the configuration are given as --kind name=default. When
no --kind flag is given and the command runs in a terminal, the settings are
asked for interactively.`,
		Example: `  fieldmeta init
  fieldmeta init --kind units=nothing --kind 'label=""'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			path := filepath.Join(dir, "fieldmeta.yaml")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			starter := starterConfig{
				SourceDir: sourceDir,
				Build:     starterBuild{Output: "build/fieldmeta/metadata.go", Package: "metadata"},
			}

			if len(kinds) == 0 && interactive() {
				if err := askStarter(&starter); err != nil {
					return err
				}
			} else {
				for _, arg := range kinds {
					k, err := parseKindFlag(arg)
					if err != nil {
						return err
					}
					starter.Kinds = append(starter.Kinds, k)
				}
			}

			data, err := yaml.Marshal(&starter)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			if err := writeFile(path, data); err != nil {
				return err
			}

			example := filepath.Join(dir, starter.SourceDir, "example.fmd")
			if _, err := os.Stat(example); os.IsNotExist(err) {
				if err := writeFile(example, []byte(exampleSource(starter.Kinds))); err != nil {
					return err
				}
			}

			ui.Success(cmd.OutOrStdout(), "Created "+path, false)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&kinds, "kind", nil, "Declare a kind as name=default (repeatable)")
	cmd.Flags().StringVar(&sourceDir, "source-dir", "schema", "Directory holding the .fmd sources")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing fieldmeta.yaml")

	return cmd
}

func interactive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// parseKindFlag reads name=default; a missing default means nothing
func parseKindFlag(arg string) (starterKind, error) {
	name, def, found := strings.Cut(arg, "=")
	name = strings.TrimSpace(name)
	def = strings.TrimSpace(def)
	if !found || def == "" {
		def = "nothing"
	}
	if name == "" {
		return starterKind{}, fmt.Errorf("invalid --kind %q: missing name", arg)
	}
	if _, errs := parser.ParseExpr(def); errs.HasErrors() {
		return starterKind{}, fmt.Errorf("invalid default for kind %s: %v", name, errs)
	}
	return starterKind{Name: name, Default: def}, nil
}

func askStarter(starter *starterConfig) error {
	answers := struct {
		SourceDir string
		Package   string
		Kinds     string
	}{}

	questions := []*survey.Question{
		{
			Name:     "sourcedir",
			Prompt:   &survey.Input{Message: "Source directory:", Default: starter.SourceDir},
			Validate: survey.Required,
		},
		{
			Name:     "package",
			Prompt:   &survey.Input{Message: "Go package name for generated code:", Default: starter.Build.Package},
			Validate: survey.Required,
		},
		{
			Name:   "kinds",
			Prompt: &survey.Input{Message: "Kinds to declare (name=default, comma separated):", Default: "label=\"\""},
		},
	}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	starter.SourceDir = answers.SourceDir
	starter.Build.Package = answers.Package
	for _, arg := range strings.Split(answers.Kinds, ",") {
		if strings.TrimSpace(arg) == "" {
			continue
		}
		k, err := parseKindFlag(arg)
		if err != nil {
			return err
		}
		starter.Kinds = append(starter.Kinds, k)
	}
	return nil
}
