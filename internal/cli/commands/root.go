package commands

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fieldmeta",
		Short: "Compile per-field metadata declarations into dispatch tables",
		Long: color.CyanString(`fieldmeta - per-field metadata for record types

Declare metadata kinds, annotate record fields inline, and compile the
annotations into dispatch tables that resolve kind(Type, field) at runtime.
The tables can be queried, served over HTTP, exported to SQL or generated
as a Go package.`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to fieldmeta.yaml (default: search upwards from the working directory)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewCompileCommand())
	rootCmd.AddCommand(NewBuildCommand())
	rootCmd.AddCommand(NewQueryCommand())
	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewExportCommand())
	rootCmd.AddCommand(NewFmtCommand())
	rootCmd.AddCommand(NewInitCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			titleColor := color.New(color.FgCyan, color.Bold)
			out := cmd.OutOrStdout()

			titleColor.Fprint(out, "fieldmeta version: ")
			fmt.Fprintln(out, Version)
			titleColor.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)
			titleColor.Fprint(out, "Build date: ")
			fmt.Fprintln(out, BuildDate)
			titleColor.Fprint(out, "Go version: ")
			fmt.Fprintln(out, runtime.Version())
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
