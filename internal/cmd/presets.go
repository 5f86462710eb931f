package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/protex/internal/preset"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List material presets",
	RunE:  runPresets,
}

var presetsExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the preset library as YAML (stdout without a file)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPresetsExport,
}

func init() {
	rootCmd.AddCommand(presetsCmd)
	presetsCmd.AddCommand(presetsExportCmd)
}

func runPresets(cmd *cobra.Command, args []string) error {
	lib, err := loadLibrary()
	if err != nil {
		return err
	}
	return listPresets(cmd.OutOrStdout(), lib)
}

func listPresets(w io.Writer, lib *preset.Library) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tSEED\tFINGERPRINT\tDESCRIPTION")
	for _, p := range lib.Presets() {
		fp, err := lib.Fingerprint(p.Name)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%g\t%s\t%s\n", p.Name, p.Kind, p.Params.Seed, fp, p.Description)
	}
	return tw.Flush()
}

func runPresetsExport(cmd *cobra.Command, args []string) error {
	lib, err := loadLibrary()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return lib.Write(cmd.OutOrStdout())
	}

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", args[0], err)
	}
	if err := lib.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
