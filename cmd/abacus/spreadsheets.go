package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/abacus/asset-engine/depreciation"
	"github.com/abacus/asset-engine/spreadsheet"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
)

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Import assets from a spreadsheet",
		Long: `Import assets from the first sheet of an XLSX workbook laid out like the
template. Each row is imported on its own; rejected rows are listed with
their row numbers and the rest of the file still goes in.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	rows, err := spreadsheet.ReadAssets(f)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	bar := progressbar.NewOptions(len(rows),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Importing assets"),
		progressbar.OptionClearOnFinish(),
	)

	result := a.registry.ImportWithProgress(cmd.Context(), rows, func(depreciation.ImportRow, error) {
		_ = bar.Add(1)
	})
	_ = bar.Finish()

	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("Imported %d of %d rows", result.Imported, len(rows))))
	for _, msg := range result.Errors {
		fmt.Fprintln(out, warningStyle.Render("  "+msg))
	}
	return nil
}

func exportCmd() *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "export [file.xlsx]",
		Short: "Export the depreciation report",
		Long: `Write the three-sheet depreciation report (assets, schedules, annual
summary). Book values are as of --year, the current year by default.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if year == 0 {
				year = a.registry.CurrentYear()
			}
			rep, err := a.registry.Report(cmd.Context(), year)
			if err != nil {
				return err
			}

			path := "depreciation_report_" + strconv.Itoa(year) + ".xlsx"
			if len(args) == 1 {
				path = args[0]
			}
			if err := writeFile(path, func(f *os.File) error { return spreadsheet.WriteReport(f, rep) }); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Wrote %s (%d assets)", path, len(rep.Assets))))
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "valuation year (default: current year)")
	return cmd
}

func templateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template [file.xlsx]",
		Short: "Write an empty import template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "asset_import_template.xlsx"
			if len(args) == 1 {
				path = args[0]
			}
			if err := writeFile(path, func(f *os.File) error { return spreadsheet.WriteTemplate(f) }); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Wrote "+path))
			return nil
		},
	}
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
