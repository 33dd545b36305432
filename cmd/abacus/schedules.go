package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/abacus/asset-engine/api"
	"github.com/abacus/asset-engine/depreciation"
)

func assetsCmd() *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "assets",
		Short: "List assets with their book value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if year == 0 {
				year = a.registry.CurrentYear()
			}
			assets, err := a.registry.ListAssets(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(assets) == 0 {
				fmt.Fprintln(out, warningStyle.Render("No assets. Use 'abacus import' or 'abacus seed' to add some."))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
				headerStyle.Render("ID"), headerStyle.Render("Name"), headerStyle.Render("Category"),
				headerStyle.Render("Cost"), headerStyle.Render(fmt.Sprintf("Book %d", year)))
			for _, item := range assets {
				category := "-"
				if item.CategoryName != nil {
					category = *item.CategoryName
				}
				name := item.Asset.Name
				if item.Asset.IsDisposed() {
					name += " (disposed)"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t\n",
					*item.Asset.ID, name, category,
					usd(item.Asset.Cost), usd(depreciation.CurrentBookValue(item.Asset, year)))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "valuation year (default: current year)")
	return cmd
}

func scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule <asset-id>",
		Short: "Show an asset's depreciation schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid asset id %q", args[0])
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			item, err := a.registry.GetAsset(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render(item.Asset.Name))
			fmt.Fprintf(out, "Placed in service %s, cost %s, salvage %s, %d years\n\n",
				item.Asset.DatePlacedInService, usd(item.Asset.Cost), usd(item.Asset.SalvageValue), item.Asset.UsefulLifeYears)
			return printSchedule(out, item.Schedule)
		},
	}
}

func printSchedule(out io.Writer, entries []depreciation.Entry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
		headerStyle.Render("Year"), headerStyle.Render("Beginning"), headerStyle.Render("Expense"),
		headerStyle.Render("Accumulated"), headerStyle.Render("Ending"))
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t\n", e.Year,
			usd(e.BeginningBookValue), usd(e.DepreciationExpense),
			usd(e.AccumulatedDepreciation), usd(e.EndingBookValue))
	}
	return w.Flush()
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check every stored schedule against its asset",
		Long: `Regenerate each asset's schedule in memory and compare it with the stored
rows. Exits non-zero when any schedule has drifted; run 'abacus resync' to
repair.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			found, err := a.registry.Verify(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(found) == 0 {
				fmt.Fprintln(out, successStyle.Render("All schedules consistent"))
				return nil
			}
			for _, d := range found {
				fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("Asset %d %s", d.AssetID, d.AssetName)))
				for _, p := range d.Problems {
					fmt.Fprintln(out, "  "+p)
				}
			}
			return fmt.Errorf("%d schedule(s) inconsistent", len(found))
		},
	}
}

func resyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resync",
		Short: "Regenerate every stored schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.registry.Resync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Resynced %d schedule(s)", n)))
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <scenario>",
		Short: "Load a demo portfolio",
		Long:  "Load a demo portfolio into the register. Run without arguments to list them.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, s := range api.Scenarios() {
					fmt.Fprintf(out, "%-14s %s\n", s.ID, s.Description)
				}
				return nil
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := api.LoadScenario(cmd.Context(), a.registry, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(out, successStyle.Render("Loaded "+args[0]))
			return nil
		},
	}
}

// usd formats an amount as US dollars, e.g. $1,640.00.
func usd(d decimal.Decimal) string {
	cents := depreciation.Round2(d).Shift(2).IntPart()
	return money.New(cents, money.USD).Display()
}
