package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/gamedata"
)

var catalogSections = []string{"items", "recipes", "facilities", "technologies"}

func NewCatalogCommand() *cobra.Command {
	var section string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the game data catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cat, err := gamedata.Load(cfg.GameData.Path)
			if err != nil {
				return fmt.Errorf("failed to load game data: %w", err)
			}
			return PrintCatalog(cmd.OutOrStdout(), cat, section)
		},
	}
	cmd.Flags().StringVar(&section, "section", "", fmt.Sprintf("Only print one of %v", catalogSections))
	return cmd
}

// PrintCatalog writes the catalog as tables. An empty section prints all.
func PrintCatalog(w io.Writer, cat gamedata.Catalog, section string) error {
	printers := map[string]func(io.Writer, gamedata.Catalog){
		"items":        printItems,
		"recipes":      printRecipes,
		"facilities":   printFacilities,
		"technologies": printTechnologies,
	}
	if section != "" {
		p, ok := printers[section]
		if !ok {
			return fmt.Errorf("unknown section %q, want one of %v", section, catalogSections)
		}
		p(w, cat)
		return nil
	}
	for _, s := range catalogSections {
		printers[s](w, cat)
	}
	return nil
}

func heading(w io.Writer, title string) {
	color.New(color.FgCyan, color.Bold).Fprintf(w, "\n%s:\n", title)
}

func stacks(ss []item.Stack) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = fmt.Sprintf("%g %s", s.Amount, s.Item)
	}
	return strings.Join(parts, ", ")
}

func printItems(w io.Writer, cat gamedata.Catalog) {
	heading(w, "Items")
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Item", "Category", "Stack", "Fuel"}),
	)
	for _, it := range cat.Items() {
		fuel := ""
		if it.IsFuel() {
			fuel = fmt.Sprintf("%g MJ %s", it.FuelValue, it.FuelCategory)
		}
		table.Append([]string{string(it.ID), it.Category, fmt.Sprintf("%d", it.StackSize), fuel})
	}
	table.Render()
}

func printRecipes(w io.Writer, cat gamedata.Catalog) {
	heading(w, "Recipes")
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Recipe", "Time", "Inputs", "Outputs", "Producers"}),
	)
	for _, r := range cat.Recipes() {
		table.Append([]string{
			string(r.ID),
			fmt.Sprintf("%gs", r.Time),
			stacks(r.Inputs),
			stacks(r.Outputs),
			strings.Join(r.Producers, ", "),
		})
	}
	table.Render()
}

func printFacilities(w io.Writer, cat gamedata.Catalog) {
	heading(w, "Facilities")
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Facility", "Category", "Speed", "Energy", "Usage kW", "Output kW", "Stacks"}),
	)
	for _, f := range cat.Facilities() {
		table.Append([]string{
			f.ID,
			string(f.Category),
			fmt.Sprintf("%g", f.CraftingSpeed),
			string(f.EnergySource),
			fmt.Sprintf("%g", f.EnergyUsage),
			fmt.Sprintf("%g", f.PowerOutput),
			fmt.Sprintf("%d", f.ContainerStacks),
		})
	}
	table.Render()
}

func printTechnologies(w io.Writer, cat gamedata.Catalog) {
	heading(w, "Technologies")
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Technology", "Time", "Cost", "Prerequisites", "Trigger"}),
	)
	for _, t := range cat.Technologies() {
		prereqs := make([]string, len(t.Prerequisites))
		for i, p := range t.Prerequisites {
			prereqs[i] = string(p)
		}
		table.Append([]string{
			string(t.ID),
			fmt.Sprintf("%gs", t.ResearchTime),
			stacks(t.Cost),
			strings.Join(prereqs, ", "),
			t.Trigger,
		})
	}
	table.Render()
}
