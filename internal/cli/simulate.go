package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/MRamiBalles/factorysim/internal/domain/crafting"
	"github.com/MRamiBalles/factorysim/internal/domain/facility"
	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/engine"
	"github.com/MRamiBalles/factorysim/internal/events"
	"github.com/MRamiBalles/factorysim/internal/gamedata"
	"github.com/MRamiBalles/factorysim/internal/platform/logger"
)

// capacityTolerance absorbs float drift in the capacity check.
const capacityTolerance = 1e-6

// SimulateOptions configures a headless run.
type SimulateOptions struct {
	Duration time.Duration
	Frame    time.Duration
	Scenario string
	Settings engine.Settings
	Catalog  gamedata.Catalog
	Logger   *logger.Logger
}

// SimulationReport is the outcome of a headless run.
type SimulationReport struct {
	Frames     int
	SimTime    time.Duration
	Violations []string
	Engine     *engine.Engine
}

func NewSimulateCommand() *cobra.Command {
	var (
		seconds  float64
		frame    time.Duration
		scenario string
		strict   bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scenario headless and print the resulting factory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Logging.Level, "stderr")
			if err != nil {
				return err
			}
			cat, err := gamedata.Load(cfg.GameData.Path)
			if err != nil {
				return fmt.Errorf("failed to load game data: %w", err)
			}
			settings := cfg.Settings()
			if cmd.Flags().Changed("strict") {
				settings.StrictCrafting = strict
			}

			report, err := Simulate(cmd.OutOrStdout(), SimulateOptions{
				Duration: time.Duration(seconds * float64(time.Second)),
				Frame:    frame,
				Scenario: scenario,
				Settings: settings,
				Catalog:  cat,
				Logger:   log,
			})
			if err != nil {
				return err
			}
			if len(report.Violations) > 0 {
				return fmt.Errorf("%d invariant violations", len(report.Violations))
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&seconds, "seconds", 60, "Simulated seconds to run")
	cmd.Flags().DurationVar(&frame, "frame", 16*time.Millisecond, "Host frame delta")
	cmd.Flags().StringVar(&scenario, "scenario", "starter", fmt.Sprintf("Starting factory %v", ScenarioNames()))
	cmd.Flags().BoolVar(&strict, "strict", false, "Stall manual crafts until every ingredient is present")
	return cmd
}

// Simulate runs the scenario, checking invariants after every frame, and
// prints the final state to w.
func Simulate(w io.Writer, opts SimulateOptions) (*SimulationReport, error) {
	sc, ok := scenarios[opts.Scenario]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q, want one of %v", opts.Scenario, ScenarioNames())
	}
	if opts.Frame <= 0 {
		return nil, fmt.Errorf("frame must be positive")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	e := engine.NewEngine(opts.Catalog, events.NewEventLog(nil), opts.Logger, engine.WithSettings(opts.Settings))
	if err := sc.Apply(e); err != nil {
		return nil, err
	}

	report := &SimulationReport{Engine: e}
	for elapsed := time.Duration(0); elapsed < opts.Duration; elapsed += opts.Frame {
		e.Tick(opts.Frame)
		report.Frames++
		report.Violations = append(report.Violations, checkInvariants(e)...)
	}
	report.SimTime = e.Now()

	printReport(w, sc, report)
	return report, nil
}

// checkInvariants verifies the capacity bound of every inventory entry and
// that only the queue head is ever crafting.
func checkInvariants(e *engine.Engine) []string {
	var out []string
	now := e.Now()
	for id, inv := range e.SnapshotInventory() {
		if inv.CurrentAmount < 0 || inv.CurrentAmount > inv.MaxCapacity+capacityTolerance {
			out = append(out, fmt.Sprintf("%s: %s holds %.3f of %.0f", now, id, inv.CurrentAmount, inv.MaxCapacity))
		}
	}
	for i, t := range e.SnapshotCraftingQueue() {
		if t.Status == crafting.StatusCrafting && i != 0 {
			out = append(out, fmt.Sprintf("%s: task %s crafting at position %d", now, t.ID, i))
		}
	}
	return out
}

func printReport(w io.Writer, sc Scenario, r *SimulationReport) {
	titleColor := color.New(color.FgCyan, color.Bold)
	successColor := color.New(color.FgGreen, color.Bold)
	failColor := color.New(color.FgRed, color.Bold)

	titleColor.Fprintf(w, "\nScenario %q after %s (%d frames)\n", sc.Name, r.SimTime, r.Frames)

	fmt.Fprintln(w, "\nInventory:")
	inv := r.Engine.SnapshotInventory()
	ids := make([]item.ID, 0, len(inv))
	for id := range inv {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Item", "Amount", "Capacity", "Stacks"}),
	)
	for _, id := range ids {
		it := inv[id]
		table.Append([]string{
			string(id),
			fmt.Sprintf("%.2f", it.CurrentAmount),
			fmt.Sprintf("%.0f", it.MaxCapacity),
			fmt.Sprintf("%d+%d", it.BaseStacks, it.AdditionalStacks),
		})
	}
	table.Render()

	fmt.Fprintln(w, "\nFacilities:")
	table = tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Facility", "Target", "Count", "Status", "Progress", "Efficiency", "Fuel MJ"}),
	)
	for _, f := range r.Engine.SnapshotFacilities() {
		fuel := "-"
		if fs, ok := r.Engine.FuelStatus(f.ID); ok && f.Fuel != nil {
			fuel = fmt.Sprintf("%.2f / %.0f", fs.TotalEnergy, fs.MaxEnergy)
		}
		table.Append([]string{
			f.FacilityID,
			string(f.TargetItemID),
			fmt.Sprintf("%d", f.Count),
			statusLabel(f.Status),
			fmt.Sprintf("%.0f%%", f.Production.Progress*100),
			fmt.Sprintf("%.2f", f.Efficiency),
			fuel,
		})
	}
	table.Render()

	b := r.Engine.PowerBalance()
	fmt.Fprintf(w, "\nPower: %.0f kW generated, %.0f kW drawn, satisfaction %.0f%%\n",
		b.Generation, b.Consumption, b.Satisfaction*100)

	rs := r.Engine.SnapshotResearch()
	fmt.Fprintf(w, "Research: %d completed %v", len(rs.Completed), rs.Completed)
	if rs.State.Active() {
		fmt.Fprintf(w, ", %s at %.0f%%", rs.State.CurrentTech, rs.State.Progress*100)
	}
	fmt.Fprintf(w, "\nCrafting queue: %d tasks\n", len(r.Engine.SnapshotCraftingQueue()))

	if len(r.Violations) == 0 {
		successColor.Fprintln(w, "\n✓ Invariants held on every frame")
		return
	}
	failColor.Fprintf(w, "\n✗ %d invariant violations\n", len(r.Violations))
	for _, v := range r.Violations {
		fmt.Fprintln(w, "   "+v)
	}
}

func statusLabel(s facility.Status) string {
	switch s {
	case facility.StatusRunning:
		return color.GreenString(s.String())
	case facility.StatusNoFuel, facility.StatusOutputFull:
		return color.RedString(s.String())
	}
	return color.YellowString(s.String())
}
