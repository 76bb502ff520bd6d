package cli

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
)

type DashboardCmd struct {
	JSON bool `help:"Print the dashboard as JSON." name:"json"`
}

func (c *DashboardCmd) Run(ctx *Context) error {
	if err := ctx.requireSession(); err != nil {
		return err
	}
	if err := ctx.Engine.RefreshAll(context.Background()); err != nil {
		return err
	}

	snap := ctx.Engine.Snapshot()
	if c.JSON {
		enc := json.NewEncoder(ctx.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.Dashboard())
	}
	printSnapshot(ctx, snap)
	return nil
}

func printSnapshot(ctx *Context, snap models.Snapshot) {
	ctx.printf("%s\n\n", formatCounters(snap))
	if len(snap.Today) == 0 {
		ctx.printf("No goals for today\n")
		return
	}
	for _, st := range snap.Today {
		ctx.printf("  %s %s (%s)\n", checkmark(st.Completed), st.Goal.Name, st.Goal.ID)
	}
	ctx.printf("\n%d remaining\n", snap.RemainingCount())
}

type ToggleCmd struct {
	Goal string `arg:"" help:"Goal ID or name."`
}

func (c *ToggleCmd) Run(ctx *Context) error {
	if err := ctx.requireSession(); err != nil {
		return err
	}
	bg := context.Background()

	// an unknown goal is still sent; the server decides
	if err := ctx.Engine.RefreshAll(bg); err != nil {
		logger.Warn("toggling without a fresh dashboard", "error", err)
	}
	goal := findGoal(ctx.Engine.Snapshot(), c.Goal)

	if err := ctx.Engine.ToggleToday(bg, goal); err != nil {
		return err
	}

	snap := ctx.Engine.Snapshot()
	st, ok := snap.Lookup(goal.ID)
	if !ok {
		ctx.printf("Toggled %s\n", goal.ID)
		return nil
	}
	ctx.printf("%s %s  %s\n", checkmark(st.Completed), st.Goal.Name, formatCounters(snap))
	return nil
}

// findGoal matches by ID first, then by case-insensitive name.
func findGoal(snap models.Snapshot, key string) models.Goal {
	if st, ok := snap.Lookup(key); ok {
		return st.Goal
	}
	for _, st := range snap.Today {
		if strings.EqualFold(st.Goal.Name, key) {
			return st.Goal
		}
	}
	return models.Goal{ID: key}
}
