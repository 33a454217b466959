package board

import (
	"context"
	"fmt"

	"github.com/joescharf/board/internal/metrics"
	"github.com/joescharf/board/internal/models"
)

// VelocityReport pairs the per-sprint completed-points series with its
// summary statistics.
type VelocityReport struct {
	Series []float64             `json:"series"`
	Stats  metrics.VelocityStats `json:"stats"`
}

// sprintData loads everything a sprint metric needs: the sprint, every item
// ever associated with it (filtered), and those items' changelogs.
func (e *Engine) sprintData(ctx context.Context, sprintID string, f metrics.ItemFilter) (*models.Sprint, []*models.WorkItem, metrics.ChangeLogs, error) {
	sp, err := e.store.GetSprint(ctx, sprintID)
	if err != nil {
		return nil, nil, nil, err
	}
	items, err := e.store.ListSprintItems(ctx, sprintID)
	if err != nil {
		return nil, nil, nil, err
	}
	items = metrics.FilterItems(items, f)

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	logs, err := e.store.ListChangesForItems(ctx, ids)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load changelogs: %w", err)
	}
	return sp, items, logs, nil
}

// Burndown computes the sprint's per-day ideal and actual remaining points.
func (e *Engine) Burndown(ctx context.Context, sprintID string, f metrics.ItemFilter) ([]metrics.BurndownPoint, error) {
	sp, items, logs, err := e.sprintData(ctx, sprintID, f)
	if err != nil {
		return nil, err
	}
	return metrics.Burndown(sp, items, logs), nil
}

// CFD computes the sprint's cumulative flow diagram.
func (e *Engine) CFD(ctx context.Context, sprintID string, f metrics.ItemFilter) ([]metrics.FlowPoint, error) {
	sp, items, logs, err := e.sprintData(ctx, sprintID, f)
	if err != nil {
		return nil, err
	}
	return metrics.CFD(sp, items, logs), nil
}

// SprintKPIs computes one sprint's outcome numbers.
func (e *Engine) SprintKPIs(ctx context.Context, sprintID string, f metrics.ItemFilter) (metrics.SprintKPIs, error) {
	sp, items, logs, err := e.sprintData(ctx, sprintID, f)
	if err != nil {
		return metrics.SprintKPIs{}, err
	}
	return metrics.KPIs(sp, items, logs), nil
}

// ProjectKPIs computes KPIs for every project sprint passing the filter,
// ordered as the store returns them (start date ascending).
func (e *Engine) ProjectKPIs(ctx context.Context, projectID string, sf metrics.SprintFilter, f metrics.ItemFilter) ([]metrics.SprintKPIs, error) {
	sprints, err := e.store.ListSprints(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var out []metrics.SprintKPIs
	for _, sp := range sprints {
		if !sf.Match(sp) {
			continue
		}
		kpis, err := e.SprintKPIs(ctx, sp.ID, f)
		if err != nil {
			return nil, fmt.Errorf("kpis for sprint %s: %w", sp.Key, err)
		}
		out = append(out, kpis)
	}
	return out, nil
}

// Velocity builds the completed-sprint velocity series for a project and
// summarizes it. Only completed sprints contribute.
func (e *Engine) Velocity(ctx context.Context, projectID string) (VelocityReport, error) {
	sprints, err := e.store.ListSprints(ctx, projectID)
	if err != nil {
		return VelocityReport{}, err
	}

	kpis := make(map[string]metrics.SprintKPIs)
	for _, sp := range sprints {
		if sp.Status != models.SprintCompleted {
			continue
		}
		k, err := e.SprintKPIs(ctx, sp.ID, metrics.ItemFilter{})
		if err != nil {
			return VelocityReport{}, fmt.Errorf("kpis for sprint %s: %w", sp.Key, err)
		}
		kpis[sp.ID] = k
	}

	series := metrics.VelocitySeries(sprints, kpis)
	return VelocityReport{Series: series, Stats: metrics.ToVelocityStats(series)}, nil
}
