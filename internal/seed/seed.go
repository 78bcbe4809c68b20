// Package seed carries the bundled initiative fixture used to pre-populate
// a fresh workflow.
package seed

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"catreview/internal/domain"
)

//go:embed tasks.json
var rawTasks []byte

// Tasks returns the bundled fixture initiatives.
func Tasks() ([]domain.Initiative, error) {
	var tasks []domain.Initiative
	if err := json.Unmarshal(rawTasks, &tasks); err != nil {
		return nil, fmt.Errorf("parse seed fixture: %w", err)
	}
	return tasks, nil
}

// Stats summarizes a fixture set for status filters and dashboards.
type Stats struct {
	Total        int            `json:"total"`
	TotalRevenue float64        `json:"total_revenue"`
	TotalMargin  float64        `json:"total_margin"`
	ByStatus     map[string]int `json:"by_status"`
}

// Summarize aggregates totals and a per-status breakdown.
func Summarize(tasks []domain.Initiative) Stats {
	st := Stats{ByStatus: map[string]int{}}
	for _, t := range tasks {
		st.Total++
		st.TotalRevenue += t.RevenueImpactMillion
		st.TotalMargin += t.MarginImpactMillion
		st.ByStatus[string(t.Status)]++
	}
	return st
}

// Filter returns tasks matching a status; an empty or "Все" filter returns
// everything.
func Filter(tasks []domain.Initiative, status string) []domain.Initiative {
	if status == "" || status == "Все" {
		return tasks
	}
	out := []domain.Initiative{}
	for _, t := range tasks {
		if string(t.Status) == status {
			out = append(out, t)
		}
	}
	return out
}
