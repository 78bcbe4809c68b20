package seed_test

import (
	"testing"

	"catreview/internal/catalog"
	"catreview/internal/seed"
)

func TestFixtureLoads(t *testing.T) {
	tasks, err := seed.Tasks()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tasks) == 0 {
		t.Fatal("fixture is empty")
	}
	seen := map[int]bool{}
	for _, task := range tasks {
		if task.ID == 0 {
			t.Fatalf("task without id: %+v", task)
		}
		if seen[task.ID] {
			t.Fatalf("duplicate id %d", task.ID)
		}
		seen[task.ID] = true
		if task.Description == "" {
			t.Fatalf("task %d has no description", task.ID)
		}
		if task.ParentID != nil && !seen[*task.ParentID] {
			t.Fatalf("task %d references parent %d before it is defined", task.ID, *task.ParentID)
		}
	}
}

func TestFixtureReportsResolve(t *testing.T) {
	tasks, err := seed.Tasks()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	for _, task := range tasks {
		if task.ReportID == "" {
			continue
		}
		if _, ok := cat.StepForReport(task.ReportID); !ok {
			t.Fatalf("task %d references unknown report %s", task.ID, task.ReportID)
		}
	}
}

func TestSummarize(t *testing.T) {
	tasks, err := seed.Tasks()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	stats := seed.Summarize(tasks)
	if stats.Total != len(tasks) {
		t.Fatalf("total: %d", stats.Total)
	}
	var sum int
	for _, n := range stats.ByStatus {
		sum += n
	}
	if sum != stats.Total {
		t.Fatalf("status counts do not add up: %d vs %d", sum, stats.Total)
	}
	if stats.TotalRevenue <= 0 {
		t.Fatalf("fixture revenue: %v", stats.TotalRevenue)
	}
}

func TestFilter(t *testing.T) {
	tasks, err := seed.Tasks()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	all := seed.Filter(tasks, "")
	if len(all) != len(tasks) {
		t.Fatalf("empty filter should pass everything: %d", len(all))
	}
	if got := seed.Filter(tasks, "Все"); len(got) != len(tasks) {
		t.Fatalf("catch-all filter: %d", len(got))
	}
	inWork := seed.Filter(tasks, "В работе")
	for _, task := range inWork {
		if string(task.Status) != "В работе" {
			t.Fatalf("filter leaked status %s", task.Status)
		}
	}
	if len(inWork) == len(tasks) || len(inWork) == 0 {
		t.Fatalf("fixture should mix statuses: %d of %d", len(inWork), len(tasks))
	}
}
