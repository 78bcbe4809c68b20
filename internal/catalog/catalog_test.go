package catalog_test

import (
	"testing"

	"catreview/internal/catalog"
	"catreview/internal/domain"
)

func TestLoadLayout(t *testing.T) {
	c, err := catalog.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := len(c.Levers()); got != 4 {
		t.Fatalf("levers: %d", got)
	}
	if got := len(c.Stages()); got != 3 {
		t.Fatalf("stages: %d", got)
	}
	cells := c.AllCells()
	if len(cells) != 12 {
		t.Fatalf("cells: %d", len(cells))
	}
	// lever-major ordering
	if cells[0].Lever != "Ассортимент" || cells[0].Stage != "Здоровье и эффективность" {
		t.Fatalf("first cell: %s / %s", cells[0].Lever, cells[0].Stage)
	}
	if cells[11].Lever != "Бренды и Поставщики" || cells[11].Stage != "Разрывы с рынком" {
		t.Fatalf("last cell: %s / %s", cells[11].Lever, cells[11].Stage)
	}
}

func TestCellStatistics(t *testing.T) {
	c, err := catalog.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cases := []struct {
		lever, stage  string
		total, nw, pc int
	}{
		{"Ассортимент", "Здоровье и эффективность", 6, 3, 50},
		{"Ассортимент", "Потребности покупателя", 4, 3, 75},
		{"Ассортимент", "Разрывы с рынком", 9, 2, 22},
		{"Полка", "Потребности покупателя", 4, 4, 100},
		{"Бренды и Поставщики", "Потребности покупателя", 1, 1, 100},
	}
	for _, tc := range cases {
		cell, ok := c.Cell(tc.lever, tc.stage)
		if !ok {
			t.Fatalf("cell %s/%s missing", tc.lever, tc.stage)
		}
		if cell.TotalReports != tc.total || cell.NewReportsCount != tc.nw || cell.NewReportsPercent != tc.pc {
			t.Fatalf("%s/%s: total=%d new=%d pct=%d", tc.lever, tc.stage,
				cell.TotalReports, cell.NewReportsCount, cell.NewReportsPercent)
		}
	}
	if _, ok := c.Cell("Ассортимент", "нет такой стадии"); ok {
		t.Fatal("unknown stage should not resolve")
	}
}

func TestTrafficLightThresholds(t *testing.T) {
	c, err := catalog.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cases := []struct {
		lever, stage string
		want         domain.TrafficLight
	}{
		{"Ассортимент", "Разрывы с рынком", domain.LightRed},       // 22%
		{"Ассортимент", "Здоровье и эффективность", domain.LightYellow}, // 50%
		{"Ассортимент", "Потребности покупателя", domain.LightGreen},    // 75%
		{"Полка", "Потребности покупателя", domain.LightGreen},          // 100%
		{"нет рычага", "Здоровье и эффективность", domain.LightNone},
	}
	for _, tc := range cases {
		if got := c.TrafficLightForLever(tc.lever, tc.stage); got != tc.want {
			t.Fatalf("%s/%s: got %q want %q", tc.lever, tc.stage, got, tc.want)
		}
	}
}

func TestStepForReport(t *testing.T) {
	c, err := catalog.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cases := []struct {
		id   string
		step int
	}{
		{"REP-01", 1},
		{"REP-04", 2},  // appears on stage 2 cells only
		{"REP-12", 1},  // stage 1 and stage 3; earliest wins
		{"REP-15", 1},  // stage 1 and stage 2; earliest wins
		{"NEW-REP-16", 3},
	}
	for _, tc := range cases {
		step, ok := c.StepForReport(tc.id)
		if !ok || step != tc.step {
			t.Fatalf("%s: step=%d ok=%v, want %d", tc.id, step, ok, tc.step)
		}
	}
	if _, ok := c.StepForReport("REP-404"); ok {
		t.Fatal("unknown report should not resolve")
	}
}

func TestReportNames(t *testing.T) {
	c, err := catalog.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := c.ReportName("REP-04"); got != "Чековая аналитика" {
		t.Fatalf("REP-04 name: %q", got)
	}
	if got := c.ReportName("REP-404"); got != "REP-404" {
		t.Fatalf("unknown id fallback: %q", got)
	}
	cell, _ := c.Cell("Ассортимент", "Здоровье и эффективность")
	for _, r := range cell.Reports {
		if r.Title == "" || r.ID == "" {
			t.Fatalf("report missing title: %+v", r)
		}
	}
}
