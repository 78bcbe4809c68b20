// Package catalog is the static report catalog: the lever/stage matrix, the
// report name registry and the derived per-cell statistics. Lookups are pure
// and never fail; an unknown (lever, stage) pair simply resolves to nothing.
package catalog

import (
	_ "embed"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"catreview/internal/domain"
)

//go:embed catalog.yml
var rawCatalog []byte

type cellSpec struct {
	Lever       string   `yaml:"lever"`
	Stage       string   `yaml:"stage"`
	Description string   `yaml:"description"`
	Questions   []string `yaml:"questions"`
	Current     []string `yaml:"current"`
	New         []string `yaml:"new"`
}

type fileSpec struct {
	Levers  []string          `yaml:"levers"`
	Stages  []string          `yaml:"stages"`
	Reports map[string]string `yaml:"reports"`
	Cells   []cellSpec        `yaml:"cells"`
}

type cellKey struct {
	Lever string
	Stage string
}

// Catalog resolves matrix cells and report metadata from the embedded
// configuration. Instances are immutable after Load.
type Catalog struct {
	levers []string
	stages []string
	names  map[string]string
	cells  map[cellKey]domain.MatrixCell

	// reportStep maps a report id to the 1-based index of the first stage
	// whose cells mention it, which is also the workflow step covering it.
	reportStep map[string]int
}

// Load parses the embedded catalog configuration.
func Load() (*Catalog, error) {
	var spec fileSpec
	if err := yaml.Unmarshal(rawCatalog, &spec); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{
		levers:     spec.Levers,
		stages:     spec.Stages,
		names:      spec.Reports,
		cells:      make(map[cellKey]domain.MatrixCell, len(spec.Cells)),
		reportStep: make(map[string]int),
	}

	stageIndex := make(map[string]int, len(spec.Stages))
	for i, s := range spec.Stages {
		stageIndex[s] = i + 1
	}

	for _, cs := range spec.Cells {
		if _, ok := stageIndex[cs.Stage]; !ok {
			return nil, fmt.Errorf("catalog cell %q/%q references unknown stage", cs.Lever, cs.Stage)
		}
		cell := domain.MatrixCell{
			Lever:       cs.Lever,
			Stage:       cs.Stage,
			Description: cs.Description,
			Questions:   cs.Questions,
		}
		for _, id := range cs.Current {
			cell.Reports = append(cell.Reports, c.report(id, domain.ReportCurrent))
		}
		for _, id := range cs.New {
			cell.Reports = append(cell.Reports, c.report(id, domain.ReportNew))
		}
		cell.TotalReports = len(cell.Reports)
		cell.NewReportsCount = len(cs.New)
		if cell.TotalReports > 0 {
			cell.NewReportsPercent = int(math.Round(float64(cell.NewReportsCount) / float64(cell.TotalReports) * 100))
		}
		c.cells[cellKey{Lever: cs.Lever, Stage: cs.Stage}] = cell

		for _, id := range append(append([]string{}, cs.Current...), cs.New...) {
			step, seen := c.reportStep[id]
			if !seen || stageIndex[cs.Stage] < step {
				c.reportStep[id] = stageIndex[cs.Stage]
			}
		}
	}
	return c, nil
}

func (c *Catalog) report(id string, typ domain.ReportType) domain.Report {
	title, ok := c.names[id]
	if !ok {
		title = id
	}
	kind := "Текущий"
	if typ == domain.ReportNew {
		kind = "Новый"
	}
	return domain.Report{
		ID:          id,
		Title:       title,
		Type:        typ,
		Description: fmt.Sprintf("%s отчёт %s", kind, id),
	}
}

// Levers returns the matrix rows in display order.
func (c *Catalog) Levers() []string { return c.levers }

// Stages returns the matrix columns in display order.
func (c *Catalog) Stages() []string { return c.stages }

// Cell resolves the (lever, stage) intersection. The second return is false
// when no such cell is defined or the cell carries no reports.
func (c *Catalog) Cell(lever, stage string) (domain.MatrixCell, bool) {
	cell, ok := c.cells[cellKey{Lever: lever, Stage: stage}]
	if !ok || cell.TotalReports == 0 {
		return domain.MatrixCell{}, false
	}
	return cell, true
}

// AllCells returns every defined cell that carries at least one report,
// ordered lever-major to match the matrix layout.
func (c *Catalog) AllCells() []domain.MatrixCell {
	out := make([]domain.MatrixCell, 0, len(c.cells))
	for _, lever := range c.levers {
		for _, stage := range c.stages {
			if cell, ok := c.Cell(lever, stage); ok {
				out = append(out, cell)
			}
		}
	}
	return out
}

// StepForReport maps a report id to the analysis step covering its stage.
// The second return is false for ids absent from the catalog.
func (c *Catalog) StepForReport(reportID string) (int, bool) {
	step, ok := c.reportStep[reportID]
	return step, ok
}

// ReportName returns the display name for a report id, falling back to the
// id itself for unknown codes.
func (c *Catalog) ReportName(id string) string {
	if name, ok := c.names[id]; ok {
		return name
	}
	return id
}

// TrafficLightForLever derives a health indicator from the share of new
// reports in the cell: below 50% red, below 75% yellow, otherwise green.
// Returns the unset light when the cell has no reports.
func (c *Catalog) TrafficLightForLever(lever, stage string) domain.TrafficLight {
	cell, ok := c.Cell(lever, stage)
	if !ok {
		return domain.LightNone
	}
	switch {
	case cell.NewReportsPercent < 50:
		return domain.LightRed
	case cell.NewReportsPercent < 75:
		return domain.LightYellow
	default:
		return domain.LightGreen
	}
}
