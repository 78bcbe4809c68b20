package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"catreview/internal/app"
	"catreview/internal/domain"
	"catreview/internal/prep"
)

// registerExport serves the finalization summary as a markdown document.
func registerExport(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "export-summary",
		Method:      http.MethodGet,
		Path:        "/export/summary",
		Summary:     "Final review summary as markdown",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		ContentType string `header:"Content-Type"`
		Body        []byte
	}, error) {
		return &struct {
			ContentType string `header:"Content-Type"`
			Body        []byte
		}{
			ContentType: "text/markdown; charset=utf-8",
			Body:        []byte(renderSummary(a)),
		}, nil
	})
}

func renderSummary(a *app.App) string {
	store := a.Store
	var b strings.Builder
	fmt.Fprintf(&b, "# Category Review: %s\n\n", a.Config.Category.Name)
	fmt.Fprintf(&b, "Начало подготовки: %s\n\n", store.StartDate())
	fmt.Fprintf(&b, "Суммарный импакт: выручка %.1f млн, маржа %.1f млн\n\n", store.TotalRevenue(), store.TotalMargin())

	for _, step := range store.Steps() {
		fmt.Fprintf(&b, "## Шаг %d. %s (%s)\n\n", step.ID, step.Name, step.Status)
		if len(step.LeversAnalyzed) > 0 {
			fmt.Fprintf(&b, "Проанализированы рычаги: %s\n\n", strings.Join(step.LeversAnalyzed, ", "))
		}
		for _, lever := range a.Catalog.Levers() {
			if light := step.TrafficLights[lever]; light != "" {
				fmt.Fprintf(&b, "- Светофор «%s»: %s\n", lever, light)
			}
			if note := strings.TrimSpace(step.Insights[lever]); note != "" {
				fmt.Fprintf(&b, "- Инсайт «%s»: %s\n", lever, note)
			}
		}
		initiatives := []domain.Initiative{}
		for _, init := range store.InitiativesForStep(step.ID) {
			if !init.IsSubtask() {
				initiatives = append(initiatives, init)
			}
		}
		if len(initiatives) > 0 {
			fmt.Fprintf(&b, "\nИнициативы (выручка %.1f млн, маржа %.1f млн):\n\n", step.TotalRevenueImpact, step.TotalMarginImpact)
			all := store.Initiatives()
			for _, init := range initiatives {
				score := prep.DetailScore(init, all)
				fmt.Fprintf(&b, "- [%d] %s — %s, проработка %d%% (%s)\n",
					init.ID, init.Description, init.Status, score.Score, prep.ScoreLabel(score.Score))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
