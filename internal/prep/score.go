package prep

import (
	"strings"
	"unicode/utf8"

	"catreview/internal/domain"
)

// Score is the 0-100 readiness assessment of one initiative, with the
// remediation hints for whatever is missing.
type Score struct {
	Score           int      `json:"score"`
	Recommendations []string `json:"recommendations"`
	Breakdown       struct {
		HasDescription bool `json:"has_description"`
		HasSubtasks    bool `json:"has_subtasks"`
		HasSKUDetails  bool `json:"has_sku_details"`
		HasAllDates    bool `json:"has_all_dates"`
		HasAssignee    bool `json:"has_assignee"`
		HasImpact      bool `json:"has_impact"`
	} `json:"breakdown"`
}

// DetailScore grades how thoroughly an initiative is worked out: description
// 10, subtasks 30, SKU detail 20, all three dates 15, assignee 10, nonzero
// impact 15.
func DetailScore(init domain.Initiative, all []domain.Initiative) Score {
	var sc Score
	sc.Recommendations = []string{}

	sc.Breakdown.HasDescription = utf8.RuneCountInString(strings.TrimSpace(init.Description)) > 10
	if sc.Breakdown.HasDescription {
		sc.Score += 10
	} else {
		sc.Recommendations = append(sc.Recommendations, "Добавьте подробное описание инициативы (минимум 10 символов)")
	}

	for _, t := range all {
		if t.ParentID != nil && *t.ParentID == init.ID {
			sc.Breakdown.HasSubtasks = true
			break
		}
	}
	if sc.Breakdown.HasSubtasks {
		sc.Score += 30
	} else {
		sc.Recommendations = append(sc.Recommendations, "Разбейте инициативу на подзадачи или этапы реализации")
	}

	sc.Breakdown.HasSKUDetails = utf8.RuneCountInString(strings.TrimSpace(init.SKUDetails)) > 5
	if sc.Breakdown.HasSKUDetails {
		sc.Score += 20
	} else {
		sc.Recommendations = append(sc.Recommendations, "Добавьте детализацию по конкретным SKU или товарным группам")
	}

	sc.Breakdown.HasAllDates = init.StartDate != "" && init.ImpactStartDate != "" && init.ImpactCheckDate != ""
	if sc.Breakdown.HasAllDates {
		sc.Score += 15
	} else {
		if init.StartDate == "" {
			sc.Recommendations = append(sc.Recommendations, "Укажите дату начала работы над инициативой")
		}
		if init.ImpactStartDate == "" {
			sc.Recommendations = append(sc.Recommendations, "Укажите дату начала проявления эффекта")
		}
		if init.ImpactCheckDate == "" {
			sc.Recommendations = append(sc.Recommendations, "Укажите дату проверки достижения импакта")
		}
	}

	sc.Breakdown.HasAssignee = strings.TrimSpace(init.Assignee) != ""
	if sc.Breakdown.HasAssignee {
		sc.Score += 10
	} else {
		sc.Recommendations = append(sc.Recommendations, "Назначьте ответственного за инициативу")
	}

	sc.Breakdown.HasImpact = init.RevenueImpactMillion > 0 || init.MarginImpactMillion > 0
	if sc.Breakdown.HasImpact {
		sc.Score += 15
	} else {
		sc.Recommendations = append(sc.Recommendations, "Заполните ожидаемый импакт на выручку или маржу")
	}

	return sc
}

// ScoreLabel is the textual grade for a detail score.
func ScoreLabel(score int) string {
	switch {
	case score >= 80:
		return "Хорошо"
	case score >= 50:
		return "Средне"
	default:
		return "Требует доработки"
	}
}
