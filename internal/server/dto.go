package server

import (
	"catreview/internal/domain"
	"catreview/internal/prep"
)

// Request payloads

type LoginRequest struct {
	Password string `json:"password"`
}

type SetCurrentStepRequest struct {
	StepID int `json:"step_id" minimum:"1"`
}

type TrafficLightRequest struct {
	Light string `json:"light" enum:",red,yellow,green"`
}

type InsightsRequest struct {
	Insights string `json:"insights"`
}

type CreateInitiativeRequest struct {
	Description          string  `json:"description"`
	ReportID             string  `json:"report_id" required:"false"`
	Status               string  `json:"status,omitempty" enum:"Новая,В работе,Выполнена,Просрочена"`
	RevenueImpactMillion float64 `json:"revenue_impact_million,omitempty"`
	MarginImpactMillion  float64 `json:"margin_impact_million,omitempty"`
	StartDate            string  `json:"start_date,omitempty" format:"date"`
	ImpactStartDate      string  `json:"impact_start_date,omitempty" format:"date"`
	ImpactCheckDate      string  `json:"impact_check_date,omitempty" format:"date"`
	Assignee             string  `json:"assignee,omitempty"`
	ParentID             *int    `json:"parent_id,omitempty"`
	SKUDetails           string  `json:"sku_details,omitempty"`
}

type UpdateInitiativeRequest struct {
	Description          *string  `json:"description,omitempty"`
	ReportID             *string  `json:"report_id,omitempty"`
	Status               *string  `json:"status,omitempty" enum:"Новая,В работе,Выполнена,Просрочена"`
	RevenueImpactMillion *float64 `json:"revenue_impact_million,omitempty"`
	MarginImpactMillion  *float64 `json:"margin_impact_million,omitempty"`
	StartDate            *string  `json:"start_date,omitempty" format:"date"`
	ImpactStartDate      *string  `json:"impact_start_date,omitempty" format:"date"`
	ImpactCheckDate      *string  `json:"impact_check_date,omitempty" format:"date"`
	Assignee             *string  `json:"assignee,omitempty"`
	SKUDetails           *string  `json:"sku_details,omitempty"`
	StepID               *int     `json:"step_id,omitempty"`
}

// Response payloads

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at" format:"date-time"`
}

type StepResponse struct {
	domain.PreparationStep
	CanProceed bool `json:"can_proceed"`
}

type InitiativeResponse struct {
	domain.Initiative
	StepID int `json:"step_id"`
}

type InitiativeDetailResponse struct {
	InitiativeResponse
	Subtasks []domain.Initiative `json:"subtasks"`
	Score    prep.Score          `json:"score"`
	Label    string              `json:"label"`
}

type CellResponse struct {
	domain.MatrixCell
	DerivedLight domain.TrafficLight `json:"derived_light"`
}

type PreparationResponse struct {
	Steps         []StepResponse       `json:"steps"`
	CurrentStepID int                  `json:"current_step_id"`
	StartDate     string               `json:"start_date" format:"date"`
	Initiatives   []InitiativeResponse `json:"initiatives"`
	TotalRevenue  float64              `json:"total_revenue"`
	TotalMargin   float64              `json:"total_margin"`
}

type ReportLookupResponse struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	StepID int    `json:"step_id"`
}

type StatusResponse struct {
	Category      string  `json:"category"`
	CurrentStepID int     `json:"current_step_id"`
	StartDate     string  `json:"start_date" format:"date"`
	Initiatives   int     `json:"initiatives"`
	TotalRevenue  float64 `json:"total_revenue"`
	TotalMargin   float64 `json:"total_margin"`
}

func stepResponse(s *prep.Store, step domain.PreparationStep) StepResponse {
	return StepResponse{PreparationStep: step, CanProceed: s.CanProceedToStep(step.ID)}
}

func initiativeResponse(s *prep.Store, init domain.Initiative) InitiativeResponse {
	stepID, _ := s.StepForInitiative(init.ID)
	return InitiativeResponse{Initiative: init, StepID: stepID}
}
