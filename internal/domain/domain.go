package domain

// InitiativeStatus is the lifecycle status of an initiative. Values are the
// manager-facing Russian labels that also appear in seed fixtures and exports.
type InitiativeStatus string

const (
	StatusNew        InitiativeStatus = "Новая"
	StatusInProgress InitiativeStatus = "В работе"
	StatusDone       InitiativeStatus = "Выполнена"
	StatusOverdue    InitiativeStatus = "Просрочена"
)

// Initiative is a unit of planned work tied to one report. An initiative with
// ParentID set is a subtask: stored in the same collection, excluded from
// top-level listings and from step revenue/margin totals.
type Initiative struct {
	ID                   int              `json:"id"`
	Description          string           `json:"description"`
	ReportID             string           `json:"report_id"`
	Status               InitiativeStatus `json:"status" enum:"Новая,В работе,Выполнена,Просрочена"`
	RevenueImpactMillion float64          `json:"revenue_impact_million"`
	MarginImpactMillion  float64          `json:"margin_impact_million"`
	CreatedDate          string           `json:"created_date" format:"date"`
	StartDate            string           `json:"start_date,omitempty" format:"date"`
	ImpactStartDate      string           `json:"impact_start_date,omitempty" format:"date"`
	ImpactCheckDate      string           `json:"impact_check_date,omitempty" format:"date"`
	Assignee             string           `json:"assignee,omitempty"`
	ParentID             *int             `json:"parent_id,omitempty"`
	SKUDetails           string           `json:"sku_details,omitempty"`
}

// IsSubtask reports whether the initiative is nested under a parent.
func (i Initiative) IsSubtask() bool { return i.ParentID != nil }

type StepStatus string

const (
	StepNotStarted StepStatus = "not_started"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepSkipped    StepStatus = "skipped"
)

type StepType string

const (
	StepAnalysis    StepType = "analysis"
	StepInitiatives StepType = "initiatives"
	StepSummary     StepType = "summary"
)

type LeverStatus string

const (
	LeverNotViewed LeverStatus = "not_viewed"
	LeverViewed    LeverStatus = "viewed"
	LeverAnalyzed  LeverStatus = "analyzed"
)

// TrafficLight is a red/yellow/green health indicator for a lever within a
// step. The empty string means no light has been set.
type TrafficLight string

const (
	LightNone   TrafficLight = ""
	LightRed    TrafficLight = "red"
	LightYellow TrafficLight = "yellow"
	LightGreen  TrafficLight = "green"
)

// PreparationStep is one stage of the guided review workflow. Steps are built
// once from the fixed configuration; only their mutable fields change at
// runtime. TotalRevenueImpact and TotalMarginImpact are always recomputed
// from the initiative collection, never patched in place.
type PreparationStep struct {
	ID                 int                     `json:"id"`
	Name               string                  `json:"name"`
	Description        string                  `json:"description"`
	StageKey           string                  `json:"stage_key,omitempty"`
	Type               StepType                `json:"type" enum:"analysis,initiatives,summary"`
	Status             StepStatus              `json:"status" enum:"not_started,in_progress,completed,skipped"`
	LeversAnalyzed     []string                `json:"levers_analyzed"`
	InitiativeIDs      []int                   `json:"initiative_ids"`
	TotalRevenueImpact float64                 `json:"total_revenue_impact"`
	TotalMarginImpact  float64                 `json:"total_margin_impact"`
	CompletionDate     string                  `json:"completion_date,omitempty" format:"date"`
	LeverStates        map[string]LeverStatus  `json:"lever_states"`
	TrafficLights      map[string]TrafficLight `json:"traffic_lights"`
	Insights           map[string]string       `json:"insights"`
}

type ReportType string

const (
	ReportCurrent ReportType = "current"
	ReportNew     ReportType = "new"
)

type Report struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Type        ReportType `json:"type" enum:"current,new"`
	Description string     `json:"description,omitempty"`
}

// MatrixCell is the (lever, stage) intersection of the review matrix,
// carrying the reports and the manager-facing questions for that pair.
type MatrixCell struct {
	Lever             string   `json:"lever"`
	Stage             string   `json:"stage"`
	Description       string   `json:"description"`
	Questions         []string `json:"questions,omitempty"`
	Reports           []Report `json:"reports"`
	TotalReports      int      `json:"total_reports"`
	NewReportsCount   int      `json:"new_reports_count"`
	NewReportsPercent int      `json:"new_reports_percent"`
}

// Event is an append-only audit record of one workflow mutation.
type Event struct {
	ID           int64  `json:"id"`
	TS           string `json:"ts" format:"date-time"`
	Type         string `json:"type"`
	StepID       int    `json:"step_id,omitempty"`
	Lever        string `json:"lever,omitempty"`
	InitiativeID int    `json:"initiative_id,omitempty"`
	Payload      string `json:"payload_json"`
}

// SnapshotVersion identifies the persisted state shape. Snapshots carrying a
// different version are discarded and the workflow starts fresh.
const SnapshotVersion = 1

// Snapshot is the serializable subset of workflow state written to the
// durable slot after every mutation and read back at startup.
type Snapshot struct {
	Version          int               `json:"version"`
	Steps            []PreparationStep `json:"steps"`
	CurrentStepID    int               `json:"current_step_id"`
	StartDate        string            `json:"start_date" format:"date"`
	Initiatives      []Initiative      `json:"initiatives"`
	NextInitiativeID int               `json:"next_initiative_id"`
	InitiativeSteps  map[int]int       `json:"initiative_steps"`
}
