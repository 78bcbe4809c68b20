// Package prep is the preparation workflow core: a guarded multi-step wizard
// that accumulates prioritized initiatives with projected revenue and margin
// impact, persisted as a versioned snapshot after every mutation.
package prep

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"catreview/internal/domain"
	"catreview/internal/events"
	"catreview/internal/snapshot"
)

// baseInitiativeID keeps assigned ids clear of pre-seeded fixture ids.
const baseInitiativeID = 1000

// Resolver is the static catalog lookup the workflow depends on. Lookups are
// pure; a false second return is a normal outcome, not an error.
type Resolver interface {
	Levers() []string
	Cell(lever, stage string) (domain.MatrixCell, bool)
	StepForReport(reportID string) (int, bool)
}

// StepConfig declares one wizard step. The step list is fixed at compile
// time; persisted snapshots carry the mutable state only.
type StepConfig struct {
	ID          int
	Name        string
	Description string
	StageKey    string
	Type        domain.StepType
}

// StepConfigs is the wizard layout. Steps 1-3 analyze the catalog stages
// lever by lever; later steps have no lever gating.
var StepConfigs = []StepConfig{
	{ID: 1, Name: "Здоровье и эффективность", Description: "Анализ здоровья категории по всем рычагам", StageKey: "Здоровье и эффективность", Type: domain.StepAnalysis},
	{ID: 2, Name: "Потребности покупателя", Description: "Потребности и структура спроса по всем рычагам", StageKey: "Потребности покупателя", Type: domain.StepAnalysis},
	{ID: 3, Name: "Разрывы с рынком", Description: "Разрывы с рынком по всем рычагам", StageKey: "Разрывы с рынком", Type: domain.StepAnalysis},
	{ID: 4, Name: "Обзор e-com", Description: "Доля e-com, динамика онлайн vs офлайн, уникальность ассортимента", Type: domain.StepAnalysis},
	{ID: 5, Name: "Детализация до SKU", Description: "Углубленный анализ проблемных зон", Type: domain.StepAnalysis},
	{ID: 6, Name: "Инициативы и приоритизация", Description: "Просмотр, корректировка и приоритизация инициатив", Type: domain.StepInitiatives},
	{ID: 7, Name: "Финализация", Description: "Итоговый summary с экспортом", Type: domain.StepSummary},
}

func stepConfigByID(id int) (StepConfig, bool) {
	for _, c := range StepConfigs {
		if c.ID == id {
			return c, true
		}
	}
	return StepConfig{}, false
}

// Store holds the live workflow state behind a mutex and mirrors every
// mutation into the snapshot slot. Operations are deliberately permissive:
// unknown step or initiative ids degrade to no-ops, and persistence failures
// are logged and swallowed rather than surfaced to callers.
type Store struct {
	mu       sync.Mutex
	repo     snapshot.Repo
	resolver Resolver
	log      *zap.Logger
	now      func() time.Time

	state domain.Snapshot
}

// New loads the persisted snapshot or initializes a fresh workflow when the
// slot is empty, corrupt, or carries a different snapshot version. Loaded
// snapshots get missing per-lever entries backfilled without disturbing
// existing values.
func New(ctx context.Context, repo snapshot.Repo, resolver Resolver, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		repo:     repo,
		resolver: resolver,
		log:      log,
		now:      time.Now,
	}
	if repo.Now != nil {
		s.now = repo.Now
	}

	snap, err := repo.Load(ctx, snapshot.Key)
	switch {
	case err == snapshot.ErrNotFound:
		s.state = s.freshState()
	case err != nil:
		log.Warn("snapshot unreadable, starting fresh", zap.Error(err))
		s.state = s.freshState()
	case snap.Version != domain.SnapshotVersion:
		log.Warn("snapshot version mismatch, starting fresh",
			zap.Int("stored", snap.Version), zap.Int("expected", domain.SnapshotVersion))
		s.state = s.freshState()
	default:
		if snap.InitiativeSteps == nil {
			snap.InitiativeSteps = map[int]int{}
		}
		for i := range snap.Steps {
			snap.Steps[i] = s.ensureStepStructure(snap.Steps[i])
		}
		snap.Steps = recalcTotals(snap.Steps, snap.Initiatives, snap.InitiativeSteps)
		s.state = snap
	}
	return s
}

func (s *Store) todayISO() string {
	return s.now().Format("2006-01-02")
}

func (s *Store) freshState() domain.Snapshot {
	steps := make([]domain.PreparationStep, 0, len(StepConfigs))
	for _, c := range StepConfigs {
		steps = append(steps, s.defaultStep(c))
	}
	return domain.Snapshot{
		Version:          domain.SnapshotVersion,
		Steps:            steps,
		CurrentStepID:    1,
		StartDate:        s.todayISO(),
		Initiatives:      []domain.Initiative{},
		NextInitiativeID: baseInitiativeID,
		InitiativeSteps:  map[int]int{},
	}
}

func (s *Store) defaultStep(c StepConfig) domain.PreparationStep {
	step := domain.PreparationStep{
		ID:             c.ID,
		Name:           c.Name,
		Description:    c.Description,
		StageKey:       c.StageKey,
		Type:           c.Type,
		Status:         domain.StepNotStarted,
		LeversAnalyzed: []string{},
		InitiativeIDs:  []int{},
		LeverStates:    map[string]domain.LeverStatus{},
		TrafficLights:  map[string]domain.TrafficLight{},
		Insights:       map[string]string{},
	}
	if c.ID == 1 {
		step.Status = domain.StepInProgress
	}
	if c.StageKey != "" && c.Type == domain.StepAnalysis {
		for _, lever := range s.resolver.Levers() {
			if _, ok := s.resolver.Cell(lever, c.StageKey); ok {
				step.LeverStates[lever] = domain.LeverNotViewed
				step.TrafficLights[lever] = domain.LightNone
				step.Insights[lever] = ""
			}
		}
	}
	return step
}

// ensureStepStructure backfills lever-map entries the catalog gained since
// the snapshot was written. Existing values are never touched.
func (s *Store) ensureStepStructure(step domain.PreparationStep) domain.PreparationStep {
	if step.LeverStates == nil {
		step.LeverStates = map[string]domain.LeverStatus{}
	}
	if step.TrafficLights == nil {
		step.TrafficLights = map[string]domain.TrafficLight{}
	}
	if step.Insights == nil {
		step.Insights = map[string]string{}
	}
	if step.LeversAnalyzed == nil {
		step.LeversAnalyzed = []string{}
	}
	if step.InitiativeIDs == nil {
		step.InitiativeIDs = []int{}
	}
	c, ok := stepConfigByID(step.ID)
	if !ok || c.StageKey == "" || c.Type != domain.StepAnalysis {
		return step
	}
	for _, lever := range s.resolver.Levers() {
		if _, resolved := s.resolver.Cell(lever, c.StageKey); !resolved {
			continue
		}
		if _, exists := step.LeverStates[lever]; !exists {
			step.LeverStates[lever] = domain.LeverNotViewed
		}
		if _, exists := step.TrafficLights[lever]; !exists {
			step.TrafficLights[lever] = domain.LightNone
		}
		if _, exists := step.Insights[lever]; !exists {
			step.Insights[lever] = ""
		}
	}
	return step
}

// recalcTotals rebuilds each step's initiative list and impact totals from
// scratch. Subtasks stay out of both the list and the sums; their impact is
// reported through their parent.
func recalcTotals(steps []domain.PreparationStep, initiatives []domain.Initiative, stepMap map[int]int) []domain.PreparationStep {
	out := make([]domain.PreparationStep, len(steps))
	for i, step := range steps {
		ids := []int{}
		var revenue, margin float64
		for _, init := range initiatives {
			if init.IsSubtask() || stepMap[init.ID] != step.ID {
				continue
			}
			ids = append(ids, init.ID)
			revenue += init.RevenueImpactMillion
			margin += init.MarginImpactMillion
		}
		step.InitiativeIDs = ids
		step.TotalRevenueImpact = revenue
		step.TotalMarginImpact = margin
		out[i] = step
	}
	return out
}

// persist writes the current state to the snapshot slot with an audit event.
// Failures are logged and swallowed.
func (s *Store) persist(ctx context.Context, evtType string, stepID int, lever string, initiativeID int, payload events.EventPayload) {
	s.state.Version = domain.SnapshotVersion
	if err := s.repo.Save(ctx, snapshot.Key, s.state, evtType, stepID, lever, initiativeID, payload); err != nil {
		s.log.Warn("persist snapshot", zap.String("event", evtType), zap.Error(err))
	}
}

// SetCurrentStep moves the wizard pointer. The step being left is marked
// completed if it was in progress; the target becomes in progress. Gating is
// the caller's concern via CanProceedToStep.
func (s *Store) SetCurrentStep(ctx context.Context, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.state.Steps {
		switch s.state.Steps[i].ID {
		case s.state.CurrentStepID:
			if s.state.Steps[i].Status == domain.StepInProgress {
				s.state.Steps[i].Status = domain.StepCompleted
			}
		case id:
			s.state.Steps[i].Status = domain.StepInProgress
		}
	}
	s.state.CurrentStepID = id
	s.persist(ctx, "step.enter", id, "", 0, nil)
}

// MarkLeverViewed sets the lever's view status and records it in the step's
// deduplicated analyzed list. Re-marking a viewed lever is a no-op on the
// list.
func (s *Store) MarkLeverViewed(ctx context.Context, stepID int, lever string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := s.stepRef(stepID)
	if step == nil {
		return
	}
	step.LeverStates[lever] = domain.LeverViewed
	seen := false
	for _, l := range step.LeversAnalyzed {
		if l == lever {
			seen = true
			break
		}
	}
	if !seen {
		step.LeversAnalyzed = append(step.LeversAnalyzed, lever)
	}
	s.persist(ctx, "lever.viewed", stepID, lever, 0, nil)
}

// SetLeverTrafficLight replaces exactly one traffic-light entry.
func (s *Store) SetLeverTrafficLight(ctx context.Context, stepID int, lever string, light domain.TrafficLight) {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := s.stepRef(stepID)
	if step == nil {
		return
	}
	step.TrafficLights[lever] = light
	s.persist(ctx, "lever.traffic_light", stepID, lever, 0, events.EventPayload{"light": string(light)})
}

// SetLeverInsights replaces the free-text note for one lever.
func (s *Store) SetLeverInsights(ctx context.Context, stepID int, lever string, insights string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := s.stepRef(stepID)
	if step == nil {
		return
	}
	step.Insights[lever] = insights
	s.persist(ctx, "lever.insights", stepID, lever, 0, nil)
}

// AddInitiative attaches an initiative to a step and returns the assigned
// id. A zero incoming id draws from the monotonic sequence; a non-zero id is
// kept as-is (used when seeding fixtures).
func (s *Store) AddInitiative(ctx context.Context, stepID int, init domain.Initiative) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if init.ID == 0 {
		init.ID = s.state.NextInitiativeID
		s.state.NextInitiativeID++
	}
	if init.CreatedDate == "" {
		init.CreatedDate = s.todayISO()
	}
	s.state.Initiatives = append(s.state.Initiatives, init)
	s.state.InitiativeSteps[init.ID] = stepID
	s.state.Steps = recalcTotals(s.state.Steps, s.state.Initiatives, s.state.InitiativeSteps)
	s.persist(ctx, "initiative.add", stepID, "", init.ID, events.EventPayload{"report_id": init.ReportID})
	return init.ID
}

// RemoveInitiative deletes an initiative together with its whole subtask
// subtree. Unknown ids are a no-op.
func (s *Store) RemoveInitiative(ctx context.Context, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doomed := map[int]bool{id: true}
	for {
		grew := false
		for _, init := range s.state.Initiatives {
			if init.ParentID != nil && doomed[*init.ParentID] && !doomed[init.ID] {
				doomed[init.ID] = true
				grew = true
			}
		}
		if !grew {
			break
		}
	}

	kept := s.state.Initiatives[:0]
	for _, init := range s.state.Initiatives {
		if doomed[init.ID] {
			delete(s.state.InitiativeSteps, init.ID)
			continue
		}
		kept = append(kept, init)
	}
	s.state.Initiatives = kept
	s.state.Steps = recalcTotals(s.state.Steps, s.state.Initiatives, s.state.InitiativeSteps)
	s.persist(ctx, "initiative.remove", 0, "", id, events.EventPayload{"removed": len(doomed)})
}

// InitiativeUpdate is a partial patch; nil fields are left unchanged. StepID
// re-homes the initiative to another step.
type InitiativeUpdate struct {
	Description          *string
	ReportID             *string
	Status               *domain.InitiativeStatus
	RevenueImpactMillion *float64
	MarginImpactMillion  *float64
	StartDate            *string
	ImpactStartDate      *string
	ImpactCheckDate      *string
	Assignee             *string
	SKUDetails           *string
	StepID               *int
}

// UpdateInitiative applies a partial patch. Unknown ids are a no-op.
func (s *Store) UpdateInitiative(ctx context.Context, id int, upd InitiativeUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.state.Initiatives {
		if s.state.Initiatives[i].ID != id {
			continue
		}
		init := &s.state.Initiatives[i]
		if upd.Description != nil {
			init.Description = *upd.Description
		}
		if upd.ReportID != nil {
			init.ReportID = *upd.ReportID
		}
		if upd.Status != nil {
			init.Status = *upd.Status
		}
		if upd.RevenueImpactMillion != nil {
			init.RevenueImpactMillion = *upd.RevenueImpactMillion
		}
		if upd.MarginImpactMillion != nil {
			init.MarginImpactMillion = *upd.MarginImpactMillion
		}
		if upd.StartDate != nil {
			init.StartDate = *upd.StartDate
		}
		if upd.ImpactStartDate != nil {
			init.ImpactStartDate = *upd.ImpactStartDate
		}
		if upd.ImpactCheckDate != nil {
			init.ImpactCheckDate = *upd.ImpactCheckDate
		}
		if upd.Assignee != nil {
			init.Assignee = *upd.Assignee
		}
		if upd.SKUDetails != nil {
			init.SKUDetails = *upd.SKUDetails
		}
		if upd.StepID != nil {
			s.state.InitiativeSteps[id] = *upd.StepID
		}
		s.state.Steps = recalcTotals(s.state.Steps, s.state.Initiatives, s.state.InitiativeSteps)
		s.persist(ctx, "initiative.update", s.state.InitiativeSteps[id], "", id, nil)
		return
	}
}

// SetInitiativeStep re-homes an initiative to another step.
func (s *Store) SetInitiativeStep(ctx context.Context, id, stepID int) {
	s.UpdateInitiative(ctx, id, InitiativeUpdate{StepID: &stepID})
}

// CompleteStep marks a step completed and stamps the completion date.
func (s *Store) CompleteStep(ctx context.Context, stepID int) {
	s.setStepStatus(ctx, stepID, domain.StepCompleted, "step.complete")
}

// SkipStep marks a step skipped and stamps the completion date.
func (s *Store) SkipStep(ctx context.Context, stepID int) {
	s.setStepStatus(ctx, stepID, domain.StepSkipped, "step.skip")
}

func (s *Store) setStepStatus(ctx context.Context, stepID int, status domain.StepStatus, evtType string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := s.stepRef(stepID)
	if step == nil {
		return
	}
	step.Status = status
	step.CompletionDate = s.todayISO()
	s.persist(ctx, evtType, stepID, "", 0, nil)
}

// CanProceedToStep reports whether the wizard may move to the given step.
// Backward moves are always allowed; forward moves are limited to one step.
// For the lever-analysis steps the current step must have every lever viewed
// or at least one initiative attached; a step with zero resolvable levers
// never blocks. Steps past the analysis phase allow advancement freely.
func (s *Store) CanProceedToStep(stepID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stepID <= s.state.CurrentStepID {
		return true
	}
	if stepID > s.state.CurrentStepID+1 {
		return false
	}

	var current *domain.PreparationStep
	for i := range s.state.Steps {
		if s.state.Steps[i].ID == s.state.CurrentStepID {
			current = &s.state.Steps[i]
			break
		}
	}
	if current == nil {
		return true
	}

	hasInitiatives := false
	for id, step := range s.state.InitiativeSteps {
		if step != s.state.CurrentStepID {
			continue
		}
		for _, init := range s.state.Initiatives {
			if init.ID == id {
				hasInitiatives = true
				break
			}
		}
		if hasInitiatives {
			break
		}
	}

	if c, ok := stepConfigByID(s.state.CurrentStepID); ok && c.StageKey != "" && c.Type == domain.StepAnalysis {
		if len(current.LeverStates) == 0 {
			return true
		}
		allViewed := true
		for _, status := range current.LeverStates {
			if status == domain.LeverNotViewed {
				allViewed = false
				break
			}
		}
		return allViewed || hasInitiatives
	}
	return true
}

// ResetPreparation discards all workflow state and starts over.
func (s *Store) ResetPreparation(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = s.freshState()
	s.persist(ctx, "workflow.reset", 0, "", 0, nil)
}

// SeedFromTasks merges fixture initiatives into the workflow. Existing ids
// keep their values and only gain missing optional fields; new ids are
// inserted and homed on the analysis step covering their report, falling
// back to step 1. Seeding never lowers the id sequence.
func (s *Store) SeedFromTasks(ctx context.Context, tasks []domain.Initiative) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[int]int, len(s.state.Initiatives))
	for i, init := range s.state.Initiatives {
		byID[init.ID] = i
	}

	maxID := 0
	added := 0
	for _, t := range tasks {
		if t.ID > maxID {
			maxID = t.ID
		}
		if idx, exists := byID[t.ID]; exists {
			backfillInitiative(&s.state.Initiatives[idx], t)
			continue
		}
		if t.CreatedDate == "" {
			t.CreatedDate = s.todayISO()
		}
		s.state.Initiatives = append(s.state.Initiatives, t)
		byID[t.ID] = len(s.state.Initiatives) - 1
		step, ok := s.resolver.StepForReport(t.ReportID)
		if !ok {
			step = 1
		}
		s.state.InitiativeSteps[t.ID] = step
		added++
	}

	if next := maxID + 1; next > s.state.NextInitiativeID {
		s.state.NextInitiativeID = next
	}
	s.state.Steps = recalcTotals(s.state.Steps, s.state.Initiatives, s.state.InitiativeSteps)
	s.persist(ctx, "workflow.seed", 0, "", 0, events.EventPayload{"added": added, "total": len(s.state.Initiatives)})
}

// backfillInitiative fills only the optional fields the stored initiative is
// missing. Values the manager already set are never overwritten.
func backfillInitiative(dst *domain.Initiative, src domain.Initiative) {
	if dst.StartDate == "" {
		dst.StartDate = src.StartDate
	}
	if dst.ImpactStartDate == "" {
		dst.ImpactStartDate = src.ImpactStartDate
	}
	if dst.ImpactCheckDate == "" {
		dst.ImpactCheckDate = src.ImpactCheckDate
	}
	if dst.Assignee == "" {
		dst.Assignee = src.Assignee
	}
	if dst.SKUDetails == "" {
		dst.SKUDetails = src.SKUDetails
	}
	if dst.ParentID == nil && src.ParentID != nil {
		v := *src.ParentID
		dst.ParentID = &v
	}
}

func (s *Store) stepRef(id int) *domain.PreparationStep {
	for i := range s.state.Steps {
		if s.state.Steps[i].ID == id {
			return &s.state.Steps[i]
		}
	}
	return nil
}
