package prep_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"catreview/internal/catalog"
	"catreview/internal/db"
	"catreview/internal/domain"
	"catreview/internal/events"
	"catreview/internal/migrate"
	"catreview/internal/prep"
	"catreview/internal/seed"
	"catreview/internal/snapshot"
)

type testEnv struct {
	Store *prep.Store
	Repo  snapshot.Repo
	DB    *sql.DB
	Ctx   context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	now := func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	repo := snapshot.Repo{DB: conn, Events: events.Writer{DB: conn, Now: now}, Now: now}
	ctx := context.Background()
	return testEnv{
		Store: prep.New(ctx, repo, cat, nil),
		Repo:  repo,
		DB:    conn,
		Ctx:   ctx,
	}
}

func TestFreshWorkflowLayout(t *testing.T) {
	env := newTestEnv(t)
	steps := env.Store.Steps()
	if len(steps) != 7 {
		t.Fatalf("expected 7 steps, got %d", len(steps))
	}
	if env.Store.CurrentStepID() != 1 {
		t.Fatalf("expected current step 1, got %d", env.Store.CurrentStepID())
	}
	if steps[0].Status != domain.StepInProgress {
		t.Fatalf("step 1 should start in progress, got %s", steps[0].Status)
	}
	for _, s := range steps[1:] {
		if s.Status != domain.StepNotStarted {
			t.Fatalf("step %d should be not started, got %s", s.ID, s.Status)
		}
	}
	if env.Store.StartDate() != "2024-03-15" {
		t.Fatalf("start date: %s", env.Store.StartDate())
	}
	// each analysis step over a catalog stage tracks all four levers
	for _, id := range []int{1, 2, 3} {
		step, _ := env.Store.StepByID(id)
		if len(step.LeverStates) != 4 {
			t.Fatalf("step %d lever states: %d", id, len(step.LeverStates))
		}
		for lever, st := range step.LeverStates {
			if st != domain.LeverNotViewed {
				t.Fatalf("step %d lever %s should start not viewed, got %s", id, lever, st)
			}
		}
	}
	for _, id := range []int{4, 5, 6, 7} {
		step, _ := env.Store.StepByID(id)
		if len(step.LeverStates) != 0 {
			t.Fatalf("step %d should have no lever states", id)
		}
	}
}

func TestAddInitiativeAssignsSequentialIDs(t *testing.T) {
	env := newTestEnv(t)
	first := env.Store.AddInitiative(env.Ctx, 1, domain.Initiative{Description: "Сократить хвост", RevenueImpactMillion: 5})
	if first != 1000 {
		t.Fatalf("first assigned id should be 1000, got %d", first)
	}
	second := env.Store.AddInitiative(env.Ctx, 1, domain.Initiative{Description: "Пересмотреть промо"})
	if second != 1001 {
		t.Fatalf("second assigned id should be 1001, got %d", second)
	}
	init, ok := env.Store.InitiativeByID(first)
	if !ok {
		t.Fatalf("initiative %d not found", first)
	}
	if init.CreatedDate != "2024-03-15" {
		t.Fatalf("created date should default to today, got %q", init.CreatedDate)
	}
	step, _ := env.Store.StepByID(1)
	if step.TotalRevenueImpact != 5 {
		t.Fatalf("step 1 revenue total: %v", step.TotalRevenueImpact)
	}
	if len(step.InitiativeIDs) != 2 {
		t.Fatalf("step 1 initiative ids: %v", step.InitiativeIDs)
	}
}

func TestStepTotalsExcludeSubtasks(t *testing.T) {
	env := newTestEnv(t)
	parent := env.Store.AddInitiative(env.Ctx, 1, domain.Initiative{Description: "Родительская", RevenueImpactMillion: 10, MarginImpactMillion: 2})
	env.Store.AddInitiative(env.Ctx, 1, domain.Initiative{Description: "Подзадача", RevenueImpactMillion: 99, MarginImpactMillion: 7, ParentID: &parent})

	step, _ := env.Store.StepByID(1)
	if step.TotalRevenueImpact != 10 || step.TotalMarginImpact != 2 {
		t.Fatalf("step totals should count top-level only: %v / %v", step.TotalRevenueImpact, step.TotalMarginImpact)
	}
	if len(step.InitiativeIDs) != 1 || step.InitiativeIDs[0] != parent {
		t.Fatalf("subtask leaked into step list: %v", step.InitiativeIDs)
	}
	subs := env.Store.Subtasks(parent)
	if len(subs) != 1 {
		t.Fatalf("subtasks: %d", len(subs))
	}
}

func TestGlobalTotalsIncludeSubtasks(t *testing.T) {
	env := newTestEnv(t)
	parent := env.Store.AddInitiative(env.Ctx, 1, domain.Initiative{Description: "Родительская", RevenueImpactMillion: 10, MarginImpactMillion: 2})
	env.Store.AddInitiative(env.Ctx, 1, domain.Initiative{Description: "Подзадача", RevenueImpactMillion: 99, MarginImpactMillion: 7, ParentID: &parent})

	if got := env.Store.TotalRevenue(); got != 109 {
		t.Fatalf("global revenue should cover the entire collection: %v", got)
	}
	if got := env.Store.TotalMargin(); got != 9 {
		t.Fatalf("global margin should cover the entire collection: %v", got)
	}
}

func TestInitiativesForStepIncludesNested(t *testing.T) {
	env := newTestEnv(t)
	parent := env.Store.AddInitiative(env.Ctx, 1, domain.Initiative{Description: "Родительская"})
	sub := env.Store.AddInitiative(env.Ctx, 1, domain.Initiative{Description: "Подзадача", ParentID: &parent})
	env.Store.AddInitiative(env.Ctx, 2, domain.Initiative{Description: "Другой шаг"})

	items := env.Store.InitiativesForStep(1)
	if len(items) != 2 {
		t.Fatalf("step 1 should list parent and subtask, got %d", len(items))
	}
	ids := map[int]bool{}
	for _, it := range items {
		ids[it.ID] = true
	}
	if !ids[parent] || !ids[sub] {
		t.Fatalf("missing ids in step listing: %v", ids)
	}
}

func TestCanProceedGating(t *testing.T) {
	env := newTestEnv(t)
	if !env.Store.CanProceedToStep(1) {
		t.Fatal("same step must always be reachable")
	}
	if env.Store.CanProceedToStep(2) {
		t.Fatal("step 2 should be blocked until every lever is viewed")
	}
	if env.Store.CanProceedToStep(3) {
		t.Fatal("jumping two steps ahead must be blocked")
	}

	levers := []string{"Ассортимент", "Цена и Промо", "Полка", "Бренды и Поставщики"}
	for i, lever := range levers {
		env.Store.MarkLeverViewed(env.Ctx, 1, lever)
		got := env.Store.CanProceedToStep(2)
		want := i == len(levers)-1
		if got != want {
			t.Fatalf("after %d levers viewed CanProceed(2)=%v", i+1, got)
		}
	}

	step, _ := env.Store.StepByID(1)
	if len(step.LeversAnalyzed) != 4 {
		t.Fatalf("levers analyzed: %v", step.LeversAnalyzed)
	}
	// re-marking must not duplicate
	env.Store.MarkLeverViewed(env.Ctx, 1, "Ассортимент")
	step, _ = env.Store.StepByID(1)
	if len(step.LeversAnalyzed) != 4 {
		t.Fatalf("duplicate lever in analyzed list: %v", step.LeversAnalyzed)
	}
}

func TestInitiativeUnblocksStep(t *testing.T) {
	env := newTestEnv(t)
	if env.Store.CanProceedToStep(2) {
		t.Fatal("fresh step 1 should block")
	}
	env.Store.AddInitiative(env.Ctx, 1, domain.Initiative{Description: "Хоть одна инициатива"})
	if !env.Store.CanProceedToStep(2) {
		t.Fatal("an attached initiative should unblock the step")
	}
}

func TestLaterStepsAdvanceFreely(t *testing.T) {
	env := newTestEnv(t)
	env.Store.AddInitiative(env.Ctx, 1, domain.Initiative{Description: "x"})
	env.Store.SetCurrentStep(env.Ctx, 2)
	env.Store.AddInitiative(env.Ctx, 2, domain.Initiative{Description: "y"})
	env.Store.SetCurrentStep(env.Ctx, 3)
	env.Store.AddInitiative(env.Ctx, 3, domain.Initiative{Description: "z"})
	env.Store.SetCurrentStep(env.Ctx, 4)
	for _, id := range []int{5} {
		if !env.Store.CanProceedToStep(id) {
			t.Fatalf("step %d should be reachable without lever gating", id)
		}
	}
	env.Store.SetCurrentStep(env.Ctx, 5)
	if !env.Store.CanProceedToStep(6) {
		t.Fatal("step 6 should be reachable")
	}
	if !env.Store.CanProceedToStep(2) {
		t.Fatal("backward moves are always allowed")
	}
}

func TestSetCurrentStepCompletesPrevious(t *testing.T) {
	env := newTestEnv(t)
	env.Store.AddInitiative(env.Ctx, 1, domain.Initiative{Description: "x"})
	env.Store.SetCurrentStep(env.Ctx, 2)

	prev, _ := env.Store.StepByID(1)
	if prev.Status != domain.StepCompleted {
		t.Fatalf("left step should complete, got %s", prev.Status)
	}
	cur, _ := env.Store.StepByID(2)
	if cur.Status != domain.StepInProgress {
		t.Fatalf("target step should be in progress, got %s", cur.Status)
	}
	// leaving an in-progress step completes it, even moving backward
	env.Store.SetCurrentStep(env.Ctx, 1)
	second, _ := env.Store.StepByID(2)
	if second.Status != domain.StepCompleted {
		t.Fatalf("step 2 should complete when left, got %s", second.Status)
	}
}

func TestSkippedStepKeepsStatusWhenLeft(t *testing.T) {
	env := newTestEnv(t)
	env.Store.SkipStep(env.Ctx, 1)
	env.Store.SetCurrentStep(env.Ctx, 2)
	step, _ := env.Store.StepByID(1)
	if step.Status != domain.StepSkipped {
		t.Fatalf("skipped step should stay skipped, got %s", step.Status)
	}
	if step.CompletionDate != "2024-03-15" {
		t.Fatalf("completion date: %q", step.CompletionDate)
	}
}

func TestRemoveInitiativeCascades(t *testing.T) {
	env := newTestEnv(t)
	parent := env.Store.AddInitiative(env.Ctx, 1, domain.Initiative{Description: "Родитель", RevenueImpactMillion: 3})
	child := env.Store.AddInitiative(env.Ctx, 1, domain.Initiative{Description: "Ребенок", ParentID: &parent})
	env.Store.AddInitiative(env.Ctx, 1, domain.Initiative{Description: "Внук", ParentID: &child})
	other := env.Store.AddInitiative(env.Ctx, 1, domain.Initiative{Description: "Посторонняя", RevenueImpactMillion: 7})

	env.Store.RemoveInitiative(env.Ctx, parent)

	if got := len(env.Store.Initiatives()); got != 1 {
		t.Fatalf("expected only the unrelated initiative to survive, got %d", got)
	}
	if _, ok := env.Store.InitiativeByID(other); !ok {
		t.Fatal("unrelated initiative must survive the cascade")
	}
	step, _ := env.Store.StepByID(1)
	if step.TotalRevenueImpact != 7 {
		t.Fatalf("totals after cascade: %v", step.TotalRevenueImpact)
	}
	// unknown id is a no-op
	env.Store.RemoveInitiative(env.Ctx, 424242)
	if got := len(env.Store.Initiatives()); got != 1 {
		t.Fatalf("unknown id removal changed state: %d", got)
	}
}

func TestUpdateInitiativeRehoming(t *testing.T) {
	env := newTestEnv(t)
	id := env.Store.AddInitiative(env.Ctx, 1, domain.Initiative{Description: "Переезд", RevenueImpactMillion: 4})

	desc := "Обновлено"
	rev := 6.5
	env.Store.UpdateInitiative(env.Ctx, id, prep.InitiativeUpdate{Description: &desc, RevenueImpactMillion: &rev})
	init, _ := env.Store.InitiativeByID(id)
	if init.Description != "Обновлено" || init.RevenueImpactMillion != 6.5 {
		t.Fatalf("patch not applied: %+v", init)
	}

	env.Store.SetInitiativeStep(env.Ctx, id, 3)
	if stepID, _ := env.Store.StepForInitiative(id); stepID != 3 {
		t.Fatalf("initiative should live on step 3, got %d", stepID)
	}
	from, _ := env.Store.StepByID(1)
	to, _ := env.Store.StepByID(3)
	if from.TotalRevenueImpact != 0 || to.TotalRevenueImpact != 6.5 {
		t.Fatalf("totals should follow the move: %v / %v", from.TotalRevenueImpact, to.TotalRevenueImpact)
	}

	// unknown id patch is a no-op
	env.Store.UpdateInitiative(env.Ctx, 424242, prep.InitiativeUpdate{Description: &desc})
}

func TestSeedMerge(t *testing.T) {
	env := newTestEnv(t)
	tasks, err := seed.Tasks()
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	env.Store.SeedFromTasks(env.Ctx, tasks)
	total := len(env.Store.Initiatives())
	if total != len(tasks) {
		t.Fatalf("expected %d initiatives, got %d", len(tasks), total)
	}

	// seeding again must not duplicate
	env.Store.SeedFromTasks(env.Ctx, tasks)
	if got := len(env.Store.Initiatives()); got != total {
		t.Fatalf("second seed duplicated: %d vs %d", got, total)
	}

	// managers' edits survive re-seeding
	assignee := "Иванова"
	env.Store.UpdateInitiative(env.Ctx, tasks[0].ID, prep.InitiativeUpdate{Assignee: &assignee})
	env.Store.SeedFromTasks(env.Ctx, tasks)
	init, _ := env.Store.InitiativeByID(tasks[0].ID)
	if init.Assignee != "Иванова" {
		t.Fatalf("seed overwrote a set field: %q", init.Assignee)
	}

	// the id sequence stays clear of fixture ids
	next := env.Store.AddInitiative(env.Ctx, 1, domain.Initiative{Description: "после посева"})
	for _, task := range tasks {
		if task.ID == next {
			t.Fatalf("assigned id %d collides with the fixture", next)
		}
	}
	if next < 1000 {
		t.Fatalf("assigned id dropped below the base: %d", next)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	id := env.Store.AddInitiative(env.Ctx, 1, domain.Initiative{Description: "Сохранить меня", RevenueImpactMillion: 8})
	env.Store.MarkLeverViewed(env.Ctx, 1, "Ассортимент")
	env.Store.SetLeverTrafficLight(env.Ctx, 1, "Ассортимент", domain.LightYellow)
	env.Store.SetLeverInsights(env.Ctx, 1, "Ассортимент", "хвост растет")

	reopened := prep.New(env.Ctx, env.Repo, mustCatalog(t), nil)
	init, ok := reopened.InitiativeByID(id)
	if !ok || init.RevenueImpactMillion != 8 {
		t.Fatalf("initiative lost on reload: %+v ok=%v", init, ok)
	}
	step, _ := reopened.StepByID(1)
	if step.TrafficLights["Ассортимент"] != domain.LightYellow {
		t.Fatalf("traffic light lost: %v", step.TrafficLights)
	}
	if step.Insights["Ассортимент"] != "хвост растет" {
		t.Fatalf("insights lost: %v", step.Insights)
	}
	if step.TotalRevenueImpact != 8 {
		t.Fatalf("totals not recomputed on load: %v", step.TotalRevenueImpact)
	}
}

func TestVersionMismatchStartsFresh(t *testing.T) {
	env := newTestEnv(t)
	env.Store.AddInitiative(env.Ctx, 1, domain.Initiative{Description: "будет потеряна"})

	snap := env.Store.Snapshot()
	snap.Version = domain.SnapshotVersion + 1
	if err := env.Repo.Save(env.Ctx, snapshot.Key, snap, "", 0, "", 0, nil); err != nil {
		t.Fatalf("save: %v", err)
	}

	reopened := prep.New(env.Ctx, env.Repo, mustCatalog(t), nil)
	if got := len(reopened.Initiatives()); got != 0 {
		t.Fatalf("version mismatch should start fresh, got %d initiatives", got)
	}
	if reopened.CurrentStepID() != 1 {
		t.Fatalf("fresh start current step: %d", reopened.CurrentStepID())
	}
}

func TestResetPreparation(t *testing.T) {
	env := newTestEnv(t)
	env.Store.AddInitiative(env.Ctx, 1, domain.Initiative{Description: "x", RevenueImpactMillion: 5})
	env.Store.SetCurrentStep(env.Ctx, 2)
	env.Store.ResetPreparation(env.Ctx)

	if env.Store.CurrentStepID() != 1 {
		t.Fatalf("reset current step: %d", env.Store.CurrentStepID())
	}
	if len(env.Store.Initiatives()) != 0 {
		t.Fatal("reset should drop initiatives")
	}
	if env.Store.TotalRevenue() != 0 {
		t.Fatalf("reset totals: %v", env.Store.TotalRevenue())
	}
	// and the sequence starts over
	if id := env.Store.AddInitiative(env.Ctx, 1, domain.Initiative{Description: "y"}); id != 1000 {
		t.Fatalf("post-reset id: %d", id)
	}
}

func mustCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return cat
}
