package prep

import "catreview/internal/domain"

// Snapshot returns a deep copy of the workflow state, safe to serialize or
// mutate without affecting the store.
func (s *Store) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySnapshot(s.state)
}

// Steps returns all wizard steps in order.
func (s *Store) Steps() []domain.PreparationStep {
	return s.Snapshot().Steps
}

// StepByID returns one step; the second return is false for unknown ids.
func (s *Store) StepByID(id int) (domain.PreparationStep, bool) {
	for _, step := range s.Snapshot().Steps {
		if step.ID == id {
			return step, true
		}
	}
	return domain.PreparationStep{}, false
}

// CurrentStepID returns the wizard pointer.
func (s *Store) CurrentStepID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentStepID
}

// StartDate returns the ISO date the workflow was started.
func (s *Store) StartDate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.StartDate
}

// Initiatives returns every initiative including subtasks.
func (s *Store) Initiatives() []domain.Initiative {
	return s.Snapshot().Initiatives
}

// InitiativeByID returns one initiative; the second return is false for
// unknown ids.
func (s *Store) InitiativeByID(id int) (domain.Initiative, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, init := range s.state.Initiatives {
		if init.ID == id {
			return init, true
		}
	}
	return domain.Initiative{}, false
}

// InitiativesForStep returns every initiative homed on a step, nested
// subtasks included.
func (s *Store) InitiativesForStep(stepID int) []domain.Initiative {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Initiative{}
	for _, init := range s.state.Initiatives {
		if s.state.InitiativeSteps[init.ID] == stepID {
			out = append(out, init)
		}
	}
	return out
}

// Subtasks returns the direct children of an initiative.
func (s *Store) Subtasks(parentID int) []domain.Initiative {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Initiative{}
	for _, init := range s.state.Initiatives {
		if init.ParentID != nil && *init.ParentID == parentID {
			out = append(out, init)
		}
	}
	return out
}

// StepForInitiative returns the step an initiative is homed on.
func (s *Store) StepForInitiative(id int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	step, ok := s.state.InitiativeSteps[id]
	return step, ok
}

// TotalRevenue sums projected revenue impact over the entire collection,
// subtasks included. Per-step totals stay top-level only.
func (s *Store) TotalRevenue() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, init := range s.state.Initiatives {
		total += init.RevenueImpactMillion
	}
	return total
}

// TotalMargin sums projected margin impact over the entire collection,
// subtasks included.
func (s *Store) TotalMargin() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, init := range s.state.Initiatives {
		total += init.MarginImpactMillion
	}
	return total
}

func copySnapshot(in domain.Snapshot) domain.Snapshot {
	out := in
	out.Steps = make([]domain.PreparationStep, len(in.Steps))
	for i, step := range in.Steps {
		out.Steps[i] = copyStep(step)
	}
	out.Initiatives = make([]domain.Initiative, len(in.Initiatives))
	for i, init := range in.Initiatives {
		if init.ParentID != nil {
			v := *init.ParentID
			init.ParentID = &v
		}
		out.Initiatives[i] = init
	}
	out.InitiativeSteps = make(map[int]int, len(in.InitiativeSteps))
	for k, v := range in.InitiativeSteps {
		out.InitiativeSteps[k] = v
	}
	return out
}

func copyStep(in domain.PreparationStep) domain.PreparationStep {
	out := in
	out.LeversAnalyzed = append([]string{}, in.LeversAnalyzed...)
	out.InitiativeIDs = append([]int{}, in.InitiativeIDs...)
	out.LeverStates = make(map[string]domain.LeverStatus, len(in.LeverStates))
	for k, v := range in.LeverStates {
		out.LeverStates[k] = v
	}
	out.TrafficLights = make(map[string]domain.TrafficLight, len(in.TrafficLights))
	for k, v := range in.TrafficLights {
		out.TrafficLights[k] = v
	}
	out.Insights = make(map[string]string, len(in.Insights))
	for k, v := range in.Insights {
		out.Insights[k] = v
	}
	return out
}
