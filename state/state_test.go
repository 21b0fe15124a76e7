package state

import (
	"testing"
	"time"
)

// MockState records which hooks the machine called.
type MockState struct {
	ID      string
	Entered int
	Exited  int
	Updated int
}

func (m *MockState) OnEnter()             { m.Entered++ }
func (m *MockState) OnExit()              { m.Exited++ }
func (m *MockState) OnUpdate(_ time.Time) { m.Updated++ }
func (m *MockState) GetID() string        { return m.ID }

func (m *MockState) clear() { m.Entered, m.Exited, m.Updated = 0, 0, 0 }

func phaseStates() (idle, running, paused, over *MockState) {
	return &MockState{ID: "idle"}, &MockState{ID: "running"}, &MockState{ID: "paused"}, &MockState{ID: "over"}
}

func TestStateMachine_InitialStateEntered(t *testing.T) {
	idle, _, _, _ := phaseStates()
	sm := NewBaseStateMachine(idle)

	if idle.Entered != 1 {
		t.Errorf("Expected OnEnter once on the initial state, got %d", idle.Entered)
	}
	if sm.CurrentID() != "idle" {
		t.Errorf("Expected idle, got %s", sm.CurrentID())
	}
}

func TestStateMachine_FreeMovesWithoutTransitions(t *testing.T) {
	idle, running, _, _ := phaseStates()
	sm := NewBaseStateMachine(idle)
	idle.clear()

	if err := sm.ChangeState(running); err != nil {
		t.Fatalf("ChangeState without a table should succeed, got %v", err)
	}
	if idle.Exited != 1 || running.Entered != 1 {
		t.Errorf("Expected exit/enter hooks once, got exit=%d enter=%d", idle.Exited, running.Entered)
	}
}

func TestStateMachine_PauseCycle(t *testing.T) {
	idle, running, paused, over := phaseStates()
	sm := NewBaseStateMachine(idle)
	sm.AddTransition(idle, running, nil)
	sm.AddTransition(running, paused, nil)
	sm.AddTransition(paused, running, nil)
	sm.AddTransition(running, over, nil)

	steps := []struct {
		to   *MockState
		want error
	}{
		{paused, ErrTransitionNotAllowed}, // idle 不能直接暂停
		{running, nil},
		{paused, nil},
		{over, ErrTransitionNotAllowed}, // 暂停中不会结束
		{running, nil},
		{over, nil},
	}
	for i, step := range steps {
		if err := sm.ChangeState(step.to); err != step.want {
			t.Fatalf("step %d -> %s: got %v, want %v", i, step.to.ID, err, step.want)
		}
	}
	if sm.CurrentID() != "over" {
		t.Errorf("Expected over, got %s", sm.CurrentID())
	}
}

func TestStateMachine_ConditionBlocks(t *testing.T) {
	idle, running, _, _ := phaseStates()
	ready := false
	sm := NewBaseStateMachine(idle)
	sm.AddTransition(idle, running, func() bool { return ready })
	idle.clear()

	if err := sm.ChangeState(running); err != ErrTransitionNotAllowed {
		t.Fatalf("Expected ErrTransitionNotAllowed, got %v", err)
	}
	if idle.Exited != 0 || running.Entered != 0 {
		t.Error("Blocked transition must not run hooks")
	}

	ready = true
	if err := sm.ChangeState(running); err != nil {
		t.Fatalf("Expected transition once the condition holds, got %v", err)
	}
}

func TestStateMachine_ResetBypassesTransitions(t *testing.T) {
	idle, running, _, over := phaseStates()
	sm := NewBaseStateMachine(idle)
	sm.AddTransition(idle, running, nil)
	idle.clear()

	sm.Reset(over)
	if sm.CurrentID() != "over" {
		t.Fatalf("Expected over after Reset, got %s", sm.CurrentID())
	}
	if idle.Exited != 1 || over.Entered != 1 {
		t.Error("Reset should run OnExit/OnEnter hooks")
	}
}

func TestBase_NoopHooks(t *testing.T) {
	b := &Base{ID: "x"}
	b.OnEnter()
	b.OnExit()
	b.OnUpdate(time.Now())
	if b.GetID() != "x" {
		t.Errorf("Expected x, got %s", b.GetID())
	}
}
