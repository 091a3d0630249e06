package workflow

import "fmt"

// Phase — фаза драйвера.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseRunning
	PhaseCompleted
	PhaseAborted
)

// State — состояние драйвера.
//
//	NotStarted → RunningStage(r) → RunningStage(r+1) → ... → Completed
//	                     └──────────────→ AbortedOnError(i)
type State struct {
	Phase Phase

	// Stage — позиция текущей стадии (RunningStage) или упавшей (AbortedOnError).
	Stage int
}

// NotStarted — начальное состояние.
func NotStarted() State { return State{Phase: PhaseNotStarted} }

// RunningStage — выполняется стадия i.
func RunningStage(i int) State { return State{Phase: PhaseRunning, Stage: i} }

// Completed — последняя стадия экспортировала результат.
func Completed() State { return State{Phase: PhaseCompleted} }

// AbortedOnError — run прерван на стадии i.
func AbortedOnError(i int) State { return State{Phase: PhaseAborted, Stage: i} }

// IsTerminal возвращает true для Completed и AbortedOnError.
func (s State) IsTerminal() bool {
	return s.Phase == PhaseCompleted || s.Phase == PhaseAborted
}

// String реализует fmt.Stringer.
func (s State) String() string {
	switch s.Phase {
	case PhaseNotStarted:
		return "NotStarted"
	case PhaseRunning:
		return fmt.Sprintf("RunningStage(%d)", s.Stage)
	case PhaseCompleted:
		return "Completed"
	case PhaseAborted:
		return fmt.Sprintf("AbortedOnError(%d)", s.Stage)
	default:
		return fmt.Sprintf("Phase(%d)", int(s.Phase))
	}
}
