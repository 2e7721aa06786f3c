package ux

import (
	"fmt"

	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/config"
	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/runstate"
)

// RenderStatus prints the full status display for a run: current status,
// phase cursor, completed phases, and the remaining declared phases.
func RenderStatus(profile *config.Profile, rs *runstate.RunState) {
	fmt.Printf("%sRun:%s      %s\n", Bold, Reset, rs.RunID)
	fmt.Printf("%sProfile:%s  %s\n", Bold, Reset, rs.Profile)
	fmt.Printf("%sStatus:%s   %s%s%s\n", Bold, Reset, statusColor(rs.Status), rs.Status, Reset)
	if rs.CurrentPhase != "" {
		idx := profile.PhaseIndex(rs.CurrentPhase)
		fmt.Printf("%sPhase:%s    %s (%d/%d)\n", Bold, Reset, rs.CurrentPhase, idx+1, len(profile.Phases))
	}
	if rs.AwaitingConsensus {
		fmt.Printf("%sGate:%s     awaiting consensus on %q\n", Bold, Reset, rs.ConsensusPhase)
	}

	if len(rs.CompletedPhases) > 0 {
		fmt.Printf("\n%sCompleted:%s\n", Bold, Reset)
		for _, name := range rs.CompletedPhases {
			ps := rs.PhaseStates[name]
			verdict := ""
			if ps != nil && ps.Validation != nil {
				verdict = fmt.Sprintf(" (%s)", ps.Validation.Status)
			}
			fmt.Printf("  %s✓%s %-20s %s%s%s\n", Green, Reset, name, Dim, verdict, Reset)
		}
	}

	fmt.Printf("\n%sDeclared phases:%s\n", Bold, Reset)
	for i, phase := range profile.Phases {
		marker := "  "
		if phase.Name == rs.CurrentPhase {
			marker = fmt.Sprintf("%s→%s ", Yellow, Reset)
		}
		fmt.Printf("  %s%s%d%s  %-20s %s(agents: %d, parallel=%v, consensus=%v)%s\n",
			marker, Dim, i+1, Reset, phase.Name, Dim, len(phase.Agents), phase.Parallel, phase.ConsensusRequired, Reset)
	}

	if len(rs.ConsensusHistory) > 0 {
		fmt.Printf("\n%sConsensus history:%s\n", Bold, Reset)
		for _, d := range rs.ConsensusHistory {
			verdict := fmt.Sprintf("%sapproved%s", Green, Reset)
			if !d.Approved {
				verdict = fmt.Sprintf("%srejected%s (%s)", Red, Reset, d.Reason)
			}
			fmt.Printf("  %s  %-20s %s\n", d.DecidedAt.Format("2006-01-02 15:04:05"), d.Phase, verdict)
		}
	}
}

func statusColor(s runstate.Status) string {
	switch s {
	case runstate.StatusCompleted:
		return Green
	case runstate.StatusAborted, runstate.StatusNeedsRevision:
		return Red
	case runstate.StatusAwaitingConsensus:
		return Yellow
	default:
		return Cyan
	}
}
