// Package docs holds the embedded documentation topics surfaced by
// 'orc docs [topic]': the workflow.yaml schema, the artifact pattern
// language, the command surface, the hygiene scanners and score, and the
// persistence/recovery contract.
package docs

import "fmt"

// Topic holds a single documentation article.
type Topic struct {
	Name    string // short slug used as CLI argument
	Title   string // human-readable title
	Summary string // one-line description for topic listing
	Content string // full article text (plain text, no ANSI)
}

// All returns every topic in display order.
func All() []Topic {
	return topics
}

// Get looks up a topic by name. Returns an error with a hint if not found.
func Get(name string) (Topic, error) {
	for _, t := range topics {
		if t.Name == name {
			return t, nil
		}
	}
	return Topic{}, fmt.Errorf("unknown topic %q — run 'orc docs' to list available topics", name)
}

var topics = []Topic{
	{
		Name:    "quickstart",
		Title:   "Quick Start",
		Summary: "Getting started with the orchestrator",
		Content: topicQuickstart,
	},
	{
		Name:    "config",
		Title:   "Workflow Configuration Reference",
		Summary: "Profile document schema: workflow.phases and subagents",
		Content: topicConfig,
	},
	{
		Name:    "phases",
		Title:   "Phases & Agents",
		Summary: "Sequential vs. parallel dispatch, consensus gates, retries",
		Content: topicPhases,
	},
	{
		Name:    "checkpoints",
		Title:   "Checkpoint Artifacts",
		Summary: "The glob / re: pattern language and Pass/Partial/Fail verdicts",
		Content: topicCheckpoints,
	},
	{
		Name:    "commands",
		Title:   "Command Surface",
		Summary: "start, next, checkpoint, approve, reject, abort, resume, jump, replay, rollback",
		Content: topicCommands,
	},
	{
		Name:    "hygiene",
		Title:   "Repo Hygiene & Cleanliness Scoring",
		Summary: "Orphan/large-file/dead-code/notebook/secret scanners and the score",
		Content: topicHygiene,
	},
	{
		Name:    "persistence",
		Title:   "Persistence & Recovery",
		Summary: "state.json, the run log, metrics document, and crash recovery",
		Content: topicPersistence,
	},
}

const topicQuickstart = `Quick Start
===========

1. Scaffold a project:

    cd your-project
    orc init

   This creates .orc/workflow.yaml with a minimal three-phase profile
   (plan -> build -> review) and an .orc/runs/ directory for run state.

2. Edit .orc/workflow.yaml to declare your own phases and subagents. A
   profile is an ordered set of phases; each phase dispatches one or more
   named agents (subprocess, llm, or in-session).

3. Start a run:

    orc start default

4. Advance through phases:

    orc next <runID>

5. Check progress at any time:

    orc status <runID>

6. If a phase declares consensusRequired, the run pauses in
   awaiting_consensus; review the request and:

    orc approve <runID>
    orc reject <runID> "missing risk analysis"

See 'orc docs commands' for the full command table.
`

const topicConfig = `Workflow Configuration Reference
=================================

A profile document has two top-level sections:

    workflow:
      phases:              # ordered mapping -- declaration order is
                            # the canonical phase execution order
        <phase-name>:
          required: bool
          parallel: bool
          consensusRequired: bool
          agents: [<agent-name>, ...]
          retry: { maxAttempts: int, backoffBaseMs: int, backoffJitterMs: int }
          timeoutSeconds: int
      maxParallelAgents: int   # default 4

    subagents:
      <agent-name>:
        executor: subprocess | llm | in-session
        checkpointArtifacts: [<pattern>, ...]
        retry: { maxAttempts, backoffBaseMs, backoffJitterMs }
        timeoutSeconds: int

Unknown keys are ignored. Missing optional fields take the documented
defaults (single attempt, no backoff, no timeout).

A single file may declare multiple named profiles under a top-level
'profiles:' mapping; otherwise the whole document is one profile named
"default". orc.LoadDir also accepts a directory of single-profile files,
one profile per file, keyed by filename stem.

Retry precedence: an agent's own retry policy is authoritative. The
phase's retry policy only applies to agents that do not declare their
own.
`

const topicPhases = `Phases & Agents
===============

A phase with parallel: false dispatches its declared agents strictly in
order. A failed agent retries per its resolved policy (exponential
backoff with jitter); if it still fails, the remaining agents in the
phase still run -- the phase's success is the logical AND of every
agent's success.

A phase with parallel: true dispatches every declared agent concurrently,
bounded by workflow.maxParallelAgents (or a CLI --max-workers override,
never above the configured cap). There is no ordering guarantee between
parallel agents; the phase does not return until every agent has either
succeeded or exhausted its retries.

Every agent invocation has its own timeout, applied per attempt (not per
retry series). A timed-out invocation is cancelled and treated as a
failure subject to retry.

Exit code 2 is reserved: an agent that exits 2 signals in-session
suspension. The phase is not marked complete; the run's cursor does not
move. The operator performs the remaining work externally and runs
'orc checkpoint <runID>' to re-validate artifacts and advance without
re-invoking any agent.

A phase with consensusRequired pauses the run in awaiting_consensus once
its agents and checkpoint validation complete -- see 'orc docs commands'.
`

const topicCheckpoints = `Checkpoint Artifacts
=====================

Every agent declares checkpointArtifacts: a list of patterns that must be
present under the project root (or a phase-specific artifact directory)
after a successful run. A pattern is either:

  - a shell-style glob rooted at the project root, e.g. docs/*.md
  - re:<regex>, an anchored regular expression over the relative path,
    e.g. re:^docs/PRD\.md$

Both forms are case-sensitive. Matching walks the root in lexicographic
order and does not follow symbolic links, so two validator runs over the
same inputs always produce byte-identical reports.

A phase's checkpoint report is the union of every dispatched agent's
patterns:

  - Pass    every pattern matched at least one file
  - Partial some patterns matched, some did not
  - Fail    no pattern matched

A Fail or Partial report leaves the phase uncompleted. 'orc checkpoint
<runID> --force' advances over a Partial verdict with operator
confirmation, or over a Fail verdict only when --force is explicit.
Every checkpoint run accumulates a fresh, timestamped report file --
replays never overwrite a prior report.
`

const topicCommands = `Command Surface
===============

  orc start <profile> [--intake path] [--from phase]
  orc next <runID> [--parallel] [--max-workers N] [--timeout seconds]
  orc checkpoint <runID> [--force]
  orc approve <runID>
  orc reject <runID> <reason>
  orc abort <runID>
  orc resume <runID>
  orc jump <runID> <phase>
  orc replay <runID> <phase>
  orc rollback <runID> <phase>
  orc status <runID>
  orc log <runID> [lines]
  orc metrics <runID>
  orc hygiene [--apply] [--config path]
  orc doctor <runID>
  orc init
  orc docs [topic]

Exit-code convention for agents: 0 success, 1 failure, 2 in-session
suspension, any other code is treated as failure.
`

const topicHygiene = `Repo Hygiene & Cleanliness Scoring
===================================

'orc hygiene' scans the project root with five independent scanners:

  large files   flagged by extension + size threshold, whitelist-aware
  orphans       old, unreferenced, non-protected files
  dead code     defined-but-unreferenced funcs/types/imports (go/ast)
  notebooks     code cells carrying stale outputs or execution counters
  secrets       regex-heuristic matches (AWS keys, PEM headers, tokens)

Each component is bucketed into a piecewise-constant curve in [0, 1] and
weighted (defaults 30/25/20/15/10 for orphans/large-files/dead-code/
notebooks/secrets). The cleanliness score is 100 times the weighted sum;
letter grades run A+ (>=95) down to F (<60).

'orc hygiene --apply' clears stale notebook outputs in place, but first
checks the total files and bytes that would be touched against configured
safety caps. If either cap is exceeded, apply is blocked and a
reports/PR_PLAN.md with status "APPLY BLOCKED" is written instead --
orphan and large-file cleanup always stay advisory-only (git rm
suggestions in PR_PLAN.md); this subsystem never deletes a file itself.
`

const topicPersistence = `Persistence & Recovery
=======================

Every run keeps three durable artifacts under its run directory:

  state/run.json            the full RunState, written atomically
                             (write-temp-then-rename) on every mutation
  log/run-<id>.ndjson        an append-only, newline-delimited audit
                             trail (phase-start, agent-end, retry,
                             consensus-requested, rollback, abort, ...)
  metrics/run-<id>.json      per-phase duration, per-agent retry/exit
                             history, token-usage bag, latest hygiene
                             score snapshot

Recovery contract: reading state/run.json alone is sufficient to resume
a run correctly at its current phase and status after a process
restart. The run log is never required for correctness, only for
diagnostics and metrics replay -- and log records across restarts must
be ordered by their embedded timestamp, not by append order.

A crash mid-write never leaves a torn state document: the atomic
rename means a reader either sees the old version or the new one.
`
