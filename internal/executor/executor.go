// SPDX-License-Identifier: AGPL-3.0-or-later

// Package executor runs an apply: for each machine, in config-declaration
// order, it converges every resource targeting that machine in resolver
// topological order, dispatching rendered scripts over the machine's
// transport and persisting outcomes to the machine's lock file and event
// log (spec.md §4.9).
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forjar-dev/forjar/internal/codegen"
	"github.com/forjar-dev/forjar/internal/events"
	"github.com/forjar-dev/forjar/internal/hashcache"
	"github.com/forjar-dev/forjar/internal/metrics"
	"github.com/forjar-dev/forjar/internal/model"
	"github.com/forjar-dev/forjar/internal/planner"
	"github.com/forjar-dev/forjar/internal/resolver"
	"github.com/forjar-dev/forjar/internal/statestore"
	"github.com/forjar-dev/forjar/internal/transport"
)

// GeneratorVersion is stamped into every lock file this executor writes.
const GeneratorVersion = "forjar-0"

// Options controls one Apply invocation.
type Options struct {
	// DryRun renders each resource's script but never dispatches it and
	// never writes lock or event state.
	DryRun bool
	// Force re-applies every targeted resource regardless of its planned
	// action, including Noop steps.
	Force bool
	// RemoteOptions configures the SSH transport used for non-local
	// machines.
	RemoteOptions transport.RemoteOptions
	// RunID identifies this apply across every machine's event log. A
	// random UUID is generated when empty.
	RunID string
	// Sink receives every emitted event in addition to the per-machine
	// JSONL append, so a caller (e.g. the CLI) can stream progress to
	// stdout while the on-disk log remains the durable record.
	Sink events.Sink
	// Cache memoizes source-backed file resources' content digests across
	// runs (spec.md §4.1, "Hash memoization cache"). Nil re-reads every
	// source file on every apply, which is always correct, just slower.
	Cache *hashcache.Cache
}

// MachineResult summarizes one machine's apply outcome.
type MachineResult struct {
	Machine   string
	Converged int
	Noop      int
	Failed    int
	Skipped   int
	Aborted   bool
	Err       error
}

// Result is the aggregate outcome of an Apply across every machine.
type Result struct {
	RunID    string
	Machines []MachineResult
}

// HasFailures reports whether any machine reported a resource failure.
func (r *Result) HasFailures() bool {
	for _, m := range r.Machines {
		if m.Failed > 0 {
			return true
		}
	}
	return false
}

// Apply converges every resource in cfg across every declared machine, in
// config-declaration order (spec.md §9).
func Apply(ctx context.Context, cfg *model.Config, opts Options) (*Result, error) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	ids := make([]string, 0, len(cfg.Resources))
	for id := range cfg.Resources {
		ids = append(ids, id)
	}
	order, err := resolver.TopoSort(cfg.Resources, ids)
	if err != nil {
		return nil, fmt.Errorf("resolving apply order: %w", err)
	}

	result := &Result{RunID: runID}
	for _, machineID := range cfg.MachineOrder {
		machine := cfg.Machines[machineID]
		mr, err := applyMachine(ctx, cfg, machine, order, runID, opts)
		if err != nil {
			return result, fmt.Errorf("machine %s: %w", machineID, err)
		}
		result.Machines = append(result.Machines, mr)
		if mr.Aborted && cfg.Policy.EffectiveFailureMode() == model.FailureStopOnFirst {
			break
		}
	}
	return result, nil
}

func applyMachine(ctx context.Context, cfg *model.Config, machine model.Machine, order []string, runID string, opts Options) (MachineResult, error) {
	mr := MachineResult{Machine: machine.ID}

	store, err := statestore.Open(machine.ID)
	if err != nil {
		return mr, fmt.Errorf("open state store: %w", err)
	}

	lock, err := store.LoadLock(GeneratorVersion)
	if err != nil {
		return mr, fmt.Errorf("load lock: %w", err)
	}

	var sink events.Sink
	var eventLog *statestore.EventLog
	if !opts.DryRun && cfg.Policy.LockEnabled() {
		eventLog, err = store.OpenEventLog()
		if err != nil {
			return mr, fmt.Errorf("open event log: %w", err)
		}
		defer eventLog.Close()
		sink = events.NewCompositeSink(eventLog.Sink(), opts.Sink)
	} else {
		sink = events.NewCompositeSink(opts.Sink)
	}

	plan, err := planner.DiffWithCache(ctx, cfg.Resources, order, machine.ID, lock, opts.Cache)
	if err != nil {
		return mr, fmt.Errorf("plan: %w", err)
	}

	redactor := events.NewLineRedactor(cfg.SecretValues)

	emit(sink, model.Event{Timestamp: time.Now().UTC(), Tag: model.EventApplyStarted, Machine: machine.ID, RunID: runID})

	dependents := reverseDependents(cfg.Resources)
	skip := map[string]bool{}
	failurePolicy := cfg.Policy.EffectiveFailureMode()
	tr := transport.ForMachine(machine, opts.RemoteOptions)

	for _, step := range plan.Steps {
		if skip[step.ResourceID] {
			mr.Skipped++
			continue
		}
		if step.Action == model.ActionNoop && !opts.Force {
			mr.Noop++
			emit(sink, model.Event{
				Timestamp:  time.Now().UTC(),
				Tag:        model.EventResourceConverged,
				Machine:    machine.ID,
				RunID:      runID,
				ResourceID: step.ResourceID,
				Action:     model.ActionNoop,
			})
			continue
		}

		r := cfg.Resources[step.ResourceID]
		start := time.Now()
		emit(sink, model.Event{
			Timestamp:  start.UTC(),
			Tag:        model.EventResourceStarted,
			Machine:    machine.ID,
			RunID:      runID,
			ResourceID: step.ResourceID,
			Action:     step.Action,
		})

		script, err := codegen.Render(r)
		if err != nil {
			err = fmt.Errorf("render: %w", err)
		}

		if opts.DryRun && err == nil {
			mr.Converged++
			emit(sink, model.Event{
				Timestamp:  time.Now().UTC(),
				Tag:        model.EventResourceConverged,
				Machine:    machine.ID,
				RunID:      runID,
				ResourceID: step.ResourceID,
				Action:     step.Action,
				DurationMS: time.Since(start).Milliseconds(),
			})
			continue
		}

		var res transport.Result
		if err == nil {
			res, err = tr.Execute(ctx, machine, script)
			if err == nil && res.ExitCode != 0 {
				err = fmt.Errorf("script exited %d: %s", res.ExitCode, redactLines(res.Stderr, redactor))
			}
		}
		duration := time.Since(start)

		if err != nil {
			mr.Failed++
			metrics.ApplyResourcesTotal.WithLabelValues(string(r.Type), "failed").Inc()
			metrics.ApplyResourceDuration.WithLabelValues(string(r.Type), "failed").Observe(duration.Seconds())
			emit(sink, model.Event{
				Timestamp:  time.Now().UTC(),
				Tag:        model.EventResourceFailed,
				Machine:    machine.ID,
				RunID:      runID,
				ResourceID: step.ResourceID,
				Action:     step.Action,
				Error:      err.Error(),
				DurationMS: duration.Milliseconds(),
			})

			if failurePolicy == model.FailureStopOnFirst {
				mr.Aborted = true
				emit(sink, model.Event{Timestamp: time.Now().UTC(), Tag: model.EventApplyAborted, Machine: machine.ID, RunID: runID, ResourceID: step.ResourceID, Error: err.Error()})
				return mr, nil
			}

			markTransitiveSkip(step.ResourceID, dependents, skip)
			continue
		}

		mr.Converged++
		metrics.ApplyResourcesTotal.WithLabelValues(string(r.Type), "converged").Inc()
		metrics.ApplyResourceDuration.WithLabelValues(string(r.Type), "converged").Observe(duration.Seconds())
		emit(sink, model.Event{
			Timestamp:  time.Now().UTC(),
			Tag:        model.EventResourceConverged,
			Machine:    machine.ID,
			RunID:      runID,
			ResourceID: step.ResourceID,
			Action:     step.Action,
			DurationMS: duration.Milliseconds(),
		})

		if cfg.Policy.LockEnabled() {
			lock.Resources[step.ResourceID] = model.LockEntry{
				Kind:        r.Type,
				Status:      model.StatusConverged,
				DesiredHash: step.DesiredHash,
				ConvergedAt: time.Now().UTC(),
				DurationMS:  duration.Milliseconds(),
			}
			if err := store.WriteLock(lock); err != nil {
				return mr, fmt.Errorf("write lock after %s: %w", step.ResourceID, err)
			}
		}
	}

	emit(sink, model.Event{Timestamp: time.Now().UTC(), Tag: model.EventApplyCompleted, Machine: machine.ID, RunID: runID})
	return mr, nil
}

// redactLines passes stderr through a LineBuffer so secret-marked recipe
// input values never reach an error message or event line verbatim
// (spec.md §7, "secrets are never logged"). A nil redactor is a no-op.
func redactLines(stderr string, redactor func(string) string) string {
	if redactor == nil || stderr == "" {
		return stderr
	}
	var out strings.Builder
	first := true
	lb := events.NewLineBuffer(func(line string) {
		if !first {
			out.WriteByte('\n')
		}
		first = false
		out.WriteString(line)
	}, redactor)
	lb.Write([]byte(stderr))
	lb.Flush()
	return out.String()
}

func emit(sink events.Sink, ev model.Event) {
	if sink == nil {
		return
	}
	sink.Emit(ev)
}

// reverseDependents maps each resource id to the set of ids whose
// depends_on names it, for continue_independent's transitive-skip walk.
func reverseDependents(resources map[string]model.Resource) map[string][]string {
	out := make(map[string][]string, len(resources))
	for id, r := range resources {
		for _, dep := range r.DependsOn {
			out[dep] = append(out[dep], id)
		}
	}
	return out
}

// markTransitiveSkip marks failed's direct and transitive dependents as
// skipped, so continue_independent never converges a resource whose
// prerequisite failed (spec.md §4.9).
func markTransitiveSkip(failed string, dependents map[string][]string, skip map[string]bool) {
	queue := append([]string{}, dependents[failed]...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if skip[id] {
			continue
		}
		skip[id] = true
		queue = append(queue, dependents[id]...)
	}
}
