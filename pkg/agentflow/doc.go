/*
Package agentflow provides checkpointing, state reconciliation, and
crash recovery for conversational agent threads.

# Overview

agentflow is the persistence layer of an agent backend. It stores a
per-thread AgentState (execution control data, the message context, a
rolling summary, and open extension fields), the full message history,
and thread metadata, and it keeps that data consistent across
concurrent writers and interrupted runs with:
  - Merge-on-write reconciliation so a client flushing a stale
    snapshot never erases server-side progress
  - Tenant scoping derived from the authenticated user on every
    store call
  - Thread repair that removes assistant messages whose tool calls
    never resolved after a crash

# Basic Usage

Create a store, wrap it in a service, and operate on threads:

	store, err := checkpoint.NewSQLiteStore("checkpoints.db")
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	svc := agentflow.NewService(store,
	    agentflow.WithLogger(slog.Default()),
	)

	cfg := map[string]any{"thread_id": "th-1"}
	user := map[string]any{"user_id": "u-1"}

	st := &state.AgentState{
	    Context: []state.Message{
	        state.NewMessage(state.RoleUser, "hello"),
	    },
	}
	res := svc.PutState(ctx, cfg, user, st)
	if !res.Success {
	    log.Fatal(res.Message)
	}

# Merge-On-Write

PutState never writes the caller's state verbatim. The persisted state
is read first (falling back to the secondary cache after a primary
eviction) and reconciled field by field:

  - execution_meta always keeps the persisted value; clients cannot
    overwrite server-side control data
  - context and context_summary keep the persisted value when the
    incoming one is empty, otherwise the incoming value replaces it
  - extension fields deep-merge, new values winning, except lists
    under a key named "context", which concatenate old before new

See MergeStates for the exact rules.

# Crash Recovery

A run that dies between issuing tool calls and recording their results
leaves the thread unable to continue. FixThread scans the persisted
context and removes every assistant message carrying an unresolved
tool call:

	res := svc.FixThread(ctx, "th-1", user, nil)
	fmt.Println(res.RemovedCount)

Repair is idempotent; running it on a healthy thread removes nothing
and writes nothing.

# Stores

Two Store implementations ship with the package: an in-memory store
for tests and ephemeral deployments, and a SQLite store (WAL mode,
pure Go driver) for single-node durability. Both key every row by
(user_id, thread_id), so one user can never read or repair another
user's threads.

# Observability

Operations emit structured logs via slog and, when wired, OpenTelemetry
metrics and spans:

	svc := agentflow.NewService(store,
	    agentflow.WithLogger(logger),
	    agentflow.WithMetrics(observability.NewMetricsRecorder()),
	    agentflow.WithSpanManager(observability.NewSpanManager()),
	)

All observability is opt-in and defaults to no-ops.
*/
package agentflow
