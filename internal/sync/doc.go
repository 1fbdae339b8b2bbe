// Package sync implements two-replica reconciliation for a research library.
// It compares a local replica against a remote replica (any filesystem path),
// classifies divergence, resolves conflicts manually or automatically, and
// converges both replicas to an identical, lossless state in one bounded pass.
//
// # Pipeline
//
// A run moves through a fixed sequence of stages:
//
//	PreparingRemote → ReadingSnapshots → DetectingConflicts →
//	ResolvingConflicts → ApplyingRecords → ApplyingCollections →
//	ApplyingPdfs → Finalizing
//
// Snapshot reading produces a comparable view of each replica (see the
// snapshot package). The diff engine unions both key sets: one-sided items
// are copied, shared-but-divergent items become conflicts unless the
// baseline proves only one side changed, in which case the changed side wins
// automatically.
//
// # Conflict resolution
//
// Conflicts are handed to a caller-supplied Resolver. The resolver may
// return all decisions at once or a partial map per call; the coordinator
// re-invokes it with the remaining conflicts until every conflict has a
// decision. In auto mode the resolver is never invoked and every conflict
// resolves to KeepBoth, so a non-interactive run never blocks and never
// drops a version.
//
// # Failure semantics
//
// Infrastructure errors (unreachable remote, unreadable local store) fail
// the run. Per-item errors are collected into the result and never abort
// the run. Cancellation is cooperative and only prevents starting the merge
// stages; writes already issued are not rolled back.
//
// # Usage
//
//	engine, err := sync.NewEngine(sync.Options{
//	    LocalRoot:  "/home/me/library",
//	    RemoteRoot: "/mnt/shared/library",
//	    Resolver:   resolver,
//	    Progress: func(stage sync.Stage, counts sync.Counts) {
//	        fmt.Printf("stage: %s\n", stage)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	result, err := engine.Run(ctx)
//	fmt.Print(result.Summary())
package sync
