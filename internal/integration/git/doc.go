// Package git provides the git synchronization engine used by a session.
//
// The engine is a stateless facade over a workspace repository. Each call
// runs its own short-lived git invocation through a Runner and returns an
// explicit error; nothing is cached between calls and no transaction is
// held across them.
//
// # Usage
//
//	eng := git.NewEngine("/path/to/workspace",
//	    git.WithPublisher(bus),
//	    git.WithLogger(logger),
//	)
//
//	if _, err := eng.EnsureRepo(ctx); err != nil {
//	    return err
//	}
//
//	// Stage, commit, then pull-then-push when a remote exists.
//	res, err := eng.CommitAndSync(ctx, "Complete task 3", true)
//
// # Sync Protocol
//
// Sync pulls first and pushes only if the pull succeeded. A failed pull is
// returned as is and no push is attempted; the engine never tries to
// resolve conflicts. CommitAndSync treats a repository without the
// configured remote as a successful local-only commit.
//
// # Known Race
//
// StageAll followed by Commit is not atomic. The supervised loop script
// may change the working tree between the two calls. StageAndCommit is the
// composite to use when that matters; it narrows the window but git itself
// is the only serialization point.
//
// # Errors
//
// Every failure is an *Error carrying the operation, a Kind and the git
// output that explains it. Use errors.Is with the package sentinels or
// KindOf to branch on the failure class.
//
// # Events
//
// With a publisher configured the engine publishes:
//
//   - git.commit.created: a commit was recorded
//   - git.sync.completed: a pull-then-push attempt finished
package git
