// Package event provides the publish-subscribe bus that connects the
// session core to its presentation layer.
//
// Components never call each other's callbacks directly. The watcher
// registry, the process supervisor and the git engine publish typed
// payloads on dot-separated topics, and any number of subscribers receive
// them:
//
//	file.changed        - a watched file changed on disk (FileChanged)
//	terminal.output     - supervised process output or exit (TerminalOutput)
//	git.commit.created  - a commit was recorded (GitCommitCreated)
//	git.sync.completed  - a pull-then-push finished (GitSyncCompleted)
//	session.workspace.* - workspace opened or closed (WorkspaceChanged)
//
// # Wildcards
//
// A subscription topic ending in ".*" matches every topic below that
// prefix, so "git.*" receives both git.commit.created and
// git.sync.completed. The single topic "*" matches everything.
//
// # Delivery
//
// Publish delivers synchronously in the publisher's goroutine, in
// subscription order. Publishers in this module always run off the
// request path (reader goroutines, reconcile timers), so a slow
// subscriber delays only the stream it is attached to.
//
// A handler is never invoked concurrently with itself. Handler panics are
// recovered and logged.
//
// # Teardown
//
// Subscription.Unsubscribe is deterministic: once it returns, the handler
// is not running and will not be called again. Unsubscribe must not be
// called from inside the subscription's own handler; use Cancel there.
package event
