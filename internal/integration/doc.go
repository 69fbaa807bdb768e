// Package integration provides the session coordinator that ties the
// watcher registry, the process supervisor and the git engine to the
// lifecycle of an open workspace.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                        Coordinator                           │
//	│  - workspace lifecycle                                       │
//	│  - edit buffers and the disk/memory conflict rule            │
//	│  - request/response boundary with Result classification      │
//	└──────────────────────────────────────────────────────────────┘
//	            │                    │                    │
//	            ▼                    ▼                    ▼
//	  ┌──────────────────┐ ┌──────────────────┐ ┌──────────────────┐
//	  │ watcher.Registry │ │process.Supervisor│ │    git.Engine    │
//	  └──────────────────┘ └──────────────────┘ └──────────────────┘
//	            │                    │                    │
//	            └────────────────────┼────────────────────┘
//	                                 ▼
//	                     ┌──────────────────────┐
//	                     │      event.Bus       │
//	                     └──────────────────────┘
//
// The coordinator owns its bus, registry and supervisor. Nothing here is
// package-level state, so a second coordinator is independent of the
// first.
//
// # Edit buffers
//
// OpenFileForEditing arms a watcher and creates an EditBuffer. When the
// registry publishes file.changed for that path, a clean buffer takes the
// new content and a dirty buffer keeps its edits; the disk content is
// recorded and the buffer reported as stale.
//
// # Failures
//
// Operations never retry. The first failure of the delegated component is
// returned wrapped in an *OpError naming the operation. ResultOf turns any
// error into a Result whose ErrorKind is one of not_found, tool_missing,
// process, sync_conflict, nothing_to_commit, no_branch, invalid or
// internal.
//
// # Usage
//
//	c, err := integration.NewCoordinator(integration.CoordinatorConfig{})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	if _, err := c.OpenWorkspace(ctx, "/path/to/project"); err != nil {
//	    return err
//	}
//	sub, _ := event.On(c.Bus(), event.TopicTerminalOutput, func(o event.TerminalOutput) {
//	    fmt.Print(o.Text)
//	})
//	defer sub.Unsubscribe()
//
//	h, err := c.StartLoop(ctx, "", "")
package integration
