// Package process supervises the single long-running child process of a
// session, usually the agent loop script.
//
// # Supervisor
//
// The Supervisor owns at most one child at a time. Starting a new command
// while one is alive replaces it: the old process group receives SIGTERM,
// gets a grace period to exit, and is then killed. The new command is only
// spawned once the old one has been reaped, so two supervised processes
// never overlap.
//
//	sup := process.NewSupervisor(bus, process.WithGracePeriod(3*time.Second))
//	defer sup.Shutdown(5 * time.Second)
//
//	h, err := sup.Start(ctx, process.Command{
//	    Name: "bash",
//	    Args: []string{"ralph-loop.sh"},
//	    Dir:  workspace,
//	})
//	if err != nil {
//	    return err
//	}
//	<-h.Done()
//
// # Output
//
// Every chunk the child writes to stdout or stderr is published as a
// terminal.output event. Chunks keep their order within a stream and are
// published in arrival order across streams. Each lifetime ends with
// exactly one close event carrying the exit code, after all of its output.
//
// # Stopping
//
// Stop sends SIGTERM to the process group and waits up to the grace
// period. It never escalates; a process that ignores SIGTERM is reported
// with ErrStillRunning and can be replaced forcibly with Start.
//
// # Thread Safety
//
// Supervisor and Handle are safe for concurrent use.
package process
