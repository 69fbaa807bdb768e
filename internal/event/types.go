package event

import (
	"strings"
	"time"
)

// Topic is a dot-separated event name such as "terminal.output".
type Topic string

// Topics published by the session core.
const (
	TopicFileChanged      Topic = "file.changed"
	TopicTerminalOutput   Topic = "terminal.output"
	TopicGitCommitCreated Topic = "git.commit.created"
	TopicGitSyncCompleted Topic = "git.sync.completed"
	TopicWorkspaceOpened  Topic = "session.workspace.opened"
	TopicWorkspaceClosed  Topic = "session.workspace.closed"

	TopicAll        Topic = "*"
	TopicGitAll     Topic = "git.*"
	TopicSessionAll Topic = "session.*"
)

const (
	wildcardSuffix = ".*"
	topicSeparator = '.'
)

// IsPattern reports whether t is a wildcard pattern.
func (t Topic) IsPattern() bool {
	return t == TopicAll || strings.HasSuffix(string(t), wildcardSuffix)
}

// Matches reports whether the concrete topic other is selected by t.
func (t Topic) Matches(other Topic) bool {
	if t == TopicAll {
		return true
	}
	if !t.IsPattern() {
		return t == other
	}
	prefix := strings.TrimSuffix(string(t), wildcardSuffix)
	s := string(other)
	return len(s) > len(prefix) && strings.HasPrefix(s, prefix) && s[len(prefix)] == topicSeparator
}

// Event is the envelope handed to subscribers.
type Event struct {
	// Topic is the concrete topic the payload was published on.
	Topic Topic

	// Payload is one of the payload types in this package.
	Payload any

	// Time is when the event was published.
	Time time.Time
}

// Handler receives published events.
type Handler func(e Event)

// Publisher is implemented by anything that can emit events. Components
// depend on this instead of *Bus so tests can record what was published.
type Publisher interface {
	Publish(t Topic, payload any)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(t Topic, payload any)

// Publish implements Publisher.
func (f PublisherFunc) Publish(t Topic, payload any) {
	f(t, payload)
}

// Discard is a Publisher that drops every event.
var Discard Publisher = PublisherFunc(func(Topic, any) {})

// FileChanged is published when a watched file's content changed on disk.
type FileChanged struct {
	Path      string
	Content   string
	Timestamp time.Time
}

// OutputKind distinguishes terminal output events.
type OutputKind string

// Output kinds carried by TerminalOutput.
const (
	OutputStdout OutputKind = "stdout"
	OutputStderr OutputKind = "stderr"
	OutputClose  OutputKind = "close"
)

// TerminalOutput is a chunk of supervised process output, or its terminal
// exit record when Kind is OutputClose.
type TerminalOutput struct {
	Kind OutputKind

	// Text holds the chunk for stdout/stderr, and a human readable exit
	// summary for close.
	Text string

	// ExitCode is set for close events. It is -1 when the process was
	// terminated by a signal.
	ExitCode int

	// Signal names the terminating signal for close events, if any.
	Signal string

	// PID identifies the process lifetime the event belongs to.
	PID int

	// Seq is the per-lifetime sequence number, starting at 1.
	Seq uint64

	Timestamp time.Time
}

// GitCommitCreated is published after a successful commit.
type GitCommitCreated struct {
	Repository string
	Hash       string
	Message    string
	Timestamp  time.Time
}

// GitSyncCompleted is published after a pull-then-push attempt.
type GitSyncCompleted struct {
	Repository string
	Branch     string
	Pushed     bool
	Err        error
	Timestamp  time.Time
}

// WorkspaceChanged is published when a workspace is opened or closed.
type WorkspaceChanged struct {
	Root      string
	Timestamp time.Time
}
