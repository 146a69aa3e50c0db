package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/jfrlite/jfrlite/internal/recordings"
	"github.com/jfrlite/jfrlite/internal/targets"
)

// StartRecordingCommand starts a named recording with the given event
// settings on one target.
type StartRecordingCommand struct {
	out     io.Writer
	agent   Agent
	catalog recordings.Catalog
	target  targets.ConnectionDescriptor
}

// NewStartRecordingCommand creates the command. catalog may be nil, in which
// case the started recording is not cached locally.
func NewStartRecordingCommand(out io.Writer, agent Agent, catalog recordings.Catalog, target targets.ConnectionDescriptor) *StartRecordingCommand {
	return &StartRecordingCommand{
		out:     out,
		agent:   agent,
		catalog: catalog,
		target:  target,
	}
}

func (c *StartRecordingCommand) Name() string {
	return "start"
}

// Validate expects exactly two arguments: the recording name and an events
// pattern such as "jdk.CPULoad:enabled=true".
func (c *StartRecordingCommand) Validate(args []string) bool {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "Expected two arguments: recording name and event types.")
		return false
	}

	name, events := args[0], args[1]
	if !recordings.ValidName(name) {
		fmt.Fprintf(c.out, "%s is an invalid recording name\n", name)
		return false
	}
	if !recordings.ValidEvents(events) {
		fmt.Fprintf(c.out, "%s is an invalid events pattern\n", events)
		return false
	}
	return true
}

func (c *StartRecordingCommand) Execute(ctx context.Context, args []string) error {
	name, spec := args[0], args[1]

	existing, err := c.agent.List(ctx, c.target)
	if err != nil {
		return fmt.Errorf("failed to list recordings on %s: %w", c.target.TargetID(), err)
	}
	for _, r := range existing {
		if r.Name == name {
			fmt.Fprintf(c.out, "Recording with name %q already exists\n", name)
			return nil
		}
	}

	events, err := recordings.ParseEvents(spec)
	if err != nil {
		return err
	}

	rec, err := c.agent.Start(ctx, c.target, recordings.StartRequest{Name: name, Events: events})
	if err != nil {
		return fmt.Errorf("failed to start recording %s: %w", name, err)
	}
	if rec.EventSpec == "" {
		rec.EventSpec = spec
	}

	if c.catalog != nil {
		if err := c.catalog.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("failed to cache recording %s: %w", name, err)
		}
	}

	fmt.Fprintf(c.out, "Started recording %s on %s\n", rec.Name, c.target.TargetID())
	return nil
}
