// Package commands holds the recording-control commands behind jfrctl.
package commands

import (
	"context"

	"github.com/jfrlite/jfrlite/internal/recordings"
	"github.com/jfrlite/jfrlite/internal/targets"
)

// Command is one recording-control operation. Validate writes its own
// diagnostics and reports whether Execute may be called with args.
type Command interface {
	Name() string
	Validate(args []string) bool
	Execute(ctx context.Context, args []string) error
}

// Agent is the part of the recording agent API the commands use.
type Agent interface {
	List(ctx context.Context, desc targets.ConnectionDescriptor) ([]recordings.Recording, error)
	Start(ctx context.Context, desc targets.ConnectionDescriptor, req recordings.StartRequest) (recordings.Recording, error)
}
