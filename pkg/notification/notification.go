package notification

import (
	"context"
	"time"
)

type Action int

const (
	ActionLink Action = iota + 1
	ActionFailure
)

type Sender interface {
	CanSend() bool
	Send(ctx context.Context, title string, description string, runTime time.Duration, fields []Field, dryRun bool) error
	BuildField(action Action, options BuildOptions) Field
	Name() string
}

type Field struct {
	Name   string
	Value  string
	Failed bool
}

type BuildOptions struct {
	Destination string
	Source      string
	Size        int64
	Mode        string

	Reason string
}
