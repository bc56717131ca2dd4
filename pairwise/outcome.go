package pairwise

import (
	"strings"

	"github.com/janelia-flyem/stitch/stitch"
)

// Stage names used in outcomes, logs and metrics.
const (
	StageRead      = "read"
	StageReconcile = "reconcile"
	StageWrite     = "write"
	StageVerify    = "verify"
)

// Outcome is the explicit result of one pipeline stage.  Kind is one of
// TransientIO, ShapeMismatch or Cancelled when Err is non-nil.  Only
// TransientIO outcomes are retried.
type Outcome struct {
	Stage string
	Kind  stitch.ErrorKind
	Err   error
}

func succeeded(stage string) Outcome {
	return Outcome{Stage: stage}
}

// failed classifies a stage error.  Anything not already a shape mismatch or
// cancellation is treated as transient.
func failed(stage string, err error) Outcome {
	if err == nil {
		return succeeded(stage)
	}
	kind := stitch.KindOf(err)
	switch kind {
	case stitch.ShapeMismatch, stitch.Cancelled:
	default:
		if kind != stitch.TransientIO {
			err = stitch.NewError(stitch.TransientIO, "%w", err)
		}
		kind = stitch.TransientIO
	}
	return Outcome{Stage: stage, Kind: kind, Err: err}
}

// OK returns true if the stage succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Retryable returns true if another attempt may succeed.
func (o Outcome) Retryable() bool {
	return o.Err != nil && o.Kind == stitch.TransientIO
}

func (o Outcome) label() string {
	if o.Err == nil {
		return "success"
	}
	return strings.ReplaceAll(o.Kind.String(), " ", "_")
}

func (o Outcome) String() string {
	if o.Err == nil {
		return o.Stage + " succeeded"
	}
	return o.Stage + " failed (" + o.Kind.String() + "): " + o.Err.Error()
}
