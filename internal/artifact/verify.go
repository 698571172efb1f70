package artifact

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/boardforge/board-imager/internal/logger"
)

// VerifyState is the artifact verification state machine:
// SCANNING -> COMPLETE, or SCANNING -> INCOMPLETE -> {CONFIRMED_CONTINUE | ABORTED}.
type VerifyState int

const (
	// StateScanning is the initial state while discovery runs.
	StateScanning VerifyState = iota
	// StateComplete means every required artifact is present.
	StateComplete
	// StateIncomplete means required artifacts are missing.
	StateIncomplete
	// StateConfirmedContinue means the caller explicitly chose to build a
	// partial/testing image despite missing artifacts.
	StateConfirmedContinue
	// StateAborted is terminal and reports a non-zero failure.
	StateAborted
)

// String returns the state name.
func (s VerifyState) String() string {
	switch s {
	case StateScanning:
		return "SCANNING"
	case StateComplete:
		return "COMPLETE"
	case StateIncomplete:
		return "INCOMPLETE"
	case StateConfirmedContinue:
		return "CONFIRMED_CONTINUE"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// ErrAborted is returned when the run stops because of missing artifacts.
var ErrAborted = errors.New("assembly aborted: required build artifacts are missing")

// Confirmer decides whether to continue an incomplete build.
type Confirmer func(ctx context.Context, missing []string) bool

// AlwaysConfirm continues regardless of what is missing (the --yes flag).
func AlwaysConfirm(context.Context, []string) bool {
	return true
}

// StdinConfirmer prompts on the provided reader/writer pair. A non-answer
// (EOF, closed stdin, anything but yes) aborts: the safe default for
// non-interactive invocations.
func StdinConfirmer(in io.Reader, out io.Writer) Confirmer {
	return func(_ context.Context, missing []string) bool {
		fmt.Fprintf(out, "%d required artifact(s) are missing. Continue and build a partial image? [y/N]: ", len(missing))

		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && line == "" {
			return false
		}

		answer := strings.ToLower(strings.TrimSpace(line))

		return answer == "y" || answer == "yes"
	}
}

// Verify runs the verification state machine over the missing-artifact list.
// On INCOMPLETE every missing item is reported before the confirmer is
// consulted; a nil confirmer aborts. The returned error is non-nil exactly
// in the ABORTED state.
func Verify(ctx context.Context, missing []string, confirm Confirmer) (VerifyState, error) {
	state := StateScanning

	if len(missing) == 0 {
		state = StateComplete
		logger.Debug(ctx, "Artifact verification complete, all required artifacts present")

		return state, nil
	}

	state = StateIncomplete
	for _, item := range missing {
		logger.WarnKV(ctx, "Missing required artifact", "artifact", item)
	}

	if confirm != nil && confirm(ctx, missing) {
		state = StateConfirmedContinue
		logger.Warn(ctx, "Continuing with a partial artifact set on explicit confirmation")

		return state, nil
	}

	state = StateAborted

	return state, fmt.Errorf("%w: %s", ErrAborted, strings.Join(missing, ", "))
}

// DefaultConfirmer builds the interactive stdin confirmer used by the CLIs.
func DefaultConfirmer() Confirmer {
	return StdinConfirmer(os.Stdin, os.Stderr)
}
