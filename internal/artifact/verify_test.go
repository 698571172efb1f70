package artifact

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestVerifyComplete verifies the SCANNING -> COMPLETE transition.
func TestVerifyComplete(t *testing.T) {
	t.Parallel()

	state, err := Verify(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Equal(t, StateComplete, state)
}

// TestVerifyAbortedWithoutConfirmer verifies that missing artifacts with no
// confirmer end in ABORTED with ErrAborted carrying the missing list.
func TestVerifyAbortedWithoutConfirmer(t *testing.T) {
	t.Parallel()

	state, err := Verify(context.Background(), []string{"kernel image (Image or zImage)"}, nil)
	require.Equal(t, StateAborted, state)
	require.ErrorIs(t, err, ErrAborted)
	require.Contains(t, err.Error(), "kernel image")
}

// TestVerifyConfirmedContinue verifies the INCOMPLETE -> CONFIRMED_CONTINUE
// transition with an explicit confirmation.
func TestVerifyConfirmedContinue(t *testing.T) {
	t.Parallel()

	state, err := Verify(context.Background(), []string{"bootloader"}, AlwaysConfirm)
	require.NoError(t, err)
	require.Equal(t, StateConfirmedContinue, state)
}

// TestVerifyDeclinedAborts verifies the INCOMPLETE -> ABORTED transition
// when the confirmer declines.
func TestVerifyDeclinedAborts(t *testing.T) {
	t.Parallel()

	decline := func(context.Context, []string) bool { return false }

	state, err := Verify(context.Background(), []string{"bootloader"}, decline)
	require.Equal(t, StateAborted, state)
	require.ErrorIs(t, err, ErrAborted)
}

// TestStdinConfirmerAnswers verifies interactive answer handling, including
// the non-interactive EOF default of abort.
func TestStdinConfirmerAnswers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"yes\n", true},
		{"Y\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false}, // closed stdin: default abort
	}

	for _, tc := range cases {
		var out strings.Builder
		confirm := StdinConfirmer(strings.NewReader(tc.input), &out)
		require.Equal(t, tc.want, confirm(context.Background(), []string{"x"}), "input %q", tc.input)
		require.Contains(t, out.String(), "Continue")
	}
}

// TestVerifyStateString verifies state names used in log output.
func TestVerifyStateString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "SCANNING", StateScanning.String())
	require.Equal(t, "COMPLETE", StateComplete.String())
	require.Equal(t, "INCOMPLETE", StateIncomplete.String())
	require.Equal(t, "CONFIRMED_CONTINUE", StateConfirmedContinue.String())
	require.Equal(t, "ABORTED", StateAborted.String())
}
