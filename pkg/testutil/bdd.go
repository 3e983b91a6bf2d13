package testutil

import "testing"

// Given, When, and Then wrap subtests with scenario-style names so a failing
// run reads as a sentence, e.g. "Given a payload minted under a newer format
// version/When it is presented to the current decoder/...".
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	scenario(t, "Given", desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	scenario(t, "When", desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	scenario(t, "Then", desc, fn)
}

func scenario(t *testing.T, word, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run(word+" "+desc, fn)
}
