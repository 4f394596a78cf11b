package model

import "testing"

func TestWithOkSetWhenNoErrorFlags(t *testing.T) {
	s := StatusLocalRemoteSPSelect.WithOk()
	if !s.Has(StatusOk) {
		t.Fatal("StatusOk not set when no error flags present")
	}
}

func TestWithOkClearedWhenErrorFlagSet(t *testing.T) {
	s := (StatusAlarm1 | StatusOk).WithOk()
	if s.Has(StatusOk) {
		t.Fatal("StatusOk remained set despite an error flag")
	}
	if !s.Has(StatusAlarm1) {
		t.Fatal("StatusAlarm1 lost during WithOk")
	}
}

func TestRampStateString(t *testing.T) {
	cases := map[RampState]string{
		RampNone:     "NoRamp",
		RampRamping:  "Ramping",
		RampHolding:  "Holding",
		RampStopped:  "Stopped",
		RampFinished: "Finished",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
