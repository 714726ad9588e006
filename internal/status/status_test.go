package status

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		rawStatus string
		rawResult string
		want      Status
	}{
		{"completed with success flag", "COMPLETED", "SUCCESS", Completed},
		{"pending despite success flag", "PENDING", "SUCCESS", Pending},
		{"empty input", "", "", Unknown},
		{"processing maps to pending", "PROCESSING", "whatever", Pending},
		{"initiated maps to pending", "INITIATED", "", Pending},
		{"lowercase completed", "completed", "", Completed},
		{"whitespace trimmed", "  COMPLETED  ", "", Completed},
		{"vendor free text is a failure", "INSUFFICIENT FUNDS", "SUCCESS", Failed},
		{"cancelled is a failure", "CANCELLED", "", Failed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.rawStatus, tt.rawResult); got != tt.want {
				t.Errorf("Normalize(%q, %q) = %s, want %s", tt.rawStatus, tt.rawResult, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	if got := Parse("pending"); got != Pending {
		t.Errorf("Parse(pending) = %s, want %s", got, Pending)
	}
	if got := Parse("garbage"); got != Unknown {
		t.Errorf("Parse(garbage) = %s, want %s", got, Unknown)
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{Completed, Failed} {
		if !Terminal(s) {
			t.Errorf("Terminal(%s) = false, want true", s)
		}
	}
	for _, s := range []Status{Initiated, Pending, Unknown} {
		if Terminal(s) {
			t.Errorf("Terminal(%s) = true, want false", s)
		}
	}
}
