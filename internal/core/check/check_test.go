package check

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		roll Roll
		opts Options
		want Degree
	}{
		{"beats dc", Roll{Total: 18, Difficulty: 15}, Options{}, Success},
		{"misses dc", Roll{Total: 12, Difficulty: 15}, Options{}, Failure},
		{"tie fails by default", Roll{Total: 15, Difficulty: 15}, Options{}, Failure},
		{"tie succeeds with house rule", Roll{Total: 15, Difficulty: 15}, Options{Tie: TieSucceeds}, Success},
		{"beats by ten", Roll{Total: 25, Difficulty: 15}, Options{}, CriticalSuccess},
		{"misses by ten", Roll{Total: 5, Difficulty: 15}, Options{}, CriticalFailure},
		{"natural max upgrades success", Roll{Total: 20, Difficulty: 15, Natural: 20}, Options{}, CriticalSuccess},
		{"natural max leaves failure", Roll{Total: 14, Difficulty: 15, Natural: 20}, Options{}, Failure},
		{"natural max on tie fails by default", Roll{Total: 15, Difficulty: 15, Natural: 20}, Options{}, Failure},
		{"natural max on tie with house rule", Roll{Total: 15, Difficulty: 15, Natural: 20}, Options{Tie: TieSucceeds}, CriticalSuccess},
		{"natural max leaves critical failure", Roll{Total: 4, Difficulty: 15, Natural: 20}, Options{}, CriticalFailure},
		{"natural min downgrades success", Roll{Total: 16, Difficulty: 15, Natural: 1}, Options{}, Failure},
		{"natural min downgrades failure", Roll{Total: 10, Difficulty: 15, Natural: 1}, Options{}, CriticalFailure},
		{"natural max clamps", Roll{Total: 40, Difficulty: 15, Natural: 20}, Options{}, CriticalSuccess},
		{"natural min clamps", Roll{Total: 1, Difficulty: 15, Natural: 1}, Options{}, CriticalFailure},
		{"critical margin with natural min", Roll{Total: 26, Difficulty: 15, Natural: 1}, Options{}, Success},
		{"custom die size", Roll{Total: 16, Difficulty: 15, Natural: 6, DieSize: 6}, Options{}, CriticalSuccess},
		{"custom die size leaves failure", Roll{Total: 12, Difficulty: 15, Natural: 6, DieSize: 6}, Options{}, Failure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.roll, tt.opts)
			if got != tt.want {
				t.Errorf("Resolve(%+v) = %v, want %v", tt.roll, got, tt.want)
			}
		})
	}
}

func TestResolveCriticalMarginUpgradesExactlyOneStep(t *testing.T) {
	for dc := 0; dc <= 40; dc++ {
		for total := dc + 10; total <= dc+40; total++ {
			base := Resolve(Roll{Total: dc + 1, Difficulty: dc}, Options{})
			got := Resolve(Roll{Total: total, Difficulty: dc}, Options{})
			if got != base.Upgrade() {
				t.Fatalf("total %d vs dc %d = %v, want %v", total, dc, got, base.Upgrade())
			}
		}
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	roll := Roll{Total: 17, Difficulty: 16, Natural: 11}
	first := Resolve(roll, Options{})
	for i := 0; i < 100; i++ {
		if got := Resolve(roll, Options{}); got != first {
			t.Fatalf("iteration %d = %v, want %v", i, got, first)
		}
	}
}

func TestParseDegree(t *testing.T) {
	tests := []struct {
		input   string
		want    Degree
		wantErr bool
	}{
		{"criticalSuccess", CriticalSuccess, false},
		{"critical_failure", CriticalFailure, false},
		{"Success", Success, false},
		{" failure ", Failure, false},
		{"partial", DegreeUnspecified, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDegree(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDegree(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("ParseDegree(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDegreeRoundTripsThroughString(t *testing.T) {
	for _, degree := range Degrees() {
		parsed, err := ParseDegree(degree.String())
		if err != nil {
			t.Fatalf("parse %v: %v", degree, err)
		}
		if parsed != degree {
			t.Fatalf("parsed %v, want %v", parsed, degree)
		}
	}
}

func TestParseTieRule(t *testing.T) {
	if rule, err := ParseTieRule(""); err != nil || rule != TieFails {
		t.Fatalf("empty tie rule = %v, %v", rule, err)
	}
	if rule, err := ParseTieRule("succeed"); err != nil || rule != TieSucceeds {
		t.Fatalf("succeed tie rule = %v, %v", rule, err)
	}
	if _, err := ParseTieRule("coinflip"); err == nil {
		t.Fatal("expected error for unknown tie rule")
	}
}

func TestMargin(t *testing.T) {
	tests := []struct {
		name       string
		total      int
		difficulty int
		want       int
	}{
		{"exact match", 10, 10, 0},
		{"above by 5", 15, 10, 5},
		{"below by 5", 5, 10, -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Margin(tt.total, tt.difficulty)
			if got != tt.want {
				t.Errorf("Margin(%d, %d) = %v, want %v", tt.total, tt.difficulty, got, tt.want)
			}
		})
	}
}

func TestMeetsDifficulty(t *testing.T) {
	if !MeetsDifficulty(10, 10) {
		t.Fatal("expected exact total to meet difficulty")
	}
	if MeetsDifficulty(9, 10) {
		t.Fatal("expected lower total to miss difficulty")
	}
}
