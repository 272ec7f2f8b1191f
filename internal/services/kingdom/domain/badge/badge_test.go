package badge

import (
	"testing"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func TestRender(t *testing.T) {
	printer := message.NewPrinter(language.English)
	tests := []struct {
		name    string
		badge   Badge
		printer *message.Printer
		want    string
	}{
		{"value", Valued("gold", "{value} Gold", -2), nil, "-2 Gold"},
		{"grouped value", Valued("gold", "Gain {value} Gold", 1200), printer, "Gain 1,200 Gold"},
		{"formula", Rolling("food", "Lose {value} Food", "1d4", PolarityNegative), printer, "Lose 1d4 Food"},
		{"plain text", Text("army", "Recruit an army", PolarityPositive), printer, "Recruit an army"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.badge.Render(tt.printer); got != tt.want {
				t.Fatalf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPolarityFor(t *testing.T) {
	if PolarityFor(3) != PolarityPositive || PolarityFor(-1) != PolarityNegative || PolarityFor(0) != PolarityNeutral {
		t.Fatal("unexpected polarity mapping")
	}
}
