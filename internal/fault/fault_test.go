package fault

import (
	"context"
	"errors"
	"testing"
)

func TestTimeoutMatchesUnavailable(t *testing.T) {
	err := Timeout("ffmpeg", context.DeadlineExceeded)

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("errors.Is(err, ErrTimeout) = false, want true")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("errors.Is(err, ErrUnavailable) = false, want true")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("cause not preserved in %v", err)
	}
}

func TestDegrades(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unavailable", Unavailable("ffmpeg", nil), true},
		{"timeout", Timeout("ffmpeg", nil), true},
		{"parse", Parse("loudnorm json", errors.New("unexpected EOF")), true},
		{"input", Input("empty buffer"), false},
		{"other", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Degrades(tt.err); got != tt.want {
				t.Errorf("Degrades(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestInputMessage(t *testing.T) {
	err := Input("unknown stem %q", "kazoo")
	if !errors.Is(err, ErrInput) {
		t.Fatalf("errors.Is(err, ErrInput) = false")
	}
	if got, want := err.Error(), `invalid input: unknown stem "kazoo"`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
