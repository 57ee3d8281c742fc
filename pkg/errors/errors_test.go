package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := MinLengthError(0.0001, 0.001)
	s := err.Error()
	if !strings.Contains(s, "ADMIT_MIN_LENGTH") {
		t.Errorf("Error() = %q, want code in message", s)
	}
}

func TestAxisInMessage(t *testing.T) {
	err := AxisModeError("a")
	if !strings.Contains(err.Error(), "axis a") {
		t.Errorf("Error() = %q, want axis name", err.Error())
	}
}

func TestIs(t *testing.T) {
	err := PoolExhaustedError()
	if !Is(err, ErrPoolExhausted) {
		t.Error("Is(PoolExhaustedError, ErrPoolExhausted) = false")
	}
	if Is(err, ErrInvariant) {
		t.Error("Is(PoolExhaustedError, ErrInvariant) = true")
	}
	if Is(errors.New("plain"), ErrPoolExhausted) {
		t.Error("Is(plain error) = true")
	}
}

func TestIsThroughWrapping(t *testing.T) {
	inner := InvariantError("buffer links corrupted")
	wrapped := fmt.Errorf("exec tick: %w", inner)
	if !Is(wrapped, ErrInvariant) {
		t.Error("Is should see through fmt.Errorf wrapping")
	}
	if !IsFatal(wrapped) {
		t.Error("IsFatal should see through wrapping")
	}
}

func TestClassifiers(t *testing.T) {
	tests := []struct {
		err       error
		admission bool
		retryable bool
		fatal     bool
	}{
		{ZeroFeedError(), true, false, false},
		{NoAxesError(), true, false, false},
		{MinLengthError(0, 1), true, false, false},
		{AxisModeError("b"), true, false, false},
		{PoolExhaustedError(), false, true, false},
		{InvariantError("x"), false, false, true},
		{CycleFailedError("probe", "switch state"), false, false, false},
	}
	for _, tt := range tests {
		if got := IsAdmission(tt.err); got != tt.admission {
			t.Errorf("IsAdmission(%v) = %v, want %v", tt.err, got, tt.admission)
		}
		if got := IsRetryable(tt.err); got != tt.retryable {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.retryable)
		}
		if got := IsFatal(tt.err); got != tt.fatal {
			t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.fatal)
		}
	}
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("port closed")
	err := Wrap(inner, ErrEncoderLink, "encoder read")
	if !errors.Is(err, inner) {
		t.Error("errors.Is should find wrapped error")
	}
}
