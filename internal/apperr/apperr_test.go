package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("bad courseId", "must be numeric"), KindValidation},
		{"wrapped not found", fmt.Errorf("load: %w", NotFound("course")), KindNotFound},
		{"persistence", Persistence("save", errors.New("disk full")), KindPersistence},
		{"plain error", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	root := errors.New("disk full")
	err := Persistence("upsert progress", root)

	if !errors.Is(err, root) {
		t.Fatal("expected persistence error to unwrap to root cause")
	}
	want := "[persistence] upsert progress: disk full"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if Is(nil, KindInternal) {
		t.Error("nil error must not match any kind")
	}
}
