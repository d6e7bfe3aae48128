package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := Wrap(CodeStorageUnavailable, "read data file", stderrors.New("permission denied"))

	if !stderrors.Is(err, New(CodeStorageUnavailable, "")) {
		t.Fatal("expected errors.Is to match by code")
	}
	if stderrors.Is(err, New(CodeMalformedRequest, "")) {
		t.Fatal("expected errors.Is to reject a different code")
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(CodeScoreboardCorrupt, "decode scoreboard", stderrors.New("unexpected EOF"))
	if got, want := err.Error(), "decode scoreboard: unexpected EOF"; got != want {
		t.Fatalf("error = %q, want %q", got, want)
	}
	if got, want := New(CodeUnknown, "boom").Error(), "boom"; got != want {
		t.Fatalf("error = %q, want %q", got, want)
	}
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Status
	}{
		{name: "nil", err: nil, want: StatusOK},
		{name: "malformed", err: New(CodeMalformedRequest, "bad"), want: StatusBadRequest},
		{name: "too large", err: New(CodeRequestTooLarge, "big"), want: StatusBadRequest},
		{name: "method", err: New(CodeMethodNotAllowed, "post"), want: StatusNope},
		{name: "storage", err: New(CodeStorageUnavailable, "io"), want: StatusInternal},
		{name: "wrapped", err: fmt.Errorf("serve: %w", New(CodeMethodNotAllowed, "put")), want: StatusNope},
		{name: "plain", err: stderrors.New("plain"), want: StatusInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StatusOf(tc.err); got != tc.want {
				t.Fatalf("status = %+v, want %+v", got, tc.want)
			}
		})
	}
}
