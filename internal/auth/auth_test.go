package auth

import (
	"errors"
	"testing"

	"github.com/danmuck/keywire/internal/testutil/testlog"
)

func TestStaticTokenValidate(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		stored  string
		input   string
		wantErr error
	}{
		{name: "empty token denied", stored: "", input: "abc", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "abc", input: "abc", wantErr: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := (StaticToken{Token: tc.stored}).Validate(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestFuncValidator(t *testing.T) {
	testlog.Start(t)
	validator := FuncValidator(func(token string) error {
		if token != "ok" {
			return ErrUnauthorized
		}
		return nil
	})

	if err := validator.Validate("bad"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for bad token, got %v", err)
	}
	if err := validator.Validate("ok"); err != nil {
		t.Fatalf("expected success for ok token, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "bearer token", header: "Bearer abc123", want: "abc123"},
		{name: "padded header", header: "  Bearer abc123  ", want: "abc123"},
		{name: "missing header", header: "", want: ""},
		{name: "wrong scheme", header: "Basic abc123", want: ""},
		{name: "bare token", header: "abc123", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := BearerToken(tc.header); got != tc.want {
				t.Fatalf("BearerToken(%q) = %q, want %q", tc.header, got, tc.want)
			}
		})
	}
}
