package params

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "params.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, path
}

func TestDefaultsSeeded(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()
	all, err := s.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	for k, v := range Defaults {
		if all[k] != v {
			t.Fatalf("%s=%q want %q", k, all[k], v)
		}
	}
	if s.Int(KeyMinSOC, -1) != 0 {
		t.Fatalf("min_soc default")
	}
}

func TestSetPersistsAcrossReopen(t *testing.T) {
	s, path := openTemp(t)
	if err := s.Set(KeyMinSOC, "25"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(KeyUnits, "K"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if got := s2.Int(KeyMinSOC, 0); got != 25 {
		t.Fatalf("min_soc after reopen = %d", got)
	}
	if v, _ := s2.Get(KeyUnits); v != "K" {
		t.Fatalf("units after reopen = %q (defaults must not overwrite)", v)
	}
}

func TestGetMissingAndMalformed(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := s.Int("nope", 7); got != 7 {
		t.Fatalf("missing Int default = %d", got)
	}
	_ = s.Set(KeyMinSOC, "twenty")
	if got := s.Int(KeyMinSOC, 3); got != 3 {
		t.Fatalf("malformed Int default = %d", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		key, value string
		wantErr    error
	}{
		{KeyMinSOC, "0", nil},
		{KeyMinSOC, "100", nil},
		{KeyMinSOC, "abc", ErrInvalidValue},
		{KeyMinSOC, "250", ErrInvalidValue},
		{KeyMinSOC, "-1", ErrInvalidValue},
		{KeyUnits, "K", nil},
		{KeyUnits, "Z", ErrInvalidValue},
		{KeyCANWrite, "1", nil},
		{KeyCANWrite, "yes", ErrInvalidValue},
		{"bogus", "1", ErrUnknownKey},
	}
	for _, tc := range tests {
		err := Validate(tc.key, tc.value)
		if tc.wantErr == nil && err != nil {
			t.Fatalf("%s=%q: unexpected error %v", tc.key, tc.value, err)
		}
		if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s=%q: want %v, got %v", tc.key, tc.value, tc.wantErr, err)
		}
	}
	for k, v := range Defaults {
		if err := Validate(k, v); err != nil {
			t.Fatalf("default %s=%q rejected: %v", k, v, err)
		}
	}
}
