package validator

import (
	"errors"
	"strings"
	"testing"
)

func TestFieldValidators(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "email ok", err: ValidateEmail("player@arena.gg")},
		{name: "email missing domain", err: ValidateEmail("player@"), want: ErrInvalidEmail},
		{name: "username ok", err: ValidateUsername("sniper_01")},
		{name: "username short", err: ValidateUsername("ab"), want: ErrInvalidUsername},
		{name: "password ok", err: ValidatePassword("secret")},
		{name: "password short", err: ValidatePassword("12345"), want: ErrInvalidPassword},
		{name: "phone ok", err: ValidatePhone("9876543210")},
		{name: "phone letters", err: ValidatePhone("98765abc10"), want: ErrInvalidPhone},
		{name: "phone short", err: ValidatePhone("98765"), want: ErrInvalidPhone},
		{name: "player id ok", err: ValidatePlayerID("1234567890")},
		{name: "player id spaces", err: ValidatePlayerID("12 34"), want: ErrInvalidPlayerID},
		{name: "upi ok", err: ValidateUPI("gamer.one@okaxis")},
		{name: "upi no handle", err: ValidateUPI("gamer.one"), want: ErrInvalidUPI},
		{name: "bank ok", err: ValidateBank("123456789012", "HDFC0001234")},
		{name: "bank bad account", err: ValidateBank("12ab", "HDFC0001234"), want: ErrInvalidAccount},
		{name: "bank lower ifsc", err: ValidateBank("123456789012", "hdfc0001234"), want: ErrInvalidIFSC},
		{name: "bank ifsc fifth char", err: ValidateBank("123456789012", "HDFC1001234"), want: ErrInvalidIFSC},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if !errors.Is(tc.err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, tc.err)
			}
		})
	}
}

func TestErrorsCollectsAll(t *testing.T) {
	var errs Errors
	errs.Require("", "Player ID")
	errs.Require("  ", "Player name")
	errs.Require("solo", "Team type")
	errs.Check(false, "Invalid team type")
	errs.Add(ValidatePhone("1"))
	errs.Add(nil)

	if errs.Empty() {
		t.Fatal("expected errors")
	}
	if len(errs) != 4 {
		t.Fatalf("expected 4 errors, got %d: %v", len(errs), errs)
	}
	if errs[0] != "Player ID is required" {
		t.Fatalf("unexpected first error %q", errs[0])
	}
	if !strings.HasPrefix(errs.Error(), "validation failed: ") {
		t.Fatalf("unexpected message %q", errs.Error())
	}
}
