package main

import (
	"strings"
	"testing"
)

func TestGenerateThenValidate(t *testing.T) {
	out := generate(11, 1, 0)
	if !strings.Contains(out, "ordinary") {
		t.Errorf("expected an ordinary key, got %q", out)
	}

	key := out[strings.LastIndex(out, " ")+1:]
	res := validate(key)
	if !strings.HasPrefix(res, "Valid (11:1)") {
		t.Errorf("generated key did not validate: %q", res)
	}
}

func TestGenerateRootKey(t *testing.T) {
	out := generate(11, 2, 1)
	if !strings.Contains(out, "ROOT") {
		t.Errorf("expected a ROOT key, got %q", out)
	}

	key := out[strings.LastIndex(out, " ")+1:]
	res := validate(key)
	if !strings.Contains(res, "ROOT") {
		t.Errorf("root flag lost in validation: %q", res)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	for _, key := range []string{
		"",
		"too-short",
		"not_base64_at_all_but_has_the_right_length!!!!!!",
	} {
		if res := validate(key); !strings.HasPrefix(res, "INVALID") {
			t.Errorf("validate(%q) = %q, expected INVALID", key, res)
		}
	}
}

func TestValidateRejectsTamperedKey(t *testing.T) {
	out := generate(11, 1, 0)
	key := out[strings.LastIndex(out, " ")+1:]

	// Flip the isRoot byte without re-signing.
	tampered := []byte(key)
	tampered[9] ^= 'x'
	if res := validate(string(tampered)); !strings.HasPrefix(res, "INVALID") {
		t.Errorf("tampered key validated: %q", res)
	}
}
