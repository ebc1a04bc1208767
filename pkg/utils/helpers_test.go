package utils

import (
	"regexp"
	"testing"
)

func TestGenerateRandomString(t *testing.T) {
	alnum := regexp.MustCompile(`^[a-zA-Z0-9]+$`)

	for _, n := range []int{1, 12, 40} {
		s := GenerateRandomString(n)
		if len(s) != n {
			t.Errorf("GenerateRandomString(%d) has length %d", n, len(s))
		}
		if !alnum.MatchString(s) {
			t.Errorf("GenerateRandomString(%d) = %q; want only [a-zA-Z0-9]", n, s)
		}
	}

	if GenerateRandomString(32) == GenerateRandomString(32) {
		t.Error("two random strings collided")
	}
}

func TestGenerateToken(t *testing.T) {
	tok, err := GenerateToken(32)
	if err != nil {
		t.Fatal(err)
	}
	if len(tok) != 64 {
		t.Errorf("len(GenerateToken(32)) = %d; want 64", len(tok))
	}

	other, err := GenerateToken(32)
	if err != nil {
		t.Fatal(err)
	}
	if tok == other {
		t.Error("two tokens collided")
	}
}

func TestDigest(t *testing.T) {
	// sha256("abc")
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Digest("abc"); got != want {
		t.Errorf("Digest(%q) = %q; want %q", "abc", got, want)
	}
}

func TestNormalizeEmail(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"a@x.com", "a@x.com"},
		{"A@X.Com", "a@x.com"},
		{"  Someone@Example.org ", "someone@example.org"},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			if actual := NormalizeEmail(tc.input); actual != tc.expected {
				t.Errorf("NormalizeEmail(%q) = %q; want %q", tc.input, actual, tc.expected)
			}
		})
	}
}
