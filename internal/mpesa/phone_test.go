package mpesa

import (
	"errors"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"254712345678", "254712345678"},
		{"+254712345678", "254712345678"},
		{"0712345678", "254712345678"},
		{"712345678", "254712345678"},
		{"0110123456", "254110123456"},
		{"110123456", "254110123456"},
		{" 0712 345 678 ", "254712345678"},
		{"+254-712-345-678", "254712345678"},
	}

	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		if err != nil {
			t.Errorf("NormalizePhone(%q): unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizePhone_Invalid(t *testing.T) {
	t.Parallel()

	cases := []string{
		"",
		"12345",
		"07123456789012",
		"not-a-phone",
		"2547123456789",
		"0712345678x",
	}

	for _, in := range cases {
		if _, err := NormalizePhone(in); !errors.Is(err, ErrInvalidPhone) {
			t.Errorf("NormalizePhone(%q): expected ErrInvalidPhone, got %v", in, err)
		}
	}
}
