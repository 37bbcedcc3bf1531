package mymcp

import "testing"

func TestValidateIdentifier(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"users", "Users_2", "_hidden", "t1"} {
		if err := validateIdentifier("table", name); err != nil {
			t.Errorf("validateIdentifier(%q) = %v, want nil", name, err)
		}
	}
	for _, name := range []string{
		"", "user-table", "users; DROP TABLE x", "`users`", "db.users", "users ",
	} {
		if err := validateIdentifier("table", name); err == nil {
			t.Errorf("validateIdentifier(%q) = nil, want error", name)
		}
	}
}

func TestValidateLikePattern(t *testing.T) {
	t.Parallel()
	for _, pattern := range []string{"users", "user%", "%log%", "a_b_c"} {
		if err := validateLikePattern(pattern); err != nil {
			t.Errorf("validateLikePattern(%q) = %v, want nil", pattern, err)
		}
	}
	for _, pattern := range []string{"", "user'; --", "a b", "a.b"} {
		if err := validateLikePattern(pattern); err == nil {
			t.Errorf("validateLikePattern(%q) = nil, want error", pattern)
		}
	}
}
