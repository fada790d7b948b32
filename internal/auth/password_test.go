package auth

import "testing"

func TestNormalizeUsername(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Alice", "alice", false},
		{"  bob.smith ", "bob.smith", false},
		{"user-01", "user-01", false},
		{"", "", true},
		{"-leading", "", true},
		{"trailing.", "", true},
		{"has space", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizeUsername(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("NormalizeUsername(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NormalizeUsername(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizeUsername(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Fatal("expected error for short password")
	}

	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(hash, "correct horse battery") {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword(hash, "wrong password!") {
		t.Fatal("expected wrong password to fail")
	}
	if VerifyPassword("", "anything") {
		t.Fatal("expected empty hash to fail")
	}
}
