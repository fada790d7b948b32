package format

import "testing"

func TestMB(t *testing.T) {
	cases := []struct {
		bytes int64
		want  string
	}{
		{0, "0.00 MB"},
		{1024 * 1024, "1.00 MB"},
		{10 * 1024 * 1024, "10.00 MB"},
		{600000, "0.57 MB"},
		{1572864, "1.50 MB"},
	}
	for _, tc := range cases {
		if got := MB(tc.bytes); got != tc.want {
			t.Fatalf("MB(%d) = %q, want %q", tc.bytes, got, tc.want)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(50, 200); got != "25.0%" {
		t.Fatalf("expected 25.0%%, got %q", got)
	}
	if got := Percent(1, 0); got != "0.0%" {
		t.Fatalf("expected clamp to 0.0%% on zero total, got %q", got)
	}
}
