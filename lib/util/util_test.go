package util

import "testing"

func TestIn(t *testing.T) {
	ss := []string{"mongodb", "postgresql", "memory"}

	if !In(ss, "memory") {
		t.Errorf("memory should be in %v", ss)
	}

	if In(ss, "mysql") || In(nil, "") {
		t.Errorf("unexpected match")
	}
}

func TestOrDefault(t *testing.T) {
	cases := []struct{ in, def, exp string }{
		{"", "anonymous", "anonymous"},
		{"   ", "anonymous", "anonymous"},
		{" 0xabc ", "anonymous", "0xabc"},
	}
	for _, c := range cases {
		if got := OrDefault(c.in, c.def); got != c.exp {
			t.Errorf("OrDefault(%q, %q) = %q, expected %q", c.in, c.def, got, c.exp)
		}
	}
}
