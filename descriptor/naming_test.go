package descriptor

import "testing"

func TestExposedName(t *testing.T) {
	cases := []struct {
		in, out string
	}{
		{"X", "x"},
		{"Name", "name"},
		{"DistanceTo", "distanceTo"},
		{"URL", "url"},
		{"URLPath", "urlPath"},
		{"HTTPServer", "httpServer"},
		{"", ""},
		{"alreadyLower", "alreadyLower"},
	}
	for _, c := range cases {
		if got := ExposedName(c.in); got != c.out {
			t.Errorf("ExposedName(%q) = %q, expected %q", c.in, got, c.out)
		}
	}
}
