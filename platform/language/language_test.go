package language

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"EN":    "en",
		"en-GB": "en",
		"nl_BE": "nl",
		"fi":    "fi",
		"":      "en",
		"???":   "en",
	}

	for input, want := range cases {
		if got := Normalize(input, "en"); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", input, got, want)
		}
	}
}
