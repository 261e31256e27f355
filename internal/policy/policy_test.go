package policy

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"dnssink/internal/wire"
)

func mustName(t *testing.T, s string) wire.Name {
	t.Helper()

	name, err := wire.NewName(s)
	if err != nil {
		t.Fatal(err)
	}

	return name
}

func TestSetExactCaseInsensitiveMatch(t *testing.T) {
	set := NewSet([]string{"ads.example.com", "Tracking.Example.ORG.", "", "  "})

	if set.Len() != 2 {
		t.Errorf("Len() = %d; want 2", set.Len())
	}

	cases := []struct {
		name    string
		blocked bool
	}{
		{"ads.example.com", true},
		{"ADS.Example.Com", true},
		{"ads.example.com.", true},
		{"tracking.example.org", true},
		{"sub.ads.example.com", false},
		{"example.com", false},
		{"ads.example.co", false},
	}

	for _, c := range cases {
		if got := set.IsBlocked(mustName(t, c.name)); got != c.blocked {
			t.Errorf("IsBlocked(%q) = %v; want %v", c.name, got, c.blocked)
		}
		if got := set.Contains(c.name); got != c.blocked {
			t.Errorf("Contains(%q) = %v; want %v", c.name, got, c.blocked)
		}
	}
}

func TestLoadMergesFileAndInlineEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocklist.txt")
	contents := `# ad servers
ads.example.com
adserver.example.net   # trailing comment

0.0.0.0 tracking.example.org pixel.example.org
127.0.0.1	Metrics.Example.IO
::1 v6.example.net
`
	if err := ioutil.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	set, err := Load(path, []string{"inline.example.com"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, name := range []string{
		"ads.example.com",
		"adserver.example.net",
		"tracking.example.org",
		"pixel.example.org",
		"metrics.example.io",
		"v6.example.net",
		"inline.example.com",
	} {
		if !set.Contains(name) {
			t.Errorf("expected %q to be blocked", name)
		}
	}

	if set.Contains("0.0.0.0") || set.Contains("127.0.0.1") {
		t.Error("hosts-file addresses must not be treated as names")
	}
	if set.Len() != 7 {
		t.Errorf("Len() = %d; want 7", set.Len())
	}
}

func TestLoadInlineOnly(t *testing.T) {
	set, err := Load("", []string{"ads.example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if !set.Contains("ads.example.com") {
		t.Error("inline entry not loaded")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.txt"), nil); err == nil {
		t.Error("expected an error for a missing blocklist file")
	}
}
