package policy

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
)

// Load builds a Set from a blocklist file merged with inline entries. The path may be empty, in
// which case only the inline entries are used.
//
// The file holds one entry per line. Blank lines and "#" comments are ignored. Hosts-file lines are
// understood as well: when the first field is an IP address, every following field is a blocked
// name.
func Load(path string, inline []string) (*Set, error) {
	names := append([]string{}, inline...)

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("policy: error opening blocklist: path=%s err=%v", path, err)
		}
		defer file.Close()

		parsed, err := parseBlocklist(file)
		if err != nil {
			return nil, fmt.Errorf("policy: error reading blocklist: path=%s err=%v", path, err)
		}

		names = append(names, parsed...)
	}

	return NewSet(names), nil
}

func parseBlocklist(r io.Reader) ([]string, error) {
	var names []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if net.ParseIP(fields[0]) != nil {
			names = append(names, fields[1:]...)
		} else {
			names = append(names, fields[0])
		}
	}

	return names, scanner.Err()
}
