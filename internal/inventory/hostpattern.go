package inventory

import (
	"fmt"
	"strconv"
	"strings"
)

const rangeLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// parseHostPattern splits an optional :port off a host pattern and expands
// its [beg:end] / [beg:end:step] ranges. port is 0 when none is given.
func parseHostPattern(pattern string) (names []string, port int, err error) {
	host, port, err := splitPort(pattern)
	if err != nil {
		return nil, 0, err
	}
	if host == "" {
		return nil, 0, fmt.Errorf("empty host name in '%s'", pattern)
	}
	names, err = expandRanges(host)
	if err != nil {
		return nil, 0, fmt.Errorf("host pattern '%s': %w", pattern, err)
	}
	return names, port, nil
}

// splitPort finds a port after the last colon outside brackets. More than
// one such colon means a bare IPv6 address, which carries no port.
func splitPort(pattern string) (string, int, error) {
	depth, colons, last := 0, 0, -1
	for i, r := range pattern {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ':':
			if depth == 0 {
				colons++
				last = i
			}
		}
	}
	if colons != 1 {
		return pattern, 0, nil
	}

	port, err := strconv.Atoi(pattern[last+1:])
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in host pattern '%s'", pattern)
	}
	return pattern[:last], port, nil
}

func expandRanges(pattern string) ([]string, error) {
	open := strings.IndexByte(pattern, '[')
	if open < 0 {
		if strings.IndexByte(pattern, ']') >= 0 {
			return nil, fmt.Errorf("unbalanced ']'")
		}
		return []string{pattern}, nil
	}
	end := strings.IndexByte(pattern[open:], ']')
	if end < 0 {
		return nil, fmt.Errorf("unbalanced '['")
	}
	end += open

	values, err := expandRange(pattern[open+1 : end])
	if err != nil {
		return nil, err
	}
	suffixes, err := expandRanges(pattern[end+1:])
	if err != nil {
		return nil, err
	}

	prefix := pattern[:open]
	out := make([]string, 0, len(values)*len(suffixes))
	for _, v := range values {
		for _, s := range suffixes {
			out = append(out, prefix+v+s)
		}
	}
	return out, nil
}

// expandRange expands the inside of one bracket: beg:end[:step].
func expandRange(rng string) ([]string, error) {
	parts := strings.Split(rng, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, fmt.Errorf("invalid range '[%s]'", rng)
	}
	beg, end := parts[0], parts[1]
	if beg == "" {
		beg = "0"
	}
	if end == "" {
		return nil, fmt.Errorf("range '[%s]' has no end", rng)
	}

	step := 1
	if len(parts) == 3 && parts[2] != "" {
		var err error
		if step, err = strconv.Atoi(parts[2]); err != nil || step < 1 {
			return nil, fmt.Errorf("invalid step in range '[%s]'", rng)
		}
	}

	if b, errB := strconv.Atoi(beg); errB == nil {
		e, err := strconv.Atoi(end)
		if err != nil {
			return nil, fmt.Errorf("range '[%s]' mixes numbers and letters", rng)
		}
		width := 0
		if len(beg) > 1 && beg[0] == '0' {
			if len(beg) != len(end) {
				return nil, fmt.Errorf("range '[%s]' must have equal-width beginning and end", rng)
			}
			width = len(beg)
		}
		if b > e {
			return nil, fmt.Errorf("range '[%s]' begins after it ends", rng)
		}
		var out []string
		for i := b; ; i += step {
			out = append(out, fmt.Sprintf("%0*d", width, i))
			if e-i < step {
				break
			}
		}
		return out, nil
	}

	bi, ei := strings.Index(rangeLetters, beg), strings.Index(rangeLetters, end)
	if len(beg) != 1 || len(end) != 1 || bi < 0 || ei < 0 {
		return nil, fmt.Errorf("invalid range '[%s]'", rng)
	}
	if bi > ei {
		return nil, fmt.Errorf("range '[%s]' begins after it ends", rng)
	}
	var out []string
	for i := bi; ; i += step {
		out = append(out, rangeLetters[i:i+1])
		if ei-i < step {
			break
		}
	}
	return out, nil
}
