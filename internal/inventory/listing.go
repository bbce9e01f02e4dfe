package inventory

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

var nameReplacer = strings.NewReplacer("./", "", "$", "", `"`, "-")

// ParseListing reads `du -k` style output, one "<KiB> <name>" per line, and
// returns sizes in bytes keyed by normalized name. Blank lines are skipped.
func ParseListing(r io.Reader) (map[string]int64, error) {
	sizes := make(map[string]int64)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		i := strings.IndexFunc(text, unicode.IsSpace)
		if i < 0 {
			return nil, fmt.Errorf("listing line %d: expected \"<size> <name>\"", line)
		}
		sizeField, name := text[:i], text[i+1:]
		kib, err := strconv.ParseInt(sizeField, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("listing line %d: bad size %q: %w", line, sizeField, err)
		}
		sizes[normalize(name)] = kib * 1024
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}
	return sizes, nil
}

func normalize(name string) string {
	return strings.TrimSpace(nameReplacer.Replace(strings.TrimSpace(name)))
}
