package hostenv

import (
	"bufio"
	"strings"
)

// OSRelease holds the identification fields of an os-release file.
type OSRelease struct {
	ID     string
	IDLike []string
	Name   string
}

// ParseOSRelease parses the KEY=value format of /etc/os-release.
// Unknown keys, comments and malformed lines are ignored.
func ParseOSRelease(content string) OSRelease {
	var rel OSRelease

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.ToLower(unquote(strings.TrimSpace(value)))

		switch strings.TrimSpace(key) {
		case "ID":
			rel.ID = value
		case "ID_LIKE":
			rel.IDLike = strings.Fields(value)
		case "NAME":
			rel.Name = value
		}
	}

	return rel
}

// Tokens returns the distribution identifiers in match order: ID, ID_LIKE, then NAME words.
func (r OSRelease) Tokens() []string {
	var tokens []string
	if r.ID != "" {
		tokens = append(tokens, r.ID)
	}
	tokens = append(tokens, r.IDLike...)
	for _, word := range strings.FieldsFunc(r.Name, func(c rune) bool {
		return c == ' ' || c == '/' || c == ','
	}) {
		tokens = append(tokens, word)
	}
	return tokens
}

func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' || first == '\'') && first == last {
			return value[1 : len(value)-1]
		}
	}
	return value
}
