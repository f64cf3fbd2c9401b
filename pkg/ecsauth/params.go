package ecsauth

import (
	"net/url"
	"strings"
)

// Params is the flat key/value view of a destination URL's query string.
type Params map[string]string

// ExtractParams parses the query component of rawurl. The second return is
// false when the URL has no query component at all; callers treat that as
// "not an authentication attempt", which is distinct from an empty mapping.
//
// Parsing is deliberately tolerant: pairs without an "=" are dropped, a
// value containing "=" is truncated at the first "=", and when a name
// repeats the last occurrence wins.
func ExtractParams(rawurl string) (Params, bool) {
	idx := strings.Index(rawurl, "?")
	if idx < 0 {
		return nil, false
	}

	query := rawurl[idx+1:]
	if frag := strings.Index(query, "#"); frag >= 0 {
		query = query[:frag]
	}

	params := make(Params)
	for _, pair := range strings.Split(query, "&") {
		parts := strings.Split(pair, "=")
		if len(parts) < 2 {
			continue
		}
		name := parts[0]
		value := parts[1]
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		params[name] = value
	}
	return params, true
}
