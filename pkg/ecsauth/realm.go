package ecsauth

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"
)

// DeriveRealm recomputes the realm value binding an authentication hash to
// the request it was issued for. Hubs issuing hashes through the legacy
// embed (ecs_hash_url) derive the realm from the course target and the
// non-ECS parameters; current hubs derive it from the full URL.
func DeriveRealm(fullURL, coursePrefix string, params Params) string {
	if _, legacy := params["ecs_hash_url"]; legacy {
		return legacyRealm(coursePrefix, params)
	}
	return currentRealm(fullURL)
}

func currentRealm(fullURL string) string {
	return sha1hex(fullURL)
}

func legacyRealm(coursePrefix string, params Params) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "id" || strings.HasPrefix(k, "ecs_") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(coursePrefix)
	for _, k := range keys {
		b.WriteString("&")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(params[k])
	}
	return sha1hex(b.String())
}

func sha1hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
