package identity

import (
	"context"
	"fmt"
	"strings"
)

// fallbackPrefix is used when the participant carries no organization
// abbreviation.
const fallbackPrefix = "ecs"

// maxUsernameAttempts bounds the collision search. Hitting it means the
// store is answering nonsense, not that the namespace is full.
const maxUsernameAttempts = 10000

// sanitizeUsername lowercases the input and drops everything that is not
// an ASCII letter, digit, dot, underscore or hyphen.
func sanitizeUsername(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// generateUsername picks a free username of the form {abbr}_{hint}, or
// {abbr}_{n} when no login hint is available. A taken hinted name gets a
// numeric suffix starting at 2: acme_bob, acme_bob2, acme_bob3. The
// second return value reports whether the first choice was taken.
func generateUsername(ctx context.Context, orgAbbr, loginHint string, taken func(context.Context, string) (bool, error)) (string, bool, error) {
	abbr := sanitizeUsername(orgAbbr)
	if abbr == "" {
		abbr = fallbackPrefix
	}
	hint := sanitizeUsername(loginHint)

	if hint == "" {
		for i := 1; i <= maxUsernameAttempts; i++ {
			candidate := fmt.Sprintf("%s_%d", abbr, i)
			inUse, err := taken(ctx, candidate)
			if err != nil {
				return "", false, err
			}
			if !inUse {
				return candidate, i > 1, nil
			}
		}
		return "", false, fmt.Errorf("no free username with prefix %q", abbr)
	}

	base := abbr + "_" + hint
	inUse, err := taken(ctx, base)
	if err != nil {
		return "", false, err
	}
	if !inUse {
		return base, false, nil
	}
	for i := 2; i <= maxUsernameAttempts; i++ {
		candidate := fmt.Sprintf("%s%d", base, i)
		inUse, err := taken(ctx, candidate)
		if err != nil {
			return "", false, err
		}
		if !inUse {
			return candidate, true, nil
		}
	}
	return "", false, fmt.Errorf("no free username with base %q", base)
}
