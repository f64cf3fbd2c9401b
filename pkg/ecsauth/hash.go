package ecsauth

import (
	"errors"
	"strings"
)

var (
	// ErrNoHash means neither ecs_hash nor ecs_hash_url is present; the
	// request is simply not a token authentication attempt.
	ErrNoHash = errors.New("no authentication hash in parameters")

	// ErrHashURLUnparseable means ecs_hash_url does not have the expected
	// <baseurl>/sys/auths/<hash> shape. The attempt cannot proceed.
	ErrHashURLUnparseable = errors.New("cannot parse ecs_hash_url")
)

const authsPathMarker = "/sys/auths/"

// HashRef is the located authentication hash plus an optional hint about
// which hub issued it. An empty BaseHint means every configured hub must be
// tried.
type HashRef struct {
	Hash     string
	BaseHint string
}

// LocateHash extracts the authentication hash from the parameters. A direct
// ecs_hash is preferred and carries no hub hint; otherwise ecs_hash_url is
// parsed as <baseurl>/sys/auths/<hash>.
func LocateHash(params Params) (HashRef, error) {
	if hash := params["ecs_hash"]; hash != "" {
		return HashRef{Hash: hash}, nil
	}

	hashURL := params["ecs_hash_url"]
	if hashURL == "" {
		return HashRef{}, ErrNoHash
	}

	idx := strings.Index(hashURL, authsPathMarker)
	if idx < 0 {
		return HashRef{}, ErrHashURLUnparseable
	}

	base := hashURL[:idx]
	hash := strings.Trim(hashURL[idx+len(authsPathMarker):], "/")
	if base == "" || hash == "" || strings.Contains(hash, "/") {
		return HashRef{}, ErrHashURLUnparseable
	}

	return HashRef{Hash: hash, BaseHint: base}, nil
}
