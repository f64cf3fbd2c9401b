// Package identity reconciles verified federated identities to stable
// local accounts. The mapping store remembers which person identifier
// belongs to which local username; the reconciler decides, per login,
// whether to reuse a mapping, adopt an existing account, or provision a
// new one.
package identity
