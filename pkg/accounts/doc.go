// Package accounts manages the local user accounts provisioned for
// federated logins: creation, lookup, suspension, scrubbing, and the
// index of active sessions per user.
package accounts
