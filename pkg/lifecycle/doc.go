// Package lifecycle implements the recurring maintenance job for
// federated accounts: purging stale never-enrolled accounts, suspending
// inactive ones, and notifying hub contacts about new accounts.
package lifecycle
