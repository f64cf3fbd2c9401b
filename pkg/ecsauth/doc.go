// Package ecsauth implements the CampusConnect web-authentication flow: a
// user arrives at the LMS with a destination URL carrying an ECS-issued
// hash, and the flow verifies that hash against the configured hubs before
// resolving the remote person to a local username.
//
// # Stages
//
// The flow is a fixed pipeline; each stage is a small pure function except
// the hub resolver, which performs the network calls:
//
//	ExtractParams     - tolerant query-string parsing
//	MatchCourseTarget - the URL must point at a recognized course view
//	LocateHash        - ecs_hash, or a hash embedded in ecs_hash_url
//	Resolver.Resolve  - sequential trial over hubs, first match wins
//	SelectPersonID    - typed person identifier, with legacy fallback
//
// The final outcome is an explicit value (authenticated, not authenticated,
// deferred to SSO, rejected by policy, not applicable); callers thread it
// into session establishment themselves. There is no process-wide
// "current user" state.
package ecsauth
