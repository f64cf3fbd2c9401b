// Package ecs models the configured ECS hubs (E-Learning Community Servers)
// and the participants registered with them, and provides the HTTP client
// used to look up authentication records ("auths") on a hub.
//
// # Hub Registry
//
// Hubs are configured in a JSON file and served by a Registry that hot
// reloads on file changes:
//
//	reg, err := ecs.NewRegistry("hubs.json", logger, metrics)
//	go reg.Watch(ctx)
//	for _, hub := range reg.All() { ... }
//
// # Auths Lookup
//
// The Client interface hides the hub transport; the HTTP implementation
// issues GET {hub.URL}/sys/auths/{hash}:
//
//	record, err := client.GetAuth(ctx, hub, hash)
//	if errors.Is(err, ecs.ErrAuthNotFound) { ... } // hub answered: no record
//	if errors.Is(err, ecs.ErrHubUnavailable) { ... } // hub did not answer
package ecs
