// Package auth holds the two request capabilities of the service.
//
// A session capability is granted to end users holding a signed bearer token
// and guards every read. A device-key capability is granted to callers that
// present the pre-shared device secret and guards ingestion. The two never
// combine: a request context carries at most one Capability.
package auth
