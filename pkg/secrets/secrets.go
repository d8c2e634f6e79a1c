// Package secrets resolves the secret values workflows reference through
// {{secrets.*}} placeholders.
package secrets

import "context"

// Store fetches all secrets for a namespace. Implementations return an empty
// map, not an error, when the namespace has no secrets.
type Store interface {
	Fetch(ctx context.Context, namespace string) (map[string]string, error)
}
