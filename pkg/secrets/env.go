package secrets

import (
	"context"
	"os"
	"strings"
)

// EnvStore reads secrets from process environment variables named
// CONDUIT_SECRET_<NAME>. The namespace is ignored; environment secrets are
// process-global. Intended for development and single-tenant deployments.
type EnvStore struct {
	prefix string
}

const defaultEnvPrefix = "CONDUIT_SECRET_"

// NewEnvStore creates an environment-backed store. An empty prefix selects the
// default CONDUIT_SECRET_.
func NewEnvStore(prefix string) *EnvStore {
	if prefix == "" {
		prefix = defaultEnvPrefix
	}

	return &EnvStore{prefix: prefix}
}

func (s *EnvStore) Fetch(_ context.Context, _ string) (map[string]string, error) {
	values := make(map[string]string)

	for _, entry := range os.Environ() {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(name, s.prefix) {
			continue
		}

		key := strings.ToLower(strings.TrimPrefix(name, s.prefix))
		if key == "" {
			continue
		}

		values[key] = value
	}

	return values, nil
}
