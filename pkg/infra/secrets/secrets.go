package secrets

import (
	"os"
	"strings"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
)

// DefaultEnvPrefix is where the env source looks for secret material. A
// secret referenced as NAME in the pipeline is read from the process
// environment variable DROVER_SECRET_NAME, so secret values never appear
// in the pipeline file or on the command line.
const DefaultEnvPrefix = "DROVER_SECRET_"

type envSource struct {
	prefix string
}

// NewEnv creates a SecretSource backed by prefixed environment variables.
// An empty prefix falls back to DefaultEnvPrefix.
func NewEnv(prefix string) interfaces.SecretSource {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return &envSource{prefix: prefix}
}

func (x *envSource) Lookup(name string) (string, bool) {
	return os.LookupEnv(x.prefix + name)
}

func (x *envSource) Values() []string {
	var values []string
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, x.prefix) {
			continue
		}
		if _, v, ok := strings.Cut(kv, "="); ok && v != "" {
			values = append(values, v)
		}
	}
	return values
}

// Static is an in-memory SecretSource for tests and one-shot local runs.
type Static map[string]string

func (x Static) Lookup(name string) (string, bool) {
	v, ok := x[name]
	return v, ok
}

func (x Static) Values() []string {
	values := make([]string, 0, len(x))
	for _, v := range x {
		if v != "" {
			values = append(values, v)
		}
	}
	return values
}
