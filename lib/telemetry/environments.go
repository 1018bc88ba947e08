package telemetry

import (
	"context"
	"os"
)

var setupTestEnvironments = map[string]bool{}

// SetupForTesting configures slog and, when a telemetry.json5 is
// reachable, the otel providers. It makes sure setup only happens once
// per test binary.
func SetupForTesting(serviceName string) func() {
	if setupTestEnvironments[serviceName] {
		return func() {}
	}
	setupTestEnvironments[serviceName] = true

	InitSlog(true)
	err := SetupFromEnv(context.Background(), serviceName)
	if os.IsNotExist(err) {
		// no collector configured, logs only
		return func() {}
	}
	if err != nil {
		panic(err)
	}

	return func() {
		err := Shutdown(context.Background())
		if err != nil {
			panic(err)
		}
	}
}
