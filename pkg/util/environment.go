package util

import (
	"os"
	"strings"
)

func GetEnvironmentVariables() map[string]string {
	environmentVariables := map[string]string{}

	for _, variable := range os.Environ() {
		pair := strings.SplitN(variable, "=", 2)

		environmentVariables[pair[0]] = pair[1]
	}

	return environmentVariables
}

// Env returns the named environment variable or fallback when unset/empty.
func Env(name string, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}

	return fallback
}
