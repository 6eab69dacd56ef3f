package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// lookup returns the parsed value of key, or def when the variable is unset
// or does not parse.
func lookup[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func getEnv(key, defaultVal string) string {
	return lookup(key, defaultVal, func(s string) (string, error) { return s, nil })
}

func getEnvAsInt(key string, defaultVal int) int {
	return lookup(key, defaultVal, strconv.Atoi)
}

func getEnvAsBool(key string, defaultVal bool) bool {
	return lookup(key, defaultVal, strconv.ParseBool)
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	return lookup(key, defaultVal, time.ParseDuration)
}

func getEnvAsStringSlice(key string, defaults []string) []string {
	values := lookup(key, []string(nil), func(s string) ([]string, error) {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	})
	if len(values) == 0 {
		return defaults
	}
	return values
}
