package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnvAsBool parses a boolean environment variable with a default.
func GetEnvAsBool(key string, defaultVal bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultVal
	}
}

// GetEnvAsInt retrieves an environment variable as an integer with a default fallback.
func GetEnvAsInt(name string, defaultVal int) int {
	if valStr := strings.TrimSpace(os.Getenv(name)); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			return val
		}
	}
	return defaultVal
}

// GetEnvAsFloat retrieves an environment variable as a float64 with a default fallback.
func GetEnvAsFloat(name string, defaultVal float64) float64 {
	if valStr := strings.TrimSpace(os.Getenv(name)); valStr != "" {
		if val, err := strconv.ParseFloat(valStr, 64); err == nil {
			return val
		}
	}
	return defaultVal
}

// GetEnvAsDuration reads a duration such as "90s" or "5m". A bare integer is
// interpreted as milliseconds, matching the *_MS variables used elsewhere.
func GetEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valStr := strings.TrimSpace(os.Getenv(name))
	if valStr == "" {
		return defaultVal
	}
	if ms, err := strconv.Atoi(valStr); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	if d, err := time.ParseDuration(valStr); err == nil {
		return d
	}
	return defaultVal
}

// GetEnvAsString returns the trimmed value of an environment variable or the default.
func GetEnvAsString(name string, defaultVal string) string {
	if valStr := strings.TrimSpace(os.Getenv(name)); valStr != "" {
		return valStr
	}
	return defaultVal
}

// GetEnvAsSlice retrieves an environment variable as a slice of strings, split by a separator.
// Elements are trimmed and empty elements dropped.
func GetEnvAsSlice(name string, defaultVal []string, sep string) []string {
	valStr := strings.TrimSpace(os.Getenv(name))
	if valStr == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(valStr, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

// GetEnvAsIntSlice parses a separated list of integers, skipping invalid entries.
func GetEnvAsIntSlice(name string, defaultVal []int, sep string) []int {
	parts := GetEnvAsSlice(name, nil, sep)
	if len(parts) == 0 {
		return defaultVal
	}
	var out []int
	for _, p := range parts {
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
