// Package env reconstructs the narrow subset of the teacher's internal/env
// API that this module's call sites actually need (env.Get / env.MustGetDuration,
// as seen wired up in cmd/gitserver/server/cleanup.go's janitor tunables).
// The teacher's own package source was not retrieved alongside its call
// sites, so this is a from-scratch reimplementation of the observed
// signature rather than an adaptation of a copied body — see DESIGN.md.
package env

import (
	"os"
	"strconv"
	"time"
)

// registered describes one recognized environment variable, kept so
// Registered can enumerate every variable read so far; it mirrors the
// teacher's practice of self-documenting env vars at their point of use.
type registered struct {
	name        string
	value       string
	description string
}

var registry []registered

// Get returns the value of the named environment variable, or def if unset,
// and records it for later enumeration (e.g. a --help style dump).
func Get(name, def, description string) string {
	v, ok := os.LookupEnv(name)
	if !ok {
		v = def
	}
	registry = append(registry, registered{name, v, description})
	return v
}

// GetInt is Get parsed as an integer; it falls back to the parsed default
// on a malformed value rather than failing startup.
func GetInt(name string, def int, description string) int {
	raw := Get(name, strconv.Itoa(def), description)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// MustGetDuration is Get parsed as a time.Duration; a malformed value
// panics at startup, matching the teacher's "must" naming convention for
// configuration errors that should never reach production.
func MustGetDuration(name string, def time.Duration, description string) time.Duration {
	raw := Get(name, def.String(), description)
	d, err := time.ParseDuration(raw)
	if err != nil {
		panic("env: " + name + ": " + err.Error())
	}
	return d
}

// Registered returns a snapshot of every variable read so far, for
// diagnostics.
func Registered() []struct{ Name, Value, Description string } {
	out := make([]struct{ Name, Value, Description string }, len(registry))
	for i, r := range registry {
		out[i] = struct{ Name, Value, Description string }{r.name, r.value, r.description}
	}
	return out
}
