package config

import (
	"os"
	"sync"
)

// dockerMarker is created by the container runtime at the filesystem
// root. Its presence is the cheapest reliable in-container signal.
const dockerMarker = "/.dockerenv"

var detectDocker = sync.OnceValue(func() bool {
	_, err := os.Stat(dockerMarker)
	return err == nil
})

// IsRunningInDocker reports whether the process runs inside a Docker
// container. The check is performed once and cached.
func IsRunningInDocker() bool {
	return detectDocker()
}

// ResolveHostForDocker rewrites loopback hosts to host.docker.internal
// when the engine itself runs in Docker, so a compose file can point at
// Postgres or Redis published on the host machine. Non-loopback hosts
// pass through untouched.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return "host.docker.internal"
	}
	return host
}
