package config

import (
	"os"
	"sync"
)

// dockerEnvPath exists in every Docker container.
var dockerEnvPath = "/.dockerenv"

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether the process runs inside a Docker
// container. The result is cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		isDockerResult = fileExists(dockerEnvPath)
	})
	return isDockerResult
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ResolveHostForDocker rewrites loopback hosts to host.docker.internal when
// running in Docker, so a datasource on the host machine stays reachable.
// Any other host is returned unchanged.
func ResolveHostForDocker(host string) string {
	return resolveHost(host, IsRunningInDocker())
}

func resolveHost(host string, inDocker bool) string {
	if !inDocker {
		return host
	}
	switch host {
	case "localhost", "127.0.0.1", "::1", "[::1]":
		return "host.docker.internal"
	}
	return host
}
