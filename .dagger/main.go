// Sketchtable CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
// It is the main harness for handling nearly all dev operations.
package main

import (
	"context"

	"dagger/sketchtable/internal/dagger"
)

// Sketchtable is the main module for the sketchtable CI/CD pipeline
type Sketchtable struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Sketchtable CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", "build", "tmp", ".sketchtable"]
	source *dagger.Directory,
) *Sketchtable {
	return &Sketchtable{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with gcc,
// libsqlite3-dev, CGO enabled, and the project source mounted.
//
// It is the shared foundation for tests, builds, and linting.
func (s *Sketchtable) goContainer() *dagger.Container {
	return s.goContainerFor("")
}

// goContainerFor is goContainer pinned to a platform such as "linux/arm64".
// An empty platform uses the engine's own.
func (s *Sketchtable) goContainerFor(platform dagger.Platform) *dagger.Container {
	return dag.Container(dagger.ContainerOpts{Platform: platform}).
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build-"+string(platform))).
		WithWorkdir("/src").
		WithDirectory("/src", s.Source)
}

// Test runs the sketchtable unit tests via "go test"
func (s *Sketchtable) Test(ctx context.Context) (string, error) {
	return s.goContainer().
		WithExec([]string{"go", "test", "-v", "./..."}).
		Stdout(ctx)
}
