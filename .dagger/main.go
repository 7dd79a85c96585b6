// Loam CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
// It is the main harness for handling nearly all dev operations.
package main

import (
	"context"

	"dagger/loam/internal/dagger"
)

// Loam is the main module for the Loam CI/CD pipeline
type Loam struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Loam CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", "build", "tmp"]
	source *dagger.Directory,
) *Loam {
	return &Loam{
		Source: source,
	}
}

// goContainer returns an Alpine-based Go container with CGO disabled and the
// project source mounted. The sqlite driver is pure Go, so no C toolchain is
// needed anywhere in the pipeline.
//
// It is the shared foundation for tests, builds, and linting.
func (l *Loam) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-alpine").
		WithEnvVariable("CGO_ENABLED", "0").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", l.Source)
}

// Test runs the loam unit tests via "go test"
func (l *Loam) Test(ctx context.Context) (string, error) {
	return l.goContainer().
		WithExec([]string{"go", "test", "-v", "./..."}).
		Stdout(ctx)
}
