package main

import (
	"fmt"
	"strings"
	"time"

	"context"

	"dagger/sketchtable/internal/dagger"
)

// Build and return directory of go binaries
//
// The history store links sqlite through cgo, so each architecture is built
// natively in its own platform container rather than cross compiled.
func (s *Sketchtable) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	// define build matrix
	goarches := []string{"amd64", "arm64"}

	// create empty directory to put build artifacts
	outputs := dag.Directory()

	for _, goarch := range goarches {
		// create directory for each architecture
		path := fmt.Sprintf("linux/%s/", goarch)

		// build artifact
		build := s.goContainerFor(dagger.Platform("linux/"+goarch)).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/sketchtable"})

		// add build to outputs
		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	// return build directory
	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (s *Sketchtable) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now()

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/papercomputeco/sketchtable/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/sketchtable/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/sketchtable/pkg/utils.Buildtime=%s'", buildtime),
	}

	return s.Build(ctx, strings.Join(ldflags, " "))
}
