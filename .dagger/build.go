package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/murmur/internal/dagger"
)

// Build and return directory of go binaries
func (m *Murmur) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,

	// Include speaker playback through portaudio
	// +optional
	// +default=true
	portaudio bool,
) *dagger.Directory {
	// sqlite and portaudio need cgo, so binaries are built for the
	// container's own platform only
	goarches := []string{"amd64", "arm64"}

	outputs := dag.Directory()

	args := []string{"go", "build", "-ldflags", ldflags}
	if portaudio {
		args = append(args, "-tags", "portaudio")
	}

	for _, goarch := range goarches {
		platform := dagger.Platform("linux/" + goarch)
		path := fmt.Sprintf("linux/%s/", goarch)

		build := dag.Container(dagger.ContainerOpts{Platform: platform}).
			From("golang:1.25-bookworm").
			WithExec([]string{"apt-get", "update"}).
			WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev", "portaudio19-dev"}).
			WithEnvVariable("CGO_ENABLED", "1").
			WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod-"+goarch)).
			WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build-"+goarch)).
			WithDirectory("/src", m.Source).
			WithWorkdir("/src").
			WithExec(append(args, "-o", path, "./cli/murmur"))

		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (m *Murmur) BuildRelease(
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
		fmt.Sprintf("-X 'github.com/papercomputeco/murmur/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/murmur/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/murmur/pkg/utils.Buildtime=%s'", buildtime),
	}

	return m.Build(ctx, strings.Join(ldflags, " "), true)
}
