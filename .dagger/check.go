package main

import (
	"context"
	"errors"
	"fmt"

	"dagger/murmur/internal/dagger"
)

// CheckGoModTidy fails when "go mod tidy" would change go.mod or go.sum.
//
// +check
func (m *Murmur) CheckGoModTidy(ctx context.Context) (string, error) {
	return m.check(ctx, "go.mod and go.sum are tidy",
		"go.mod or go.sum are not tidy: run 'go mod tidy' and commit the changes",
		"cp go.mod go.mod.HEAD && cp go.sum go.sum.HEAD && go mod tidy && "+
			"diff -u go.mod.HEAD go.mod && diff -u go.sum.HEAD go.sum",
	)
}

// CheckFormat fails when any Go file is not gofmt'd.
//
// +check
func (m *Murmur) CheckFormat(ctx context.Context) (string, error) {
	return m.check(ctx, "all files are gofmt'd",
		"unformatted files: run 'gofmt -w .' and commit the changes",
		`files=$(gofmt -l $(find . -name '*.go' -not -path './.dagger/*' -not -path './_*')); `+
			`[ -z "$files" ] || { echo "$files"; exit 1; }`,
	)
}

// check runs script in the Go container and turns a non-zero exit into an
// error carrying the script output.
func (m *Murmur) check(ctx context.Context, okMsg, failMsg, script string) (string, error) {
	out, err := m.goContainer().
		WithExec([]string{"sh", "-c", script}).
		Stdout(ctx)

	var e *dagger.ExecError
	if errors.As(err, &e) {
		return "", fmt.Errorf("%s\n\n%s", failMsg, e.Stdout)
	} else if err != nil {
		return "", fmt.Errorf("unexpected error: %w", err)
	}

	return fmt.Sprintf("%s: %s", okMsg, out), nil
}
