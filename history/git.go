package history

// This file contains Git integration utilities for retrieving
// repository information of the test suite checkout.

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/chattigo/autobot/model"
)

// GitInfo returns the commit and branch checked out in dir.
func GitInfo(ctx context.Context, dir string) (*model.Git, error) {
	commit, err := git(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to get git commit: %w", err)
	}
	branch, err := git(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to get git branch: %w", err)
	}
	return &model.Git{Commit: commit, Branch: branch}, nil
}

func git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}
