package git

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Checker inspects the Git repository containing a directory. Git is
// optional: when the git binary is missing every check reports false.
type Checker struct {
	Dir string
}

// NewChecker creates a new Git checker for dir
func NewChecker(dir string) *Checker {
	return &Checker{Dir: dir}
}

// IsGitRepository checks if Dir is within a Git repository
func (c *Checker) IsGitRepository() bool {
	// Fails both outside a repository and when git is not installed
	return c.git("rev-parse", "--git-dir").Run() == nil
}

// IsTracked reports whether path (relative to Dir) is tracked by Git.
func (c *Checker) IsTracked(path string) (bool, error) {
	if !c.IsGitRepository() {
		return false, nil
	}

	err := c.git("ls-files", "--error-unmatch", "--", path).Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check Git status of %s: %w", path, err)
}

// GetGitRoot returns the absolute path to the Git repository root
func (c *Checker) GetGitRoot() (string, error) {
	output, err := c.git("rev-parse", "--show-toplevel").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get Git root: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

func (c *Checker) git(args ...string) *exec.Cmd {
	cmd := exec.Command("git", args...)
	cmd.Dir = c.Dir
	return cmd
}
