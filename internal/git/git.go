// Package git detects the GitHub repository slug for the current directory
// from its git remote, the one git-backed responsibility spec §2 assigns
// to the Config & Auth component. Retained and repurposed from the
// teacher's internal/git package, which used git for repo cloning; Firewatch
// never clones, it only reads the remote URL.
package git

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

var remoteSlugPattern = regexp.MustCompile(`github\.com[:/]([^/]+)/([^/.]+?)(\.git)?$`)

// DetectRepo returns "owner/name" parsed from the origin remote of the git
// repository at dir ("" uses the current working directory).
func DetectRepo(dir string) (string, error) {
	cmd := exec.Command("git", "remote", "get-url", "origin")
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to read git remote: %w", err)
	}

	url := strings.TrimSpace(string(out))
	m := remoteSlugPattern.FindStringSubmatch(url)
	if m == nil {
		return "", fmt.Errorf("remote url %q is not a recognizable GitHub repo", url)
	}
	return m[1] + "/" + m[2], nil
}
