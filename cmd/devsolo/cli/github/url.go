package github

import (
	"fmt"
	"regexp"
	"strings"
)

// RepoRef identifies a repository on the hosted platform.
type RepoRef struct {
	Host  string
	Owner string
	Name  string
}

// String returns owner/name.
func (r RepoRef) String() string {
	return r.Owner + "/" + r.Name
}

var (
	sshRemoteRegex   = regexp.MustCompile(`^(?:ssh://)?git@([^:/]+)[:/]([^/]+)/(.+?)(?:\.git)?/?$`)
	httpsRemoteRegex = regexp.MustCompile(`^https?://([^/]+)/([^/]+)/(.+?)(?:\.git)?/?$`)
	cliRemoteRegex   = regexp.MustCompile(`^gh:([^/]+)/(.+?)(?:\.git)?$`)
)

// ParseRemoteURL extracts owner and repository from a git remote URL.
// Accepts SSH (git@host:owner/repo[.git]), HTTPS
// (https://host/owner/repo[.git]), and platform-CLI (gh:owner/repo) forms.
func ParseRemoteURL(remote string) (RepoRef, error) {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return RepoRef{}, fmt.Errorf("empty remote URL")
	}

	if m := cliRemoteRegex.FindStringSubmatch(remote); m != nil {
		return RepoRef{Host: "github.com", Owner: m[1], Name: m[2]}, nil
	}
	if m := sshRemoteRegex.FindStringSubmatch(remote); m != nil {
		return RepoRef{Host: m[1], Owner: m[2], Name: m[3]}, nil
	}
	if m := httpsRemoteRegex.FindStringSubmatch(remote); m != nil {
		// Credentials embedded in the authority are not part of the host.
		host := m[1]
		if idx := strings.LastIndex(host, "@"); idx >= 0 {
			host = host[idx+1:]
		}
		return RepoRef{Host: host, Owner: m[2], Name: m[3]}, nil
	}
	return RepoRef{}, fmt.Errorf("unrecognized remote URL format: %s", remote)
}
