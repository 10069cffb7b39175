package snapshots

import (
	"bytes"
	"os/exec"
	"strings"

	"apisurface/internal/core/errors"
)

// ResolveCommit turns a revision such as HEAD, a tag or a short hash into the
// full commit id of the repository at projectRoot.
func ResolveCommit(projectRoot, rev string) (string, error) {
	rev = strings.TrimSpace(rev)
	if rev == "" {
		rev = "HEAD"
	}
	out, err := runGit(projectRoot, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
	if err != nil || out == "" {
		err := errors.Newf(errors.CodeNotFound, "revision %q is not a commit", rev)
		return "", errors.AddContext(err, errors.CtxPath, projectRoot)
	}
	return out, nil
}

func runGit(projectRoot string, args ...string) (string, error) {
	cmd := exec.Command("git", append([]string{"-C", projectRoot}, args...)...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}
