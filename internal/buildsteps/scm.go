// SPDX-License-Identifier: MPL-2.0

package buildsteps

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/conduct/conduct/internal/step"
	"github.com/conduct/conduct/pkg/param"
)

var errNoTags = errors.New("repository has no tags")

// GitClone clones a repository and optionally checks out a tag or branch.
// The destination directory is removed entirely on cleanup.
var GitClone = step.MustDefine(step.TypeSpec{
	Name:        name("scm", "GitClone"),
	Description: "Clone a git repository",
	Extends:     step.Base,
	Params: []step.Accessor{
		step.Param("url", param.MustDefine(param.NonEmptyStr, "URL to clone from")),
		step.Param("destdir", param.MustDefine(param.NonEmptyStr, "Destination directory (removed on cleanup)")),
		step.Param("target", param.MustDefine(param.Str, "Checkout target (tag or branch)", param.Default(""))),
		step.Param("asbranch", param.MustDefine(param.Str, "Check the target out as this branch", param.Default(""))),
		step.Param("uselastversion", param.MustDefine(param.Bool, "Check out the most recent tag", param.Default(false))),
	},
	Run:     runGitClone,
	Cleanup: cleanupGitClone,
})

func runGitClone(ctx context.Context, s *step.Instance) step.Result {
	in := s.Values()
	url, dest := in.String("url"), in.String("destdir")
	target, branch, last := in.String("target"), in.String("asbranch"), in.Bool("uselastversion")
	if err := in.Err(); err != nil {
		return step.Fatal(err)
	}

	// A previous attempt may have left a partial clone.
	if err := os.RemoveAll(dest); err != nil {
		return step.Retryable(err)
	}
	if _, res := run(ctx, s, "git", "clone", url, dest); !res.OK() {
		return res
	}
	git := []string{"git", "--git-dir=" + dest + "/.git", "--work-tree=" + dest}

	if last {
		out, res := run(ctx, s, append(git, "describe", "--abbrev=0", "--tags")...)
		if !res.OK() {
			return res
		}
		if len(out) == 0 || strings.TrimSpace(out[0]) == "" {
			return step.Fatal(errNoTags)
		}
		target = strings.TrimSpace(out[0])
		s.Log().Info("Use last version " + target)
	}
	if target == "" {
		return step.OK()
	}

	checkout := append(git, "checkout", target)
	if branch != "" {
		checkout = append(checkout, "-b", branch)
	}
	_, res := run(ctx, s, checkout...)
	return res
}

func cleanupGitClone(_ context.Context, s *step.Instance) step.Result {
	dest, err := step.Value[string](s, "destdir")
	if err != nil {
		return step.Fatal(err)
	}
	return step.FromError(os.RemoveAll(dest))
}
