// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"slices"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
)

type Id int

const (
	ChainNotFoundId Id = iota + 1
	ChainFileInvalidId
	StepTypeNotFoundId
	MissingParameterId
	InvalidParameterId
	ChainCycleId
	StepFailedId
	CleanupFailedId
	ConfigLoadFailedId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Markdown returns the message followed by a "See also" list of links.
func (i *Issue) Markdown() string {
	var sb strings.Builder
	sb.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		sb.WriteString("\n\n## See also\n")
		for _, link := range slices.Concat(i.docLinks, i.extLinks) {
			sb.WriteString("- <" + string(link) + ">\n")
		}
	}
	return sb.String()
}

func (i *Issue) Render(stylePath string) (string, error) {
	return render(i.Markdown(), stylePath)
}

var (
	render = glamour.Render

	chainNotFoundIssue = &Issue{
		id: ChainNotFoundId,
		mdMsg: `
# Chain not found!

No definition file for the requested chain exists in the chain directories.

## Search order
A chain named ` + "`image`" + ` is looked up as ` + "`image.cue`" + `, then ` + "`image.hcl`" + `,
in every directory of ` + "`chain_dirs`" + ` in turn. The first match wins.

## Things you can try
- List the chains conduct can see:
~~~
$ conduct chain list
~~~
- Check ` + "`chain_dirs`" + ` in your configuration:
~~~
$ conduct config show
~~~`,
	}

	chainFileInvalidIssue = &Issue{
		id: ChainFileInvalidId,
		mdMsg: `
# Invalid chain definition!

The chain file could not be parsed or does not match the chain schema.

## Common causes
- CUE or HCL syntax errors (unbalanced braces, missing quotes)
- Unknown top-level fields
- A step without a name, or a name that is not an identifier
- A parameter type expression that does not parse

## Example
~~~cue
description: "Write a note"
parameters: {
	path: {type: "nonemptystr"}
}
steps: [
	{name: "note", type: "fs.WriteFile", params: {path: "{chain.path}", content: "hello"}},
]
~~~`,
	}

	stepTypeNotFoundIssue = &Issue{
		id: StepTypeNotFoundId,
		mdMsg: `
# Unknown step type!

A step refers to a type that is not registered under any configured prefix.

## Things you can try
- List the registered step types:
~~~
$ conduct steps list
~~~
- Check ` + "`step_prefixes`" + ` in your configuration. With the default
  prefixes ` + "`fs.TmpDir`" + ` resolves to ` + "`conduct.fs.TmpDir`" + `.`,
	}

	missingParameterIssue = &Issue{
		id: MissingParameterId,
		mdMsg: `
# Missing mandatory parameter!

A chain or step parameter without a default was not given a value.

## Things you can try
- Pass the chain parameter on the command line:
~~~
$ conduct build <chain> --<parameter>=<value>
~~~
- Or set it in the chain's TOML override file in ` + "`chain_config_dir`" + `
- Inspect the parameters of a chain:
~~~
$ conduct chain show <chain>
~~~`,
	}

	invalidParameterIssue = &Issue{
		id: InvalidParameterId,
		mdMsg: `
# Invalid parameter value!

A parameter value does not match the declared parameter type.

## Things you can try
- Check the declared type with ` + "`conduct chain show`" + ` or ` + "`conduct steps show`" + `
- Lists on the command line are comma separated: ` + "`--dirs=a,b`" + ``,
	}

	chainCycleIssue = &Issue{
		id: ChainCycleId,
		mdMsg: `
# Chain inclusion cycle!

A chain includes itself, directly or through nested chains.

## Things you can try
- Follow the cycle reported above and remove one of the nested chain entries`,
	}

	stepFailedIssue = &Issue{
		id: StepFailedId,
		mdMsg: `
# Build failed!

A step failed. conduct stopped the forward pass and cleaned up every step
that had succeeded, in reverse order.

## Things you can try
- Read the step log above; external commands log their output line by line
- Raise the log level to see every attempt:
~~~
$ conduct --log-level debug build <chain>
~~~
- Check the log file in ` + "`log_dir`" + ` if one is configured`,
	}

	cleanupFailedIssue = &Issue{
		id: CleanupFailedId,
		mdMsg: `
# Cleanup failed!

A step could not undo its work. The steps declared before it were not
cleaned up because they may depend on what it left behind.

## Things you can try
- Look for leftover mounts, device mappings or temporary directories:
~~~
$ findmnt
$ losetup -l
$ dmsetup ls
~~~
- Remove them by hand before building again`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or is invalid.

## Things you can try
- Write a fresh default configuration:
~~~
$ conduct config init
~~~
- Show the effective configuration:
~~~
$ conduct config show
~~~
- Every key can also be set through a ` + "`CONDUCT_`" + ` environment variable,
  for example ` + "`CONDUCT_LOG_LEVEL=debug`" + ``,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

Mounting, partitioning, device mapping and chroot need root privileges.

## Things you can try
- Run the build as root:
~~~
$ sudo conduct build <chain>
~~~
- Check the permissions of the paths named above`,
		extLinks: []HttpLink{"https://wiki.debian.org/Debootstrap"},
	}

	issues = map[Id]*Issue{
		chainNotFoundIssue.Id():    chainNotFoundIssue,
		chainFileInvalidIssue.Id(): chainFileInvalidIssue,
		stepTypeNotFoundIssue.Id(): stepTypeNotFoundIssue,
		missingParameterIssue.Id(): missingParameterIssue,
		invalidParameterIssue.Id(): invalidParameterIssue,
		chainCycleIssue.Id():       chainCycleIssue,
		stepFailedIssue.Id():       stepFailedIssue,
		cleanupFailedIssue.Id():    cleanupFailedIssue,
		configLoadFailedIssue.Id(): configLoadFailedIssue,
		permissionDeniedIssue.Id(): permissionDeniedIssue,
	}
)

// Values returns every known issue ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].id < out[b].id })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
