// Package policy models the set of file-open rules a tracer run enforces:
// which paths are blocked for reading, writing, or both, and which paths are
// transparently redirected to a replacement.
package policy

import (
	"path/filepath"
	"strings"

	noopErrors "noop/errors"
)

// OpenType classifies the mode an open call was attempted in.
type OpenType int

const (
	// Read indicates an open with O_RDONLY (or no write bits set).
	Read OpenType = iota
	// Write indicates an open with O_WRONLY.
	Write
	// All indicates an open with O_RDWR; it subsumes both Read and Write.
	All
)

// String returns the display form used in log lines: R, W, or RW.
func (t OpenType) String() string {
	switch t {
	case Read:
		return "R"
	case Write:
		return "W"
	case All:
		return "RW"
	default:
		return "?"
	}
}

// Linux open(2) flag bits relevant to mode classification. Only the
// access-mode bits matter; create/truncate/append/cloexec and friends are
// ignored.
const (
	oAccModeMask = 0x3
	oWronly      = 0x1
	oRdwr        = 0x2
)

// OpenTypeFromFlags derives an OpenType from the flags argument of an
// open/openat/open_by_handle_at call, as the kernel would interpret it.
// O_RDONLY is zero, so it is the default when neither WRONLY nor RDWR
// is set.
func OpenTypeFromFlags(flags uint64) OpenType {
	switch flags & oAccModeMask {
	case oWronly:
		return Write
	case oRdwr:
		return All
	default:
		return Read
	}
}

// Action is the rule attached to a policy path: either block opens of a
// given mode, or transparently replace the path with another.
type Action struct {
	// block is set when this action blocks opens; blockMode then gives the
	// mode being blocked. Mutually exclusive with replace being non-empty.
	block     bool
	blockMode OpenType
	// replace, when non-empty, is the substitute path for Replace actions.
	replace string
}

// BlockAction builds a Block(mode) action.
func BlockAction(mode OpenType) Action {
	return Action{block: true, blockMode: mode}
}

// ReplaceAction builds a Replace(path) action.
func ReplaceAction(path string) Action {
	return Action{replace: path}
}

// IsBlock reports whether this is a Block action and, if so, its mode.
func (a Action) IsBlock() (OpenType, bool) {
	return a.blockMode, a.block
}

// IsReplace reports whether this is a Replace action and, if so, its target.
func (a Action) IsReplace() (string, bool) {
	return a.replace, !a.block && a.replace != ""
}

// Allows reports whether an open attempted in the given mode is permitted
// under this action.
//
//   - Block(All) vetoes every mode.
//   - Block(Read) or Block(Write) vetoes only an exact-mode match or an All
//     attempt (an All open both reads and writes, so either block vetoes it).
//   - Replace never blocks; the open proceeds against the replacement path.
func (a Action) Allows(mode OpenType) bool {
	if !a.block {
		return true
	}
	if a.blockMode == All {
		return false
	}
	return mode != a.blockMode && mode != All
}

// Policy is an immutable mapping from canonical path to Action. It is built
// once by the CLI layer and read concurrently by the tracer's trap loop
// without locking.
type Policy struct {
	rules map[string]Action
}

// New builds an empty Policy.
func New() *Policy {
	return &Policy{rules: make(map[string]Action)}
}

// canonicalize resolves path to an absolute, symlink-free form. If
// resolution fails (the path doesn't exist yet, a permission error, and so
// on) the original string is kept verbatim, per the canonicalisation
// invariant: lookups must be tried against whatever form was actually
// storable.
func canonicalize(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		if abs, err := filepath.Abs(resolved); err == nil {
			return abs
		}
	}
	return path
}

// Set installs a rule for path, canonicalising path first.
func (p *Policy) Set(path string, action Action) {
	p.rules[canonicalize(path)] = action
}

// Lookup returns the action registered for the already-canonicalised path,
// if any.
func (p *Policy) Lookup(canonicalPath string) (Action, bool) {
	a, ok := p.rules[canonicalPath]
	return a, ok
}

// Canonicalize exposes the same canonicalisation the policy applies to its
// own keys, so the tracer can normalize a tracee-supplied path identically
// before calling Lookup.
func Canonicalize(path string) string {
	return canonicalize(path)
}

// ParseArg parses a single pre-"--" CLI argument into a (path, Action) pair,
// per the grammar:
//
//	FILE           -> Block(All)
//	FILE:r         -> Block(Read)
//	FILE:w         -> Block(Write)
//	FILE=REPLACE   -> Replace(REPLACE)
func ParseArg(arg string) (string, Action, error) {
	if strings.Contains(arg, "=") {
		parts := strings.Split(arg, "=")
		if len(parts) != 2 || parts[0] == "" {
			return "", Action{}, noopErrors.ErrMalformedReplace
		}
		return parts[0], ReplaceAction(parts[1]), nil
	}

	if idx := strings.LastIndex(arg, ":"); idx >= 0 {
		file, mode := arg[:idx], arg[idx+1:]
		if file == "" {
			return "", Action{}, noopErrors.ErrMalformedMode
		}
		switch mode {
		case "r":
			return file, BlockAction(Read), nil
		case "w":
			return file, BlockAction(Write), nil
		default:
			return "", Action{}, noopErrors.ErrMalformedMode
		}
	}

	return arg, BlockAction(All), nil
}

// Parse builds a Policy from the full list of pre-"--" CLI arguments.
func Parse(args []string) (*Policy, error) {
	p := New()
	for _, arg := range args {
		if strings.ContainsAny(arg, "\x00") {
			return nil, noopErrors.ErrNulByte
		}
		path, action, err := ParseArg(arg)
		if err != nil {
			return nil, err
		}
		p.Set(path, action)
	}
	return p, nil
}
