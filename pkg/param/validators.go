// SPDX-License-Identifier: MPL-2.0

package param

import (
	"errors"
	"fmt"
	"net/mail"
	"net/netip"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	errNotAbsolute  = errors.New("path must be absolute")
	errNotRelative  = errors.New("path must be relative")
	errEscapesDir   = errors.New("path escapes its parent directory")
	errNotIPv4      = errors.New("not an IPv4 address")
	errNotHost      = errors.New("not a valid host name or address")
	errNotMailAddrs = errors.New("not a mail address")

	hostLabel = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)
)

var (
	// AbsolutePath accepts absolute file system paths, cleaned.
	AbsolutePath = NewType("an absolute path", func(v any) (any, error) {
		s, err := toString(v)
		if err != nil {
			return nil, err
		}
		if !filepath.IsAbs(s) {
			return nil, fmt.Errorf("%w: %q", errNotAbsolute, s)
		}
		return filepath.Clean(s), nil
	})

	// RelativePath accepts relative file system paths, cleaned.
	RelativePath = NewType("a relative path", func(v any) (any, error) {
		s, err := toString(v)
		if err != nil {
			return nil, err
		}
		if filepath.IsAbs(s) {
			return nil, fmt.Errorf("%w: %q", errNotRelative, s)
		}
		return filepath.Clean(s), nil
	})

	// ExpandedPath expands a leading '~' and environment variables and makes
	// the result absolute.
	ExpandedPath = NewType("a path (~ and $VARS are expanded)", func(v any) (any, error) {
		s, err := toString(v)
		if err != nil {
			return nil, err
		}
		return expandPath(s)
	})

	// Subdir accepts a relative path that stays below its parent directory.
	Subdir = NewType("a subdirectory path", func(v any) (any, error) {
		s, err := toString(v)
		if err != nil {
			return nil, err
		}
		if !filepath.IsLocal(s) {
			return nil, fmt.Errorf("%w: %q", errEscapesDir, s)
		}
		return filepath.Clean(s), nil
	})

	// IPv4 accepts dotted quad IPv4 addresses.
	IPv4 = NewType("an IPv4 address", func(v any) (any, error) {
		s, err := toString(v)
		if err != nil {
			return nil, err
		}
		addr, err := netip.ParseAddr(strings.TrimSpace(s))
		if err != nil || !addr.Is4() {
			return nil, fmt.Errorf("%w: %q", errNotIPv4, s)
		}
		return addr.String(), nil
	})

	// Host accepts DNS host names and IP addresses, optionally with a port.
	Host = NewType("a host name or address", func(v any) (any, error) {
		s, err := toString(v)
		if err != nil {
			return nil, err
		}
		if !validHost(s) {
			return nil, fmt.Errorf("%w: %q", errNotHost, s)
		}
		return s, nil
	})

	// MailAddress accepts RFC 5322 addresses and returns the bare address.
	MailAddress = NewType("a mail address", func(v any) (any, error) {
		s, err := toString(v)
		if err != nil {
			return nil, err
		}
		addr, err := mail.ParseAddress(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", errNotMailAddrs, s)
		}
		return addr.Address, nil
	})
)

func expandPath(s string) (string, error) {
	if s == "~" || strings.HasPrefix(s, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %q: %w", s, err)
		}
		s = filepath.Join(home, strings.TrimPrefix(s, "~"))
	}
	return filepath.Abs(os.ExpandEnv(s))
}

func validHost(s string) bool {
	host := s
	if h, port, found := strings.Cut(s, ":"); found && !strings.Contains(port, ":") {
		host = h
		if port == "" {
			return false
		}
		for _, c := range port {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	if _, err := netip.ParseAddr(s); err == nil {
		return true
	}
	if _, err := netip.ParseAddr(host); err == nil {
		return true
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" || len(host) > 253 {
		return false
	}
	for label := range strings.SplitSeq(host, ".") {
		if !hostLabel.MatchString(label) {
			return false
		}
	}
	return true
}
