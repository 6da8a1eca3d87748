package main

import (
	"mycurl/application/http/actor/client"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var ErrUnsupportedScheme = errors.New("unsupported scheme")

// parseTarget splits a URL of form [http://]host[:port][/path].
// defaultPort is used when the URL has none.
func parseTarget(raw string, defaultPort uint16) (client.Target, error) {
	rest := raw
	if scheme, after, found := strings.Cut(raw, "://"); found {
		if !strings.EqualFold(scheme, "http") {
			return client.Target{}, errors.Wrapf(ErrUnsupportedScheme, "%q", scheme)
		}
		rest = after
	}

	authority, path := rest, "/"
	if idx := strings.IndexAny(rest, "/?"); idx >= 0 {
		authority, path = rest[:idx], rest[idx:]
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
	}
	// Fragments are never sent.
	path, _, _ = strings.Cut(path, "#")

	host, port := authority, defaultPort
	if h, p, err := net.SplitHostPort(authority); err == nil {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil || n == 0 {
			return client.Target{}, errors.Errorf("invalid port %q in %q", p, raw)
		}
		host, port = h, uint16(n)
	} else if strings.HasPrefix(authority, "[") && strings.HasSuffix(authority, "]") {
		host = authority[1 : len(authority)-1]
	}

	if host == "" {
		return client.Target{}, errors.Errorf("no host in %q", raw)
	}

	return client.Target{Host: host, Port: port, Path: path}, nil
}
