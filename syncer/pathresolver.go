package syncer

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const hdfsScheme = "hdfs"

// AuthorityProvider answers the canonical host:port of the active distributed
// filesystem. Only consulted for hdfs locations; object-store URIs are
// globally addressable and need no qualification.
type AuthorityProvider interface {
	CanonicalAuthority(ctx context.Context) (string, error)
}

// PathResolver turns a relative partition path into the fully-qualified
// location recorded in the catalog. The catalog treats locations as opaque
// strings, so resolution must be deterministic: the same base path, scheme
// and relative partition always produce the same output.
type PathResolver struct {
	basePath  string
	authority AuthorityProvider
}

func NewPathResolver(basePath string, authority AuthorityProvider) *PathResolver {
	return &PathResolver{basePath: basePath, authority: authority}
}

// Resolve joins the base path and the relative partition, qualifying the
// result with the filesystem's canonical authority when the scheme is hdfs.
// Unknown schemes are not an error: they resolve to the plain join.
func (r *PathResolver) Resolve(ctx context.Context, relativePartition string) (string, error) {
	joined := joinPath(r.basePath, relativePartition)

	u, err := url.Parse(joined)
	if err != nil || u.Scheme != hdfsScheme {
		return joined, nil
	}

	if r.authority == nil {
		return "", fmt.Errorf("resolve %q: hdfs location requires an authority provider", joined)
	}
	authority, err := r.authority.CanonicalAuthority(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve %q: canonical authority: %w", joined, err)
	}
	if authority == "" {
		return "", fmt.Errorf("resolve %q: canonical authority is empty", joined)
	}
	return fmt.Sprintf("%s://%s%s", hdfsScheme, authority, u.Path), nil
}

func joinPath(basePath, relative string) string {
	relative = strings.Trim(relative, "/")
	if relative == "" {
		return basePath
	}
	return strings.TrimRight(basePath, "/") + "/" + relative
}
