// Package artifact turns an artifact reference (remote URL or local path)
// into a local file the rest of the pipeline can read.
package artifact

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"sales-call-insights-go/internal/logger"
	"sales-call-insights-go/internal/scratch"
	"sales-call-insights-go/internal/types"
)

// Resolved is a local copy of an artifact.
type Resolved struct {
	Path string
	// Scratch is true when Path was created by Resolve and must be removed by the caller.
	Scratch bool
}

// Resolver fetches remote artifacts into a scratch directory.
type Resolver struct {
	dir    scratch.Dir
	client *http.Client
}

// NewResolver builds a Resolver writing downloads to dir. A nil client gets a
// default without an overall timeout since recordings may be large.
func NewResolver(dir scratch.Dir, client *http.Client) *Resolver {
	if client == nil {
		client = &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: 60 * time.Second,
		}}
	}
	return &Resolver{dir: dir, client: client}
}

// IsRemote reports whether ref is an http(s) URL.
func IsRemote(ref string) bool {
	l := strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// Resolve returns a local path holding the artifact's bytes.
func (r *Resolver) Resolve(ctx context.Context, ref string) (Resolved, error) {
	ref = strings.TrimSpace(ref)
	if !IsRemote(ref) {
		if !scratch.Exists(ref) {
			return Resolved{}, types.NotFoundError(ref)
		}
		return Resolved{Path: ref}, nil
	}

	p, err := r.download(ctx, ref)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Path: p, Scratch: true}, nil
}

func (r *Resolver) download(ctx context.Context, ref string) (string, error) {
	log := logger.Component("artifact").With("url", ref)

	if err := r.dir.Ensure(); err != nil {
		return "", types.FetchError(ref, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", types.FetchError(ref, 0, eris.Wrap(err, "build request"))
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", types.FetchError(ref, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", types.FetchError(ref, resp.StatusCode, nil)
	}

	dest := r.dir.Path("download", extOf(ref))
	if err := writeFile(dest, resp.Body); err != nil {
		if rmErr := scratch.Remove(dest); rmErr != nil {
			log.WithError(rmErr).Warn("failed to remove partial download")
		}
		return "", types.FetchError(ref, 0, err)
	}

	log.WithField("path", dest).Info("downloaded artifact")
	return dest, nil
}

// extOf keeps the remote file extension so the transcoder can probe by name.
func extOf(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ".tmp"
	}
	// Storage URLs often escape the object path (recordings%2Fname.mp3).
	p, err := url.PathUnescape(u.Path)
	if err != nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" || len(ext) > 6 {
		return ".tmp"
	}
	return ext
}

func writeFile(dest string, r io.Reader) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return eris.Wrap(err, "create download file")
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "write download file")
	}
	return eris.Wrap(f.Close(), "close download file")
}
