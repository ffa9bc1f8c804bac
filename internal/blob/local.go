package blob

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"sales-call-insights-go/internal/scratch"
)

// Local keeps artifacts in a directory served over HTTP by Handler.
type Local struct {
	dir     string
	baseURL string
}

func NewLocal(dir, publicBaseURL string) *Local {
	return &Local{dir: dir, baseURL: publicBaseURL}
}

func (l *Local) Upload(_ context.Context, localPath, name string) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", eris.Wrap(err, "blob: create dir")
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", eris.Wrap(err, "blob: open source")
	}
	defer src.Close()

	dest := filepath.Join(l.dir, name)
	dst, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrap(err, "blob: create object")
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dest)
		return "", eris.Wrap(err, "blob: write object")
	}
	if err := dst.Close(); err != nil {
		return "", eris.Wrap(err, "blob: close object")
	}
	return publicURL(l.baseURL, name), nil
}

func (l *Local) Delete(_ context.Context, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	return scratch.Remove(filepath.Join(l.dir, name))
}

// Handler serves stored objects with their audio content type.
func (l *Local) Handler() http.Handler {
	fs := http.FileServer(http.Dir(l.dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", ContentType(r.URL.Path))
		fs.ServeHTTP(w, r)
	})
}
