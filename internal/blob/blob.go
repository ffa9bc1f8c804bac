// Package blob stores uploaded recordings and hands back a fetchable URL.
package blob

import (
	"context"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"sales-call-insights-go/internal/config"
)

// Store keeps uploaded artifacts.
type Store interface {
	// Upload copies the file at localPath under name and returns its public URL.
	Upload(ctx context.Context, localPath, name string) (string, error)
	Delete(ctx context.Context, name string) error
}

// New builds the configured store.
func New(cfg config.BlobConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "local", "":
		return NewLocal(cfg.Dir, cfg.PublicBaseURL), nil
	case "ftp":
		if cfg.FTPAddr == "" {
			return nil, eris.New("blob: ftp_addr is required for the ftp driver")
		}
		return NewFTP(FTPOptions{
			Addr:          cfg.FTPAddr,
			User:          cfg.FTPUser,
			Password:      cfg.FTPPassword,
			Dir:           cfg.FTPDir,
			PublicBaseURL: cfg.PublicBaseURL,
			Timeout:       time.Duration(cfg.FTPTimeoutSec) * time.Second,
		}), nil
	default:
		return nil, eris.Errorf("blob: unknown driver %q", cfg.Driver)
	}
}

var contentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
}

// ContentType maps an audio file name to its MIME type, audio/mpeg when unknown.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "audio/mpeg"
}

// Supported reports whether name has a recognised audio extension.
func Supported(name string) bool {
	_, ok := contentTypes[strings.ToLower(path.Ext(name))]
	return ok
}

func publicURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(name)
}

func cleanName(name string) (string, error) {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "", eris.New("blob: empty object name")
	}
	return name, nil
}
