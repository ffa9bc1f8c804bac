package blob

import (
	"context"
	"os"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"

	"sales-call-insights-go/internal/logger"
)

// FTPOptions configures the FTP store.
type FTPOptions struct {
	Addr          string
	User          string
	Password      string
	Dir           string
	PublicBaseURL string
	Timeout       time.Duration
}

// FTP uploads artifacts to an FTP server whose directory is published over HTTP.
type FTP struct {
	opts FTPOptions
}

func NewFTP(opts FTPOptions) *FTP {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.User == "" {
		opts.User, opts.Password = "anonymous", "anonymous@"
	}
	return &FTP{opts: opts}
}

func (f *FTP) connect(ctx context.Context) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(f.opts.Addr, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "ftp dial")
	}
	if err := conn.Login(f.opts.User, f.opts.Password); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "ftp login")
	}
	return conn, nil
}

func (f *FTP) remotePath(name string) string {
	if f.opts.Dir == "" {
		return name
	}
	return path.Join(f.opts.Dir, name)
}

func (f *FTP) Upload(ctx context.Context, localPath, name string) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	src, err := os.Open(localPath)
	if err != nil {
		return "", eris.Wrap(err, "blob: open source")
	}
	defer src.Close()

	conn, err := f.connect(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Quit() //nolint:errcheck

	if f.opts.Dir != "" {
		// Already existing is the common case.
		_ = conn.MakeDir(f.opts.Dir)
	}
	remote := f.remotePath(name)
	if err := conn.Stor(remote, src); err != nil {
		return "", eris.Wrapf(err, "ftp store %s", remote)
	}

	logger.Component("blob.ftp").With("remote", remote).Info("uploaded recording")
	return publicURL(f.opts.PublicBaseURL, name), nil
}

func (f *FTP) Delete(ctx context.Context, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	conn, err := f.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Delete(f.remotePath(name)); err != nil {
		return eris.Wrapf(err, "ftp delete %s", name)
	}
	return nil
}
