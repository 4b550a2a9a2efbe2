// Package publish uploads the aggregate datasets of a crawl to a static
// file host over SFTP.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"matrusp-crawler/internal/components/assert"
	"matrusp-crawler/internal/components/telemetry"
	"matrusp-crawler/internal/output"
	"os"
	"path"
	"path/filepath"
	"slices"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	report_publish_upload = "publish.upload"
	report_publish_rename = "publish.rename"
)

const (
	DefaultPort  = 22
	dial_timeout = 20 * time.Second
	part_ext     = ".part"
)

var ErrMissingCredentials = errors.New("missing sftp credentials")

type Config struct {
	Host       string `json:"host" yaml:"host" env:"MATRUSP_SFTP_HOST"`
	Port       int    `json:"port" yaml:"port" env:"MATRUSP_SFTP_PORT"`
	User       string `json:"user" yaml:"user" env:"MATRUSP_SFTP_USER"`
	Password   string `json:"password" yaml:"password" env:"MATRUSP_SFTP_PASSWORD"`
	KeyFile    string `json:"key_file" yaml:"key_file" env:"MATRUSP_SFTP_KEY_FILE"`
	RemoteDir  string `json:"remote_dir" yaml:"remote_dir" env:"MATRUSP_SFTP_REMOTE_DIR"`
	KnownHosts string `json:"known_hosts" yaml:"known_hosts" env:"MATRUSP_SFTP_KNOWN_HOSTS"`
	// InsecureIgnoreHostKey accepts any host key, only meant for local testing.
	InsecureIgnoreHostKey bool `json:"insecure_ignore_host_key" yaml:"insecure_ignore_host_key"`
}

// Files returns the absolute paths of the aggregate datasets present in dir,
// sorted by name. Per subject files are never published.
func Files(dir, out string) ([]string, error) {
	var files []string
	for name := range output.KeptFiles(out) {
		p := filepath.Join(dir, name)
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			continue
		}
		files = append(files, p)
	}
	slices.Sort(files)
	return files, nil
}

func authMethods(c Config) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if c.KeyFile != "" {
		key, err := os.ReadFile(c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse key file: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if c.Password != "" {
		methods = append(methods, ssh.Password(c.Password))
	}
	if len(methods) == 0 {
		return nil, ErrMissingCredentials
	}
	return methods, nil
}

func hostKeyCallback(c Config) (ssh.HostKeyCallback, error) {
	if c.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	file := c.KnownHosts
	if file == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		file = filepath.Join(home, ".ssh", "known_hosts")
	}
	return knownhosts.New(file)
}

func (c Config) clientConfig() (*ssh.ClientConfig, error) {
	if c.Host == "" || c.User == "" {
		return nil, ErrMissingCredentials
	}
	auth, err := authMethods(c)
	if err != nil {
		return nil, err
	}
	callback, err := hostKeyCallback(c)
	if err != nil {
		return nil, fmt.Errorf("known hosts: %w", err)
	}
	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            auth,
		HostKeyCallback: callback,
		Timeout:         dial_timeout,
	}, nil
}

func (c Config) addr() string {
	port := c.Port
	if port <= 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// Remote is the part of a remote filesystem an upload needs.
//
// note: fault injection point
type Remote interface {
	MkdirAll(dir string) error
	Create(path string) (io.WriteCloser, error)
	Rename(oldpath, newpath string) error
	Remove(path string) error
}

type sftpRemote struct {
	client *sftp.Client
}

func (r sftpRemote) MkdirAll(dir string) error {
	return r.client.MkdirAll(dir)
}

func (r sftpRemote) Create(p string) (io.WriteCloser, error) {
	return r.client.Create(p)
}

// Rename prefers the posix-rename extension, which replaces an existing
// target in one step.
func (r sftpRemote) Rename(oldpath, newpath string) error {
	err := r.client.PosixRename(oldpath, newpath)
	if err == nil {
		return nil
	}
	_ = r.client.Remove(newpath)
	return r.client.Rename(oldpath, newpath)
}

func (r sftpRemote) Remove(p string) error {
	return r.client.Remove(p)
}

// Dial opens an SFTP session, the returned function closes it.
func Dial(ctx context.Context, c Config) (Remote, func() error, error) {
	sshConfig, err := c.clientConfig()
	if err != nil {
		return nil, nil, err
	}

	type dialResult struct {
		client *ssh.Client
		err    error
	}
	ch := make(chan dialResult, 1)
	go func() {
		client, err := ssh.Dial("tcp", c.addr(), sshConfig)
		ch <- dialResult{client: client, err: err}
	}()

	var sshClient *ssh.Client
	select {
	case <-ctx.Done():
		go func() {
			r := <-ch
			if r.client != nil {
				r.client.Close()
			}
		}()
		return nil, nil, fmt.Errorf("dial %s: %w", c.addr(), ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, nil, fmt.Errorf("dial %s: %w", c.addr(), r.err)
		}
		sshClient = r.client
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, nil, fmt.Errorf("new sftp client: %w", err)
	}
	closer := func() error {
		return errors.Join(sftpClient.Close(), sshClient.Close())
	}
	return sftpRemote{client: sftpClient}, closer, nil
}

// Publisher uploads local files into a remote directory. Each file is
// written under a temporary name and renamed into place once complete, so
// readers never observe a partial dataset.
type Publisher struct {
	remote    Remote
	remoteDir string
	tel       telemetry.API
}

func NewPublisher(remote Remote, remoteDir string, tel telemetry.API) Publisher {
	assert.NotNil(remote)
	assert.NotNil(tel)
	if remoteDir == "" {
		remoteDir = "/"
	}
	return Publisher{
		remote:    remote,
		remoteDir: remoteDir,
		tel:       telemetry.NewScopedAPI("publish", tel),
	}
}

// Upload publishes files, stopping at the first failure. It returns the
// remote paths that were written.
func (p Publisher) Upload(ctx context.Context, files []string) ([]string, error) {
	err := p.remote.MkdirAll(p.remoteDir)
	if err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", p.remoteDir, err)
	}

	var written []string
	for _, local := range files {
		if ctx.Err() != nil {
			return written, ctx.Err()
		}
		remotePath := path.Join(p.remoteDir, filepath.Base(local))
		n, err := p.uploadFile(local, remotePath)
		if err != nil {
			p.tel.ReportBroken(report_publish_upload, err, local, remotePath)
			return written, err
		}
		p.tel.ReportDebug(report_publish_upload, local, remotePath, n)
		written = append(written, remotePath)
	}
	return written, nil
}

func (p Publisher) uploadFile(local, remotePath string) (int64, error) {
	src, err := os.Open(local)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	partPath := remotePath + part_ext
	dst, err := p.remote.Create(partPath)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", partPath, err)
	}
	n, err := io.Copy(dst, src)
	if err != nil {
		dst.Close()
		_ = p.remote.Remove(partPath)
		return n, fmt.Errorf("copy %s: %w", local, err)
	}
	err = dst.Close()
	if err != nil {
		_ = p.remote.Remove(partPath)
		return n, fmt.Errorf("close %s: %w", partPath, err)
	}

	err = p.remote.Rename(partPath, remotePath)
	if err != nil {
		p.tel.ReportWarning(report_publish_rename, err, partPath)
		_ = p.remote.Remove(partPath)
		return n, fmt.Errorf("rename %s: %w", partPath, err)
	}
	return n, nil
}
