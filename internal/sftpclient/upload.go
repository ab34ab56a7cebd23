// Package sftpclient uploads the pending-hires handoff to a drop server.
package sftpclient

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/danielolaszy/onboard/internal/config"
	"github.com/danielolaszy/onboard/internal/logging"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const defaultTimeout = 20 * time.Second

// HostKeyCallback returns the server key check for cfg: the known_hosts
// file, or no check at all when InsecureIgnoreHostKey is set.
func HostKeyCallback(cfg config.SFTPConfig) (ssh.HostKeyCallback, error) {
	if cfg.InsecureIgnoreHostKey {
		logging.Warn("sftp host key verification disabled",
			"host", cfg.Host)
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if cfg.KnownHostsFile == "" {
		return nil, fmt.Errorf("sftp: known_hosts_file is required unless insecure_ignore_host_key is set")
	}
	cb, err := knownhosts.New(cfg.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("sftp: load known hosts: %w", err)
	}
	return cb, nil
}

// UploadFile copies localPath to remoteFileName under cfg.RemoteDir.
func UploadFile(ctx context.Context, cfg config.SFTPConfig, localPath string, remoteFileName string) error {
	if cfg.Host == "" || cfg.User == "" || cfg.Pass == "" {
		return fmt.Errorf("sftp: missing sftp.host / sftp.user / SFTP_PASS")
	}
	if cfg.Port <= 0 {
		cfg.Port = 22
	}
	if cfg.RemoteDir == "" {
		cfg.RemoteDir = "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	cb, err := HostKeyCallback(cfg)
	if err != nil {
		return err
	}

	sshCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Pass)},
		HostKeyCallback: cb,
		Timeout:         cfg.Timeout,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	type dialRes struct {
		client *ssh.Client
		err    error
	}
	ch := make(chan dialRes, 1)
	go func() {
		c, err := ssh.Dial("tcp", addr, sshCfg)
		ch <- dialRes{client: c, err: err}
	}()

	var sshClient *ssh.Client
	select {
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.client != nil {
				r.client.Close()
			}
		}()
		return fmt.Errorf("sftp: dial canceled: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("sftp: dial error: %w", r.err)
		}
		sshClient = r.client
	}
	defer sshClient.Close()

	sftpCli, err := sftp.NewClient(sshClient)
	if err != nil {
		return fmt.Errorf("sftp: new client: %w", err)
	}
	defer sftpCli.Close()

	return upload(sftpCli, cfg.RemoteDir, localPath, remoteFileName)
}

func upload(fs *sftp.Client, remoteDir, localPath, remoteFileName string) error {
	if err := fs.MkdirAll(remoteDir); err != nil {
		return fmt.Errorf("sftp: mkdir %s: %w", remoteDir, err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("sftp: open local file: %w", err)
	}
	defer src.Close()

	remotePath := path.Join(remoteDir, remoteFileName)
	partPath := remotePath + ".part"

	dst, err := fs.Create(partPath)
	if err != nil {
		return fmt.Errorf("sftp: create remote file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		fs.Remove(partPath)
		return fmt.Errorf("sftp: upload copy: %w", err)
	}
	if err := dst.Close(); err != nil {
		fs.Remove(partPath)
		return fmt.Errorf("sftp: close remote file: %w", err)
	}

	if err := fs.PosixRename(partPath, remotePath); err != nil {
		logging.Debug("posix rename unsupported, falling back",
			"error", err)
		fs.Remove(remotePath)
		if err := fs.Rename(partPath, remotePath); err != nil {
			return fmt.Errorf("sftp: rename %s: %w", remotePath, err)
		}
	}

	logging.Info("uploaded handoff",
		"remote_path", remotePath)
	return nil
}
