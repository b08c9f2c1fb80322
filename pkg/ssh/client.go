// Package ssh provides the remote command transport used by the
// deploy stage: key-authenticated sessions against a fixed host and
// user.
package ssh

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"net"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

const defaultPort = "22"

// Runner executes a command on the deploy target and returns its
// combined output. Deploy logic is written against this interface so
// it can be exercised without a live host.
type Runner interface {
	Run(ctx context.Context, cmd string) ([]byte, error)
}

// Client is a Runner that opens one SSH session per command.
type Client struct {
	Host    string
	User    string
	KeyPath string

	// DialTimeout guards connection establishment only; command
	// execution has no timeout of its own, mirroring the remote
	// session having none. A hung command blocks until the caller's
	// context is done.
	DialTimeout time.Duration
}

func (c *Client) addr() string {
	if _, _, err := net.SplitHostPort(c.Host); err == nil {
		return c.Host
	}
	return net.JoinHostPort(c.Host, defaultPort)
}

func (c *Client) config() (*ssh.ClientConfig, error) {
	key, err := ioutil.ReadFile(c.KeyPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading private key")
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, errors.Wrap(err, "parsing private key")
	}
	timeout := c.DialTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}, nil
}

// Run opens a session, runs the command, and returns combined output.
// The context cancels the session by closing the underlying
// connection.
func (c *Client) Run(ctx context.Context, cmd string) ([]byte, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	conn, err := ssh.Dial("tcp", c.addr(), cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s@%s", c.User, c.addr())
	}
	defer conn.Close()

	session, err := conn.NewSession()
	if err != nil {
		return nil, errors.Wrap(err, "opening session")
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdout = &out
	session.Stderr = &out

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		conn.Close()
		return out.Bytes(), errors.Wrap(ctx.Err(), fmt.Sprintf("running remote command: %s", cmd))
	case err := <-done:
		if err != nil {
			if out.Len() > 0 {
				return out.Bytes(), errors.New(string(bytes.TrimSpace(out.Bytes())))
			}
			return out.Bytes(), err
		}
		return out.Bytes(), nil
	}
}
