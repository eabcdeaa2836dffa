package configdb

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/newtron-network/vland/pkg/util"
)

// TunnelConfig describes how to reach Redis on a remote switch over SSH.
type TunnelConfig struct {
	Host string
	Port int // default 22
	User string
	Pass string
	// KnownHosts is a known_hosts file used to verify the switch. When
	// empty the host key is not checked.
	KnownHosts string
	// Remote is the Redis address as seen from the switch. Default
	// "127.0.0.1:6379".
	Remote string
}

// SSHTunnel forwards a local TCP port to Redis on a switch through an SSH
// connection. Redis on the switch listens on loopback only.
type SSHTunnel struct {
	localAddr string
	remote    string
	sshClient *ssh.Client
	listener  net.Listener
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewSSHTunnel dials SSH and opens a local listener on a random port.
func NewSSHTunnel(cfg TunnelConfig) (*SSHTunnel, error) {
	hostKey := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHosts != "" {
		cb, err := knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("loading known hosts %s: %w", cfg.KnownHosts, err)
		}
		hostKey = cb
	}
	config := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Pass)},
		HostKeyCallback: hostKey,
		Timeout:         10 * time.Second,
	}

	port := cfg.Port
	if port == 0 {
		port = 22
	}
	remote := cfg.Remote
	if remote == "" {
		remote = "127.0.0.1:6379"
	}

	sshClient, err := ssh.Dial("tcp", net.JoinHostPort(cfg.Host, strconv.Itoa(port)), config)
	if err != nil {
		return nil, fmt.Errorf("SSH dial %s: %w", cfg.Host, err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("local listen: %w", err)
	}

	t := &SSHTunnel{
		localAddr: listener.Addr().String(),
		remote:    remote,
		sshClient: sshClient,
		listener:  listener,
		done:      make(chan struct{}),
	}

	t.wg.Add(1)
	go t.acceptLoop()

	util.WithComponent("tunnel").Debugf("forwarding %s to %s via %s", t.localAddr, remote, cfg.Host)
	return t, nil
}

// LocalAddr returns the local address that forwards to Redis on the
// switch.
func (t *SSHTunnel) LocalAddr() string {
	return t.localAddr
}

// Dial opens a connection to Redis on the switch directly over the SSH
// connection, bypassing the local listener. It fits redis.Options.Dialer.
func (t *SSHTunnel) Dial(ctx context.Context, network, addr string) (net.Conn, error) {
	return t.sshClient.Dial("tcp", t.remote)
}

// Close stops the listener, closes the SSH connection and waits for all
// forwarding goroutines to finish.
func (t *SSHTunnel) Close() error {
	close(t.done)
	t.listener.Close()
	err := t.sshClient.Close()
	t.wg.Wait()
	return err
}

func (t *SSHTunnel) acceptLoop() {
	defer t.wg.Done()
	for {
		local, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.done:
				return
			default:
				continue
			}
		}
		t.wg.Add(1)
		go t.forward(local)
	}
}

func (t *SSHTunnel) forward(local net.Conn) {
	defer t.wg.Done()
	defer local.Close()

	remote, err := t.sshClient.Dial("tcp", t.remote)
	if err != nil {
		util.WithComponent("tunnel").Warnf("dial %s: %v", t.remote, err)
		return
	}
	defer remote.Close()

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(remote, local)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(local, remote)
		done <- struct{}{}
	}()
	<-done
}
