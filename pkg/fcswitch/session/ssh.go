package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/leptonai/portbounce/pkg/log"
)

// FC switches often run old sshd builds, so the legacy CBC cipher and
// sha1 key exchanges are offered after the modern ones.
var (
	sshCiphers = []string{
		"aes128-gcm@openssh.com",
		"aes256-gcm@openssh.com",
		"chacha20-poly1305@openssh.com",
		"aes128-ctr",
		"aes192-ctr",
		"aes256-ctr",
		"aes128-cbc",
	}
	sshKeyExchanges = []string{
		"curve25519-sha256",
		"curve25519-sha256@libssh.org",
		"ecdh-sha2-nistp256",
		"ecdh-sha2-nistp384",
		"ecdh-sha2-nistp521",
		"diffie-hellman-group14-sha256",
		"diffie-hellman-group14-sha1",
		"diffie-hellman-group1-sha1",
	}
)

// LoginSSH opens an interactive shell with a pty on the switch, so the
// session behaves exactly like a telnet login once the prompt is shown.
func LoginSSH(ctx context.Context, addr string, user string, password string, opts ...OpOption) (Channel, error) {
	op := &Op{}
	op.applyOpts(opts)

	hostKeyCallback, err := hostKeyCallback(op.knownHostsFile)
	if err != nil {
		return nil, err
	}

	sshConfig := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_ string, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         op.commandTimeout,
		Config: ssh.Config{
			Ciphers:      sshCiphers,
			KeyExchanges: sshKeyExchanges,
		},
	}

	d := net.Dialer{Timeout: op.commandTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial switch %s: %w", addr, err)
	}
	// the ssh handshake and session setup run on the raw conn with no
	// timeout of their own, bound them by the deadline and the context
	if err := conn.SetDeadline(time.Now().Add(2 * op.commandTimeout)); err != nil {
		_ = conn.Close()
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	ch, err := handshake(ctx, conn, addr, sshConfig, op)
	if !stop() {
		if err == nil {
			_ = ch.Close()
		}
		return nil, fmt.Errorf("failed to log in to switch %s: %w", addr, ctx.Err())
	}
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		_ = ch.Close()
		return nil, err
	}
	log.Logger.Infow("logged in to switch", "address", addr, "transport", "ssh", "user", user)
	return ch, nil
}

func handshake(ctx context.Context, conn net.Conn, addr string, sshConfig *ssh.ClientConfig, op *Op) (*channel, error) {
	cc, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to log in to switch %s: %w", addr, err)
	}
	client := ssh.NewClient(cc, chans, reqs)

	ch, err := openShell(ctx, client, op)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to open shell on switch %s: %w", addr, err)
	}
	return ch, nil
}

func openShell(ctx context.Context, client *ssh.Client, op *Op) (*channel, error) {
	sess, err := client.NewSession()
	if err != nil {
		return nil, err
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	// wide enough that switchshow rows never wrap
	if err := sess.RequestPty("vt100", 200, 512, modes); err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("request for pseudo-terminal failed: %w", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		_ = sess.Close()
		return nil, err
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		_ = sess.Close()
		return nil, err
	}
	if err := sess.Shell(); err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("failed to start shell: %w", err)
	}

	ch := &channel{
		exp:     newExpecter(stdout, stdin),
		prompt:  op.prompt,
		timeout: op.commandTimeout,
		closer: func() error {
			return errors.Join(ignoreEOF(sess.Close()), client.Close())
		},
	}
	if _, err := ch.exp.readUntil(ctx, ch.prompt, ch.timeout); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to read command prompt: %w", err)
	}
	return ch, nil
}

func hostKeyCallback(knownHostsFile string) (ssh.HostKeyCallback, error) {
	if knownHostsFile == "" {
		log.Logger.Warnw("switch host key is not verified, set known_hosts_file to enable verification")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts %q: %w", knownHostsFile, err)
	}
	return cb, nil
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
