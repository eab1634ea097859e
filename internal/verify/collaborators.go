package verify

import (
	"context"
	"errors"
	"net"
	"net/smtp"
	"net/textproto"
	"time"

	"github.com/rotisserie/eris"
)

// Resolver answers DNS questions for the email channel. Both methods honor
// the deadline on ctx.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
	LookupMX(ctx context.Context, domain string) ([]*net.MX, error)
}

// NetResolver adapts net.Resolver to the Resolver interface.
type NetResolver struct {
	r *net.Resolver
}

// NewNetResolver returns a Resolver backed by the default system resolver.
func NewNetResolver() *NetResolver {
	return &NetResolver{r: net.DefaultResolver}
}

func (n *NetResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	return n.r.LookupHost(ctx, host)
}

func (n *NetResolver) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	return n.r.LookupMX(ctx, domain)
}

// RCPTResult is the SMTP server's answer for one RCPT TO address.
type RCPTResult struct {
	Addr    string
	Code    int
	Message string
}

// SMTPProber opens one session against an MX host and issues RCPT TO for each
// address, in order, reporting the response code per address. Connection-level
// failures are returned as an error; per-address rejections are codes.
type SMTPProber interface {
	Probe(ctx context.Context, mxHost, helloDomain string, addrs []string) ([]RCPTResult, error)
}

// DialProber implements SMTPProber over a raw TCP connection on port 25.
type DialProber struct {
	Timeout time.Duration
}

// NewDialProber returns an SMTPProber with the given per-session timeout.
func NewDialProber(timeout time.Duration) *DialProber {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DialProber{Timeout: timeout}
}

func (p *DialProber) Probe(ctx context.Context, mxHost, helloDomain string, addrs []string) ([]RCPTResult, error) {
	dialer := net.Dialer{Timeout: p.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(mxHost, "25"))
	if err != nil {
		return nil, eris.Wrapf(err, "smtp: dial %s", mxHost)
	}
	// One deadline covers the whole session.
	_ = conn.SetDeadline(time.Now().Add(p.Timeout))

	client, err := smtp.NewClient(conn, mxHost)
	if err != nil {
		conn.Close()
		return nil, eris.Wrapf(err, "smtp: greeting %s", mxHost)
	}
	defer client.Quit() //nolint:errcheck

	if err := client.Hello(helloDomain); err != nil {
		return nil, eris.Wrapf(err, "smtp: hello %s", mxHost)
	}
	if err := client.Mail("verify@" + helloDomain); err != nil {
		return nil, eris.Wrapf(err, "smtp: mail from %s", mxHost)
	}

	results := make([]RCPTResult, 0, len(addrs))
	for _, addr := range addrs {
		code, msg := 250, "accepted"
		if rcptErr := client.Rcpt(addr); rcptErr != nil {
			var tpErr *textproto.Error
			if errors.As(rcptErr, &tpErr) {
				code, msg = tpErr.Code, tpErr.Msg
			} else {
				// Session died mid-probe; everything from here is unknown.
				return results, eris.Wrapf(rcptErr, "smtp: rcpt %s", addr)
			}
		}
		results = append(results, RCPTResult{Addr: addr, Code: code, Message: msg})
	}
	return results, nil
}
