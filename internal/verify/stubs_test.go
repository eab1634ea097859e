package verify

import (
	"context"
	"net"
)

// stubResolver answers DNS lookups from fixed maps and counts calls so tests
// can assert short-circuit behavior.
type stubResolver struct {
	hosts map[string][]string
	mxs   map[string][]*net.MX

	hostErr error
	mxErr   error

	hostCalls int
	mxCalls   int
}

var _ Resolver = (*stubResolver)(nil)

func (s *stubResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	s.hostCalls++
	if s.hostErr != nil {
		return nil, s.hostErr
	}
	if addrs, ok := s.hosts[host]; ok {
		return addrs, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
}

func (s *stubResolver) LookupMX(_ context.Context, domain string) ([]*net.MX, error) {
	s.mxCalls++
	if s.mxErr != nil {
		return nil, s.mxErr
	}
	if mxs, ok := s.mxs[domain]; ok {
		return mxs, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: domain, IsNotFound: true}
}

// stubProber returns realCode for the probed address and canaryCode for the
// synthetic catch-all canary.
type stubProber struct {
	realCode   int
	canaryCode int
	err        error
	calls      int
}

var _ SMTPProber = (*stubProber)(nil)

func (s *stubProber) Probe(_ context.Context, _, _ string, addrs []string) ([]RCPTResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	results := make([]RCPTResult, 0, len(addrs))
	for i, addr := range addrs {
		code := s.realCode
		if i > 0 {
			code = s.canaryCode
		}
		results = append(results, RCPTResult{Addr: addr, Code: code})
	}
	return results, nil
}

// stubPhoneMeta answers Parse from a fixed map keyed by raw input.
type stubPhoneMeta struct {
	infos map[string]*PhoneInfo
	err   error
}

var _ PhoneMetadata = (*stubPhoneMeta)(nil)

func (s *stubPhoneMeta) Parse(raw, _ string) (*PhoneInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	if info, ok := s.infos[raw]; ok {
		return info, nil
	}
	return nil, errUnparseable
}

var errUnparseable = &net.AddrError{Err: "unparseable", Addr: "phone"}

func mustLists() *FilterLists {
	lists, err := LoadFilterLists()
	if err != nil {
		panic(err)
	}
	return lists
}

func newTestEmailVerifier(resolver *stubResolver, prober SMTPProber) *EmailVerifier {
	return NewEmailVerifier(resolver, prober, mustLists(), EmailOptions{})
}
