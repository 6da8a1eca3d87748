package domain

import (
	"context"
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type LookuperTestSuite struct {
	suite.Suite

	initial  map[string][]netip.Addr
	lookuper Lookuper
}

func (s *LookuperTestSuite) SetupTest() {
	s.initial = map[string][]netip.Addr{
		"localhost":   {netip.MustParseAddr("127.0.0.1")},
		"example.com": {netip.MustParseAddr("1.1.1.1"), netip.MustParseAddr("1.0.0.1")},
	}
}

func (s *LookuperTestSuite) TestLookup() {
	addrs, err := s.lookuper.LookupIP(context.Background(), "localhost")
	s.NoError(err)
	s.Equal([]netip.Addr{netip.MustParseAddr("127.0.0.1")}, addrs)

	// Order is kept.
	addrs, err = s.lookuper.LookupIP(context.Background(), "example.com")
	s.NoError(err)
	s.Equal(netip.MustParseAddr("1.1.1.1"), addrs[0])

	// Non-existent.
	addrs, err = s.lookuper.LookupIP(context.Background(), "non-existent.com")
	s.ErrorIs(err, ErrDomainNotFound)
	s.Nil(addrs)
}

func (s *LookuperTestSuite) TestLookupInitCopied() {
	s.initial["localhost"] = []netip.Addr{netip.MustParseAddr("10.0.0.1")}

	addrs, err := s.lookuper.LookupIP(context.Background(), "localhost")
	s.NoError(err)
	s.Equal([]netip.Addr{netip.MustParseAddr("127.0.0.1")}, addrs)
}

type mapLookuperTestSuite struct{ LookuperTestSuite }

func TestMapLookuperTestSuite(t *testing.T) {
	suite.Run(t, new(mapLookuperTestSuite))
}

func (s *mapLookuperTestSuite) SetupTest() {
	s.LookuperTestSuite.SetupTest()
	s.lookuper = NewMapLookuper(s.initial)
}

func (s *mapLookuperTestSuite) TestSetDel() {
	l := s.lookuper.(*mapLookuper)

	l.Set("new.test", []netip.Addr{netip.MustParseAddr("10.1.2.3")})
	addrs, err := l.LookupIP(context.Background(), "new.test")
	s.NoError(err)
	s.Len(addrs, 1)

	// Empty set is ignored.
	l.Set("empty.test", nil)
	_, err = l.LookupIP(context.Background(), "empty.test")
	s.ErrorIs(err, ErrDomainNotFound)

	l.Del("new.test")
	_, err = l.LookupIP(context.Background(), "new.test")
	s.ErrorIs(err, ErrDomainNotFound)
}

type stubResolver struct {
	addrs []netip.Addr
	err   error

	asked string
}

func (r *stubResolver) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	r.asked = host
	return r.addrs, r.err
}

func TestNetLookuper(t *testing.T) {
	testcases := []struct {
		desc      string
		domain    string
		resolver  *stubResolver
		expected  []netip.Addr
		wantAsked string
		wantErr   error
	}{
		{
			desc:      "resolved",
			domain:    "example.test",
			resolver:  &stubResolver{addrs: []netip.Addr{netip.MustParseAddr("::ffff:10.0.0.1")}},
			expected:  []netip.Addr{netip.MustParseAddr("10.0.0.1")},
			wantAsked: "example.test",
		},
		{
			desc:     "literal address",
			domain:   "192.0.2.7",
			resolver: &stubResolver{},
			expected: []netip.Addr{netip.MustParseAddr("192.0.2.7")},
		},
		{
			desc:      "idn is converted",
			domain:    "bücher.example",
			resolver:  &stubResolver{addrs: []netip.Addr{netip.MustParseAddr("10.0.0.2")}},
			expected:  []netip.Addr{netip.MustParseAddr("10.0.0.2")},
			wantAsked: "xn--bcher-kva.example",
		},
		{
			desc:      "not found",
			domain:    "missing.test",
			resolver:  &stubResolver{err: &net.DNSError{Err: "no such host", Name: "missing.test", IsNotFound: true}},
			wantAsked: "missing.test",
			wantErr:   ErrDomainNotFound,
		},
		{
			desc:      "empty answer",
			domain:    "empty.test",
			resolver:  &stubResolver{},
			wantAsked: "empty.test",
			wantErr:   ErrDomainNotFound,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			l := NewNetLookuper(tc.resolver)
			addrs, err := l.LookupIP(context.Background(), tc.domain)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.expected, addrs)
			assert.Equal(t, tc.wantAsked, tc.resolver.asked)
		})
	}
}
