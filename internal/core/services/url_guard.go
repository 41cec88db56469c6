// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package services contains the domain services the derivative workflows are
// built from. This file defines URLGuard, which decides whether a caller
// supplied URL may be fetched at all.
//
// Logic Flow:
//  1. Parse the URL and require an absolute http or https URL with a host.
//  2. Convert internationalized host names to their ASCII form.
//  3. Reject localhost and every *.localhost name.
//  4. An IP literal is classified directly. A name is resolved (A and AAAA)
//     and rejected if any address is private or if nothing resolves.
//  5. The same classification runs again inside the dialer for every address
//     actually connected to, so a name that re-resolves to a private address
//     between validation and connection is still refused.
package services

import (
	"context"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"syscall"

	"golang.org/x/net/idna"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/mediaerr"
)

// Messages returned for rejected URLs.
const (
	MsgURLRequired     = "url is required"
	MsgURLInvalid      = "url must be a valid URL"
	MsgURLScheme       = "url must use http or https"
	MsgURLDisallowed   = "url points to a disallowed host"
	MsgURLPrivate      = "url points to a private address"
	MsgURLUnresolvable = "url could not be resolved"
)

// blockedPrefixes are the address ranges a fetch may never reach.
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

// IsBlockedAddr reports whether addr falls in a private, loopback,
// link-local or unspecified range. IPv4-mapped IPv6 addresses are classified
// as their IPv4 form.
func IsBlockedAddr(addr netip.Addr) bool {
	addr = addr.WithZone("").Unmap()
	if !addr.IsValid() || addr.IsUnspecified() {
		return true
	}
	for _, prefix := range blockedPrefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Resolver looks up the addresses of a host. *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// URLGuard validates fetch targets.
type URLGuard struct {
	resolver     Resolver
	allowPrivate bool
}

// NewURLGuard creates a guard using resolver. allowPrivate turns address
// classification off and exists only for local development.
func NewURLGuard(resolver Resolver, allowPrivate bool) *URLGuard {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &URLGuard{resolver: resolver, allowPrivate: allowPrivate}
}

// Validate parses raw and checks it against the fetch policy. The returned
// URL is normalized (ASCII host) and is what the fetch and the cache identity
// use. Every rejection is an InvalidInput error.
func (g *URLGuard) Validate(ctx context.Context, raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, mediaerr.Invalid(MsgURLRequired)
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Opaque != "" {
		return nil, mediaerr.Invalid(MsgURLInvalid)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, mediaerr.Invalid(MsgURLScheme)
	}
	hostname := strings.ToLower(u.Hostname())
	if hostname == "" {
		return nil, mediaerr.Invalid(MsgURLInvalid)
	}

	if _, err := netip.ParseAddr(hostname); err != nil {
		ascii, err := idna.Lookup.ToASCII(hostname)
		if err != nil {
			return nil, mediaerr.Invalid(MsgURLInvalid)
		}
		hostname = ascii
		if port := u.Port(); port != "" {
			u.Host = net.JoinHostPort(hostname, port)
		} else {
			u.Host = hostname
		}
	}

	if hostname == "localhost" || strings.HasSuffix(hostname, ".localhost") {
		return nil, mediaerr.Invalid(MsgURLDisallowed)
	}

	if err := g.checkHost(ctx, hostname); err != nil {
		return nil, err
	}
	return u, nil
}

func (g *URLGuard) checkHost(ctx context.Context, hostname string) error {
	if addr, err := netip.ParseAddr(hostname); err == nil {
		if !g.allowPrivate && IsBlockedAddr(addr) {
			return mediaerr.Invalid(MsgURLPrivate)
		}
		return nil
	}

	addrs, err := g.resolver.LookupIPAddr(ctx, hostname)
	if err != nil || len(addrs) == 0 {
		return mediaerr.Wrap(mediaerr.InvalidInput, MsgURLUnresolvable, err)
	}
	if g.allowPrivate {
		return nil
	}
	for _, ipAddr := range addrs {
		addr, ok := netip.AddrFromSlice(ipAddr.IP)
		if !ok || IsBlockedAddr(addr) {
			return mediaerr.Invalid(MsgURLPrivate)
		}
	}
	return nil
}

// Control is a net.Dialer Control hook. It refuses connections to blocked
// addresses regardless of what name led there.
func (g *URLGuard) Control(_ string, address string, _ syscall.RawConn) error {
	if g.allowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return mediaerr.Wrap(mediaerr.InvalidInput, MsgURLInvalid, err)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return mediaerr.Wrap(mediaerr.InvalidInput, MsgURLInvalid, err)
	}
	if IsBlockedAddr(addr) {
		return mediaerr.Invalid(MsgURLPrivate)
	}
	return nil
}
