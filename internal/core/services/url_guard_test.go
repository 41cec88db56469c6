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

package services_test

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/mediaerr"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/services"
	test "github.com/jaycherian/gcp-go-media-derivatives/internal/testutil"
)

func newGuard() *services.URLGuard {
	return services.NewURLGuard(test.StaticResolver{
		"example.com":           {"93.184.216.34"},
		"internal.example.com":  {"10.0.0.5"},
		"mixed.example.com":     {"93.184.216.34", "192.168.1.10"},
		"v6.example.com":        {"2606:2800:220:1:248:1893:25c8:1946"},
		"v6-local.example.com":  {"fd00::1"},
		"xn--bcher-kva.example": {"93.184.216.34"},
	}, false)
}

func TestURLGuardRejects(t *testing.T) {
	ctx := context.Background()
	guard := newGuard()

	cases := map[string]struct {
		raw string
		msg string
	}{
		"empty":              {"", services.MsgURLRequired},
		"blank":              {"   ", services.MsgURLRequired},
		"not a url":          {"not-a-url", services.MsgURLInvalid},
		"ftp":                {"ftp://example.com/a.png", services.MsgURLScheme},
		"file":               {"file:///etc/passwd", services.MsgURLScheme},
		"no host":            {"http:///a.png", services.MsgURLInvalid},
		"localhost":          {"http://localhost/a.png", services.MsgURLDisallowed},
		"localhost case":     {"http://LOCALHOST:8080/a.png", services.MsgURLDisallowed},
		"sub localhost":      {"http://api.localhost/a.png", services.MsgURLDisallowed},
		"loopback literal":   {"http://127.0.0.1/a.png", services.MsgURLPrivate},
		"private literal":    {"http://10.0.0.5/a.png", services.MsgURLPrivate},
		"link local":         {"http://169.254.169.254/latest/meta-data", services.MsgURLPrivate},
		"zero network":       {"http://0.0.0.0/a.png", services.MsgURLPrivate},
		"172 range":          {"http://172.20.1.1/a.png", services.MsgURLPrivate},
		"v6 loopback":        {"http://[::1]/a.png", services.MsgURLPrivate},
		"v4 mapped loopback": {"http://[::ffff:127.0.0.1]/a.png", services.MsgURLPrivate},
		"resolves private":   {"https://internal.example.com/a.png", services.MsgURLPrivate},
		"any private":        {"https://mixed.example.com/a.png", services.MsgURLPrivate},
		"resolves ula":       {"https://v6-local.example.com/a.png", services.MsgURLPrivate},
		"unresolvable":       {"https://nowhere.example.com/a.png", services.MsgURLUnresolvable},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := guard.Validate(ctx, tc.raw)
			require.Error(t, err)
			classified, ok := mediaerr.As(err)
			require.True(t, ok)
			assert.Equal(t, mediaerr.InvalidInput, classified.Kind)
			assert.Equal(t, tc.msg, classified.Message)
		})
	}
}

func TestURLGuardAccepts(t *testing.T) {
	ctx := context.Background()
	guard := newGuard()

	for _, raw := range []string{
		"http://8.8.8.8/a.png",
		"https://example.com/a.png?x=1",
		"HTTPS://example.com/a.png",
		"https://v6.example.com/video.mp4",
		"http://[2606:4700:4700::1111]/a.png",
	} {
		u, err := guard.Validate(ctx, raw)
		require.NoError(t, err, raw)
		assert.Contains(t, []string{"http", "https"}, u.Scheme)
	}
}

func TestURLGuardNormalizesInternationalHosts(t *testing.T) {
	u, err := newGuard().Validate(context.Background(), "https://Bücher.example:8443/a.png")
	require.NoError(t, err)
	assert.Equal(t, "xn--bcher-kva.example:8443", u.Host)
	assert.Equal(t, "https://xn--bcher-kva.example:8443/a.png", u.String())
}

func TestURLGuardAllowPrivate(t *testing.T) {
	guard := services.NewURLGuard(test.StaticResolver{}, true)
	_, err := guard.Validate(context.Background(), "http://127.0.0.1:9000/a.png")
	assert.NoError(t, err)
	// localhost stays refused when private networks are allowed.
	_, err = guard.Validate(context.Background(), "http://localhost:9000/a.png")
	assert.Error(t, err)
}

func TestURLGuardControl(t *testing.T) {
	guard := newGuard()
	assert.Error(t, guard.Control("tcp4", "127.0.0.1:80", nil))
	assert.Error(t, guard.Control("tcp6", "[fe80::1%eth0]:80", nil))
	assert.Error(t, guard.Control("tcp4", "10.1.2.3:443", nil))
	assert.NoError(t, guard.Control("tcp4", "93.184.216.34:443", nil))
	assert.Error(t, guard.Control("tcp4", "garbage", nil))
}

func TestIsBlockedAddr(t *testing.T) {
	for addr, blocked := range map[string]bool{
		"127.0.0.1":       true,
		"172.15.255.255":  false,
		"172.16.0.0":      true,
		"172.31.255.255":  true,
		"172.32.0.0":      false,
		"192.168.0.1":     true,
		"169.254.1.1":     true,
		"8.8.8.8":         false,
		"::":              true,
		"::1":             true,
		"fc00::1":         true,
		"fdff::1":         true,
		"fe80::1":         true,
		"2001:4860::8888": false,
		"::ffff:10.0.0.1": true,
		"::ffff:8.8.4.4":  false,
	} {
		assert.Equal(t, blocked, services.IsBlockedAddr(netip.MustParseAddr(addr)), addr)
	}
}
