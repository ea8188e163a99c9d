// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// ClientIP stores the client address in the request context. X-Real-IP and
// X-Forwarded-For are honoured only when the direct peer is one of
// trustedProxies; "*" trusts every peer.
func ClientIP(trustedProxies []string) func(http.Handler) http.Handler {
	trusted := make(map[string]bool, len(trustedProxies))
	trustAll := false
	for _, p := range trustedProxies {
		p = strings.TrimSpace(p)
		if p == "*" {
			trustAll = true
		}
		if p != "" {
			trusted[p] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			peer := remoteHost(r.RemoteAddr)
			ip := peer
			if trustAll || trusted[peer] {
				if fwd := forwardedIP(r); fwd != "" {
					ip = fwd
				}
			}
			ctx := context.WithValue(r.Context(), ContextKeyClientIP, ip)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientIP returns the address stored by ClientIP, falling back to the
// direct peer.
func GetClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(ContextKeyClientIP).(string); ok && ip != "" {
		return ip
	}
	return remoteHost(r.RemoteAddr)
}

// forwardedIP reads the proxy headers. X-Forwarded-For can contain multiple
// IPs; the first one is the original client.
func forwardedIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); validIP(ip) {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); validIP(ip) {
			return ip
		}
	}
	return ""
}

func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func validIP(s string) bool {
	return s != "" && net.ParseIP(s) != nil
}
