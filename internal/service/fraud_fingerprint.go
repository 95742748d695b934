package service

import (
	"encoding/hex"
	"net/netip"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// DeviceFingerprint 由 User-Agent 与 IP 网段生成设备指纹，任一为空时返回空串
func DeviceFingerprint(ip, userAgent string) string {
	ua := strings.ToLower(strings.Join(strings.Fields(userAgent), " "))
	if ua == "" || strings.TrimSpace(ip) == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(ua + "|" + ipNetworkKey(ip)))
	return hex.EncodeToString(sum[:])
}

// ipNetworkKey IPv4 取 /24，IPv6 取 /48，无法解析时原样返回
func ipNetworkKey(ip string) string {
	ip = strings.TrimSpace(ip)
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ip
	}
	addr = addr.Unmap()
	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return ip
	}
	return prefix.String()
}
