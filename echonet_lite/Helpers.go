package echonet_lite

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// ParseEOJString parses a string in the format "CCCC:I" where CCCC is a 4-digit hex class code
// and I is a decimal instance code. Returns the parsed EOJ.
// Examples: "0130:1", "0EF0:1"
func ParseEOJString(eojStr string) (EOJ, error) {
	parts := strings.Split(eojStr, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid EOJ format: %s (expected format: CCCC:I)", eojStr)
	}

	classCode, err := ParseEOJClassCodeString(parts[0])
	if err != nil {
		return 0, err
	}

	instanceCode, err := ParseEOJInstanceCodeString(parts[1])
	if err != nil {
		return 0, err
	}

	return MakeEOJ(classCode, instanceCode), nil
}

// ParseEOJClassCodeString parses a 4-digit hex string into an EOJClassCode.
// Example: "0130" -> HomeAirConditioner_ClassCode
func ParseEOJClassCodeString(classCodeStr string) (EOJClassCode, error) {
	if len(classCodeStr) != 4 {
		return 0, fmt.Errorf("class code must be 4 hexadecimal digits: %s", classCodeStr)
	}

	classCode64, err := strconv.ParseUint(classCodeStr, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid class code: %s (must be 4 hexadecimal digits)", classCodeStr)
	}

	return EOJClassCode(classCode64), nil
}

// ParseEOJInstanceCodeString parses a decimal string into an EOJInstanceCode.
// Example: "1" -> EOJInstanceCode(1)
func ParseEOJInstanceCodeString(instanceCodeStr string) (EOJInstanceCode, error) {
	instanceCode64, err := strconv.ParseUint(instanceCodeStr, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid instance code: %s (must be a number between 1-255)", instanceCodeStr)
	}

	if instanceCode64 == 0 {
		return 0, fmt.Errorf("instance code must be between 1 and 255")
	}

	return EOJInstanceCode(instanceCode64), nil
}

// ParseAddrPort は "192.168.0.10" または "192.168.0.10:3610" を解析します。
// ポートを省略した場合は ECHONETLitePort を使用します。
func ParseAddrPort(s string) (netip.AddrPort, error) {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap, nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("invalid IP address: %s", s)
	}
	return netip.AddrPortFrom(addr, ECHONETLitePort), nil
}

// ParseInstanceKey parses a device identifier string in the format "IP[:port] EOJ".
// Example: "192.168.0.1 0130:1"
func ParseInstanceKey(s string) (InstanceKey, error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return InstanceKey{}, fmt.Errorf("invalid device identifier format: %#v (expected format: IP EOJ)", s)
	}

	addr, err := ParseAddrPort(parts[0])
	if err != nil {
		return InstanceKey{}, err
	}

	eoj, err := ParseEOJString(parts[1])
	if err != nil {
		return InstanceKey{}, err
	}

	return InstanceKey{Addr: addr, EOJ: eoj}, nil
}
