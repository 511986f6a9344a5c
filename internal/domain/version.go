package domain

import (
	"fmt"
	"regexp"
	"strconv"
)

const (
	// BaselineVersionTag is the tag of the bootstrap strategy.
	BaselineVersionTag = "v1.0"
	// FallbackVersionTag is used when the current tag cannot be parsed.
	FallbackVersionTag = "v1.1"
)

var versionTagPattern = regexp.MustCompile(`^v(\d+)\.(\d+)$`)

// NextVersionTag bumps the minor component: v1.4 -> v1.5.
func NextVersionTag(tag string) string {
	m := versionTagPattern.FindStringSubmatch(tag)
	if m == nil {
		return FallbackVersionTag
	}
	major, err1 := strconv.Atoi(m[1])
	minor, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return FallbackVersionTag
	}
	return fmt.Sprintf("v%d.%d", major, minor+1)
}

// CompareVersionTags orders two well-formed tags. Malformed tags sort first.
func CompareVersionTags(a, b string) int {
	am, bm := versionTagPattern.FindStringSubmatch(a), versionTagPattern.FindStringSubmatch(b)
	switch {
	case am == nil && bm == nil:
		return 0
	case am == nil:
		return -1
	case bm == nil:
		return 1
	}
	for i := 1; i <= 2; i++ {
		x, _ := strconv.Atoi(am[i])
		y, _ := strconv.Atoi(bm[i])
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}
