package config

import (
	"strconv"
	"strings"
)

// CompareVersions 比较点分版本号，缺失或非数字段按 0 处理；返回 1 / 0 / -1
// CompareVersions compares dotted versions treating missing or non-numeric parts as 0; returns 1, 0 or -1
func CompareVersions(a, b string) int {
	pa := versionParts(a)
	pb := versionParts(b)
	n := max(len(pa), len(pb))
	for i := 0; i < n; i++ {
		var x, y int
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		if x > y {
			return 1
		}
		if x < y {
			return -1
		}
	}
	return 0
}

// UpdateAvailable reports whether latest is strictly newer than current.
// An empty side never triggers an update notice.
func UpdateAvailable(current, latest string) bool {
	if strings.TrimSpace(current) == "" || strings.TrimSpace(latest) == "" {
		return false
	}
	return CompareVersions(latest, current) > 0
}

func versionParts(v string) []int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if v == "" {
		return nil
	}
	fields := strings.Split(v, ".")
	out := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			n = 0
		}
		out[i] = n
	}
	return out
}
