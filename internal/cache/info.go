package cache

import (
	"strconv"
	"strings"
)

// parseInfoField pulls a single value out of a Redis INFO response.
func parseInfoField(info, field string) string {
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimRight(line, "\r")
		if name, value, ok := strings.Cut(line, ":"); ok && name == field {
			return value
		}
	}
	return ""
}

func parseInfoInt(info, field string) int64 {
	v, err := strconv.ParseInt(parseInfoField(info, field), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
