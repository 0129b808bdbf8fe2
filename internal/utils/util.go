package utils

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrBadDuration = errors.New("invalid duration")

func EscapeMd(s string) string {
	repl := []string{"*", "\\*", "_", "\\_", "`", "\\`", "~", "\\~", "[", "\\[", "]", "\\]", "|", "\\|"}
	r := strings.NewReplacer(repl...)
	return r.Replace(s)
}

// PrettyTime renders d as m:ss or h:mm:ss, truncated to whole seconds.
func PrettyTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d / time.Second)
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

var reDur = regexp.MustCompile(`(?i)^(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

// ParseDurationString accepts plain seconds ("90"), clock notation ("1:30",
// "1:02:03") and unit notation ("1h2m3s").
func ParseDurationString(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrBadDuration
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, ErrBadDuration
		}
		return time.Duration(n) * time.Second, nil
	}
	if strings.Contains(s, ":") {
		return parseClock(s)
	}
	m := reDur.FindStringSubmatch(s)
	if m == nil {
		return 0, ErrBadDuration
	}
	h := atoi(m[1])
	mins := atoi(m[2])
	sec := atoi(m[3])
	return time.Duration(h*3600+mins*60+sec) * time.Second, nil
}

func parseClock(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, ErrBadDuration
	}
	total := 0
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || (i > 0 && n > 59) {
			return 0, ErrBadDuration
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second, nil
}

// atoi reads an optional regexp group; a missing group is zero.
func atoi(s string) int {
	if s == "" {
		return 0
	}
	v, _ := strconv.Atoi(s)
	return v
}

func ShuffleSlice[T any](a []T) {
	rand.Shuffle(len(a), func(i, j int) { a[i], a[j] = a[j], a[i] })
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
