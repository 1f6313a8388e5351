package ratelimit

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Window permits Limit events per Interval.
type Window struct {
	Limit    int
	Interval time.Duration
}

func PerSecond(limit int) Window { return Window{Limit: limit, Interval: time.Second} }
func PerMinute(limit int) Window { return Window{Limit: limit, Interval: time.Minute} }
func PerHour(limit int) Window   { return Window{Limit: limit, Interval: time.Hour} }
func PerDay(limit int) Window    { return Window{Limit: limit, Interval: 24 * time.Hour} }

var intervalNames = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

// String formats the window as "<limit>/<unit>" when the interval is a
// named unit and "<limit>/<duration>" otherwise.
func (w Window) String() string {
	for name, d := range intervalNames {
		if w.Interval == d {
			return fmt.Sprintf("%d/%s", w.Limit, name)
		}
	}
	return fmt.Sprintf("%d/%s", w.Limit, w.Interval)
}

// Validate checks that the window can be enforced.
func (w Window) Validate() error {
	if w.Limit <= 0 {
		return fmt.Errorf("window %s: limit must be positive", w)
	}
	if w.Interval < time.Second {
		return fmt.Errorf("window %s: interval must be at least one second", w)
	}
	return nil
}

// ParseWindow parses "10/hour" or "5/90s" into a Window.
func ParseWindow(s string) (Window, error) {
	limitPart, intervalPart, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Window{}, fmt.Errorf("invalid rate window %q: expected <limit>/<interval>", s)
	}

	limit, err := strconv.Atoi(strings.TrimSpace(limitPart))
	if err != nil {
		return Window{}, fmt.Errorf("invalid rate window %q: limit must be an integer", s)
	}

	intervalPart = strings.ToLower(strings.TrimSpace(intervalPart))
	interval, named := intervalNames[intervalPart]
	if !named {
		interval, err = time.ParseDuration(intervalPart)
		if err != nil {
			return Window{}, fmt.Errorf("invalid rate window %q: unknown interval %q", s, intervalPart)
		}
	}

	w := Window{Limit: limit, Interval: interval}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// ParseWindows parses a comma separated list of windows. An empty string
// yields no windows.
func ParseWindows(s string) ([]Window, error) {
	var windows []Window
	for _, item := range strings.Split(s, ",") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		w, err := ParseWindow(item)
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, nil
}

// sortWindows returns a copy sorted by ascending interval, keeping the
// given order for equal intervals.
func sortWindows(windows []Window) []Window {
	sorted := slices.Clone(windows)
	slices.SortStableFunc(sorted, func(a, b Window) int {
		return cmp.Compare(a.Interval, b.Interval)
	})
	return sorted
}
