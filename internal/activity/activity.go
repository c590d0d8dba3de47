// Package activity turns user timestamps and weekly histograms into display values.
package activity

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dtroode/useradmin-console/internal/model"
)

var (
	dayLabels        = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	compactDayLabels = [7]string{"S", "M", "T", "W", "T", "F", "S"}
)

// Bar is one day of the weekly chart.
type Bar struct {
	Label       string
	Minutes     float64
	DisplayTime string
}

// WeeklyBars returns seven bars, Sunday first. Missing days are zero.
func WeeklyBars(p *model.ActivityPattern, compact bool) []Bar {
	labels := dayLabels
	if compact {
		labels = compactDayLabels
	}
	bars := make([]Bar, 0, 7)
	for i, label := range labels {
		minutes := p.Day(i).Minutes
		bars = append(bars, Bar{Label: label, Minutes: minutes, DisplayTime: FormatActivityTime(minutes)})
	}
	return bars
}

// FormatActivityTime renders minutes as "2h 5m" or "45m".
func FormatActivityTime(minutes float64) string {
	hours := int(math.Floor(minutes / 60))
	rest := int(math.Round(math.Mod(minutes, 60)))
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, rest)
	}
	return fmt.Sprintf("%dm", rest)
}

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders bars as block characters scaled to the busiest day.
func Sparkline(bars []Bar) string {
	peak := 0.0
	for _, b := range bars {
		peak = math.Max(peak, b.Minutes)
	}
	var sb strings.Builder
	for _, b := range bars {
		if peak == 0 || b.Minutes <= 0 {
			sb.WriteRune(' ')
			continue
		}
		idx := int(math.Ceil(b.Minutes/peak*float64(len(sparkLevels)))) - 1
		if idx < 0 {
			idx = 0
		}
		sb.WriteRune(sparkLevels[idx])
	}
	return sb.String()
}

// ParseTime parses a backend ISO-8601 timestamp; nil or invalid yields ok=false.
func ParseTime(s *string) (time.Time, bool) {
	if s == nil || *s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, *s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders an absolute timestamp, "N/A" when absent.
func FormatDate(s *string, loc *time.Location) string {
	t, ok := ParseTime(s)
	if !ok {
		return "N/A"
	}
	return t.In(loc).Format("Jan 2, 2006, 3:04 PM")
}

// FormatRelativeTime renders how long ago s was, relative to now.
func FormatRelativeTime(s *string, now time.Time, loc *time.Location) string {
	t, ok := ParseTime(s)
	if !ok {
		return "Never"
	}
	secs := int(now.Sub(t).Seconds())
	switch {
	case secs < 60:
		return "Just now"
	case secs < 3600:
		return fmt.Sprintf("%d minutes ago", secs/60)
	case secs < 86400:
		return fmt.Sprintf("%d hours ago", secs/3600)
	case secs < 604800:
		return fmt.Sprintf("%d days ago", secs/86400)
	}
	return FormatDate(s, loc)
}

// Presence is the coarse liveness of a user.
type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceAway    Presence = "away"
	PresenceOffline Presence = "offline"
)

// PresenceOf uses the last activity time, falling back to the last login time.
func PresenceOf(u model.User, now time.Time) Presence {
	ts := u.LastActivityTime
	if ts == nil || *ts == "" {
		ts = u.LastLoginTime
	}
	t, ok := ParseTime(ts)
	if !ok {
		return PresenceOffline
	}
	switch d := now.Sub(t); {
	case d < 5*time.Minute:
		return PresenceOnline
	case d < 30*time.Minute:
		return PresenceAway
	}
	return PresenceOffline
}
