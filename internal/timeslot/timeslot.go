// Package timeslot turns the human-readable time-slot labels used by bookings
// into minute-of-day windows and answers expiry questions about them.
//
// Regular labels look like "9:00 AM-11:00 AM". Only the start half is
// authoritative: every regular window lasts exactly SlotDuration minutes and
// the end half of the label is display text. "Whole Day" is a fixed window
// from 06:00 to 22:00.
//
// All comparisons are minute-of-day only. A booking is never compared against
// a calendar date, so a window that ended yesterday looks the same as one that
// ends later today.
package timeslot

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	WholeDay      = "Whole Day"
	WholeDayStart = 6 * 60
	WholeDayEnd   = 22 * 60
	SlotDuration  = 120
	MinutesPerDay = 24 * 60

	// ExpiredText is what Remaining reports once a window has ended.
	ExpiredText = "Expired"
)

var (
	ErrEmptyLabel      = errors.New("time slot is empty")
	ErrInvalidLabel    = errors.New("time slot must look like 'H:MM AM-H:MM PM' or 'Whole Day'")
	ErrCrossesMidnight = errors.New("time slot would end after midnight")
)

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*([AaPp][Mm])$`)

// Window is a half-open [Start, End) interval in minutes since midnight.
type Window struct {
	Start int
	End   int
}

func (w Window) Duration() int {
	return w.End - w.Start
}

// Contains reports whether minute falls inside the window.
func (w Window) Contains(minute int) bool {
	return minute >= w.Start && minute < w.End
}

// ExpiredAt reports whether the window has ended at the given minute of day.
func (w Window) ExpiredAt(minute int) bool {
	return minute >= w.End
}

// RemainingAt formats the time left until End, or ExpiredText.
func (w Window) RemainingAt(minute int) string {
	left := w.End - minute
	if left <= 0 {
		return ExpiredText
	}
	return fmt.Sprintf("%dh %dm", left/60, left%60)
}

// Parse maps a label to its window.
func Parse(label string) (Window, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Window{}, ErrEmptyLabel
	}
	if strings.EqualFold(label, WholeDay) {
		return Window{Start: WholeDayStart, End: WholeDayEnd}, nil
	}

	startText, _, found := strings.Cut(label, "-")
	if !found {
		return Window{}, ErrInvalidLabel
	}
	start, err := parseClock(strings.TrimSpace(startText))
	if err != nil {
		return Window{}, err
	}

	w := Window{Start: start, End: start + SlotDuration}
	// A window ending at or after midnight would never satisfy the
	// minute-of-day expiry check.
	if w.End >= MinutesPerDay {
		return Window{}, ErrCrossesMidnight
	}
	return w, nil
}

// Canonical rewrites a label to the form stored on bookings, so that every
// spelling of the same window ("9:00 am - 10:00 AM", "9:00 AM-11:00 AM")
// collides on the same stored value.
func Canonical(label string) (string, error) {
	w, err := Parse(label)
	if err != nil {
		return "", err
	}
	if w.Start == WholeDayStart && w.End == WholeDayEnd && strings.EqualFold(strings.TrimSpace(label), WholeDay) {
		return WholeDay, nil
	}
	return Label(w.Start), nil
}

// Valid reports whether label parses.
func Valid(label string) bool {
	_, err := Parse(label)
	return err == nil
}

// parseClock converts "H:MM AM|PM" to minutes since midnight. 12 AM is hour 0,
// 12 PM stays 12, other PM hours add 12.
func parseClock(s string) (int, error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, ErrInvalidLabel
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	if hours < 1 || hours > 12 || minutes > 59 {
		return 0, ErrInvalidLabel
	}

	isPM := strings.EqualFold(m[3], "PM")
	switch {
	case isPM && hours != 12:
		hours += 12
	case !isPM && hours == 12:
		hours = 0
	}
	return hours*60 + minutes, nil
}

// MinuteOfDay returns the minutes elapsed since midnight in t's location.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func IsExpired(label string, now time.Time) (bool, error) {
	w, err := Parse(label)
	if err != nil {
		return false, err
	}
	return w.ExpiredAt(MinuteOfDay(now)), nil
}

func Remaining(label string, now time.Time) (string, error) {
	w, err := Parse(label)
	if err != nil {
		return "", err
	}
	return w.RemainingAt(MinuteOfDay(now)), nil
}

// FormatClock renders a minute of day as "H:MM AM|PM".
func FormatClock(minute int) string {
	minute = ((minute % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	h, m := minute/60, minute%60
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	switch {
	case h == 0:
		h = 12
	case h > 12:
		h -= 12
	}
	return fmt.Sprintf("%d:%02d %s", h, m, suffix)
}

// Label builds the canonical label for a regular window starting at minute.
func Label(start int) string {
	return FormatClock(start) + "-" + FormatClock(start+SlotDuration)
}

// Options lists the labels offered to clients: back-to-back two-hour windows
// covering the Whole Day range, followed by Whole Day itself.
func Options() []string {
	var out []string
	for start := WholeDayStart; start+SlotDuration <= WholeDayEnd; start += SlotDuration {
		out = append(out, Label(start))
	}
	return append(out, WholeDay)
}
