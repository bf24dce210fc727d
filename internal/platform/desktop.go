package platform

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Desktop entry errors.
var (
	// ErrNoDesktopEntry is returned when a file has no [Desktop Entry]
	// section or no Name in it.
	ErrNoDesktopEntry = errors.New("no desktop entry")

	// ErrInvalidFormat is returned for malformed desktop files.
	ErrInvalidFormat = errors.New("invalid desktop file")

	// ErrHidden is returned for entries marked NoDisplay.
	ErrHidden = errors.New("desktop entry is hidden")
)

const desktopSection = "Desktop Entry"

// DesktopEntry is the subset of a freedesktop.org desktop entry used to
// describe an application.
type DesktopEntry struct {
	Name     string
	Icon     string
	Keywords []string
}

// ParseDesktopEntry reads the [Desktop Entry] group of a desktop file.
// Localized keys are ignored. Entries with NoDisplay=true return ErrHidden.
func ParseDesktopEntry(r io.Reader) (DesktopEntry, error) {
	var (
		entry   DesktopEntry
		section string
		found   bool
		lineNo  int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				return DesktopEntry{}, fmt.Errorf("%w: line %d: unterminated group header", ErrInvalidFormat, lineNo)
			}
			section = line[1 : len(line)-1]
			if section == desktopSection {
				found = true
			}
			continue
		}
		if section != desktopSection {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return DesktopEntry{}, fmt.Errorf("%w: line %d: expected key=value", ErrInvalidFormat, lineNo)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		switch key {
		case "Name":
			entry.Name = value
		case "Icon":
			entry.Icon = value
		case "Keywords":
			entry.Keywords = splitList(value)
		case "NoDisplay":
			hidden, err := strconv.ParseBool(value)
			if err != nil {
				return DesktopEntry{}, fmt.Errorf("%w: line %d: NoDisplay=%q", ErrInvalidFormat, lineNo, value)
			}
			if hidden {
				return DesktopEntry{}, ErrHidden
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return DesktopEntry{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	if !found || entry.Name == "" {
		return DesktopEntry{}, ErrNoDesktopEntry
	}
	if entry.Keywords == nil {
		entry.Keywords = []string{}
	}
	return entry, nil
}

// splitList splits a ';' separated value, dropping the empty trailing item.
func splitList(value string) []string {
	out := []string{}
	for _, item := range strings.Split(value, ";") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
