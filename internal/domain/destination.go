package domain

import (
	"fmt"
	"strings"
)

// Destination identifies a surface that holds its own selected wallpaper.
type Destination string

const (
	DestinationHome Destination = "home"
	DestinationLock Destination = "lock"
	DestinationAll  Destination = "all" // home and lock together
)

// Destinations returns the concrete surfaces. DestinationAll is a selector, not a surface.
func Destinations() []Destination {
	return []Destination{DestinationHome, DestinationLock}
}

// ParseDestination converts a case-insensitive name into a Destination.
func ParseDestination(s string) (Destination, error) {
	switch Destination(strings.ToLower(strings.TrimSpace(s))) {
	case DestinationHome:
		return DestinationHome, nil
	case DestinationLock:
		return DestinationLock, nil
	case DestinationAll:
		return DestinationAll, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDestination, s)
	}
}

// Expand returns the concrete surfaces a destination applies to.
func (d Destination) Expand() []Destination {
	if d == DestinationAll {
		return Destinations()
	}
	return []Destination{d}
}

func (d Destination) String() string {
	return string(d)
}
