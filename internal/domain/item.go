package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCoordinates is returned when a coordinate string is not "lat,lng".
var ErrInvalidCoordinates = errors.New("coordinates must be \"lat,lng\"")

// Item represents a catalogued physical object owned by a single user.
type Item struct {
	ID          string
	Name        string
	Description string
	Image       string
	Coordinates string
	UserID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OwnedBy reports whether userID is the stored owner of the item.
func (i *Item) OwnedBy(userID string) bool {
	return i != nil && userID != "" && i.UserID == userID
}

// NormalizeCoordinates validates a "lat,lng" pair and returns it in canonical form.
// An empty (or blank) input is valid and yields "".
func NormalizeCoordinates(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return "", ErrInvalidCoordinates
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return "", fmt.Errorf("%w: bad latitude", ErrInvalidCoordinates)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return "", fmt.Errorf("%w: bad longitude", ErrInvalidCoordinates)
	}
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return "", fmt.Errorf("%w: not a number", ErrInvalidCoordinates)
	}
	if lat < -90 || lat > 90 {
		return "", fmt.Errorf("%w: latitude out of range", ErrInvalidCoordinates)
	}
	if lng < -180 || lng > 180 {
		return "", fmt.Errorf("%w: longitude out of range", ErrInvalidCoordinates)
	}

	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64), nil
}
