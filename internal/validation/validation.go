package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// ErrLocationEmpty is returned when location is empty or whitespace-only after trim.
var ErrLocationEmpty = errors.New("location is required")

// ErrLocationTooLong is returned when location length exceeds the maximum.
var ErrLocationTooLong = errors.New("location too long")

// ErrLocationInvalidChars is returned when location contains disallowed characters.
var ErrLocationInvalidChars = errors.New("location contains invalid characters")

// ErrInvalidCoordinates is returned for non-finite or out-of-range coordinates.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// MaxLocationLength bounds geocoding queries, in runes.
const MaxLocationLength = 100

// ValidateLocation trims the input, enforces the length bound (in runes),
// and restricts to letters (Unicode), digits, space, comma, hyphen, period and apostrophe.
// Returns the trimmed string.
func ValidateLocation(input string) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrLocationEmpty
	}
	if len(r) > MaxLocationLength {
		return "", ErrLocationTooLong
	}
	for _, c := range r {
		if !isAllowedLocationRune(c) {
			return "", ErrLocationInvalidChars
		}
	}
	return s, nil
}

func isAllowedLocationRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}

// ValidateCoordinates checks that both components are finite and inside
// [-90, 90] and [-180, 180].
func ValidateCoordinates(c models.Coordinates) error {
	if !c.IsFinite() {
		return fmt.Errorf("%w: lat and lon must be finite", ErrInvalidCoordinates)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: lat %g out of range [-90, 90]", ErrInvalidCoordinates, c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: lon %g out of range [-180, 180]", ErrInvalidCoordinates, c.Lon)
	}
	return nil
}

// ParseCoordinates parses lat/lon query values and validates the result.
func ParseCoordinates(lat, lon string) (models.Coordinates, error) {
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: lat %q is not a number", ErrInvalidCoordinates, lat)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: lon %q is not a number", ErrInvalidCoordinates, lon)
	}
	c := models.Coordinates{Lat: la, Lon: lo}
	if err := ValidateCoordinates(c); err != nil {
		return models.Coordinates{}, err
	}
	return c, nil
}
