package warroom

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"warroom/internal/geo"
	"warroom/internal/geocode"
	"warroom/internal/naming"
)

var coordinatePair = regexp.MustCompile(`^\s*([-+]?\d+(?:\.\d+)?)\s*,\s*([-+]?\d+(?:\.\d+)?)\s*$`)

// ParseLocationInput turns free text into coordinates. A "<lat>, <lng>" pair
// is range-checked and returned without a lookup. Anything else goes to the
// geocoder, first as a whole and then, for "place, region" text, as the place
// disambiguated by the region hint.
func (s *Store) ParseLocationInput(ctx context.Context, text string) (geo.LatLng, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return geo.InvalidLatLng(), fmt.Errorf("%w: location text is empty", ErrInvalidInput)
	}

	if m := coordinatePair.FindStringSubmatch(text); m != nil {
		lat, _ := strconv.ParseFloat(m[1], 64)
		lng, _ := strconv.ParseFloat(m[2], 64)
		if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			return geo.InvalidLatLng(), fmt.Errorf("%w: latitude must be within -90..90 and longitude within -180..180, got (%v, %v)", ErrCoordinateRange, lat, lng)
		}
		return geo.LatLng{Latitude: lat, Longitude: lng}, nil
	}

	if s.geocoder == nil {
		return geo.InvalidLatLng(), fmt.Errorf("%w: no geocoder configured", ErrLocationNotFound)
	}

	results, err := s.geocoder.Search(ctx, text)
	if err == nil {
		if r, ok := firstUsable(results); ok {
			return r, nil
		}
	}
	lastErr := err

	if idx := strings.Index(text, ","); idx > 0 {
		primary := strings.TrimSpace(text[:idx])
		hint := text[idx+1:]
		if primary != "" {
			results, err := s.geocoder.Search(ctx, primary)
			if err == nil {
				if r, ok := pickByHint(results, naming.HintTokens(hint)); ok {
					return r, nil
				}
			}
			lastErr = errors.Join(lastErr, err)
		}
	}

	if lastErr != nil {
		s.log.Debug().Err(lastErr).Str("text", text).Msg("geocoding failed")
		return geo.InvalidLatLng(), fmt.Errorf("%w: %q: %v", ErrLocationNotFound, text, lastErr)
	}
	return geo.InvalidLatLng(), fmt.Errorf("%w: %q", ErrLocationNotFound, text)
}

func resultLatLng(r geocode.Result) geo.LatLng {
	return geo.LatLng{Latitude: r.Latitude, Longitude: r.Longitude}
}

func firstUsable(results []geocode.Result) (geo.LatLng, bool) {
	for _, r := range results {
		if ll := resultLatLng(r); ll.Valid() {
			return ll, true
		}
	}
	return geo.InvalidLatLng(), false
}

// pickByHint returns the first candidate whose admin region or country
// matches a hint token, falling back to the top usable result.
func pickByHint(results []geocode.Result, tokens []string) (geo.LatLng, bool) {
	for _, r := range results {
		if ll := resultLatLng(r); ll.Valid() && naming.MatchesHint(tokens, r.Admin1, r.Country) {
			return ll, true
		}
	}
	return firstUsable(results)
}
