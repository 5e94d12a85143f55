package engine

import (
	"fmt"
	"regexp"

	"calwatch/internal/models"
)

// Filter decides whether an incoming event takes part in a pass. Events it
// rejects are treated as absent from the feed, so a stored event that stops
// matching is deleted.
type Filter func(*models.Event) bool

// NameFilter returns a Filter accepting events whose name matches pattern at
// its start. An empty pattern returns a nil Filter, which accepts everything.
func NameFilter(pattern string) (Filter, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return nil, fmt.Errorf("invalid filter pattern %q: %w", pattern, err)
	}
	return func(e *models.Event) bool {
		return re.MatchString(e.Name)
	}, nil
}
