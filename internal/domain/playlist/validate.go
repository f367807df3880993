package playlist

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// ValidationError lists every problem found in a record.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid record: " + strings.Join(e.Problems, "; ")
}

// Validate reports structural problems that would break the page.
// An empty playlist or photo list is valid.
func (r *Record) Validate() error {
	var problems []string

	for _, id := range lo.FindDuplicates(lo.Map(r.Playlist, func(t Track, _ int) ID { return t.ID })) {
		problems = append(problems, fmt.Sprintf("duplicate track id %q", id))
	}

	missing := lo.Filter(r.Playlist, func(t Track, _ int) bool {
		return strings.TrimSpace(t.ExternalMediaID) == ""
	})
	for _, t := range missing {
		problems = append(problems, fmt.Sprintf("track %q has no youtubeId", t.ID))
	}

	for i, p := range r.Photos {
		if strings.TrimSpace(p.URL) == "" {
			problems = append(problems, fmt.Sprintf("photo %d has no url", i))
		}
	}

	if it := r.Settings.InitialTrack; it != nil && (*it < 0 || *it >= len(r.Playlist)) {
		problems = append(problems, fmt.Sprintf("initialTrack %d out of range [0,%d)", *it, len(r.Playlist)))
	}

	if r.Settings.AutoSlideInterval < 0 {
		problems = append(problems, "autoSlideInterval must not be negative")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
