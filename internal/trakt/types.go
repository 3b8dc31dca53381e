package trakt

import (
	"time"

	"golang.org/x/text/language"
)

// IDs represents the various IDs associated with a movie, show,
// episode, actor/actress, etc.
type IDs struct {
	Trakt int     `json:"trakt"`
	Slug  *string `json:"slug,omitempty"`
	IMDB  *string `json:"imdb,omitempty"`
	TMDB  *int    `json:"tmdb,omitempty"`
	TVDB  *int    `json:"tvdb,omitempty"`
}

// Episode represents a TV episode in the Trakt API.
// The fields after IDs are only returned with ?extended=full.
type Episode struct {
	Season int    `json:"season"`
	Number int    `json:"number"`
	Title  string `json:"title"`
	IDs    IDs    `json:"ids"`

	Overview              string     `json:"overview,omitempty"`
	FirstAired            *time.Time `json:"first_aired,omitempty"`
	Rating                float64    `json:"rating,omitempty"`
	Votes                 int        `json:"votes,omitempty"`
	CommentCount          int        `json:"comment_count,omitempty"`
	AvailableTranslations []string   `json:"available_translations,omitempty"`
	// Runtime is in minutes
	Runtime int `json:"runtime,omitempty"`
}

// Translations returns the languages the episode is translated into.
// Invalid language codes are skipped.
func (e *Episode) Translations() []language.Tag {
	tags := make([]language.Tag, 0, len(e.AvailableTranslations))
	for _, t := range e.AvailableTranslations {
		tag, err := language.Parse(t)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}
