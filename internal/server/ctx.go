package server

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/radiance/internal/config"
	"github.com/woozymasta/radiance/internal/geo"
	"github.com/woozymasta/radiance/internal/processor"
)

// Municipality is the public description of one boundary.
type Municipality struct {
	geo.Summary

	Slug string `json:"slug"`
}

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config         *config.Config
	Municipalities []Municipality
	Reference      geo.Point

	// NameResolver maps slugs and normalized names to boundary names.
	NameResolver map[string]string
}

// NewServerContext summarizes the boundaries and sets up the name resolver.
func NewServerContext(cfg *config.Config, boundaries []geo.Municipality) *ServerContext {
	log.Info().Int("boundaries_count", len(boundaries)).Msg("Initializing server context")

	ref, summaries := geo.Summarize(boundaries)

	resolver := make(map[string]string, len(summaries)*2)
	list := make([]Municipality, 0, len(summaries))
	for _, s := range summaries {
		slug := processor.Slug(s.Name)
		resolver[slug] = s.Name
		resolver[geo.NormalizeName(s.Name)] = s.Name

		log.Trace().
			Str("municipality", s.Name).
			Str("quadrant", s.Quadrant).
			Msg("Municipality added to context")

		list = append(list, Municipality{Summary: s, Slug: slug})
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Slug < list[j].Slug
	})

	log.Info().
		Int("municipalities_count", len(list)).
		Msg("Server context initialized successfully")

	return &ServerContext{
		Config:         cfg,
		Municipalities: list,
		Reference:      ref,
		NameResolver:   resolver,
	}
}

// resolve returns the boundary name for a slug or free-form name.
func (s *ServerContext) resolve(name string) (string, bool) {
	if real, ok := s.NameResolver[name]; ok {
		return real, true
	}
	real, ok := s.NameResolver[geo.NormalizeName(name)]
	return real, ok
}
