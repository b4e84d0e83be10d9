// Package text parses playlist references and normalizes playlist names
// supplied by clients.
package text

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	playlistURIPrefix = "spotify:playlist:"
	playlistPathPart  = "playlist"
)

// ErrInvalidPlaylistRef means the reference is neither an id, a URI nor a playlist link.
var ErrInvalidPlaylistRef = errors.New("invalid playlist reference")

var (
	playlistIDRegex = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	whitespaceRegex = regexp.MustCompile(`\s+`)

	spotifyDomains = map[string]bool{
		"open.spotify.com": true,
		"spotify.com":      true,
		"www.spotify.com":  true,
	}
)

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// ParsePlaylistRef returns the playlist id named by a bare id, a
// spotify:playlist:<id> URI or an open.spotify.com/playlist/<id> link.
func (p *Parser) ParsePlaylistRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)

	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return p.playlistIDFromURL(ref)
	case strings.HasPrefix(ref, playlistURIPrefix):
		return p.checkID(strings.TrimPrefix(ref, playlistURIPrefix), ref)
	default:
		return p.checkID(ref, ref)
	}
}

func (p *Parser) playlistIDFromURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(rawURL, ".,!?;"))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPlaylistRef, err)
	}

	if !spotifyDomains[strings.ToLower(u.Hostname())] {
		return "", fmt.Errorf("%w: %s is not a Spotify link", ErrInvalidPlaylistRef, u.Hostname())
	}

	// Localized links carry a prefix such as /intl-de/playlist/<id>
	pathParts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, part := range pathParts {
		if part == playlistPathPart && i+1 < len(pathParts) {
			return p.checkID(pathParts[i+1], rawURL)
		}
	}

	return "", fmt.Errorf("%w: %s is not a playlist link", ErrInvalidPlaylistRef, rawURL)
}

func (p *Parser) checkID(id, ref string) (string, error) {
	if !playlistIDRegex.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlaylistRef, ref)
	}
	return id, nil
}

// NormalizeName applies NFKC and collapses runs of whitespace into single spaces.
func (p *Parser) NormalizeName(name string) string {
	name = norm.NFKC.String(name)
	name = whitespaceRegex.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}
