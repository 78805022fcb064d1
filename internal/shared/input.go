package shared

import (
	"fmt"
	"strings"
)

var (
	supportedHosts   = []string{"spotify.com", "youtube.com", "youtu.be", "bandcamp.com", "musicbrainz.org"}
	supportedAliases = []string{"spotify-likes", "spotify-albums"}
)

const soulseekScheme = "slsk://"

// UnsupportedInputMessage is shown to the user when [ValidateInput] rejects an input.
const UnsupportedInputMessage = "Unsupported input. Use a Spotify, YouTube, Bandcamp or MusicBrainz URL"

// ValidateInput trims input and checks it names a source the downloader understands:
// a Spotify, YouTube, Bandcamp or MusicBrainz URL, one of the spotify-likes/spotify-albums
// aliases, or a slsk:// link.
func ValidateInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("%w: input is empty", ErrInvalidInput)
	}

	if strings.HasPrefix(input, soulseekScheme) {
		return input, nil
	}

	for _, alias := range supportedAliases {
		if input == alias {
			return input, nil
		}
	}

	lower := strings.ToLower(input)
	for _, host := range supportedHosts {
		if strings.Contains(lower, host) {
			return input, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrUnsupportedInput, input)
}
