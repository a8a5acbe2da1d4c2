package config

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

var ErrMissingAPIKey = errors.New("no se encontró la API Key de Google (GOOGLE_API_KEY)")

// ResolveAPIKey returns the configured Gemini key. When none is configured
// and an interactive input is given, the user is asked for it once.
func (c *Config) ResolveAPIKey(in io.Reader, out io.Writer) (string, error) {
	if key := strings.TrimSpace(c.Gemini.APIKey); key != "" {
		return key, nil
	}

	if in == nil {
		return "", ErrMissingAPIKey
	}

	if out != nil {
		fmt.Fprint(out, "Ingresa tu Google API Key: ")
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.Wrap(err, "failed to read API key")
	}

	key := strings.TrimSpace(line)
	if key == "" {
		return "", ErrMissingAPIKey
	}

	c.Gemini.APIKey = key
	return key, nil
}
