package storage

import (
	"fmt"
	"strings"

	"github.com/maauso/tubely-api/internal/token"
)

// videoKeyPrefix is the top-level prefix for processed video objects.
const videoKeyPrefix = "videos"

// VideoKey returns a new object key of the form
// videos/{namespace}/{token}.{ext}. The token is drawn from crypto/rand, so
// keys cannot be guessed or enumerated.
func VideoKey(namespace, ext string) (string, error) {
	if namespace == "" || strings.ContainsAny(namespace, `/\`) {
		return "", fmt.Errorf("%w: namespace %q", ErrInvalidName, namespace)
	}

	tok, err := token.Generate()
	if err != nil {
		return "", fmt.Errorf("generate key token: %w", err)
	}

	name := tok
	if ext = strings.TrimPrefix(ext, "."); ext != "" {
		name += "." + ext
	}

	return videoKeyPrefix + "/" + namespace + "/" + name, nil
}
