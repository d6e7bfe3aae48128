package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// DotEnvVar names the variable that points at an optional dotenv file.
const DotEnvVar = EnvPrefix + "ENV_FILE"

const defaultDotEnvPath = ".env"

// LoadDotEnv copies variables from a dotenv file into the process
// environment. Variables already set in the environment keep their value.
// A missing file is not an error; an empty path selects KOTH_ENV_FILE or ".env".
func LoadDotEnv(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(DotEnvVar))
	}
	if path == "" {
		path = defaultDotEnvPath
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load dotenv %s: %w", path, err)
	}
	return nil
}
