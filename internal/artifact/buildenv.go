package artifact

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Keys recognized in the build.env snapshot.
const (
	envKeyChip  = "CHIP"
	envKeyBoard = "BOARD"
	envKeyDTB   = "DTB"
)

// ParseBuildEnv reads a KEY=VALUE environment snapshot. Blank lines and
// #-comments are skipped, values may be single- or double-quoted, and
// malformed lines are ignored rather than failing the whole file.
func ParseBuildEnv(path string) (map[string]string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	env := make(map[string]string)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}

		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)

		env[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return env, nil
}
