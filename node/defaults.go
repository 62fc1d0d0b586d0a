package node

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultDataDir is the default data directory to use for the
// databases and other persistence requirements.
func DefaultDataDir() string {
	home := homeDir()
	if home == "" {
		// As we cannot guess a stable location, return empty and handle later.
		return ""
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Cuprated")
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "Cuprated")
	default:
		return filepath.Join(home, "."+strings.ToLower("cuprated"))
	}
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}
