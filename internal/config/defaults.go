package config

import (
	"os"
	"path/filepath"
)

// Default returns the baseline configuration before any file overrides.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir:  defaultCacheDir(),
			OutputDir: defaultOutputDir(),
			LogDir:    defaultLogDir(),
		},
		Tools: Tools{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
		},
		Textures: Textures{
			FlatAliases: true,
		},
		Geometry: Geometry{
			Mode: "all",
		},
		Audio: Audio{
			Mode:      "all",
			DecodeVAG: true,
		},
		Movies: Movies{
			Mode:      "copy",
			Overwrite: true,
		},
		Logging: Logging{
			Format: "auto",
			Level:  "info",
		},
	}
}

func defaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/psprip-output"
	}
	return filepath.Join(home, "psprip-output")
}

func defaultLogDir() string {
	if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && base != "" {
		return filepath.Join(base, "psprip", "logs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.local/state/psprip/logs"
	}
	return filepath.Join(home, ".local", "state", "psprip", "logs")
}
