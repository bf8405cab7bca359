package config

const (
	defaultCatalogBaseURL  = "http://www.youtube.com"
	defaultWorkers         = 2
	defaultMaxRetries      = 3
	defaultInitialBackoff  = 500
	defaultMaxBackoff      = 3000
	defaultShrinkTolerance = 4
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			TempDir:   ".",
			OutputDir: ".",
		},
		Catalog: Catalog{
			BaseURL: defaultCatalogBaseURL,
		},
		Download: Download{
			Workers:            defaultWorkers,
			MaxRetries:         defaultMaxRetries,
			InitialBackoffMS:   defaultInitialBackoff,
			MaxBackoffMS:       defaultMaxBackoff,
			ShrinkToleranceMiB: defaultShrinkTolerance,
		},
		Subtitles: Subtitles{
			FilterSpam: true,
		},
		Output: Output{
			MKV: true,
		},
	}
}
