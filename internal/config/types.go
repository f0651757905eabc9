package config

// Config is the top-level structure of a run configuration file
type Config struct {
	Run      RunConfig      `yaml:"run"`
	Log      LogConfig      `yaml:"log"`
	API      APIConfig      `yaml:"api"`
	Datasets DatasetsConfig `yaml:"datasets"`
	Services []UnitConfig   `yaml:"services"`
	Plugins  []UnitConfig   `yaml:"plugins"`

	// BaseDir is the directory of the configuration file. Relative paths are resolved against it.
	BaseDir string `yaml:"-"`
}

// RunConfig controls the worker pool
type RunConfig struct {
	Threads       int     `yaml:"threads"`
	LoadFraction  float64 `yaml:"load_fraction"`
	FailurePolicy string  `yaml:"failure_policy"`
}

// LogConfig controls the structured logger
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// APIConfig controls the HTTP status API
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// DatasetsConfig selects the datasets to process
type DatasetsConfig struct {
	Database string          `yaml:"database"`
	IDs      []string        `yaml:"ids"`
	Inline   []DatasetConfig `yaml:"inline"`
}

// DatasetConfig describes one dataset, either inline or as an entry of the dataset database
type DatasetConfig struct {
	ID              string            `yaml:"id" json:"datasetId"`
	IsData          bool              `yaml:"is_data" json:"isData"`
	Files           []string          `yaml:"files" json:"files"`
	CrossSection    float64           `yaml:"cross_section" json:"crossSection"`
	EventsProcessed uint64            `yaml:"events_processed" json:"eventsProcessed"`
	MeanWeight      float64           `yaml:"mean_weight" json:"meanWeight"`
	Process         []string          `yaml:"process" json:"process"`
	Generator       string            `yaml:"generator" json:"generator"`
	Flags           []string          `yaml:"flags" json:"flags"`
	Checksums       map[string]string `yaml:"checksums" json:"checksums"`
}

// UnitConfig declares a plugin or a service
type UnitConfig struct {
	Name      string                 `yaml:"name"`
	Type      string                 `yaml:"type"`
	DependsOn []string               `yaml:"depends_on"`
	Options   map[string]interface{} `yaml:"options"`
}
