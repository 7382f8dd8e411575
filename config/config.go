package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// InputMode selects how a candidate input is handed to the target process.
type InputMode string

const (
	InputArgv  InputMode = "argv"
	InputStdin InputMode = "stdin"
)

type AppConfig struct {
	TargetSrc   string    // path to the C source of the target
	TargetName  string    // binary name; defaults to the source base name
	InputMode   InputMode // argv or stdin
	Seeds       [][]byte  // initial seed inputs
	SeedDir     string    // optional directory of initial seed files
	WorkerCount int
	RunTimeout  time.Duration // wall-clock limit per execution
	MaxCases    uint64        // stop after this many fuzz cases (0 = unlimited)
	MaxDuration time.Duration // stop after this much fuzzing time (0 = unlimited)

	CorpusDir string // interesting inputs are persisted here
	CrashDir  string // crashing inputs are persisted here
	ImportDir string // seeds dropped here at runtime are imported
	WorkDir   string // per-run scratch directories live here

	MinInputLen  int
	MinMutations int
	MaxMutations int
	SeedSchedule string // "uniform" or "rare"
	NoveltyMode  string // "hash" or "set"
	RNGSeed      int64

	StatsInterval time.Duration
	LogLevel      string
	ServiceName   string
	DatabaseURL   string // optional findings database
	OtelEnabled   bool
}

func LoadConfig() *AppConfig {
	// use a temporary logger for now
	logger := zap.NewExample().Named("config")

	godotenv.Load()

	config := &AppConfig{
		TargetSrc:     os.Getenv("TARGET_SRC"),
		TargetName:    os.Getenv("TARGET_NAME"),
		InputMode:     InputMode(os.Getenv("INPUT_MODE")),
		SeedDir:       os.Getenv("SEED_DIR"),
		WorkerCount:   parseInt(os.Getenv("WORKER_COUNT"), 4),
		RunTimeout:    parseDuration(os.Getenv("RUN_TIMEOUT"), 5*time.Second),
		MaxCases:      parseUint64(os.Getenv("MAX_CASES"), 0),
		MaxDuration:   parseDuration(os.Getenv("MAX_DURATION"), 0),
		CorpusDir:     getenvDefault("CORPUS_DIR", "greyfuzz-out/corpus"),
		CrashDir:      getenvDefault("CRASH_DIR", "greyfuzz-out/crashes"),
		ImportDir:     getenvDefault("IMPORT_DIR", "greyfuzz-out/import"),
		WorkDir:       getenvDefault("WORK_DIR", os.TempDir()),
		MinInputLen:   parseInt(os.Getenv("MIN_INPUT_LEN"), 1),
		MinMutations:  parseInt(os.Getenv("MIN_MUTATIONS"), 1),
		MaxMutations:  parseInt(os.Getenv("MAX_MUTATIONS"), 10),
		SeedSchedule:  getenvDefault("SEED_SCHEDULE", "rare"),
		NoveltyMode:   getenvDefault("NOVELTY_MODE", "hash"),
		RNGSeed:       parseInt64(os.Getenv("RNG_SEED"), time.Now().UnixNano()),
		StatsInterval: parseDuration(os.Getenv("STATS_INTERVAL"), time.Second),
		LogLevel:      getenvDefault("LOG_LEVEL", "info"),
		ServiceName:   getenvDefault("SERVICE_NAME", "greyfuzz"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		OtelEnabled:   parseBool(os.Getenv("OTEL_ENABLED"), false),
	}

	for _, seed := range strings.Split(os.Getenv("SEEDS"), ",") {
		if seed != "" {
			config.Seeds = append(config.Seeds, []byte(seed))
		}
	}

	// A manifest file can fill in anything the environment left unset.
	if manifestPath := os.Getenv("TARGET_MANIFEST"); manifestPath != "" {
		if err := applyManifest(config, manifestPath); err != nil {
			logger.Fatal("failed to load target manifest",
				zap.String("path", manifestPath), zap.Error(err))
		}
	}

	if config.TargetSrc == "" {
		logger.Fatal("TARGET_SRC environment variable is required")
	}
	if config.TargetName == "" {
		base := config.TargetSrc[strings.LastIndex(config.TargetSrc, "/")+1:]
		config.TargetName = strings.TrimSuffix(base, ".c")
	}
	if config.InputMode == "" {
		config.InputMode = InputArgv
	}
	if config.InputMode != InputArgv && config.InputMode != InputStdin {
		logger.Fatal("INPUT_MODE must be argv or stdin",
			zap.String("input_mode", string(config.InputMode)))
	}
	if config.MinMutations < 1 {
		config.MinMutations = 1
	}
	if config.MaxMutations <= config.MinMutations {
		config.MaxMutations = config.MinMutations + 1
	}

	return config
}

func getenvDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseDuration(val string, defaultVal time.Duration) time.Duration {
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func parseInt(val string, defaultVal int) int {
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func parseInt64(val string, defaultVal int64) int64 {
	if val == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func parseUint64(val string, defaultVal uint64) uint64 {
	if val == "" {
		return defaultVal
	}
	u, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return defaultVal
	}
	return u
}

func parseBool(val string, defaultVal bool) bool {
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
