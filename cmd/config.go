package cmd

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kpatel513/lyra/internal/domain"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "lyra"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	repoFlagName        = "repo"
	forceFlagName       = "force"
	interactiveFlagName = "interactive"
	scriptFlagName      = "script"
	runsRootFlagName    = "runs-root"
	maxStepsFlagName    = "max-steps"
	applyFlagName       = "apply"
	planFlagName        = "plan"
	promptFlagName      = "prompt"
	noSaveFlagName      = "no-save"
	verboseFlagName     = "verbose"
	logFileFlagName     = "log-file"

	repoConfigKey         = "repo"
	scanParallelConfigKey = "scan.parallel"
	backupMaxBytesKey     = "backup.max_bytes"
	agentBinaryKey        = "agent.binary"
	agentTimeoutKey       = "agent.timeout"
	sandboxMaxStepsKey    = "sandbox.max_steps"

	defaultRepo           = "."
	defaultScanParallel   = 4
	defaultAgentBinary    = "claude"
	defaultAgentTimeout   = 30 * time.Minute
	defaultMaxBackupBytes = domain.DefaultMaxBackupBytes

	envPrefix = "LYRA"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".lyra.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(repoConfigKey, defaultRepo)
	viper.SetDefault(scanParallelConfigKey, defaultScanParallel)
	viper.SetDefault(backupMaxBytesKey, int64(defaultMaxBackupBytes))
	viper.SetDefault(agentBinaryKey, defaultAgentBinary)
	viper.SetDefault(agentTimeoutKey, defaultAgentTimeout.String())
	viper.SetDefault(sandboxMaxStepsKey, domain.DefaultGuardMaxSteps)

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}

// agentTimeout parses the configured agent timeout, falling back to the
// default on malformed values.
func agentTimeout() time.Duration {
	d, err := time.ParseDuration(viper.GetString(agentTimeoutKey))
	if err != nil || d < 0 {
		return defaultAgentTimeout
	}

	return d
}
