package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parley-irc/parley/internal/backup"
	"github.com/parley-irc/parley/internal/config"
	"github.com/parley-irc/parley/internal/log"
	"github.com/parley-irc/parley/internal/output"
	"github.com/parley-irc/parley/internal/state"
	"github.com/parley-irc/parley/internal/store"
	"github.com/parley-irc/parley/internal/types"
	"github.com/parley-irc/parley/internal/update"
)

// loadConfig resolves the config file, applies flag overrides and
// initializes logging to stderr.
func loadConfig(stderr io.Writer) (*config.Config, error) {
	cfg, path, err := config.Resolve(configPath)
	if err != nil {
		return nil, err
	}

	if channelFlag != "" {
		channel, err := types.ParseChannel(channelFlag)
		if err != nil {
			return nil, fmt.Errorf("--channel: %w", err)
		}
		cfg.Updater.Channel = channel
	}

	initLogging(cfg, stderr)
	if path != "" {
		log.Logger.Debug().Str("path", path).Msg("Using config")
	}
	return cfg, nil
}

func initLogging(cfg *config.Config, w io.Writer) {
	level := log.ParseLevel(cfg.Log.Level)
	if verbose {
		level = log.DebugLevel
	}
	if quiet {
		level = log.ErrorLevel
	}
	log.Init(log.Config{Level: level, JSONOutput: cfg.Log.JSON, Output: w})
}

// outputWriter returns a writer for the --output flag.
func outputWriter(w io.Writer) (*output.Writer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewWriter(w, format), nil
}

// runtime is the update subsystem wired up from one config.
type runtime struct {
	cfg      *config.Config
	manager  *update.Manager
	store    *store.BoltStore
	registry *state.FilesystemReader
	backups  *backup.Manager
}

// newRuntime opens the store, reads the plugin registry and registers the
// client, every enabled plugin, the checkers and the strategies. A client
// whose version does not parse is left out.
func newRuntime(cfg *config.Config, clientVersion string) (*runtime, error) {
	registry := state.NewFilesystemReader(cfg.Paths.PluginsDir)
	installed, err := registry.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin registry: %w", err)
	}

	db, err := store.NewBoltStore(cfg.Paths.StateDir)
	if err != nil {
		return nil, err
	}

	m := update.NewManager(
		update.WithPolicy(update.ConfigPolicy(cfg.Updater.Components)),
		update.WithStore(db),
	)

	backups := newBackupManager(cfg)

	if client := update.NewClientComponent(clientVersion, newClientReplacer()); client.Version().IsValid() {
		m.AddComponent(client)
	} else {
		log.Logger.Warn().Str("version", clientVersion).Msg("Client is not a release build; client updates are disabled")
	}
	for _, c := range update.PluginComponents(installed, registry, update.WithBackups(backups)) {
		m.AddComponent(c)
	}

	for _, c := range newCheckers(cfg) {
		m.AddChecker(c)
	}

	m.AddRetrievalStrategy(update.NewDownloadStrategy(cfg.Paths.DownloadDir, nil))
	m.AddInstallationStrategy(update.NewArchiveStrategy())
	m.AddInstallationStrategy(update.NewLegacyStrategy())

	return &runtime{cfg: cfg, manager: m, store: db, registry: registry, backups: backups}, nil
}

// newBackupManager returns the manager for plugin backups under the state directory.
func newBackupManager(cfg *config.Config) *backup.Manager {
	return backup.NewManager(filepath.Join(cfg.Paths.StateDir, "backups"), parleyVersion)
}

// channelNames lists the channel names accepted by --channel.
func channelNames() []string {
	var names []string
	for _, c := range types.AllChannels() {
		names = append(names, c.String())
	}
	return names
}

// Close waits for outstanding work and closes the store.
func (r *runtime) Close() error {
	r.manager.Wait()
	return r.store.Close()
}

// newCheckers returns the checkers for the configured sources, each
// following the configured channel.
func newCheckers(cfg *config.Config) []update.Checker {
	channel := cfg.Updater.Channel.String()

	nightly := update.NewNightlyChecker(cfg.Updater.NightlyURL)
	nightly.SetChannel(channel)

	service := update.NewServiceChecker(cfg.Updater.ServiceURL)
	service.SetChannel(channel)

	checkers := []update.Checker{nightly, service}

	if cfg.Updater.ReleaseOwner != "" && cfg.Updater.ReleaseRepo != "" {
		token := cfg.Updater.GitHubToken
		if token == "" {
			token = os.Getenv("GITHUB_TOKEN")
		}
		release := update.NewReleaseChecker(cfg.Updater.ReleaseOwner, cfg.Updater.ReleaseRepo).WithToken(token)
		release.SetChannel(channel)
		checkers = append(checkers, release)
	}

	return checkers
}

// newClientReplacer builds the replacer used for client installs. Tests
// swap it out.
var newClientReplacer = executableReplacer

// executableReplacer returns a replacer for the running executable, or nil
// when its path cannot be determined.
func executableReplacer() update.Replacer {
	exe, err := os.Executable()
	if err == nil {
		exe, err = filepath.EvalSymlinks(exe)
	}
	if err != nil {
		log.Logger.Warn().Err(err).Msg("Unable to locate the parley executable; client updates cannot be installed")
		return nil
	}
	return update.NewBinaryReplacer(exe)
}
