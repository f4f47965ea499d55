package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/archivelab/bookhaven/internal/auth"
	"github.com/archivelab/bookhaven/internal/config"
	"github.com/archivelab/bookhaven/internal/database"
	"github.com/archivelab/bookhaven/internal/fetch"
	"github.com/archivelab/bookhaven/internal/library"
	"github.com/archivelab/bookhaven/internal/logging"
	"github.com/archivelab/bookhaven/internal/records"
	"github.com/archivelab/bookhaven/internal/server"
	"github.com/archivelab/bookhaven/internal/txlog"
	"github.com/archivelab/bookhaven/internal/usermeta"
	"github.com/archivelab/bookhaven/internal/users"
)

var (
	cfgFile         string
	startEmpty      bool
	initialDataPath string
	importCredsPath string
	exportCredsPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bookhaven-api",
		Short: "BookHaven record store backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("txlog-path", defaults.GetString("txlog.path"), "Transaction log path")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")
	cmd.PersistentFlags().String("fetch-base-url", defaults.GetString("fetch.base_url"), "Online book source base URL")
	cmd.PersistentFlags().BoolVar(&startEmpty, "start-empty", false, "Start with empty record storage, ignoring the transaction log")
	cmd.PersistentFlags().StringVar(&initialDataPath, "load-initial-data", "", "Bootstrap file of INSERT lines to preload record storage")
	cmd.PersistentFlags().StringVar(&importCredsPath, "import-credentials", "", "Credentials file (username|passwordHashHex|ROLE) to import at startup")
	cmd.PersistentFlags().StringVar(&exportCredsPath, "export-credentials", "", "Credentials file to write on shutdown")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "txlog.path", "txlog-path")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "fetch.base_url", "fetch-base-url")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	usersService, err := users.NewService(users.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	if err := usersService.EnsureDefaultAdmin(); err != nil {
		return err
	}
	if err := importAccounts(usersService, importCredsPath, logger); err != nil {
		return err
	}
	defer exportAccounts(usersService, exportCredsPath, logger)

	tokenIssuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "bookhaven-auth",
		Audience:      "bookhaven-api",
		TokenTTL:      appConfig.TokenTTL,
	})

	store := records.NewHashStore()
	meta := usermeta.NewStore()

	// Replay before the writer touches the path: NewWriter creates the
	// log file, which would mask the very first start.
	if err := primeStorage(store, appConfig, logger); err != nil {
		return err
	}

	writer, err := txlog.NewWriter(txlog.WriterConfig{
		Path:   appConfig.TxLogPath,
		Clock:  time.Now,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	libraryService, err := library.NewService(library.ServiceConfig{
		Store:  store,
		Meta:   meta,
		TxLog:  writer,
		Clock:  time.Now,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	fetchService, err := fetch.NewService(fetch.ServiceConfig{
		BaseURL:    appConfig.FetchBaseURL,
		HTTPClient: &http.Client{Timeout: appConfig.FetchTimeout},
		TxLog:      writer,
		Clock:      time.Now,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Users:   usersService,
		Tokens:  tokenIssuer,
		Library: libraryService,
		Fetch:   fetchService,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// importAccounts merges a credentials file into the account store before
// the server starts taking requests.
func importAccounts(service *users.Service, path string, logger *zap.Logger) error {
	if path == "" {
		return nil
	}
	imported, err := service.ImportCredentialsFile(path)
	if err != nil {
		return err
	}
	logger.Info("credentials imported",
		zap.Int("accounts", imported),
		zap.String("path", path))
	return nil
}

// exportAccounts writes the account store back out as a credentials file.
// Export runs at shutdown; failing it must not turn a clean stop into an
// error, so it only warns.
func exportAccounts(service *users.Service, path string, logger *zap.Logger) {
	if path == "" {
		return
	}
	if err := service.ExportCredentialsFile(path); err != nil {
		logger.Warn("credentials export failed",
			zap.String("path", path),
			zap.Error(err))
		return
	}
	logger.Info("credentials exported", zap.String("path", path))
}

// primeStorage fills record storage before the server starts taking
// requests: replay the transaction log unless --start-empty was given,
// then apply the optional bootstrap file on top.
func primeStorage(store records.Store, appConfig config.AppConfig, logger *zap.Logger) error {
	if startEmpty {
		logger.Info("starting with empty record storage")
	} else {
		rebuilder, err := txlog.NewRebuilder(txlog.RebuilderConfig{
			Path:   appConfig.TxLogPath,
			Clock:  time.Now,
			Logger: logger,
		})
		if err != nil {
			return err
		}
		result, err := rebuilder.Rebuild(store)
		switch {
		case errors.Is(err, txlog.ErrLogNotFound):
			logger.Info("no transaction log yet, starting fresh",
				zap.String("path", appConfig.TxLogPath))
		case err != nil:
			return err
		default:
			logger.Info("record storage restored from transaction log",
				zap.Int("records", store.Size()),
				zap.String("tally", result.String()))
		}
	}

	bootstrapPath := initialDataPath
	if bootstrapPath == "" {
		bootstrapPath = appConfig.BootstrapPath
	}
	if bootstrapPath == "" {
		return nil
	}
	loader := txlog.NewLoader(txlog.LoaderConfig{Clock: time.Now, Logger: logger})
	loaded, err := loader.Load(store, bootstrapPath)
	if err != nil {
		return err
	}
	logger.Info("bootstrap records loaded",
		zap.Int("records", loaded),
		zap.String("path", bootstrapPath))
	return nil
}
