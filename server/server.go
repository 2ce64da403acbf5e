package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MusicPro/config"
	"MusicPro/core/auth"
	"MusicPro/core/library"
	"MusicPro/db"
	"MusicPro/logger"
	"MusicPro/repository"
	"MusicPro/session"
	"MusicPro/storage"

	"github.com/gorilla/mux"
)

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:      logger.InfoLevel,
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Blob storage. The fs backend doubles as the source of truth for
	// listing reconciliation, since files there can change out-of-band.
	var blobs storage.BlobStore
	reconcile := false
	switch cfg.BlobStore {
	case "minio":
		minioStore, err := storage.NewMinioStore(cfg)
		if err != nil {
			logger.Fatal("failed to initialize MinIO storage", logger.ErrorField(err))
		}
		blobs = minioStore
	default:
		fsStore, err := storage.NewFSStore(cfg.UploadDir)
		if err != nil {
			logger.Fatal("failed to initialize filesystem storage", logger.ErrorField(err))
		}
		blobs = fsStore
		reconcile = true
	}

	// The session strategy needs the relational user table even when the
	// metadata store itself is file-backed.
	needDB := cfg.MetadataStore == "mysql" || cfg.AuthStrategy == config.StrategySession
	dbReady := false
	if needDB {
		if err := db.ConnectDB(cfg); err != nil {
			// Keep serving static content and report per-request
			// unavailability instead of terminating.
			logger.Error("database unreachable, store operations will fail", logger.ErrorField(err))
		} else {
			defer db.DB.Close()
			if err := db.InitDB(); err != nil {
				logger.Error("database schema initialization failed", logger.ErrorField(err))
			} else {
				dbReady = true
			}
		}
	}

	var store repository.UploadStore
	switch cfg.MetadataStore {
	case "mysql":
		if dbReady {
			store = repository.NewMySQLUploadStore(db.DB)
		} else {
			store = repository.UnavailableStore{}
		}
	default:
		fileStore, err := repository.NewFileStore(cfg.MetadataFile)
		if err != nil {
			logger.Error("metadata file unreadable, store operations will fail", logger.ErrorField(err))
			store = repository.UnavailableStore{}
		} else {
			store = fileStore
		}
	}

	// Ownership strategy, chosen once here; handlers never branch on it.
	var authorizer auth.Authorizer = auth.TokenAuthorizer{}
	var sessions session.Store
	var userRepo repository.UserRepository

	if cfg.AuthStrategy == config.StrategySession {
		authorizer = auth.SessionAuthorizer{}
		if dbReady {
			userRepo = repository.NewMySQLUserRepository(db.DB)
		}

		switch cfg.SessionStore {
		case "redis":
			if err := db.ConnectRedis(cfg); err != nil {
				logger.Fatal("failed to connect to Redis", logger.ErrorField(err))
			}
			defer db.CloseRedis()
			sessions = session.NewRedisStore(db.RedisClient)
		default:
			memStore := session.NewMemoryStore()
			defer memStore.Close()
			sessions = memStore
		}
	}

	svc := library.NewService(store, blobs, authorizer, reconcile)
	apiHandler := NewAPIHandler(svc, userRepo, sessions, cfg)

	router := mux.NewRouter()
	router.Use(corsMiddleware)
	if cfg.AuthStrategy == config.StrategySession {
		router.Use(apiHandler.SessionMiddleware)
	}

	// Mutating endpoints require a session under the session strategy;
	// under the token strategy the upload response carries the delete
	// secret instead.
	protect := func(next http.HandlerFunc) http.HandlerFunc {
		if cfg.AuthStrategy == config.StrategySession {
			return apiHandler.RequireSession(next)
		}
		return next
	}

	router.HandleFunc("/api/upload", protect(apiHandler.UploadSongsHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/songs", apiHandler.ListSongsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/{filename}", apiHandler.DeleteSongHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/cover", protect(apiHandler.UploadCoverHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/lyrics", protect(apiHandler.UploadLyricsHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/lyrics/{filename}", apiHandler.GetLyricsHandler).Methods(http.MethodGet)

	if cfg.AuthStrategy == config.StrategySession {
		router.HandleFunc("/api/auth/register", apiHandler.RegisterHandler).Methods(http.MethodPost)
		router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)
		router.HandleFunc("/api/auth/logout", apiHandler.LogoutHandler).Methods(http.MethodPost)
		router.HandleFunc("/api/auth/me", apiHandler.MeHandler).Methods(http.MethodGet)
	} else {
		router.PathPrefix("/api/auth/").HandlerFunc(AuthDisabledHandler)
	}

	// Uploaded files are immutable once written, so far-future caching is safe.
	uploadsFileServer := http.FileServer(http.Dir(cfg.UploadDir))
	router.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/",
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Accept-Ranges", "bytes")
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			uploadsFileServer.ServeHTTP(w, r)
		})))

	// Frontend UI serving
	uiFileServer := http.FileServer(http.Dir(cfg.PublicDir))
	router.PathPrefix("/").Handler(uiFileServer)

	server.Handler = router

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting",
			logger.String("addr", cfg.HTTPAddr),
			logger.String("authStrategy", string(cfg.AuthStrategy)),
			logger.String("metadataStore", cfg.MetadataStore),
			logger.String("blobStore", cfg.BlobStore))

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("server stopped")
}
