package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clipsync/cache"
	"clipsync/config"
	"clipsync/core/editor"
	"clipsync/core/waveform"
	"clipsync/logger"
	"clipsync/storage"

	"github.com/gorilla/mux"
)

// Start wires the service together and runs the HTTP server until a
// shutdown signal arrives.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})

	// The cache and clip store are optional: without Redis every waveform
	// is recomputed, without MinIO clips are not persisted. The editor
	// itself keeps working either way.
	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Warn("redis unavailable, waveform cache disabled", logger.ErrorField(err))
	}
	if err := storage.InitMinio(cfg); err != nil {
		logger.Warn("minio unavailable, clip storage disabled", logger.ErrorField(err))
	}

	sessions := editor.NewManager()
	extractor := waveform.NewExtractor(cfg.FFmpegPath)

	var watcher *waveform.Watcher
	if cfg.WatchDir != "" {
		w, err := waveform.NewWatcher(cfg.WatchDir, extractor)
		if err != nil {
			logger.Warn("media watcher disabled",
				logger.String("dir", cfg.WatchDir),
				logger.ErrorField(err))
		} else {
			watcher = w
			watcher.Start()
		}
	}

	api := NewAPIHandler(cfg, extractor, sessions)
	router := newRouter(api)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", logger.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", logger.ErrorField(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", logger.ErrorField(err))
	}

	sessions.CloseAll()
	if watcher != nil {
		watcher.Stop()
	}
	if err := cache.CloseRedis(); err != nil {
		logger.Warn("redis close failed", logger.ErrorField(err))
	}

	logger.Info("server stopped")
}

func newRouter(api *APIHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	r := router.PathPrefix("/api").Subrouter()
	r.HandleFunc("/sessions", api.CreateSessionHandler).Methods("POST", "OPTIONS")
	r.HandleFunc("/sessions/{session_id}", api.GetSessionHandler).Methods("GET", "OPTIONS")
	r.HandleFunc("/sessions/{session_id}", api.CloseSessionHandler).Methods("DELETE", "OPTIONS")
	r.HandleFunc("/sessions/{session_id}/video", api.UploadVideoHandler).Methods("POST", "OPTIONS")
	r.HandleFunc("/sessions/{session_id}/audio", api.UploadAudioHandler).Methods("POST", "OPTIONS")
	r.HandleFunc("/sessions/{session_id}/audio/{track_id}", api.RemoveAudioTrackHandler).Methods("DELETE", "OPTIONS")
	r.HandleFunc("/sessions/{session_id}/tracks/{track_id}/mute", api.MuteTrackHandler).Methods("POST", "OPTIONS")
	r.HandleFunc("/sessions/{session_id}/mute", api.MasterMuteHandler).Methods("POST", "OPTIONS")
	r.HandleFunc("/sessions/{session_id}/volume", api.VolumeHandler).Methods("POST", "OPTIONS")
	r.HandleFunc("/sessions/{session_id}/seek", api.SeekHandler).Methods("POST", "OPTIONS")
	r.HandleFunc("/sessions/{session_id}/timeline", api.TimelineHandler).Methods("GET", "OPTIONS")

	router.HandleFunc("/ws/sessions/{session_id}", api.SessionSocketHandler)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
