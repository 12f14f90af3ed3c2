// Command sample demonstrates the github.com/bjaus/mpart library with a
// small multipart upload server.
//
// Run:
//
//	go run ./cmd/sample
//
// Then upload:
//
//	curl -F title="hello" -F file=@somefile http://localhost:8080/upload
//
// Text fields are size-limited and kept in memory; file parts stream
// through the adaptive buffer, spilling to the spool directory once they
// cross the memory threshold. Spill files are removed when the request
// finishes.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/bjaus/mpart"
)

func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	spoolDir := flag.String("spool", "", "Spill directory (default: OS temp dir)")
	maxValue := flag.Int64("max-value", 64<<10, "Max text field size in bytes")
	maxFile := flag.Int64("max-file", 32<<20, "Max file part size in bytes")
	memLimit := flag.Int("mem", 1<<20, "In-memory threshold before spilling to disk")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	srv := &uploadServer{
		storage:  mpart.DirStorage{Dir: *spoolDir},
		maxValue: *maxValue,
		maxFile:  *maxFile,
		memLimit: *memLimit,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", srv.handleUpload)

	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("starting server", "addr", *addr)

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "err", err)
	}

	slog.Info("server stopped")
}

type uploadServer struct {
	storage  mpart.Storage
	maxValue int64
	maxFile  int64
	memLimit int
}

func (s *uploadServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "expected multipart/form-data", http.StatusBadRequest)
		return
	}

	form, err := mpart.ReadForm(r.Context(), mr,
		mpart.WithMaxValueSize(s.maxValue),
		mpart.WithMaxFileSize(s.maxFile),
		mpart.WithMemoryLimit(s.memLimit),
		mpart.WithStorage(s.storage),
		mpart.WithLogger(slog.Default()),
	)
	if err != nil {
		status := http.StatusInternalServerError
		var fail *mpart.DecodeError
		if errors.As(err, &fail) {
			status = fail.StatusCode()
		}
		http.Error(w, err.Error(), status)
		return
	}
	defer func() {
		if err := form.Release(); err != nil {
			slog.Error("form release failed", "err", err)
		}
	}()

	// Drain each file to measure it; a real handler would copy to its
	// destination store here.
	for _, file := range form.Files {
		rc, err := file.Open()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		n, err := io.Copy(io.Discard, rc)
		_ = rc.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		slog.Info("file received",
			"field", file.Field,
			"filename", file.Filename,
			"bytes", n,
		)
	}

	w.WriteHeader(http.StatusNoContent)
}
