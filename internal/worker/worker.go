package worker

import (
	"context"
	"strings"

	"github.com/desertthunder/sldlx/internal/models"
	"github.com/desertthunder/sldlx/internal/shared"
)

// Downloader is an external batch downloader observed by sampling.
//
// Run blocks until the batch finishes, fails or ctx is cancelled. Cancellation is cooperative:
// the downloader should return ctx.Err() promptly once ctx is done.
type Downloader interface {
	Run(ctx context.Context) error
	Tracks() []models.Track        // Ordered track list; empty until extraction completes
	Searches() map[string]struct{} // IDs of tracks currently being searched
	Transfers() []models.Transfer  // In-flight transfers
}

// Retrier is implemented by downloaders that can re-attempt a single track while running.
type Retrier interface {
	Retry(trackID string) error
}

// Params are the per-run invocation parameters handed to a [Factory].
type Params struct {
	Input       string
	OutputPath  string
	Format      string // Preferred extension, lower-cased (e.g. "mp3")
	Bitrate     int    // Preferred minimum bitrate in kbps
	Username    string
	Password    string
	ListenPort  int
	Concurrency int
}

// Factory creates a fresh downloader for one run.
type Factory func(Params) (Downloader, error)

// BuildParams derives run parameters from cfg, choosing a new random listen port each call.
func BuildParams(input string, cfg *shared.Config) Params {
	return Params{
		Input:       input,
		OutputPath:  cfg.Download.Path,
		Format:      strings.ToLower(cfg.Download.Format),
		Bitrate:     cfg.Download.Bitrate,
		Username:    cfg.Credentials.Soulseek.Username,
		Password:    cfg.Credentials.Soulseek.Password,
		ListenPort:  shared.RandomListenPort(),
		Concurrency: cfg.Engine.Concurrency,
	}
}
