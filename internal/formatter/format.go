package formatter

import (
	"fmt"
	"math"
	"strings"

	"github.com/desertthunder/sldlx/internal/models"
)

const (
	kilobyte = 1024
	megabyte = 1024 * 1024
)

// DetailSeparator joins the parts of an item's detail line.
const DetailSeparator = " • "

// FormatSize renders a byte count as "512 B", "1.5 KB" or "4.2 MB".
func FormatSize(bytes int64) string {
	if bytes < kilobyte {
		return fmt.Sprintf("%d B", bytes)
	}
	return scaled(float64(bytes), "")
}

// FormatSpeed renders a transfer rate in bytes per second with the same thresholds as [FormatSize].
func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec < kilobyte {
		return fmt.Sprintf("%d B/s", int64(bytesPerSec))
	}
	return scaled(bytesPerSec, "/s")
}

// scaled picks KB or MB by the value shown, so 1048575 bytes reads "1.0 MB" rather than "1024.0 KB".
func scaled(n float64, suffix string) string {
	if math.Round(n/kilobyte*10) < kilobyte*10 {
		return fmt.Sprintf("%.1f KB%s", n/kilobyte, suffix)
	}
	return fmt.Sprintf("%.1f MB%s", n/megabyte, suffix)
}

// SourceDetail builds "peer • EXT • 320kbps • 4.2 MB" for a peer file. The bitrate part is
// omitted when unknown and rate is appended only when non-empty.
func SourceDetail(peer string, file models.FileInfo, rate string) string {
	parts := []string{peer, strings.ToUpper(strings.TrimPrefix(file.Extension, "."))}
	if file.BitRate > 0 {
		parts = append(parts, fmt.Sprintf("%dkbps", file.BitRate))
	}
	parts = append(parts, FormatSize(file.Size))
	if rate != "" {
		parts = append(parts, rate)
	}
	return strings.Join(parts, DetailSeparator)
}

// StatusText is the short status column shown for an item.
func StatusText(status models.Status, progress float64, failure models.FailureReason) string {
	switch status {
	case models.StatusWaiting:
		return "Waiting"
	case models.StatusSearching:
		return "Searching..."
	case models.StatusDownloading:
		return fmt.Sprintf("%.0f%%", progress)
	case models.StatusCompleted:
		return "Done"
	case models.StatusFailed:
		if failure != models.FailureNone {
			return failure.Label()
		}
		return "Failed"
	case models.StatusCancelled:
		return "Cancelled"
	case models.StatusSkipped:
		return "Skipped"
	default:
		return status.String()
	}
}
