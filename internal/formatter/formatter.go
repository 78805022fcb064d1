// package formatter renders byte counts, rates and item status text, and exports session reports
// to CSV, Markdown and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/desertthunder/sldlx/internal/models"
	"github.com/desertthunder/sldlx/internal/shared"
)

// ReportFormat selects a session report exporter.
type ReportFormat string

const (
	ReportCSV      ReportFormat = "csv"
	ReportMarkdown ReportFormat = "markdown"
	ReportText     ReportFormat = "text"
)

// ParseReportFormat accepts csv, markdown/md and text/txt.
func ParseReportFormat(s string) (ReportFormat, error) {
	switch s {
	case "csv":
		return ReportCSV, nil
	case "markdown", "md":
		return ReportMarkdown, nil
	case "text", "txt":
		return ReportText, nil
	default:
		return "", fmt.Errorf("%w: report format %q (must be csv, markdown or text)", shared.ErrInvalidArgument, s)
	}
}

// ExportToCSV converts a session's items to CSV with columns: Position, Track ID, Name, Status, Progress, Detail, Path
func ExportToCSV(session *models.SessionRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Track ID", "Name", "Status", "Progress", "Detail", "Path"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, item := range session.Items() {
		record := []string{
			strconv.Itoa(item.Position + 1),
			item.TrackID,
			item.Name,
			StatusText(item.Status, item.Progress, item.Failure),
			strconv.FormatFloat(item.Progress, 'f', 0, 64),
			item.Detail,
			item.Path,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a session to a Markdown report with a summary and a track table
func ExportToMarkdown(session *models.SessionRecord) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Session %d\n\n", session.Sequence())
	fmt.Fprintf(&buf, "**Input**: %s\n", session.Input())
	fmt.Fprintf(&buf, "**Started**: %s\n", session.StartedAt().Format(time.RFC3339))
	if at := session.CompletedAt(); at != nil {
		fmt.Fprintf(&buf, "**Finished**: %s\n", at.Format(time.RFC3339))
	}
	fmt.Fprintf(&buf, "**Outcome**: %s\n", session.Outcome())
	fmt.Fprintf(&buf, "**Tracks**: %d/%d downloaded, %d failed\n", session.TracksCompleted(), session.TracksTotal(), session.TracksFailed())
	if msg := session.ErrorMessage(); msg != "" {
		fmt.Fprintf(&buf, "**Error**: %s\n", msg)
	}

	buf.WriteString("\n## Tracks\n\n")
	buf.WriteString("| # | Track | Status | Detail |\n")
	buf.WriteString("|---|-------|--------|--------|\n")
	for _, item := range session.Items() {
		fmt.Fprintf(&buf, "| %d | %s | %s | %s |\n",
			item.Position+1, item.Name, StatusText(item.Status, item.Progress, item.Failure), item.Detail)
	}

	return buf.Bytes(), nil
}

// ExportToText converts a session to plain text
func ExportToText(session *models.SessionRecord) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Session: %d\n", session.Sequence())
	fmt.Fprintf(&buf, "Input: %s\n", session.Input())
	fmt.Fprintf(&buf, "Outcome: %s\n", session.Outcome())
	fmt.Fprintf(&buf, "Tracks: %d/%d downloaded\n\n", session.TracksCompleted(), session.TracksTotal())

	for _, item := range session.Items() {
		fmt.Fprintf(&buf, "%d. %s [%s]\n", item.Position+1, item.Name, StatusText(item.Status, item.Progress, item.Failure))
	}

	return buf.Bytes(), nil
}

// sessionMetadata is the JSON summary written next to a CSV report.
type sessionMetadata struct {
	ID          string     `json:"id"`
	Sequence    int        `json:"sequence"`
	Input       string     `json:"input"`
	Outcome     string     `json:"outcome"`
	Total       int        `json:"total"`
	Completed   int        `json:"completed"`
	Failed      int        `json:"failed"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ToMetadataJSON generates a JSON summary of the session (without items)
func ToMetadataJSON(session *models.SessionRecord) ([]byte, error) {
	return shared.MarshalJSON(sessionMetadata{
		ID:          session.ID(),
		Sequence:    session.Sequence(),
		Input:       session.Input(),
		Outcome:     string(session.Outcome()),
		Total:       session.TracksTotal(),
		Completed:   session.TracksCompleted(),
		Failed:      session.TracksFailed(),
		Error:       session.ErrorMessage(),
		StartedAt:   session.StartedAt(),
		CompletedAt: session.CompletedAt(),
	}, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport writes {base}_tracks.csv and {base}_metadata.json.
//
// The base defaults to session-{sequence}.
func WriteCSVExport(session *models.SessionRecord, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = defaultBase(session)
	}

	csvData, err := ExportToCSV(session)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(session)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{TracksFile: tracksFile, MetadataFile: metadataFile}, nil
}

// WriteMarkdownExport writes {dir}/README.md, creating the directory. The directory defaults to session-{sequence}.
func WriteMarkdownExport(session *models.SessionRecord, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = defaultBase(session)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	mdData, err := ExportToMarkdown(session)
	if err != nil {
		return "", fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return "", fmt.Errorf("failed to write Markdown file: %w", err)
	}
	return mdFile, nil
}

// WriteTextExport writes a plain text report. The path defaults to session-{sequence}.txt.
func WriteTextExport(session *models.SessionRecord, path string) (string, error) {
	if path == "" {
		path = defaultBase(session) + ".txt"
	}

	textData, err := ExportToText(session)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}
	return path, nil
}

// WriteReport dispatches to the exporter for format and returns the files written.
func WriteReport(session *models.SessionRecord, format ReportFormat, path string) ([]string, error) {
	switch format {
	case ReportCSV:
		res, err := WriteCSVExport(session, path)
		if err != nil {
			return nil, err
		}
		return []string{res.TracksFile, res.MetadataFile}, nil
	case ReportMarkdown:
		file, err := WriteMarkdownExport(session, path)
		if err != nil {
			return nil, err
		}
		return []string{file}, nil
	case ReportText:
		file, err := WriteTextExport(session, path)
		if err != nil {
			return nil, err
		}
		return []string{file}, nil
	default:
		return nil, fmt.Errorf("%w: report format %q", shared.ErrInvalidArgument, format)
	}
}

func defaultBase(session *models.SessionRecord) string {
	return fmt.Sprintf("session-%d", session.Sequence())
}
