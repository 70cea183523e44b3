package webui

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"math"

	"github.com/lucasjlepore/fitscrub/fitproc"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// maxDisplayedRecords caps the results table.
const maxDisplayedRecords = 25

type summaryView struct {
	Duration      string
	WorkoutType   string
	Distance      string
	SpeedMin      string
	SpeedMean     string
	SpeedMax      string
	HeartRateMin  string
	HeartRateMean string
	HeartRateMax  string
}

type resultsView struct {
	Summary      summaryView
	Records      []fitproc.Record
	TotalRecords int
	DownloadURL  string
}

func renderLanding(w io.Writer) error {
	return templates.ExecuteTemplate(w, "landing.html", nil)
}

func renderResults(w io.Writer, processed *fitproc.Processed, downloadURL string) error {
	records := processed.Records
	if len(records) > maxDisplayedRecords {
		records = records[:maxDisplayedRecords]
	}
	return templates.ExecuteTemplate(w, "results.html", resultsView{
		Summary:      summarize(processed.Summary),
		Records:      records,
		TotalRecords: len(processed.Records),
		DownloadURL:  downloadURL,
	})
}

func summarize(s fitproc.WorkoutSummary) summaryView {
	workoutType := "Unknown"
	if s.WorkoutType != nil {
		workoutType = *s.WorkoutType
	}
	return summaryView{
		Duration:      formatDuration(s.DurationSeconds),
		WorkoutType:   workoutType,
		Distance:      formatDistance(s.DistanceMeters),
		SpeedMin:      formatPace(s.SpeedMin),
		SpeedMean:     formatPace(s.SpeedMean),
		SpeedMax:      formatPace(s.SpeedMax),
		HeartRateMin:  formatHeartRate(s.HeartRateMin),
		HeartRateMean: formatHeartRate(s.HeartRateMean),
		HeartRateMax:  formatHeartRate(s.HeartRateMax),
	}
}

const missingValue = "—"

func formatDuration(seconds *float64) string {
	if seconds == nil {
		return missingValue
	}
	total := int64(math.Max(math.Round(*seconds), 0))
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %02dm %02ds", hours, minutes, secs)
	}
	return fmt.Sprintf("%dm %02ds", minutes, secs)
}

func formatDistance(meters *float64) string {
	switch {
	case meters == nil:
		return missingValue
	case *meters >= 1000:
		return fmt.Sprintf("%.2f km", *meters/1000)
	default:
		return fmt.Sprintf("%.0f m", *meters)
	}
}

// formatPace converts a speed in m/s into a running pace in min/km.
func formatPace(speed *float64) string {
	if speed == nil || *speed <= 0 {
		return missingValue
	}
	totalMinutes := 1000 / (*speed * 60)
	minutes := int64(math.Floor(totalMinutes))
	seconds := int64(math.Round((totalMinutes - math.Floor(totalMinutes)) * 60))
	if seconds >= 60 {
		minutes++
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d min/km", minutes, seconds)
}

func formatHeartRate(value *float64) string {
	if value == nil || math.IsNaN(*value) || math.IsInf(*value, 0) || *value <= 0 {
		return missingValue
	}
	return fmt.Sprintf("%.0f bpm", math.Round(*value))
}
