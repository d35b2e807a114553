package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/forPelevin/vodclips/internal/failure"
	"github.com/forPelevin/vodclips/internal/pipeline"
	"github.com/forPelevin/vodclips/internal/types"
)

func describeStageError(se *pipeline.StageError) string {
	return fmt.Sprintf("job %s failed at stage %s (%s): %v", se.JobID, se.Stage, failure.KindOf(se.Err), se.Err)
}

func printResult(w io.Writer, res *pipeline.Result) {
	if res == nil {
		return
	}
	if r := res.Ingest; r != nil {
		fmt.Fprintf(w, "ingested %s (%.1f MB) and %s (%.1f MB), source %s\n",
			r.VideoKey, float64(r.VideoBytes)/(1024*1024), r.AudioKey, float64(r.AudioBytes)/(1024*1024), r.SourceDuration)
	}
	if r := res.Transcript; r != nil {
		fmt.Fprintf(w, "transcribed %d segments (language %s) to %s\n", r.Segments, orDash(r.Language), r.Key)
	}
	if a := res.Analysis; a != nil {
		fmt.Fprintf(w, "analyzed %d windows, %d above threshold, kept %d\n", a.TotalSegments, a.FilteredSegments, a.TopSegmentsCount)
		printSegments(w, a.TopSegments)
	}
	if m := res.Manifest; m != nil {
		printManifest(w, *m)
	}
}

func printSegments(w io.Writer, segs []types.AudioSegment) {
	if len(segs) == 0 {
		return
	}
	rows := make([][]string, 0, len(segs))
	for i, s := range segs {
		rows = append(rows, []string{
			strconv.Itoa(i),
			fmtSeconds(s.StartTime),
			fmtSeconds(s.Duration),
			fmtFloat(s.RMSScore, 4),
			fmtFloat(s.PeakAmplitude, 4),
			fmtFloat(s.SpectralCentroid, 0),
			fmtFloat(s.Score(), 4),
		})
	}
	printTable(w,
		[]string{"Rank", "Start", "Duration", "RMS", "Peak", "Centroid", "Score"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}

func printManifest(w io.Writer, m types.ClipManifest) {
	fmt.Fprintf(w, "job %s: %d clips, %.2f MB, generated %s\n", m.JobID, m.ClipsCount, m.TotalSizeMB, m.GeneratedAt.Format("2006-01-02 15:04:05Z07:00"))
	if len(m.Clips) == 0 {
		return
	}
	rows := make([][]string, 0, len(m.Clips))
	for _, c := range m.Clips {
		rows = append(rows, []string{
			strconv.Itoa(c.ClipIndex),
			fmtSeconds(c.StartTime),
			fmtSeconds(c.Duration),
			fmtFloat(c.CompositeScore, 4),
			fmtFloat(c.FileSizeMB, 2),
			yesNo(c.HasSRT),
			c.ObjectKey,
		})
	}
	printTable(w,
		[]string{"Clip", "Start", "Duration", "Score", "Size MB", "SRT", "Object"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft},
	)
}
