package subtitles

import (
	"fmt"
	"math"
	"strings"

	"github.com/forPelevin/vodclips/internal/types"
)

// Align re-projects transcript segments onto the clip-local axis of
// [clipStart, clipEnd]. Overlap is boundary-inclusive, so a segment touching
// either edge is considered, but it survives only with a positive local
// duration and non-blank text. Sequence numbers start at 1 and follow the
// transcript order.
func Align(segs []types.Segment, clipStart, clipEnd float64) []types.SubtitleEntry {
	var out []types.SubtitleEntry
	clipLen := clipEnd - clipStart
	for _, s := range segs {
		if s.End < clipStart || s.Start > clipEnd {
			continue
		}
		start := math.Max(0, s.Start-clipStart)
		end := math.Min(clipLen, s.End-clipStart)
		if end <= start {
			continue
		}
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		out = append(out, types.SubtitleEntry{
			Sequence: len(out) + 1,
			Start:    start,
			End:      end,
			Text:     text,
		})
	}
	return out
}

// RenderSRT renders entries as SubRip text.
func RenderSRT(entries []types.SubtitleEntry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", e.Sequence, srtTime(e.Start), srtTime(e.End), e.Text)
	}
	return b.String()
}

// ForClip aligns and renders the subtitle track of one clip.
func ForClip(tr types.Transcript, clipStart, clipEnd float64) string {
	return RenderSRT(Align(tr.Segments, clipStart, clipEnd))
}

// srtTime formats seconds as HH:MM:SS,mmm. Hours do not roll over at 24.
func srtTime(sec float64) string {
	if sec < 0 || math.IsNaN(sec) {
		sec = 0
	}
	ms := int64(math.Round(sec * 1000))
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
