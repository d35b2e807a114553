package types

import "time"

// Transcript is the transcription collaborator's output, persisted as J/transcript.json.
type Transcript struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments" validate:"dive"`
}

// Segment is a transcript segment referenced against the full source audio.
type Segment struct {
	Start float64 `json:"start" validate:"gte=0"`
	End   float64 `json:"end" validate:"gtefield=Start"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// AudioSegment is one scored analysis window. CompositeScore is nil until ranked.
type AudioSegment struct {
	StartTime        float64  `json:"start_time" validate:"gte=0"`
	EndTime          float64  `json:"end_time" validate:"gtfield=StartTime"`
	Duration         float64  `json:"duration" validate:"gt=0"`
	RMSScore         float64  `json:"rms_score" validate:"gte=0"`
	PeakAmplitude    float64  `json:"peak_amplitude" validate:"gte=0"`
	SpectralCentroid float64  `json:"spectral_centroid" validate:"gte=0"`
	ZeroCrossingRate float64  `json:"zero_crossing_rate" validate:"gte=0"`
	CompositeScore   *float64 `json:"composite_score" validate:"required"`
}

// Score returns the composite score, or 0 when the segment has not been ranked.
func (s AudioSegment) Score() float64 {
	if s.CompositeScore == nil {
		return 0
	}
	return *s.CompositeScore
}

type AnalysisParameters struct {
	WindowSize      float64 `json:"window_size" validate:"gt=0"`
	StepSize        float64 `json:"step_size" validate:"gt=0"`
	EnergyThreshold float64 `json:"energy_threshold" validate:"gte=0"`
}

// AnalysisResult is the handoff artifact between the analysis and synthesis stages.
// On the wire top_segments is the count and segments holds the ranked list.
type AnalysisResult struct {
	JobID            string             `json:"job_id" validate:"required"`
	TotalSegments    int                `json:"total_segments" validate:"gte=0"`
	FilteredSegments int                `json:"filtered_segments" validate:"gte=0,ltefield=TotalSegments"`
	TopSegmentsCount int                `json:"top_segments" validate:"gte=0"`
	TopSegments      []AudioSegment     `json:"segments" validate:"dive"`
	AnalysisDuration float64            `json:"analysis_duration"`
	Parameters       AnalysisParameters `json:"parameters"`
}

// ClipMetadata describes one synthesized clip. ClipIndex is the rank position.
type ClipMetadata struct {
	ClipIndex      int     `json:"clip_index" validate:"gte=0"`
	Filename       string  `json:"filename" validate:"required"`
	ObjectKey      string  `json:"object_key" validate:"required"`
	StartTime      float64 `json:"start_time" validate:"gte=0"`
	EndTime        float64 `json:"end_time" validate:"gtfield=StartTime"`
	Duration       float64 `json:"duration" validate:"gt=0"`
	RMSScore       float64 `json:"rms_score"`
	PeakAmplitude  float64 `json:"peak_amplitude"`
	CompositeScore float64 `json:"composite_score"`
	FileSizeMB     float64 `json:"file_size_mb" validate:"gte=0"`
	HasSRT         bool    `json:"has_srt"`
	SRTObjectKey   string  `json:"srt_object_key,omitempty"`
}

// ClipManifest is persisted as J/clips_metadata.json.
type ClipManifest struct {
	JobID       string         `json:"job_id" validate:"required"`
	ClipsCount  int            `json:"clips_count" validate:"gte=0"`
	Clips       []ClipMetadata `json:"clips" validate:"dive"`
	TotalSizeMB float64        `json:"total_size_mb"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// SubtitleEntry is a clip-local subtitle cue.
type SubtitleEntry struct {
	Sequence int
	Start    float64
	End      float64
	Text     string
}
