package artifacts

import (
	"fmt"
	"path"
)

// Object keys of one job. Every artifact lives under "<job>/".

func VideoKey(jobID string) string { return path.Join(jobID, "input.mp4") }
func AudioKey(jobID string) string { return path.Join(jobID, "audio.wav") }
func TranscriptKey(jobID string) string { return path.Join(jobID, "transcript.json") }
func AnalysisKey(jobID string) string { return path.Join(jobID, "audio_analysis.json") }
func ManifestKey(jobID string) string { return path.Join(jobID, "clips_metadata.json") }

func ClipFilename(index int) string { return fmt.Sprintf("clip_%02d.mp4", index) }
func SRTFilename(index int) string { return fmt.Sprintf("clip_%02d.srt", index) }

func ClipKey(jobID string, index int) string { return path.Join(jobID, "clips", ClipFilename(index)) }
func SRTKey(jobID string, index int) string { return path.Join(jobID, "clips", SRTFilename(index)) }

// ClipsPrefix covers the clip and subtitle objects of jobID.
func ClipsPrefix(jobID string) string { return path.Join(jobID, "clips") + "/" }

// JobPrefix is the listing prefix covering every artifact of jobID.
func JobPrefix(jobID string) string { return jobID + "/" }
