// Package pipeline drives capture processing: scan the intake directory,
// transcribe, classify, append to the journal, then relocate the artifact.
// Artifacts are processed strictly sequentially; the transcription provider
// is a shared local resource and serializing keeps timeout accounting per
// artifact simple.
package pipeline

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/entry"
	"github.com/hpungsan/murmur/internal/errors"
	"github.com/hpungsan/murmur/internal/journal"
)

// artifactExtensions is the allow-list of container types the transcription
// provider accepts. Recording shortcuts occasionally produce video
// containers, so those are accepted alongside the audio set.
var artifactExtensions = map[string]bool{
	".m4a": true, ".mp3": true, ".wav": true, ".flac": true,
	".ogg": true, ".aac": true, ".wma": true,
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true,
	".webm": true, ".flv": true,
}

// Transcriber converts one artifact into transcript text.
type Transcriber interface {
	Transcribe(ctx context.Context, artifactPath string) (string, error)
}

// Classifier labels one transcript. Implementations never fail outward.
type Classifier interface {
	Classify(ctx context.Context, transcript string) entry.Classification
}

// Outcome is the terminal state an artifact reached within one run.
type Outcome string

const (
	// OutcomeCaptured means the entry was appended and the artifact
	// relocated.
	OutcomeCaptured Outcome = "captured"
	// OutcomeSkipped means the transcript was too short to be meaningful
	// speech; nothing was stored and nothing needs retrying.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means transcription or the journal append failed; the
	// artifact stays in intake and is retried on the next run.
	OutcomeFailed Outcome = "failed"
)

// ArtifactResult describes what happened to one artifact.
type ArtifactResult struct {
	SourceFile string  `json:"source_file"`
	Outcome    Outcome `json:"outcome"`
	EntryID    string  `json:"entry_id,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Report summarizes one pipeline run.
type Report struct {
	RunID     string           `json:"run_id"`
	Attempted int              `json:"attempted"`
	Captured  int              `json:"captured"`
	Skipped   int              `json:"skipped"`
	Failed    int              `json:"failed"`
	Results   []ArtifactResult `json:"results,omitempty"`
}

// Pipeline orchestrates one capture run.
type Pipeline struct {
	cfg         *config.Config
	journal     *journal.Journal
	transcriber Transcriber
	classifier  Classifier
	log         *logrus.Entry
	now         func() time.Time
}

// New builds a Pipeline over the given collaborators.
func New(cfg *config.Config, j *journal.Journal, t Transcriber, c Classifier, log *logrus.Entry) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		journal:     j,
		transcriber: t,
		classifier:  c,
		log:         log,
		now:         time.Now,
	}
}

// Discover lists artifact paths in intakeDir whose extension is on the
// allow-list, excluding subdirectories (the processed directory lives
// inside intake). A missing intake directory yields an empty set and
// os.ErrNotExist for the caller to report as a diagnostic.
func Discover(intakeDir string) ([]string, error) {
	dirEntries, err := os.ReadDir(intakeDir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(de.Name()))
		if !artifactExtensions[ext] {
			continue
		}
		paths = append(paths, filepath.Join(intakeDir, de.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Run processes every discovered artifact in sequence. Individual failures
// never abort the run; the report carries per-artifact outcomes and the
// success count.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: newRunID()}
	log := p.log.WithField("run_id", report.RunID)

	artifacts, err := Discover(p.cfg.IntakeDir)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("intake_dir", p.cfg.IntakeDir).
				Warn("intake directory does not exist, nothing to process")
			return report, nil
		}
		return nil, errors.NewConfig("failed to scan intake directory", err)
	}

	log.WithField("artifacts", len(artifacts)).Info("starting capture run")

	for _, path := range artifacts {
		if ctx.Err() != nil {
			break
		}
		res := p.processArtifact(ctx, path, log)
		report.Attempted++
		report.Results = append(report.Results, res)
		switch res.Outcome {
		case OutcomeCaptured:
			report.Captured++
		case OutcomeSkipped:
			report.Skipped++
		case OutcomeFailed:
			report.Failed++
		}
	}

	log.WithFields(logrus.Fields{
		"captured":  report.Captured,
		"attempted": report.Attempted,
	}).Info("capture run finished")
	return report, nil
}

// processArtifact walks one artifact through transcription, classification,
// the journal append, and relocation. The append is the commit point: it
// strictly precedes relocation, so a crash between the two leaves the
// artifact in intake and the next run stores a duplicate entry rather than
// losing the capture.
func (p *Pipeline) processArtifact(ctx context.Context, path string, log *logrus.Entry) ArtifactResult {
	name := filepath.Base(path)
	alog := log.WithField("artifact", name)
	alog.Info("processing artifact")

	transcript, err := p.transcriber.Transcribe(ctx, path)
	if err != nil {
		alog.WithField("error", err.Error()).Warn("transcription failed, artifact left for retry")
		return ArtifactResult{SourceFile: name, Outcome: OutcomeFailed, Error: err.Error()}
	}

	if len(strings.TrimSpace(transcript)) < p.cfg.MinTranscriptChars {
		alog.Info("transcript below minimum length, skipping artifact")
		return ArtifactResult{SourceFile: name, Outcome: OutcomeSkipped}
	}

	cls := p.classifier.Classify(ctx, transcript)

	now := p.now()
	e := entry.Entry{
		ID:             entry.DeriveID(name, now),
		Timestamp:      now,
		Transcription:  transcript,
		Classification: cls,
		SourceFile:     name,
		Status:         entry.StatusNew,
	}

	if err := p.journal.Append(e); err != nil {
		alog.WithField("error", err.Error()).Error("journal append failed, artifact left for retry")
		return ArtifactResult{SourceFile: name, Outcome: OutcomeFailed, Error: err.Error()}
	}

	if err := p.relocate(path); err != nil {
		// The entry is already durable. Leaving the artifact behind means
		// the next run stores a duplicate, which beats losing the capture.
		alog.WithField("error", err.Error()).
			Warn("relocation failed, artifact will be re-processed next run")
	}

	alog.WithField("entry_id", e.ID).Info("capture stored")
	return ArtifactResult{SourceFile: name, Outcome: OutcomeCaptured, EntryID: e.ID}
}

// relocate moves a committed artifact into the processed directory.
func (p *Pipeline) relocate(path string) error {
	processedDir := p.cfg.Processed()
	if err := os.MkdirAll(processedDir, 0700); err != nil {
		return fmt.Errorf("failed to create processed directory: %w", err)
	}
	dest := filepath.Join(processedDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return fmt.Errorf("failed to move artifact: %w", err)
	}
	return nil
}

// newRunID generates a ULID identifying one pipeline run in logs and
// reports.
func newRunID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0)).String()
}
