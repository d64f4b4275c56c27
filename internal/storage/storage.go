// internal/storage/storage.go
// Package storage writes finished runs to a local directory and, optionally,
// to an S3-compatible bucket.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mwiater/atelier/internal/appconfig"
	"github.com/mwiater/atelier/internal/logging"
	"github.com/mwiater/atelier/internal/run"
)

// ManifestName is the per-run index written next to the frames.
const ManifestName = "run.json"

// ManifestFrame describes one stored frame.
type ManifestFrame struct {
	Index    int    `json:"index"`
	Label    string `json:"label"`
	File     string `json:"file"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Critique string `json:"critique,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Manifest indexes the frames of one run.
type Manifest struct {
	RunID     string          `json:"runId"`
	Prompt    string          `json:"prompt"`
	CreatedAt time.Time       `json:"createdAt"`
	Cancelled bool            `json:"cancelled,omitempty"`
	Frames    []ManifestFrame `json:"frames"`
}

// Sink persists a run. Save returns one location per object written.
type Sink interface {
	Save(ctx context.Context, prompt string, res *run.Result) ([]string, error)
}

// FrameFile is the object name of frame index within a run.
func FrameFile(index int) string {
	return fmt.Sprintf("frame-%d.html", index)
}

// NewManifest describes res.
func NewManifest(prompt string, res *run.Result) Manifest {
	m := Manifest{RunID: res.ID, Prompt: prompt, CreatedAt: time.Now().UTC(), Cancelled: res.Cancelled}
	for _, fr := range res.Frames {
		if fr.Frame == nil {
			continue
		}
		mf := ManifestFrame{
			Index:    fr.Index,
			Label:    fr.Frame.Label,
			File:     FrameFile(fr.Index),
			Width:    fr.Frame.Width,
			Height:   fr.Frame.Height,
			Critique: fr.Frame.Critique,
		}
		if fr.Err != nil {
			mf.Error = fr.Err.Error()
		}
		m.Frames = append(m.Frames, mf)
	}
	return m
}

func (m Manifest) encode() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Multi saves to every sink in order. A failing sink does not stop the others.
type Multi []Sink

func (m Multi) Save(ctx context.Context, prompt string, res *run.Result) ([]string, error) {
	var locations []string
	var errs []error
	for _, sink := range m {
		locs, err := sink.Save(ctx, prompt, res)
		locations = append(locations, locs...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return locations, errors.Join(errs...)
}

// FromConfig returns the sinks cfg enables: always the local directory, plus
// MinIO when an endpoint and bucket are configured.
func FromConfig(cfg *appconfig.Config) (Sink, error) {
	sinks := Multi{NewLocal(cfg.OutputDir())}
	if cfg.MinioEnabled() {
		s := cfg.Storage
		ms, err := NewMinio(s.MinioEndpoint, s.MinioAccessKey, s.MinioSecretKey, s.MinioBucket, s.MinioUseSSL)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, ms)
		logging.LogEvent("frame sink: minio %s/%s", s.MinioEndpoint, s.MinioBucket)
	}
	return sinks, nil
}
