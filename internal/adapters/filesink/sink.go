package filesink

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samirrijal/gpspath/internal/core/domain"
	"github.com/samirrijal/gpspath/internal/pkg/fixfile"
)

// Sink implements ports.ArtifactSink on the local filesystem.
// Every file is written to a temp file and renamed into place, so readers
// never see a partial artifact; concurrent writers race and the last one wins.
type Sink struct {
	dir        string
	name       string
	sharedOnly bool
}

// Option configures a Sink.
type Option func(*Sink)

// SharedOnly makes the sink keep only the named artifact. No per-trajectory
// copies are written and every id resolves to the shared file.
func SharedOnly() Option {
	return func(s *Sink) { s.sharedOnly = true }
}

// New creates the artifact directory if needed.
func New(dir, name string, opts ...Option) (*Sink, error) {
	if name == "" || filepath.Base(name) != name {
		return nil, fmt.Errorf("artifact name %q must be a plain file name", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	s := &Sink{dir: dir, name: name}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the per-trajectory copy for id, or the shared artifact when id is empty.
func (s *Sink) Path(id string) string {
	if id == "" || s.sharedOnly {
		return filepath.Join(s.dir, s.name)
	}
	return filepath.Join(s.dir, id+".csv")
}

// Exists reports whether the artifact for id is present.
func (s *Sink) Exists(id string) bool {
	if id != "" && filepath.Base(id) != id {
		return false
	}
	info, err := os.Stat(s.Path(id))
	return err == nil && info.Mode().IsRegular()
}

// Read decodes the artifact for id. A missing file yields domain.ErrNotFound.
func (s *Sink) Read(ctx context.Context, id string) ([]domain.TimedFix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id != "" && filepath.Base(id) != id {
		return nil, domain.ErrNotFound
	}
	f, err := os.Open(s.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.WrapError(domain.KindIOFailure, "open artifact", err)
	}
	defer f.Close()

	fixes, err := fixfile.Decode(f)
	if err != nil {
		return nil, domain.WrapError(domain.KindIOFailure, "read artifact", err)
	}
	return fixes, nil
}

// Write stores fixes as the per-trajectory copy and then replaces the shared artifact.
func (s *Sink) Write(ctx context.Context, id string, fixes []domain.TimedFix) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.WrapError(domain.KindIOFailure, "write artifact", err)
	}
	if id != "" && !s.sharedOnly {
		if filepath.Base(id) != id {
			return "", domain.NewError(domain.KindIOFailure, fmt.Sprintf("invalid artifact id %q", id))
		}
		if err := s.replace(s.Path(id), fixes); err != nil {
			return "", domain.WrapError(domain.KindIOFailure, "write trajectory artifact", err)
		}
	}
	shared := s.Path("")
	if err := s.replace(shared, fixes); err != nil {
		return "", domain.WrapError(domain.KindIOFailure, "write shared artifact", err)
	}
	return shared, nil
}

func (s *Sink) replace(path string, fixes []domain.TimedFix) error {
	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := fixfile.Encode(tmp, fixes); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
