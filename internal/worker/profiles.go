package worker

import (
	"os"
	"path/filepath"
	"strings"

	"redub/internal/services"
)

// ProfileStore keeps reference-audio voice profiles on disk, one file per
// speaker. Its Resolve method satisfies dubbing.VoiceProfileResolver.
type ProfileStore struct {
	dir string
}

// NewProfileStore roots a profile store at dir.
func NewProfileStore(dir string) *ProfileStore {
	return &ProfileStore{dir: dir}
}

// Save stores reference audio for a speaker and returns the profile path.
func (p *ProfileStore) Save(speakerID string, data []byte) (string, error) {
	path := p.path(speakerID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "profiles", "save", "create profiles dir", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "profiles", "save", "store profile", err)
	}
	return path, nil
}

// Resolve returns the stored profile file for a speaker, or "" when none
// exists.
func (p *ProfileStore) Resolve(speakerID string) string {
	path := p.path(speakerID)
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		return ""
	}
	return path
}

func (p *ProfileStore) path(speakerID string) string {
	return filepath.Join(p.dir, sanitizeName(speakerID)+".wav")
}

func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "speaker"
	}
	return b.String()
}
