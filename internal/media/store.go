package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	imagesDir        = "images"
	chatAudioDir     = "audio/chat_received"
	deviceAudioDir   = "audio/device_received"
	counterFile      = "fingerprint_id"
	timestampFormat  = "2006-01-02_15-04-05.000000000"
	firstFingerprint = 1
)

// Store writes media files under a single root directory.
//
// Thread Safety: all methods are safe for concurrent use. The enrollment
// counter is serialized by a mutex; file writes rely on unique names.
type Store struct {
	root string

	counterMu sync.Mutex
}

// NewStore creates the directory layout under root and returns a store.
func NewStore(root string) (*Store, error) {
	for _, dir := range []string{imagesDir, chatAudioDir, deviceAudioDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o750); err != nil {
			return nil, fmt.Errorf("creating media directory %q: %w", dir, err)
		}
	}
	return &Store{root: root}, nil
}

// SaveImage writes a captured still and returns its absolute path.
func (s *Store) SaveImage(data []byte) (string, error) {
	return s.save(imagesDir, "jpg", data)
}

// SaveChatAudio writes a voice note received from the chat front-end.
// ext is the container extension without the dot (e.g. "ogg").
func (s *Store) SaveChatAudio(data []byte, ext string) (string, error) {
	return s.save(chatAudioDir, ext, data)
}

// SaveDeviceAudio writes a recording assembled from device audio chunks.
func (s *Store) SaveDeviceAudio(data []byte, ext string) (string, error) {
	return s.save(deviceAudioDir, ext, data)
}

func (s *Store) save(dir, ext string, data []byte) (string, error) {
	name := time.Now().Format(timestampFormat) + "." + ext
	path := filepath.Join(s.root, dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// NextFingerprintID returns the next free enrollment slot and advances
// the persisted counter. The counter file holds a single decimal integer;
// a missing or unreadable file restarts the sequence at 1.
func (s *Store) NextFingerprintID() (int, error) {
	s.counterMu.Lock()
	defer s.counterMu.Unlock()

	path := filepath.Join(s.root, counterFile)

	next := firstFingerprint
	if raw, err := os.ReadFile(path); err == nil {
		if n, parseErr := strconv.Atoi(strings.TrimSpace(string(raw))); parseErr == nil && n >= firstFingerprint {
			next = n
		}
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(next+1)), 0o600); err != nil {
		return 0, fmt.Errorf("persisting fingerprint counter: %w", err)
	}
	return next, nil
}
