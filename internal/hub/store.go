// Package hub resolves model artifacts from the HuggingFace hub into a local cache.
package hub

import (
	"fmt"
	"sync"

	hfhub "github.com/gomlx/go-huggingface/hub"
	"github.com/rs/zerolog/log"
)

// Store downloads (repository, filename) pairs on first use and returns the cached path.
type Store struct {
	cacheDir  string
	authToken string

	mu    sync.Mutex
	repos map[string]*hfhub.Repo
}

func NewStore(cacheDir, authToken string) *Store {
	return &Store{
		cacheDir:  cacheDir,
		authToken: authToken,
		repos:     make(map[string]*hfhub.Repo),
	}
}

// Resolve returns a local path for filename inside repo, downloading it when missing.
func (s *Store) Resolve(repo, filename string) (string, error) {
	r := s.repo(repo)
	path, err := r.DownloadFile(filename)
	if err != nil {
		return "", fmt.Errorf("download %s/%s: %w", repo, filename, err)
	}
	log.Debug().Str("repo", repo).Str("file", filename).Str("path", path).Msg("hub: artifact resolved")
	return path, nil
}

func (s *Store) repo(id string) *hfhub.Repo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.repos[id]; ok {
		return r
	}
	r := hfhub.New(id)
	if s.authToken != "" {
		r = r.WithAuth(s.authToken)
	}
	if s.cacheDir != "" {
		r = r.WithCacheDir(s.cacheDir)
	}
	s.repos[id] = r
	return r
}
