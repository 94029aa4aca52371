package curriculum

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"sage/internal/utils"
)

const defaultRegistryTTL = 30 * time.Minute

// LoadDir reads a curriculum from a directory of YAML files. An optional
// `_curriculum.yaml` carries the course metadata (id, title, outline);
// every other .yaml/.yml file is one Topic. Topics are ordered by file
// name, so content authors prefix files with a sort key (01-cells.yaml).
func LoadDir(dir string) (*Curriculum, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("curriculum directory %s missing", dir)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ".yaml") || strings.HasSuffix(d.Name(), ".yml") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	curriculum := &Curriculum{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if filepath.Base(path) == "_curriculum.yaml" || filepath.Base(path) == "_curriculum.yml" {
			if err := yaml.Unmarshal(data, curriculum); err != nil {
				return nil, fmt.Errorf("decode curriculum meta: %w", err)
			}
			continue
		}
		var topic Topic
		if err := yaml.Unmarshal(data, &topic); err != nil {
			return nil, fmt.Errorf("decode topic %s: %w", filepath.Base(path), err)
		}
		if topic.ID == "" {
			topic.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		if topic.Title == "" {
			topic.Title = topic.ID
		}
		curriculum.Topics = append(curriculum.Topics, topic)
	}
	if curriculum.ID == "" {
		curriculum.ID = filepath.Base(dir)
	}
	return curriculum, nil
}

// Registry caches a directory-loaded curriculum with a TTL so long
// sessions pick up content edits without rereading files per turn.
type Registry struct {
	root   string
	ttl    time.Duration
	logger *utils.Logger

	mu       sync.RWMutex
	current  *Curriculum
	loadedAt time.Time
	expires  time.Time
}

// NewRegistry builds a TTL-cached loader rooted at dir.
func NewRegistry(dir string, ttl time.Duration, logger *utils.Logger) *Registry {
	if ttl <= 0 {
		ttl = defaultRegistryTTL
	}
	return &Registry{
		root:   dir,
		ttl:    ttl,
		logger: utils.OrNop(logger),
	}
}

// Current returns the cached curriculum, reloading from disk when the
// TTL elapsed.
func (r *Registry) Current(ctx context.Context) (*Curriculum, error) {
	r.mu.RLock()
	if r.current != nil && time.Now().Before(r.expires) {
		cur := r.current
		r.mu.RUnlock()
		return cur, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil && time.Now().Before(r.expires) {
		return r.current, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loaded, err := LoadDir(r.root)
	if err != nil {
		return nil, err
	}
	r.current = loaded
	r.loadedAt = time.Now()
	r.expires = r.loadedAt.Add(r.ttl)
	r.logger.Info("Curriculum cache refreshed (topics=%d)", len(loaded.Topics))
	return loaded, nil
}
