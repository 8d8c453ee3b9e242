package repository

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"gopkg.in/yaml.v3"
)

// tree is a recursive listing of one directory, keyed by path relative to the environment directory
type tree struct {
	dirs  map[string]bool
	files map[string]storage.Object
}

// envStore resolves relative paths against the environment URL
type envStore struct {
	fs      afs.Service
	baseURL string
}

func (s *envStore) url(rel string) string {
	return url.Join(s.baseURL, rel)
}

func (s *envStore) relative(objectURL string) string {
	base := strings.TrimRight(url.Path(s.baseURL), "/")
	return strings.Trim(strings.TrimPrefix(url.Path(objectURL), base), "/")
}

func (s *envStore) exists(ctx context.Context, rel string) (bool, error) {
	ok, err := s.fs.Exists(ctx, s.url(rel))
	if err != nil {
		return false, fmt.Errorf("check %s: %w", rel, err)
	}
	return ok, nil
}

// list walks rel recursively. Parents of every file are reported as directories
// even when the storage does not list them.
func (s *envStore) list(ctx context.Context, rel string) (*tree, error) {
	t := &tree{dirs: map[string]bool{rel: true}, files: map[string]storage.Object{}}

	objects, err := s.fs.List(ctx, s.url(rel), option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", rel, err)
	}
	for _, obj := range objects {
		p := s.relative(obj.URL())
		if p == "" || p == rel {
			continue
		}
		if obj.IsDir() {
			t.dirs[p] = true
			continue
		}
		t.files[p] = obj
		for dir := path.Dir(p); dir != "." && dir != rel && strings.HasPrefix(dir, rel); dir = path.Dir(dir) {
			t.dirs[dir] = true
		}
	}
	return t, nil
}

func (s *envStore) read(ctx context.Context, obj storage.Object) ([]byte, error) {
	data, err := s.fs.Download(ctx, obj)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", obj.URL(), err)
	}
	return data, nil
}

func (s *envStore) readURL(ctx context.Context, rel string) ([]byte, error) {
	data, err := s.fs.DownloadWithURL(ctx, s.url(rel))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	return data, nil
}

func (s *envStore) write(ctx context.Context, rel string, data []byte) error {
	if err := s.fs.Upload(ctx, s.url(rel), file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

func (s *envStore) writeYAML(ctx context.Context, rel string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rel, err)
	}
	return s.write(ctx, rel, data)
}

func (s *envStore) remove(ctx context.Context, rel string) error {
	if err := s.fs.Delete(ctx, s.url(rel)); err != nil {
		return fmt.Errorf("remove %s: %w", rel, err)
	}
	return nil
}

func (s *envStore) mkdir(ctx context.Context, rel string) error {
	if err := s.fs.Create(ctx, s.url(rel), file.DefaultDirOsMode, true); err != nil {
		return fmt.Errorf("create %s: %w", rel, err)
	}
	return nil
}

func join(parts ...string) string {
	return path.Join(parts...)
}
