package storage

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/spf13/afero"

	"icapture/pkg/storage/consts"
	"icapture/pkg/storage/util"
	"icapture/pkg/types"
	"icapture/pkg/video"
)

var (
	ErrInvalidName = errors.New("invalid file name")
	ErrNotFound    = errors.New("file not found")
)

// Storage catalogs the stills and recordings kept in the data directory.
type Storage struct {
	lock sync.Mutex
	fs   afero.Fs
	dir  string
}

type Info struct {
	Images      int    `json:"images"`
	Videos      int    `json:"videos"`
	LatestImage string `json:"latestImage"`
	LatestVideo string `json:"latestVideo"`

	UpdateAt time.Time `json:"updateAt"`
}

func New(fs afero.Fs, dir string) (*Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage dir can not be empty")
	}
	s := &Storage{fs: fs, dir: dir}
	if err := util.MkdirAll(fs, dir); err != nil {
		return nil, err
	}
	if err := s.checkInitInfo(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Storage) Dir() string {
	return s.dir
}

// Record registers a file written into the data directory by a grab or a recording.
func (s *Storage) Record(file string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	name := filepath.Base(file)
	kind := Kind(name)
	if kind == "" {
		return fmt.Errorf("%w: %s", ErrInvalidName, name)
	}
	info, err := s.loadInfo()
	if err != nil {
		return err
	}
	switch kind {
	case consts.KindImage:
		info.Images++
		info.LatestImage = name
	case consts.KindVideo:
		info.Videos++
		info.LatestVideo = name
	}

	return s.dumpInfo(info)
}

func (s *Storage) Info() (*Info, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.loadInfo()
}

// List returns the captured files, newest first.
func (s *Storage) List() ([]types.File, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, err
	}
	res := make([]types.File, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		kind := Kind(e.Name())
		if kind == "" {
			continue
		}
		res = append(res, types.File{
			Name:    e.Name(),
			Kind:    kind,
			Size:    humanize.Bytes(uint64(e.Size())),
			ModTime: e.ModTime(),
		})
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].ModTime.After(res[j].ModTime)
	})

	return res, nil
}

func (s *Storage) Path(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}

	return path.Join(s.dir, name), nil
}

func (s *Storage) Delete(name string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := checkName(name); err != nil {
		return err
	}
	err := s.fs.Remove(path.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return err
	}

	info, err := s.loadInfo()
	if err != nil {
		return err
	}
	switch name {
	case info.LatestImage:
		info.LatestImage = ""
	case info.LatestVideo:
		info.LatestVideo = ""
	}

	return s.dumpInfo(info)
}

// Kind classifies a file name as an image, a video or neither ("").
func Kind(name string) string {
	ext := strings.ToLower(path.Ext(name))
	switch {
	case ext == consts.DefaultImageExt:
		return consts.KindImage
	case video.IsVideoExt(ext):
		return consts.KindVideo
	default:
		return ""
	}
}

func checkName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == consts.DefaultInfoFile {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if Kind(name) == "" {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return nil
}

func (s *Storage) loadInfo() (*Info, error) {
	data, err := afero.ReadFile(s.fs, s.getInfoPath())
	if err != nil {
		return nil, fmt.Errorf("read storage info err: %w", err)
	}
	info := &Info{}
	if err = json.Unmarshal(data, info); err != nil {
		return nil, fmt.Errorf("unmarshal storage info err: %w", err)
	}

	return info, nil
}

func (s *Storage) dumpInfo(info *Info) error {
	info.UpdateAt = time.Now()
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}

	return afero.WriteFile(s.fs, s.getInfoPath(), data, consts.DefaultFilePerm)
}

func (s *Storage) getInfoPath() string {
	return path.Join(s.dir, consts.DefaultInfoFile)
}

func (s *Storage) checkInitInfo() error {
	_, err := s.fs.Stat(s.getInfoPath())
	if errors.Is(err, os.ErrNotExist) {
		return s.dumpInfo(&Info{})
	}

	return err
}
