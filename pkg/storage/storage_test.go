package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
)

const dir = "/data"

func newStorage(t *testing.T) (*Storage, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	s, err := New(fs, dir)
	checkErr(t, err)

	return s, fs
}

func TestRecordAndList(t *testing.T) {
	s, fs := newStorage(t)

	files := []string{"2024-01-01_10-00-00.000.png", "2024-01-01_10-00-01.000.avi", "notes.txt"}
	for i, f := range files {
		checkErr(t, afero.WriteFile(fs, dir+"/"+f, make([]byte, 10*(i+1)), 0660))
		checkErr(t, fs.Chtimes(dir+"/"+f, time.Now(), time.Now().Add(time.Duration(i)*time.Second)))
	}
	checkErr(t, s.Record(dir+"/"+files[0]))
	checkErr(t, s.Record(dir+"/"+files[1]))
	if err := s.Record(dir + "/" + files[2]); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("err = %v, want ErrInvalidName", err)
	}

	info, err := s.Info()
	checkErr(t, err)
	if info.Images != 1 || info.Videos != 1 {
		t.Fatalf("info = %+v", info)
	}
	if info.LatestImage != files[0] || info.LatestVideo != files[1] {
		t.Fatalf("info = %+v", info)
	}

	list, err := s.List()
	checkErr(t, err)
	if len(list) != 2 {
		t.Fatalf("list = %+v", list)
	}
	if list[0].Name != files[1] || list[0].Kind != "video" || list[0].Size != "20 B" {
		t.Fatalf("newest entry = %+v", list[0])
	}
}

func TestDelete(t *testing.T) {
	s, fs := newStorage(t)
	name := "2024-01-01_10-00-00.000.png"
	checkErr(t, afero.WriteFile(fs, dir+"/"+name, []byte("png"), 0660))
	checkErr(t, s.Record(name))

	checkErr(t, s.Delete(name))
	if ok, _ := afero.Exists(fs, dir+"/"+name); ok {
		t.Fatal("file should be removed")
	}
	info, err := s.Info()
	checkErr(t, err)
	if info.LatestImage != "" {
		t.Fatalf("latest image = %q", info.LatestImage)
	}

	if err = s.Delete(name); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	for _, bad := range []string{"", "../x.png", "info.json", "a/b.png", "x.txt"} {
		if err = s.Delete(bad); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("delete %q: err = %v, want ErrInvalidName", bad, err)
		}
	}
}

func checkErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
