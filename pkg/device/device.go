// Package device resolves a configured capture device, by enumeration index or
// by human-readable name, to the identifier the platform opens it with.
package device

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("device not found")

// Info identifies one enumerated capture device.
type Info struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
	Name  string `json:"name"`
}

func (i Info) String() string {
	return fmt.Sprintf("%s (%s)", i.Name, i.Path)
}

// Lister enumerates the capture devices available on the platform.
type Lister interface {
	List() ([]Info, error)
}

// Names returns the device names in enumeration order.
func Names(l Lister) ([]string, error) {
	infos, err := l.List()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}

	return names, nil
}

// Resolve picks the device named name, or the device at index when name is empty.
// When several devices share a name the last one wins.
func Resolve(l Lister, index int, name string) (Info, error) {
	infos, err := l.List()
	if err != nil {
		return Info{}, fmt.Errorf("enumerate capture devices: %w", err)
	}

	if name != "" {
		found := -1
		for i, info := range infos {
			if info.Name == name {
				found = i
			}
		}
		if found < 0 {
			return Info{}, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return infos[found], nil
	}

	for _, info := range infos {
		if info.Index == index {
			return info, nil
		}
	}

	return Info{}, fmt.Errorf("%w: #%d", ErrNotFound, index)
}
