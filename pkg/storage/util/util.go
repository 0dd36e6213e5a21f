package util

import (
	"github.com/spf13/afero"

	"icapture/pkg/storage/consts"
)

func MkdirAll(fs afero.Fs, dirs ...string) error {
	for _, d := range dirs {
		err := fs.MkdirAll(d, consts.DefaultDirPerm)
		if err != nil {
			return err
		}
	}

	return nil
}
