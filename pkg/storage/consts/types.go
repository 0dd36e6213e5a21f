package consts

const (
	DefaultInfoFile = "info.json"

	DefaultImageExt = ".png"

	// TimestampLayout names captured files, e.g. 2024-05-01_13-45-12.345.
	TimestampLayout = "2006-01-02_15-04-05.000"

	DefaultFilePerm = 0660
	DefaultDirPerm  = 0750
)

const (
	KindImage = "image"
	KindVideo = "video"
)
