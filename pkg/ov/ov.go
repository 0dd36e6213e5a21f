package ov

import (
	"icapture/pkg/capture"
	"icapture/pkg/device"
)

// Control is a device control as reported by the driver.
type Control struct {
	ID      uint32 `json:"id"`
	Name    string `json:"name"`
	Value   int32  `json:"value"`
	Default int32  `json:"default"`
	Minimum int32  `json:"minimum"`
	Maximum int32  `json:"maximum"`
	Step    int32  `json:"step"`
}

type InitRequest struct {
	// Path to a config file; the server default is used when empty.
	Path string `json:"path"`
}

type FPSRequest struct {
	FPS uint32 `json:"fps" binding:"required"`
}

type SizeRequest struct {
	Width  uint32 `json:"width" binding:"required"`
	Height uint32 `json:"height" binding:"required"`
}

type IntervalRequest struct {
	Interval string `json:"interval" binding:"required"`
}

type PropertyResponse struct {
	Match  bool   `json:"match"`
	FPS    uint32 `json:"fps,omitempty"`
	Width  uint32 `json:"width,omitempty"`
	Height uint32 `json:"height,omitempty"`
}

// Status is the state of the capture resource.
type Status struct {
	Initialized bool             `json:"initialized"`
	Device      *device.Info     `json:"device,omitempty"`
	Busy        bool             `json:"busy"`
	State       string           `json:"state"`
	Session     *capture.Session `json:"session,omitempty"`
	Frames      int64            `json:"frames"`
	Schedule    string           `json:"schedule,omitempty"`
}
