package camera

import (
	"fmt"

	v4l2dev "github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"
	"go.uber.org/zap"

	"icapture/pkg/ov"
	"icapture/pkg/types"
	"icapture/pkg/utils"
)

var logger *zap.SugaredLogger

func init() {
	logger = utils.GetLogger()
}

func applyControls(dev *v4l2dev.Device, ctrls types.Controls) {
	for id, value := range ctrls {
		if err := dev.SetControlValue(v4l2.CtrlID(id), v4l2.CtrlValue(value)); err != nil {
			logger.Warnf("set ctrl(%d) to %d, err: %s", id, value, err)
			continue
		}
		logger.Infof("set ctrl(%d) to %d", id, value)
	}
}

func queryControls(dev *v4l2dev.Device) ([]ov.Control, error) {
	ctrls, err := v4l2.QueryAllExtControls(dev.Fd())
	if err != nil {
		return nil, err
	}
	res := make([]ov.Control, 0, len(ctrls))
	for _, ctrl := range ctrls {
		res = append(res, ov.Control{
			ID:      uint32(ctrl.ID),
			Name:    ctrl.Name,
			Value:   int32(ctrl.Value),
			Default: int32(ctrl.Default),
			Minimum: ctrl.Minimum,
			Maximum: ctrl.Maximum,
			Step:    ctrl.Step,
		})
	}

	return res, nil
}

func CtrlToString(ctrl ov.Control) string {
	return fmt.Sprintf("Control id (%d) name: %s\t[min: %d; max: %d; step: %d; default: %d current_val: %d]\n",
		ctrl.ID, ctrl.Name, ctrl.Minimum, ctrl.Maximum, ctrl.Step, ctrl.Default, ctrl.Value)
}
