package dataset

import (
	"bytes"
	"fmt"
)

// DefaultLabelWidth is the width of the l_name dimension used for sensor
// and sensor-pair labels when a dataset is created by this tool.
const DefaultLabelWidth = 30

// packLabels renders labels as a fixed-width char block, NUL padded, the
// layout of parameter_sensors and k_res_sensors.
func packLabels(labels []string, width int) ([]byte, error) {
	out := make([]byte, len(labels)*width)
	for i, label := range labels {
		if len(label) > width {
			return nil, fmt.Errorf("dataset: label %q exceeds width %d", label, width)
		}
		copy(out[i*width:], label)
	}
	return out, nil
}

// unpackLabels splits a fixed-width char block back into labels, trimming
// NUL and trailing-space padding.
func unpackLabels(raw []byte, width int) []string {
	if width <= 0 {
		return nil
	}
	out := make([]string, 0, len(raw)/width)
	for off := 0; off+width <= len(raw); off += width {
		cell := raw[off : off+width]
		cell = bytes.TrimRight(cell, "\x00 ")
		out = append(out, string(cell))
	}
	return out
}
