package cmd

import (
	"github.com/fatih/color"

	"cinematch/internal/models"
)

func statusColor(status string) string {
	switch status {
	case models.JobStatusCompleted:
		return color.GreenString(status)
	case models.JobStatusFailed:
		return color.RedString(status)
	case models.JobStatusRunning:
		return color.CyanString(status)
	default:
		return color.YellowString(status)
	}
}
