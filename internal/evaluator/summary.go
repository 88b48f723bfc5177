package evaluator

import "wisefido-behavior/internal/models"

// AlertSummary 一轮评估的告警概览
type AlertSummary struct {
	TotalAlerts      int `json:"total_alerts"`
	CriticalAlerts   int `json:"critical_alerts"`
	WarningAlerts    int `json:"warning_alerts"`
	TracksWithAlerts int `json:"tracks_with_alerts"`
}

// CriticalAlerts 过滤出 critical 级别的告警
func CriticalAlerts(all map[string][]models.Alert) []models.Alert {
	var out []models.Alert
	for _, alerts := range all {
		for _, a := range alerts {
			if a.AlertLevel == models.AlertCritical {
				out = append(out, a)
			}
		}
	}
	return out
}

// AlertsByType 过滤出指定类型的告警
func AlertsByType(all map[string][]models.Alert, alertType models.AlertType) []models.Alert {
	var out []models.Alert
	for _, alerts := range all {
		for _, a := range alerts {
			if a.AlertType == alertType {
				out = append(out, a)
			}
		}
	}
	return out
}

// Summarize 统计告警总量与分级计数
func Summarize(all map[string][]models.Alert) AlertSummary {
	s := AlertSummary{TracksWithAlerts: len(all)}
	for _, alerts := range all {
		s.TotalAlerts += len(alerts)
		for _, a := range alerts {
			switch a.AlertLevel {
			case models.AlertCritical:
				s.CriticalAlerts++
			case models.AlertWarning:
				s.WarningAlerts++
			}
		}
	}
	return s
}
