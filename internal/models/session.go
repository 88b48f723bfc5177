package models

import "time"

// Session 分析会话
type Session struct {
	SessionID   string     `json:"session_id"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Duration    float64    `json:"duration_seconds"`
	TotalFrames int64      `json:"total_frames"`
	TotalTracks int        `json:"total_tracks"`
}

// AttendanceStatus 出勤状态
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceLeft    AttendanceStatus = "left"
)

// AttendanceRecord 出勤记录
type AttendanceRecord struct {
	TrackID      string           `json:"track_id"`
	Identity     string           `json:"identity_name,omitempty"`
	CheckInTime  time.Time        `json:"check_in_time"`
	CheckOutTime *time.Time       `json:"check_out_time,omitempty"`
	Duration     int64            `json:"duration_seconds"`
	Status       AttendanceStatus `json:"status"`
}
