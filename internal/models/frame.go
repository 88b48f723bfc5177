package models

import "time"

// TrackSignal 单帧内单个目标的信号
//
// ContactDetected 由融合层在关联手机框后回填，上游发布时为 false
type TrackSignal struct {
	TrackID         string        `json:"track_id"`
	Region          Rect          `json:"region"`
	HeadDirection   HeadDirection `json:"head_direction"`
	Confidence      float64       `json:"confidence"`
	Identity        string        `json:"identity_name,omitempty"`
	IdentityScore   *float64      `json:"identity_score,omitempty"`
	ContactDetected bool          `json:"contact_detected"`
}

// FrameSignal 单帧的完整感知信号（所有目标 + 手机检测框）
type FrameSignal struct {
	FrameID      int64         `json:"frame_id"`
	Timestamp    time.Time     `json:"timestamp"`
	Tracks       []TrackSignal `json:"tracks"`
	PhoneRegions []Rect        `json:"phone_regions,omitempty"`
}

// FrameSummary 单帧概要统计
type FrameSummary struct {
	TotalTracks     int     `json:"total_tracks"`
	TracksWithPhone int     `json:"tracks_with_phone"`
	LookingAway     int     `json:"looking_away"`
	AvgConfidence   float64 `json:"avg_confidence"`
	DistractionRate float64 `json:"distraction_rate"`
}

// Summary 计算当前帧的概要统计（需在融合层回填接触标志后调用）
func (f *FrameSignal) Summary() FrameSummary {
	if len(f.Tracks) == 0 {
		return FrameSummary{}
	}

	total := len(f.Tracks)
	withPhone := 0
	lookingAway := 0
	sumConf := 0.0
	for _, t := range f.Tracks {
		if t.ContactDetected {
			withPhone++
		}
		if t.HeadDirection != HeadForward {
			lookingAway++
		}
		sumConf += t.Confidence
	}

	return FrameSummary{
		TotalTracks:     total,
		TracksWithPhone: withPhone,
		LookingAway:     lookingAway,
		AvgConfidence:   sumConf / float64(total),
		DistractionRate: float64(withPhone+lookingAway) / float64(total*2),
	}
}
