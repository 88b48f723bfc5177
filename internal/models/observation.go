package models

import "time"

// HeadDirection 头部朝向分类（由上游感知服务的姿态求解产生）
type HeadDirection string

const (
	HeadForward HeadDirection = "forward"
	HeadLeft    HeadDirection = "left"
	HeadRight   HeadDirection = "right"
	HeadUp      HeadDirection = "up"
	HeadDown    HeadDirection = "down"
	HeadNoFace  HeadDirection = "no_face"
	HeadUnknown HeadDirection = "unknown"
)

// Rect 边界框，像素坐标 [x1,y1,x2,y2]
type Rect struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Area 面积（负宽高按 0 处理）
func (r Rect) Area() float64 {
	w := r.X2 - r.X1
	h := r.Y2 - r.Y1
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return w * h
}

// Contains 点是否在框内（含边界）
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X1 && x <= r.X2 && y >= r.Y1 && y <= r.Y2
}

// Intersection 两框交集面积
func (r Rect) Intersection(o Rect) float64 {
	x1 := r.X1
	if o.X1 > x1 {
		x1 = o.X1
	}
	y1 := r.Y1
	if o.Y1 > y1 {
		y1 = o.Y1
	}
	x2 := r.X2
	if o.X2 < x2 {
		x2 = o.X2
	}
	y2 := r.Y2
	if o.Y2 < y2 {
		y2 = o.Y2
	}
	w := x2 - x1
	h := y2 - y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Observation 单帧单目标的感知观测（创建后不可变）
type Observation struct {
	Timestamp       time.Time     `json:"timestamp"`
	HeadDirection   HeadDirection `json:"head_direction"`
	ContactDetected bool          `json:"contact_detected"`
	Confidence      float64       `json:"confidence"`
	Region          Rect          `json:"region"`
	Identity        string        `json:"identity_name,omitempty"`
}
