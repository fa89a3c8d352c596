package models

type ZoomRequest struct {
	Zoom float64 `json:"zoom" binding:"required"`
}

type RotateRequest struct {
	Degrees float64 `json:"degrees"`
}

type FlipRequest struct {
	Axis string `json:"axis" binding:"required,oneof=horizontal vertical"`
}

type PanRequest struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

type CropRequest struct {
	X      float64 `json:"x" binding:"min=0"`
	Y      float64 `json:"y" binding:"min=0"`
	Width  float64 `json:"width" binding:"required,gt=0"`
	Height float64 `json:"height" binding:"required,gt=0"`
}

const (
	FlipHorizontal = "horizontal"
	FlipVertical   = "vertical"
)
