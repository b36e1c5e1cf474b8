package domain

// Position is a node's free-form offset on the canvas
type Position struct {
	DX float64 `json:"dx" yaml:"dx"`
	DY float64 `json:"dy" yaml:"dy"`
}

