// Package format describes the JSON flamegraph layout.
// Nodes are grouped by depth, each node pointing at its parent in the previous row.
package format

type ProfileData struct {
	Nodes   [][]RenderingNode `json:"rows"`
	Strings []string          `json:"stringTable"`
	Meta    ProfileMeta       `json:"meta"`
}

type StringIndex = int

type ProfileMeta struct {
	EventType StringIndex `json:"eventType"`
	FrameType StringIndex `json:"frameType"`
	Version   int         `json:"version"`
}

type RenderingNode struct {
	// -1 for the root.
	ParentIndex int         `json:"parentIndex"`
	TextID      StringIndex `json:"textId"`
	SampleCount int64       `json:"sampleCount"`
	EventCount  float64     `json:"eventCount"`
}
