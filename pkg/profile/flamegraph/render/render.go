package render

import (
	_ "embed"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"image/color"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/dustin/go-humanize"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"lukechampine.com/uint128"

	"github.com/yandex/dhatfold/pkg/profile/flamegraph/collapsed"
	"github.com/yandex/dhatfold/pkg/profile/flamegraph/render/format"
)

//go:embed tmpl.svg
var svgTmpl string

var tmpl = template.Must(template.New("svg").Funcs(template.FuncMap{
	"xml": escapeXML,
	"num": func(v float64) string {
		return strconv.FormatFloat(v, 'f', 2, 64)
	},
}).Parse(svgTmpl))

type Format string

const (
	SVGFormat  Format = "svg"
	JSONFormat Format = "json"
)

type Palette string

const (
	// Red and yellow, the classic CPU flamegraph colours.
	PaletteHot Palette = "hot"
	// Greens, the conventional palette for memory flamegraphs.
	PaletteMem Palette = "mem"
)

const truncatedStack = "(truncated stack)"

// Frames narrower than this are not drawn at all.
const minFrameWidthPx = 0.1

////////////////////////////////////////////////////////////////////////////////

type FlameGraph struct {
	format   Format
	palette  Palette
	inverted bool

	title     string
	subtitle  string
	maxDepth  int
	minWeight float64
	frameType string
	eventType string

	width               float64
	blockHeight         float64
	blockVerticalMargin float64

	fontSize  float64
	fontWidth float64

	padX float64

	bb     *blocksBuilder
	blocks []*block
}

func NewFlameGraph() *FlameGraph {
	return &FlameGraph{
		format:              SVGFormat,
		palette:             PaletteHot,
		title:               "Flame Graph",
		frameType:           "Function",
		eventType:           "samples",
		width:               1200,
		blockHeight:         16.0,
		blockVerticalMargin: 1.0,

		fontSize:  12.0,
		fontWidth: 0.59,

		padX: 10.0,
		bb:   newBlocksBuilder(),
	}
}

func (f *FlameGraph) SetInverted(value bool) {
	f.inverted = value
}

func (f *FlameGraph) SetTitle(value string) {
	f.title = value
}

func (f *FlameGraph) SetSubtitle(value string) {
	f.subtitle = value
}

func (f *FlameGraph) SetDepthLimit(value int) {
	f.maxDepth = value
}

func (f *FlameGraph) SetMinWeight(value float64) {
	f.minWeight = value
}

func (f *FlameGraph) SetFrameType(typ string) {
	f.frameType = typ
}

func (f *FlameGraph) SetSampleType(typ string) {
	f.eventType = typ
}

func (f *FlameGraph) SetWidth(value float64) {
	f.width = value
}

func (f *FlameGraph) SetFontSize(size float64) {
	f.fontSize = size
}

func (f *FlameGraph) SetFormat(format Format) {
	f.format = format
}

func (f *FlameGraph) SetPalette(palette Palette) {
	f.palette = palette
}

////////////////////////////////////////////////////////////////////////////////

func reverse(s string) string {
	runes := []rune(s)
	slices.Reverse(runes)
	return string(runes)
}

func namehash(name string) float64 {
	vector := 0.0
	weight := 1.0
	max := 1.0
	mod := 10
	for _, c := range name {
		i := int(c) % mod

		vector += float64(i) / float64(mod-1) * weight
		mod += 1
		max += 1 * weight
		weight *= 0.7

		if mod > 13 {
			break
		}
	}
	return (1.0 - vector/max)
}

func (f *FlameGraph) color(name string) color.RGBA {
	v1 := namehash(name)
	v2 := namehash(reverse(name))

	switch f.palette {
	case PaletteMem:
		return HSV(90+60*v1, 0.35+0.4*v2, 0.75+0.2*v2)
	default:
		return color.RGBA{
			R: uint8(205 + 50*v2),
			G: uint8(0 + 230*v1),
			B: uint8(0 + 55*v2),
		}
	}
}

func (f *FlameGraph) background() (top, bottom string) {
	if f.palette == PaletteMem {
		return "#eeeeee", "#e0e0ff"
	}
	return "#eeeeee", "#eeeeb0"
}

////////////////////////////////////////////////////////////////////////////////

func (f *FlameGraph) AddCollapsedProfile(profile *collapsed.Profile) error {
	for _, sample := range profile.Samples {
		iter := f.bb.MakeIterator(toFloat(sample.Value))
		for i, name := range sample.Stack {
			if f.maxDepth > 0 && f.maxDepth < len(sample.Stack) && i+1 == f.maxDepth {
				iter.Advance(truncatedStack)
				break
			}
			iter.Advance(name)
		}
	}
	return nil
}

func toFloat(value uint128.Uint128) float64 {
	return float64(value.Hi)*math.Exp2(64) + float64(value.Lo)
}

func (f *FlameGraph) Render(w io.Writer) error {
	f.blocks = f.bb.Finish(f.minWeight)
	return f.renderBlocks(f.blocks, w)
}

func (f *FlameGraph) TotalEvents() float64 {
	return f.bb.root.counts.events
}

func (f *FlameGraph) RenderCollapsed(profile *collapsed.Profile, w io.Writer) error {
	if err := f.AddCollapsedProfile(profile); err != nil {
		return err
	}
	return f.Render(w)
}

func (f *FlameGraph) renderBlocks(blocks []*block, w io.Writer) error {
	switch f.format {
	case JSONFormat:
		return f.renderBlocksToJSON(w)
	case SVGFormat:
		return f.renderBlocksToSVG(blocks, w)
	default:
		return fmt.Errorf("unsupported format: %s", f.format)
	}
}

////////////////////////////////////////////////////////////////////////////////

type frame struct {
	X       float64
	Y       float64
	Width   float64
	TextX   float64
	TextY   float64
	Level   int
	Fill    string
	Label   string
	Tooltip string
}

func (f *FlameGraph) renderBlocksToSVG(blocks []*block, w io.Writer) error {
	maxLevel := 0
	for _, block := range blocks {
		if block.level > maxLevel {
			maxLevel = block.level
		}
	}

	titleFontSize := f.fontSize + 5
	padTop := titleFontSize * 2.5
	if f.subtitle != "" {
		padTop += f.fontSize * 2
	}
	padBottom := f.fontSize * 2

	canvasWidth := f.width - 2.0*f.padX
	canvasHeight := (f.blockHeight + f.blockVerticalMargin) * float64(1+maxLevel)

	frames := make([]frame, 0, len(blocks))
	if f.TotalEvents() > 0 {
		for _, block := range blocks {
			width := block.weight * canvasWidth
			if width < minFrameWidthPx {
				continue
			}

			x := f.padX + block.offset*canvasWidth
			y := padTop
			if f.inverted {
				y += float64(block.level) * (f.blockHeight + f.blockVerticalMargin)
			} else {
				y += canvasHeight - float64(1+block.level)*(f.blockHeight+f.blockVerticalMargin)
			}

			rgb := f.color(block.name)
			frames = append(frames, frame{
				X:       x,
				Y:       y,
				Width:   width,
				TextX:   x + 3,
				TextY:   y + f.blockHeight/2 + f.fontSize/2 - 1,
				Level:   block.level,
				Fill:    fmt.Sprintf("rgb(%d, %d, %d)", rgb.R, rgb.G, rgb.B),
				Label:   f.fitLabel(block.name, width),
				Tooltip: f.tooltip(block),
			})
		}
	}

	sort.Slice(frames, func(i, j int) bool {
		if frames[i].X == frames[j].X {
			return frames[i].Level < frames[j].Level
		}
		return frames[i].X < frames[j].X
	})

	top, bottom := f.background()
	return tmpl.Execute(w, &struct {
		Width            float64
		Height           float64
		FontSize         float64
		TitleFontSize    float64
		BlockHeight      float64
		CenterX          float64
		TitleY           float64
		SubtitleY        float64
		EmptyY           float64
		Title            string
		Subtitle         string
		BackgroundTop    string
		BackgroundBottom string
		Frames           []frame
	}{
		Width:            f.width,
		Height:           padTop + canvasHeight + padBottom,
		FontSize:         f.fontSize,
		TitleFontSize:    titleFontSize,
		BlockHeight:      f.blockHeight,
		CenterX:          f.width / 2,
		TitleY:           titleFontSize * 1.5,
		SubtitleY:        titleFontSize*1.5 + f.fontSize*1.5,
		EmptyY:           padTop + canvasHeight/2,
		Title:            f.title,
		Subtitle:         f.subtitle,
		BackgroundTop:    top,
		BackgroundBottom: bottom,
		Frames:           frames,
	})
}

// fitLabel truncates the name to the block width, flamegraph.pl style.
func (f *FlameGraph) fitLabel(name string, width float64) string {
	chars := int(width / (f.fontSize * f.fontWidth))
	if chars < 3 {
		return ""
	}
	runes := []rune(name)
	if len(runes) <= chars {
		return name
	}
	return string(runes[:chars-2]) + ".."
}

func (f *FlameGraph) tooltip(block *block) string {
	return fmt.Sprintf("%s (%s %s, %.2f%%)",
		block.name,
		humanize.Commaf(block.counts.events),
		f.eventType,
		100*block.weight,
	)
}

func escapeXML(s string) string {
	var buf strings.Builder
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

////////////////////////////////////////////////////////////////////////////////

func (f *FlameGraph) renderBlocksToJSON(w io.Writer) error {
	strtab := NewStringTable()

	var nodeLevels [][]format.RenderingNode
	var visit func(blk *block, parentIndex int)
	visit = func(blk *block, parentIndex int) {
		if len(nodeLevels) <= blk.level {
			nodeLevels = append(nodeLevels, nil)
		}
		index := len(nodeLevels[blk.level])
		nodeLevels[blk.level] = append(nodeLevels[blk.level], format.RenderingNode{
			ParentIndex: parentIndex,
			TextID:      strtab.Add(blk.name),
			SampleCount: blk.counts.samples,
			EventCount:  blk.counts.events,
		})

		names := maps.Keys(blk.children)
		slices.Sort(names)
		for _, name := range names {
			visit(blk.children[name], index)
		}
	}
	visit(f.bb.root, -1)

	meta := format.ProfileMeta{
		EventType: strtab.Add(f.eventType),
		FrameType: strtab.Add(f.frameType),
		Version:   1,
	}

	profileData := format.ProfileData{
		Nodes:   nodeLevels,
		Strings: strtab.Table(),
		Meta:    meta,
	}

	return json.NewEncoder(w).Encode(profileData)
}
