package render

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

////////////////////////////////////////////////////////////////////////////////

type counts struct {
	samples int64
	events  float64
}

func (c *counts) add(events float64) {
	c.events += events
	c.samples++
}

////////////////////////////////////////////////////////////////////////////////

type block struct {
	parent *block
	name   string
	level  int

	counts    counts
	truncated bool

	// Both are fractions of the root weight, in [0, 1].
	offset float64
	weight float64

	children map[string]*block
}

type blocksBuilder struct {
	root   *block
	blocks []*block
}

func newBlocksBuilder() *blocksBuilder {
	res := &blocksBuilder{}
	res.root = res.newBlock(nil, "all", 0)
	return res
}

func (b *blocksBuilder) child(parent *block, name string) *block {
	res, found := parent.children[name]
	if !found {
		res = b.newBlock(parent, name, parent.level+1)
		parent.children[name] = res
	}
	return res
}

func (b *blocksBuilder) newBlock(parent *block, name string, level int) *block {
	res := &block{
		parent:   parent,
		name:     name,
		level:    level,
		children: make(map[string]*block),
	}
	b.blocks = append(b.blocks, res)
	return res
}

// Finish folds narrow blocks and lays the tree out.
// Children are ordered by name, the way flamegraph.pl does it.
func (b *blocksBuilder) Finish(minWeight float64) []*block {
	b.trimBlocks(minWeight)
	b.pushDownOffsets(b.root, b.root.counts.events, 0.0)
	return b.blocks
}

func (b *blocksBuilder) trimBlocks(minWeight float64) {
	if minWeight < 1e-9 {
		return
	}
	minEvents := minWeight * b.root.counts.events

	oldBlocks := b.blocks
	b.blocks = make([]*block, 0, len(oldBlocks))

	for _, blk := range oldBlocks {
		if blk.parent != nil && blk.parent.truncated {
			blk.truncated = true
			continue
		}
		if blk.parent != nil && blk.counts.events < minEvents {
			delete(blk.parent.children, blk.name)
			blk.truncated = true
			sink := b.child(blk.parent, truncatedStack)
			sink.counts.events += blk.counts.events
			sink.counts.samples += blk.counts.samples
		} else {
			b.blocks = append(b.blocks, blk)
		}
	}
}

func (b *blocksBuilder) pushDownOffsets(blk *block, total, offset float64) {
	blk.offset = offset
	if total > 0 {
		blk.weight = blk.counts.events / total
	}

	names := maps.Keys(blk.children)
	slices.Sort(names)
	for _, name := range names {
		child := blk.children[name]
		b.pushDownOffsets(child, total, offset)
		offset += child.weight
	}
}

////////////////////////////////////////////////////////////////////////////////

type blocksIterator struct {
	events  float64
	block   *block
	builder *blocksBuilder
	depth   int
}

func (b *blocksBuilder) MakeIterator(events float64) *blocksIterator {
	i := &blocksIterator{
		events:  events,
		block:   b.root,
		builder: b,
	}
	i.block.counts.add(events)
	return i
}

func (i *blocksIterator) Advance(name string) {
	i.block = i.builder.child(i.block, name)
	i.block.counts.add(i.events)
	i.depth++
}

func (i *blocksIterator) Depth() int {
	return i.depth
}
