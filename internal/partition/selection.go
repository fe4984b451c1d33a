package partition

import (
	"github.com/fakeyudi/partline/internal/interaction"
	"github.com/fakeyudi/partline/internal/timeline"
)

// SetHoverState sets the hover state of one partition.
func (p *Partitioner) SetHoverState(index int, h interaction.Hover) error {
	if index < 0 || index >= len(p.parts) {
		return ErrInvalidIndex
	}
	p.parts[index].Interaction.Hover = h
	return nil
}

// SetSelectionState sets the selection state of one partition without
// applying the selection policy.
func (p *Partitioner) SetSelectionState(index int, s interaction.Selection) error {
	if index < 0 || index >= len(p.parts) {
		return ErrInvalidIndex
	}
	p.parts[index].Interaction.Selection = s
	return nil
}

// Hover emphasizes the partition under the pointer and returns every other
// emphasized partition to its resting state.
func (p *Partitioner) Hover(index int) error {
	if index < 0 || index >= len(p.parts) {
		return ErrInvalidIndex
	}
	p.ClearHover()
	p.parts[index].Interaction.Hover = interaction.HoverEmphasized
	return nil
}

// ClearHover drops emphasis from all partitions.
func (p *Partitioner) ClearHover() {
	for i := range p.parts {
		if p.parts[i].Interaction.Hover == interaction.HoverEmphasized {
			p.parts[i].Interaction.Hover = p.baseHover(p.parts[i])
		}
	}
}

// Select marks one partition selected. In Single mode the previous selection
// is cleared first.
func (p *Partitioner) Select(index int) error {
	if index < 0 || index >= len(p.parts) {
		return ErrInvalidIndex
	}
	if p.policy.Mode == interaction.Single {
		p.ClearSelection()
	}
	p.parts[index].Interaction.Selection = interaction.Selected
	return nil
}

// Deselect clears one partition's selection.
func (p *Partitioner) Deselect(index int) error {
	if index < 0 || index >= len(p.parts) {
		return ErrInvalidIndex
	}
	p.parts[index].Interaction.Selection = interaction.SelectionDefault
	return nil
}

// ToggleSelect flips one partition between selected and not selected.
func (p *Partitioner) ToggleSelect(index int) error {
	if index < 0 || index >= len(p.parts) {
		return ErrInvalidIndex
	}
	if p.parts[index].Interaction.Selection == interaction.Selected {
		return p.Deselect(index)
	}
	return p.Select(index)
}

// SelectRange selects every partition inside r and partially selects those
// that only overlap it. It requires a Multi-mode track.
func (p *Partitioner) SelectRange(r timeline.Range) error {
	if p.policy.Mode != interaction.Multi {
		return ErrSingleSelection
	}
	for i, part := range p.parts {
		switch {
		case !r.Overlaps(part.Start, part.End):
			continue
		case !part.Start.Before(r.Start) && !part.End.After(r.End):
			p.parts[i].Interaction.Selection = interaction.Selected
		default:
			p.parts[i].Interaction.Selection = interaction.PartiallySelected
		}
	}
	return nil
}

// ClearSelection deselects every partition.
func (p *Partitioner) ClearSelection() {
	for i := range p.parts {
		p.parts[i].Interaction.Selection = interaction.SelectionDefault
	}
}

// SelectedIndices returns the indices of selected or partially selected partitions.
func (p *Partitioner) SelectedIndices() []int {
	var out []int
	for i, part := range p.parts {
		if part.Interaction.IsSelected() {
			out = append(out, i)
		}
	}
	return out
}

// PointerReleased applies the DismissSelectionOnRelease policy and reports
// whether the selection was dismissed.
func (p *Partitioner) PointerReleased() bool {
	if !p.policy.DismissSelectionOnRelease {
		return false
	}
	p.ClearSelection()
	return true
}

// ApplyRangeFilter deemphasizes partitions that do not overlap r. A nil r
// removes the filter.
func (p *Partitioner) ApplyRangeFilter(r *timeline.Range) {
	if r != nil {
		f := *r
		p.rangeFilter = &f
	} else {
		p.rangeFilter = nil
	}
	for i := range p.parts {
		if p.parts[i].Interaction.Hover == interaction.HoverEmphasized {
			continue
		}
		p.parts[i].Interaction.Hover = p.baseHover(p.parts[i])
	}
}

// baseHover is the hover state a partition rests in when not under the pointer.
func (p *Partitioner) baseHover(part Partition) interaction.Hover {
	if p.rangeFilter != nil && !p.rangeFilter.Overlaps(part.Start, part.End) {
		return interaction.HoverDeemphasized
	}
	return interaction.HoverDefault
}
