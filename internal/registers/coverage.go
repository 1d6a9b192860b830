package registers

import "sort"

// Gap is a bit range [Start, End) within a register's width that no field in
// the given block claims.
type Gap struct {
	Start   int `json:"Start"`
	End     int `json:"End"`
	BlockId int `json:"BlockId"`
}

// Overlap is a pair of fields in the same block whose bit ranges intersect.
type Overlap struct {
	A *FieldDescriptor
	B *FieldDescriptor
}

// FindOverlaps reports every same-block pair of fields with intersecting
// ranges. Fields whose position or length is not statically known are
// skipped, since their recorded ranges are placeholders.
func FindOverlaps(fields []*FieldDescriptor) []Overlap {
	var overlaps []Overlap
	for i, a := range fields {
		if a.SpecialKind.HasAny(KindVariableLength | KindVariablePosition) {
			continue
		}
		for _, b := range fields[i+1:] {
			if b.SpecialKind.HasAny(KindVariableLength | KindVariablePosition) {
				continue
			}
			if a.BlockId != b.BlockId {
				continue
			}
			if a.Range.Overlaps(b.Range) {
				overlaps = append(overlaps, Overlap{A: a, B: b})
			}
		}
	}
	return overlaps
}

// FindGaps reports the unclaimed bit ranges of a register, per block. Gap
// analysis needs a known width and fully constant field geometry; otherwise
// it returns nothing rather than guessing. A register with no fields at all
// yields a single gap covering its full width.
func FindGaps(desc *RegisterDescriptor) []Gap {
	if desc.Width == nil {
		return nil
	}
	width := *desc.Width
	for _, f := range desc.Fields {
		if f.SpecialKind.HasAny(KindVariableLength | KindVariablePosition) {
			return nil
		}
	}
	if len(desc.Fields) == 0 {
		return []Gap{{Start: 0, End: width, BlockId: 0}}
	}

	blocks := make(map[int][]*FieldDescriptor)
	var blockIds []int
	for _, f := range desc.Fields {
		if _, seen := blocks[f.BlockId]; !seen {
			blockIds = append(blockIds, f.BlockId)
		}
		blocks[f.BlockId] = append(blocks[f.BlockId], f)
	}
	sort.Ints(blockIds)

	var gaps []Gap
	for _, id := range blockIds {
		group := blocks[id]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Range.Start < group[j].Range.Start
		})
		cursor := 0
		for _, f := range group {
			if f.Range.Start > cursor {
				gaps = append(gaps, Gap{Start: cursor, End: f.Range.Start, BlockId: id})
			}
			if f.Range.End+1 > cursor {
				cursor = f.Range.End + 1
			}
		}
		if cursor < width {
			gaps = append(gaps, Gap{Start: cursor, End: width, BlockId: id})
		}
	}
	return gaps
}
