package scene

// Range is a half-open interval of constant-buffer slots.
type Range struct {
	Start int
	End   int
}

func (r Range) Len() int {
	return r.End - r.Start
}

// Partition splits the instance slots [1,total) evenly between species.
// Slot 0 belongs to the terrain.
func Partition(total, species int) []Range {
	if species <= 0 {
		return nil
	}
	ranges := make([]Range, species)
	for s := range ranges {
		ranges[s] = Range{
			Start: max(1, s*total/species),
			End:   (s + 1) * total / species,
		}
	}
	return ranges
}
