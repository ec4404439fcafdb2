package dubbing

// segmentSeparator joins consecutive segments of the same speaker inside
// FullText.
const segmentSeparator = " "

// GroupBySpeaker buckets time-ordered segments by speaker, concatenating
// each speaker's text into one utterance and recording the character span
// every segment occupies inside it. Segments are appended in input order and
// OrderIndex passes through untouched. Speakers come back in order of first
// appearance.
func GroupBySpeaker(segments []Segment) []SpeakerText {
	index := make(map[string]int)
	var groups []SpeakerText
	for _, segment := range segments {
		i, ok := index[segment.SpeakerID]
		if !ok {
			i = len(groups)
			index[segment.SpeakerID] = i
			groups = append(groups, SpeakerText{SpeakerID: segment.SpeakerID})
		}
		group := &groups[i]
		if group.FullText != "" {
			group.FullText += segmentSeparator
		}
		start := len(group.FullText)
		group.FullText += segment.Text
		group.Segments = append(group.Segments, segment)
		// An empty segment still gets an entry: a zero-length span at the
		// current offset.
		group.Spans = append(group.Spans, Span{Start: start, End: start + len(segment.Text)})
	}
	return groups
}
