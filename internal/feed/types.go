package feed

// Mode is one of the two parallel record streams of the feed.
type Mode string

const (
	PVP Mode = "PVP"
	PVE Mode = "PVE"
)

// Modes lists every mode in display order.
var Modes = []Mode{PVP, PVE}

// Observation is one upstream sighting of the squad. UpdateTime uses the
// upstream's local wall clock in "2006-01-02 15:04:05" form.
type Observation struct {
	Map        string `json:"map"`
	UpdateTime string `json:"update_time"`
}

// RawFeed is one decoded upstream payload. Unknown fields are ignored.
// A RawFeed is never mutated after decoding.
type RawFeed struct {
	PVP []Observation `json:"PVP"`
	PVE []Observation `json:"PVE"`
}

// Records returns the record list of mode m in upstream order.
func (f *RawFeed) Records(m Mode) []Observation {
	if f == nil {
		return nil
	}
	switch m {
	case PVP:
		return f.PVP
	case PVE:
		return f.PVE
	default:
		return nil
	}
}
