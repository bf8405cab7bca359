package types

// Listing is the catalog result for one video: the formats currently
// offered plus, optionally, the remote-designated default format.
type Listing struct {
	VideoID VideoID
	Title   string
	Formats []FormatDescriptor

	// DefaultFormat is the format id the remote source designates as its
	// default. Meaningful only when HasDefault is true.
	DefaultFormat int
	HasDefault    bool
}

// Find returns the descriptor for the given format id, if offered.
func (l *Listing) Find(id int) (FormatDescriptor, bool) {
	for _, f := range l.Formats {
		if f.ID == id {
			return f, true
		}
	}
	return FormatDescriptor{}, false
}
