package events

type subSettings struct {
	buffer int
	match  map[string]string
}

var subSettingsDefault = subSettings{
	buffer: 16,
}

// BufSize sets the buffer size of the subscription channel.
func BufSize(n int) func(interface{}) error {
	return func(s interface{}) error {
		s.(*subSettings).buffer = n
		return nil
	}
}

// MatchField only delivers events whose string field named field equals
// value. It may be given more than once.
func MatchField(field, value string) func(interface{}) error {
	return func(s interface{}) error {
		settings := s.(*subSettings)
		if settings.match == nil {
			settings.match = make(map[string]string)
		}
		settings.match[field] = value
		return nil
	}
}
